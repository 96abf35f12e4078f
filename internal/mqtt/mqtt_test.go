package mqtt

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err     error
	timeout bool
}

func (t doneToken) Wait() bool { return !t.timeout }

func (t doneToken) WaitTimeout(time.Duration) bool { return !t.timeout }

func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t doneToken) Error() error { return t.err }

// fakePaho implements the parts of paho.Client the RealClient touches.
type fakePaho struct {
	paho.Client

	mu           sync.Mutex
	published    []pending
	subscribed   []string
	callback     paho.MessageHandler
	publishToken doneToken
	disconnected bool
}

func (f *fakePaho) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishToken.err == nil && !f.publishToken.timeout {
		f.published = append(f.published, pending{topic: topic, payload: payload.([]byte)})
	}
	return f.publishToken
}

func (f *fakePaho) Subscribe(topic string, _ byte, cb paho.MessageHandler) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, topic)
	f.callback = cb
	return doneToken{}
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
}

func (f *fakePaho) sent() []pending {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pending(nil), f.published...)
}

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func newTestClient(handler MessageHandler) (*RealClient, *fakePaho) {
	c := newRealClient(Options{Broker: "tcp://broker:1883", BufferSize: 2}, handler)
	fp := &fakePaho{}
	c.client = fp
	return c, fp
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "porch-lamp", ClientID("porch-lamp"))

	a, b := ClientID(""), ClientID("")
	assert.True(t, strings.HasPrefix(a, "lamp-controller-"))
	assert.Len(t, a, len("lamp-controller-")+36)
	assert.NotEqual(t, a, b)
}

func TestClientOptions(t *testing.T) {
	c := newRealClient(Options{
		Broker:   "tcp://thingsboard.local:1883",
		Username: "device-token",
		ClientID: "lamp-1",
	}, nil)

	opts := c.clientOptions()
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://thingsboard.local:1883", opts.Servers[0].String())
	assert.Equal(t, "lamp-1", opts.ClientID)
	assert.Equal(t, "device-token", opts.Username)
	assert.True(t, opts.CleanSession)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.False(t, opts.Order, "handlers may block on the reconciler")
	assert.Equal(t, defaultConnectTimeout, opts.ConnectTimeout)
}

func TestPublishHeldWhileOffline(t *testing.T) {
	c, fp := newTestClient(nil)

	require.NoError(t, c.Publish([]byte("a")))
	require.NoError(t, c.Publish([]byte("b")))
	require.NoError(t, c.Publish([]byte("c")))
	assert.Empty(t, fp.sent())
	assert.False(t, c.IsConnected())

	c.onConnect()

	assert.True(t, c.IsConnected())
	assert.Equal(t, []pending{
		{topic: TopicAttributes, payload: []byte("b")},
		{topic: TopicAttributes, payload: []byte("c")},
	}, fp.sent(), "oldest dropped, rest replayed in order")
}

func TestPublishWhileConnected(t *testing.T) {
	c, fp := newTestClient(nil)
	c.onConnect()

	require.NoError(t, c.Publish([]byte(`{"lamp_state":true}`)))
	assert.Equal(t, []pending{{topic: TopicAttributes, payload: []byte(`{"lamp_state":true}`)}}, fp.sent())
}

func TestPublishErrors(t *testing.T) {
	c, fp := newTestClient(nil)
	c.onConnect()

	fp.publishToken = doneToken{err: errors.New("broken pipe")}
	err := c.Publish([]byte("x"))
	require.ErrorIs(t, err, ErrPublishFailed)

	fp.publishToken = doneToken{timeout: true}
	err = c.Publish([]byte("x"))
	require.ErrorIs(t, err, ErrPublishFailed)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRespondRequiresConnection(t *testing.T) {
	c, fp := newTestClient(nil)

	require.ErrorIs(t, c.Respond(TopicRPCResponsePrefix+"1", []byte("{}")), ErrNotConnected)

	c.onConnect()
	require.NoError(t, c.Respond(TopicRPCResponsePrefix+"1", []byte("{}")))
	assert.Equal(t, []pending{{topic: TopicRPCResponsePrefix + "1", payload: []byte("{}")}}, fp.sent())

	c.onConnectionLost(errors.New("eof"))
	require.ErrorIs(t, c.Respond(TopicRPCResponsePrefix+"2", []byte("{}")), ErrNotConnected)
}

func TestSubscribesAndDispatches(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	handler := func(topic string, payload []byte) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, topic+" "+string(payload))
		if string(payload) == "panic" {
			panic("boom")
		}
		return errors.New("rejected")
	}

	c, fp := newTestClient(handler)
	c.onConnect()

	require.Equal(t, []string{TopicRPCRequests}, fp.subscribed)
	fp.callback(fp, fakeMessage{topic: TopicRPCRequestPrefix + "7", payload: []byte("{}")})
	assert.NotPanics(t, func() {
		fp.callback(fp, fakeMessage{topic: TopicRPCRequestPrefix + "8", payload: []byte("panic")})
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{
		TopicRPCRequestPrefix + "7 {}",
		TopicRPCRequestPrefix + "8 panic",
	}, got)
}

func TestNoSubscriptionWithoutHandler(t *testing.T) {
	c, fp := newTestClient(nil)
	c.onConnect()
	assert.Empty(t, fp.subscribed)
}

func TestClose(t *testing.T) {
	c, fp := newTestClient(nil)
	c.onConnect()

	require.NoError(t, c.Close())
	assert.True(t, fp.disconnected)
	assert.False(t, c.IsConnected())
}

func TestFakePublisher(t *testing.T) {
	f := NewFakePublisher()
	assert.True(t, f.IsConnected())

	require.NoError(t, f.Publish([]byte("a")))
	require.NoError(t, f.Respond("t", []byte("b")))
	assert.Equal(t, [][]byte{[]byte("a")}, f.Published())
	assert.Equal(t, []Message{{Topic: "t", Payload: []byte("b")}}, f.Responded())

	f.FailPublish(errors.New("down"))
	require.Error(t, f.Publish([]byte("c")))

	f.SetConnected(false)
	assert.False(t, f.IsConnected())

	require.NoError(t, f.Close())
	f.Reset()
	assert.Empty(t, f.Published())
	assert.True(t, f.IsConnected())
	assert.False(t, f.Closed)
}

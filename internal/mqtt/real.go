package mqtt

import (
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/sweeney/lamp-controller/internal/logger"
)

// RealClient publishes to an actual MQTT broker and serves RPC requests.
type RealClient struct {
	client  paho.Client
	opts    Options
	handler MessageHandler
	log     *zap.SugaredLogger

	mu        sync.Mutex // guards connected and backlog, and orders publishes
	connected bool
	backlog   *backlog
}

// Connect dials the broker. When handler is non-nil the client subscribes to
// RPC requests on every (re)connect. If the broker is unreachable within the
// connect timeout the client keeps retrying in the background and attribute
// publishes are held in the backlog.
func Connect(opts Options, handler MessageHandler) (*RealClient, error) {
	c := newRealClient(opts, handler)
	c.client = paho.NewClient(c.clientOptions())

	token := c.client.Connect()
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		c.log.Warnw("broker not reachable yet, retrying in background",
			"broker", c.opts.Broker, "timeout", c.opts.ConnectTimeout)
		return c, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return c, nil
}

func newRealClient(opts Options, handler MessageHandler) *RealClient {
	opts = opts.withDefaults()
	return &RealClient{
		opts:    opts,
		handler: handler,
		log:     logger.Logger().With("component", "mqtt", "client_id", opts.ClientID),
		backlog: newBacklog(opts.BufferSize),
	}
}

func (c *RealClient) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(c.opts.Broker).
		SetClientID(c.opts.ClientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(c.opts.ConnectTimeout).
		SetOrderMatters(false).
		SetOnConnectHandler(func(paho.Client) { c.onConnect() }).
		SetConnectionLostHandler(func(_ paho.Client, err error) { c.onConnectionLost(err) })

	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}

	return opts
}

func (c *RealClient) onConnect() {
	if c.handler != nil {
		token := c.client.Subscribe(TopicRPCRequests, 0, c.dispatch)
		if err := c.wait(token); err != nil {
			c.log.Errorw("subscribe to rpc requests failed", "topic", TopicRPCRequests, "error", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = true
	held, dropped := c.backlog.drain()
	if dropped > 0 {
		c.log.Warnw("offline backlog overflowed", "dropped", dropped)
	}
	for _, msg := range held {
		if err := c.send(msg.topic, msg.payload); err != nil {
			c.log.Warnw("replay failed", "topic", msg.topic, "error", err)
		}
	}
	c.log.Infow("connected to broker", "broker", c.opts.Broker, "replayed", len(held))
}

func (c *RealClient) onConnectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.log.Warnw("connection to broker lost", "error", err)
}

func (c *RealClient) dispatch(_ paho.Client, msg paho.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("rpc handler panic recovered", "topic", msg.Topic(), "panic", r)
		}
	}()

	if err := c.handler(msg.Topic(), msg.Payload()); err != nil {
		c.log.Warnw("rpc request failed", "topic", msg.Topic(), "error", err)
	}
}

// Publish sends an attributes snapshot, or holds it while disconnected.
func (c *RealClient) Publish(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		c.backlog.push(pending{topic: TopicAttributes, payload: payload})
		c.log.Debugw("broker offline, snapshot held", "held", c.backlog.len())
		return nil
	}

	return c.send(TopicAttributes, payload)
}

// Respond publishes an RPC response.
func (c *RealClient) Respond(topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	return c.send(topic, payload)
}

// send publishes at QoS 0 (at-most-once), not retained. Caller holds c.mu.
func (c *RealClient) send(topic string, payload []byte) error {
	if err := c.wait(c.client.Publish(topic, 0, false, payload)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPublishFailed, topic, err)
	}
	return nil
}

func (c *RealClient) wait(token paho.Token) error {
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		return ErrTimeout
	}
	return token.Error()
}

// IsConnected reports whether the broker session is up.
func (c *RealClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close disconnects from the broker.
func (c *RealClient) Close() error {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.client.Disconnect(disconnectQuiesce)
	return nil
}

package mqtt

import "sync"

// Message is one recorded Respond call.
type Message struct {
	Topic   string
	Payload []byte
}

// FakePublisher records published payloads for test assertions.
// Safe for concurrent use.
type FakePublisher struct {
	mu sync.Mutex

	// Payloads contains every attributes payload that was published.
	Payloads [][]byte

	// Responses contains every RPC response that was sent.
	Responses []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// RespondError, if set, will be returned by Respond.
	RespondError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a connected FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{Connected: true}
}

// Publish records the payload.
func (f *FakePublisher) Publish(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.PublishError != nil {
		return f.PublishError
	}
	f.Payloads = append(f.Payloads, append([]byte(nil), payload...))
	return nil
}

// Respond records the response.
func (f *FakePublisher) Respond(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.RespondError != nil {
		return f.RespondError
	}
	f.Responses = append(f.Responses, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	return nil
}

// Published returns a copy of the recorded payloads.
func (f *FakePublisher) Published() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.Payloads...)
}

// Responded returns a copy of the recorded responses.
func (f *FakePublisher) Responded() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.Responses...)
}

// FailPublish sets or clears the scripted Publish error.
func (f *FakePublisher) FailPublish(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PublishError = err
}

// SetConnected changes what IsConnected reports.
func (f *FakePublisher) SetConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = v
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded messages and scripted errors.
func (f *FakePublisher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Payloads = nil
	f.Responses = nil
	f.PublishError = nil
	f.RespondError = nil
	f.Closed = false
	f.Connected = true
}

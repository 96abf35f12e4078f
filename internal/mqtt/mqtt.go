// Package mqtt connects the controller to a ThingsBoard-style broker.
//
// State snapshots go to the device attributes topic. Server-side RPC
// requests arrive on the request wildcard and are answered on the matching
// response topic.
package mqtt

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Topics used by the device API.
const (
	TopicAttributes        = "v1/devices/me/attributes"
	TopicRPCRequestPrefix  = "v1/devices/me/rpc/request/"
	TopicRPCRequests       = TopicRPCRequestPrefix + "+"
	TopicRPCResponsePrefix = "v1/devices/me/rpc/response/"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesce     = 1000 // milliseconds
	clientIDPrefix        = "lamp-controller-"
)

var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")
	ErrTimeout          = errors.New("mqtt: operation timed out")
)

// Publisher sends snapshots and RPC responses to the broker.
type Publisher interface {
	// Publish sends an attributes snapshot. Held back while disconnected.
	Publish(payload []byte) error

	// Respond sends payload to topic. Fails fast while disconnected.
	Respond(topic string, payload []byte) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// MessageHandler receives RPC requests. It runs on a paho callback goroutine.
type MessageHandler func(topic string, payload []byte) error

// Options configures the broker connection.
type Options struct {
	Broker   string
	Username string // ThingsBoard device access token
	Password string
	ClientID string

	// BufferSize bounds the attribute backlog held while offline.
	BufferSize int

	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

func (o Options) withDefaults() Options {
	o.ClientID = ClientID(o.ClientID)
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = defaultPublishTimeout
	}
	return o
}

// ClientID returns configured, or a random "lamp-controller-<uuid>" when empty.
func ClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return clientIDPrefix + uuid.NewString()
}

// Package command routes server-side RPC requests to the lamp reconciler.
//
// A request looks like
//
//	{"method":"setValue","params":{"request_type":"lamp_state","value":true}}
//
// and arrives on v1/devices/me/rpc/request/<id>. Once dispatched, the request
// payload is echoed back unchanged on v1/devices/me/rpc/response/<id>.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/lamp-controller/internal/mqtt"
)

// MethodSetValue is the only supported RPC method.
const MethodSetValue = "setValue"

// Request types.
const (
	RequestLampState   = "lamp_state"
	RequestSensorState = "sensor_state"
)

// Rejections. None of them reaches the reconciler or produces a response.
var (
	ErrUnknownTopic       = errors.New("command: not an rpc request topic")
	ErrMalformed          = errors.New("command: malformed request")
	ErrUnsupportedMethod  = errors.New("command: unsupported method")
	ErrMissingParams      = errors.New("command: request params missing")
	ErrUnknownRequestType = errors.New("command: unknown request type")
)

// Request is the decoded RPC payload.
type Request struct {
	Method string  `json:"method"`
	Params *Params `json:"params"`
}

// Params carries the target flag and its new value.
type Params struct {
	RequestType string `json:"request_type"`
	Value       *bool  `json:"value"`
}

// ParseRequestTopic extracts the request id from an RPC request topic.
func ParseRequestTopic(topic string) (uint32, error) {
	raw, ok := strings.CutPrefix(topic, mqtt.TopicRPCRequestPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	return uint32(id), nil
}

// ResponseTopic returns the topic answering request id.
func ResponseTopic(id uint32) string {
	return mqtt.TopicRPCResponsePrefix + strconv.FormatUint(uint64(id), 10)
}

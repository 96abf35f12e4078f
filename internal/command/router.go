package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/lamp-controller/internal/lamp"
	"github.com/sweeney/lamp-controller/internal/logger"
)

// Controller is the part of the reconciler the router drives.
type Controller interface {
	SetLamp(ctx context.Context, desired bool) error
	SetSensorMode(ctx context.Context, desired bool) error
}

// Responder sends RPC responses.
type Responder interface {
	Respond(topic string, payload []byte) error
}

// Router decodes RPC requests and applies them one at a time.
type Router struct {
	ctrl Controller
	resp Responder

	mu sync.Mutex
}

// NewRouter creates a router applying requests to ctrl and answering through resp.
func NewRouter(ctrl Controller, resp Responder) *Router {
	return &Router{ctrl: ctrl, resp: resp}
}

// Handle processes one request. The payload is echoed when the request was
// dispatched and the state change is durable, or when it was blocked by
// automatic mode. Hardware and persistence failures are not answered.
func (r *Router) Handle(ctx context.Context, topic string, payload []byte) error {
	id, err := ParseRequestTopic(topic)
	if err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "component", "command", "request_id", id)

	req, err := Decode(payload)
	if err != nil {
		logger.WarnKV(ctx, "rpc request rejected", "error", err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	err = r.apply(ctx, req.Params)
	if err != nil && !errors.Is(err, lamp.ErrBlockedByAutomaticMode) {
		return err
	}

	if rerr := r.resp.Respond(ResponseTopic(id), payload); rerr != nil {
		logger.ErrorKV(ctx, "sending rpc response failed", "error", rerr)
		return errors.Join(err, fmt.Errorf("send response: %w", rerr))
	}

	logger.DebugKV(ctx, "rpc request handled",
		"request_type", req.Params.RequestType, "value", *req.Params.Value)
	return err
}

func (r *Router) apply(ctx context.Context, p *Params) error {
	switch p.RequestType {
	case RequestLampState:
		return r.ctrl.SetLamp(ctx, *p.Value)
	case RequestSensorState:
		return r.ctrl.SetSensorMode(ctx, *p.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRequestType, p.RequestType)
	}
}

// Decode parses and validates an RPC payload.
func Decode(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if req.Method != MethodSetValue {
		return Request{}, fmt.Errorf("%w: %q", ErrUnsupportedMethod, req.Method)
	}
	if req.Params == nil {
		return Request{}, ErrMissingParams
	}
	if req.Params.Value == nil {
		return Request{}, fmt.Errorf("%w: params.value missing", ErrMalformed)
	}
	switch req.Params.RequestType {
	case RequestLampState, RequestSensorState:
	default:
		return Request{}, fmt.Errorf("%w: %q", ErrUnknownRequestType, req.Params.RequestType)
	}

	return req, nil
}

// MessageHandler adapts Handle to the MQTT subscription callback.
func (r *Router) MessageHandler(ctx context.Context) func(topic string, payload []byte) error {
	return func(topic string, payload []byte) error {
		return r.Handle(ctx, topic, payload)
	}
}

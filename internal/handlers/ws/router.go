// Package ws routes inbound socket events to handlers. Inbound frames carry
// an event name and a JSON payload; every reply and broadcast goes out in the
// same envelope the HTTP transport uses.
package ws

import (
	"context"
	"encoding/json"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/realtime"
	"github.com/harborchat/harbor-backend/internal/throttle"
)

// Inbound event names.
const (
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventPing         = "ping"
	EventSendMessage  = "send-message"
	EventTyping       = "typing"
	EventStopTyping   = "stop-typing"
	EventMessageRead  = "message-read"
	EventMessagesRead = "messages-read"
)

// MessageContext carries everything a socket event handler needs about the
// inbound frame and its sender.
type MessageContext struct {
	Ctx    context.Context
	Client *realtime.Client
	Fanout *realtime.Fanout
	// Tracker is the client's rate-limit identity, shared with HTTP.
	Tracker string
}

func (m *MessageContext) UserID() string {
	return m.Client.UserID
}

// HandlerFunc handles one inbound event. Returned errors are mapped to an
// error envelope on the sender's socket, exactly like an HTTP error response.
type HandlerFunc func(mc *MessageContext, payload json.RawMessage) error

// Decode unmarshals an event payload, converting junk into the same
// validation error HTTP body parsing produces.
func Decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, apperr.Validation("Missing event payload")
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, apperr.Validation("Invalid event payload")
	}
	return v, nil
}

type inboundFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Router dispatches inbound frames by event name, applying the shared rate
// limit before any handler runs.
type Router struct {
	handlers  map[string]HandlerFunc
	throttler *throttle.Throttler
}

func NewRouter(throttler *throttle.Throttler) *Router {
	return &Router{
		handlers:  make(map[string]HandlerFunc),
		throttler: throttler,
	}
}

func (r *Router) Handle(event string, fn HandlerFunc) {
	r.handlers[event] = fn
}

// Dispatch parses one raw inbound frame and runs its handler. All failures,
// including rate limiting and unknown events, come back to the sender as an
// error envelope; dispatch itself never kills the connection.
func (r *Router) Dispatch(mc *MessageContext, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
		mc.Fanout.EmitErrorToClient(mc.Client, apperr.Validation("Invalid event frame"))
		return
	}

	if err := r.throttler.Check(mc.Ctx, throttle.Descriptor{
		Tracker: mc.Tracker,
		Route:   throttle.RouteGlobal,
	}); err != nil {
		mc.Fanout.EmitErrorToClient(mc.Client, err)
		return
	}

	handler, ok := r.handlers[frame.Event]
	if !ok {
		mc.Fanout.EmitErrorToClient(mc.Client, apperr.Validation("Unknown event: "+frame.Event))
		return
	}
	if err := handler(mc, frame.Payload); err != nil {
		mc.Fanout.EmitErrorToClient(mc.Client, err)
	}
}

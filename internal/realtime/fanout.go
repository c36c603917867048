package realtime

import (
	"context"
	"fmt"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/logger"
)

// ChatRoom names the broadcast room for chat-wide events.
func ChatRoom(chatID uint) string {
	return fmt.Sprintf("chat:%d", chatID)
}

// UserRoom names a user's personal notification room.
func UserRoom(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// Fanout delivers events to every socket in a room across all server
// instances. Events go out through the backplane; the local hub only ever
// receives them back through Start's subscription, so delivery behaves
// identically no matter which instance a client is attached to.
type Fanout struct {
	hub       *Hub
	backplane Backplane
}

func NewFanout(hub *Hub, backplane Backplane) *Fanout {
	return &Fanout{hub: hub, backplane: backplane}
}

// Hub exposes the local socket registry for the connection handler.
func (f *Fanout) Hub() *Hub {
	return f.hub
}

// Start subscribes this instance to the backplane and relays every frame to
// the local hub. Must be called once before any emit.
func (f *Fanout) Start(ctx context.Context) error {
	return f.backplane.Subscribe(ctx, func(fr Frame) {
		f.hub.emitLocal(fr.Room, fr.Event, fr.Envelope)
	})
}

// EmitToRoom publishes a success-enveloped event to a room on every instance.
func (f *Fanout) EmitToRoom(ctx context.Context, room, event string, data interface{}, meta map[string]interface{}) error {
	env := NewSuccessEnvelope(200, data, meta)
	if err := f.backplane.Publish(ctx, Frame{Room: room, Event: event, Envelope: env}); err != nil {
		logger.Error().Err(err).Str("room", room).Str("event", event).Msg("fanout publish failed")
		return apperr.Internal(err)
	}
	return nil
}

// EmitToClient sends a success envelope to a single local socket, bypassing
// the backplane.
func (f *Fanout) EmitToClient(client *Client, event string, data interface{}, meta map[string]interface{}) {
	if err := client.Send(event, NewSuccessEnvelope(200, data, meta)); err != nil {
		logger.Warn().Err(err).Str("socket_id", client.ID).Str("event", event).Msg("client emit failed")
	}
}

// EmitErrorToClient sends a failure envelope to a single local socket, using
// the same error mapping the HTTP transport uses.
func (f *Fanout) EmitErrorToClient(client *Client, err error) {
	appErr := apperr.From(err)
	if appErr.Kind == apperr.KindInternal {
		logger.Error().Err(err).Str("socket_id", client.ID).Msg("socket handler failed")
	}
	env := NewErrorEnvelope(appErr.Status(), appErr.Code, appErr.Message)
	if sendErr := client.Send(EventError, env); sendErr != nil {
		logger.Warn().Err(sendErr).Str("socket_id", client.ID).Msg("error emit failed")
	}
}

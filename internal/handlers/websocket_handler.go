package handlers

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/harborchat/harbor-backend/internal/handlers/ws"
	"github.com/harborchat/harbor-backend/internal/logger"
	"github.com/harborchat/harbor-backend/internal/middleware"
	"github.com/harborchat/harbor-backend/internal/realtime"
	"github.com/harborchat/harbor-backend/internal/service"
	"github.com/harborchat/harbor-backend/internal/throttle"
)

// WebSocketHandler owns the socket endpoint: handshake auth, the read loop,
// and the event handlers. It reuses the same services as the REST surface, so
// an operation behaves identically regardless of transport.
type WebSocketHandler struct {
	fanout    *realtime.Fanout
	router    *ws.Router
	chats     *service.ChatService
	reads     *service.ReadReceiptService
	jwtSecret string
}

func NewWebSocketHandler(
	fanout *realtime.Fanout,
	throttler *throttle.Throttler,
	chats *service.ChatService,
	reads *service.ReadReceiptService,
	jwtSecret string,
) *WebSocketHandler {
	h := &WebSocketHandler{
		fanout:    fanout,
		router:    ws.NewRouter(throttler),
		chats:     chats,
		reads:     reads,
		jwtSecret: jwtSecret,
	}
	h.router.Handle(ws.EventPing, h.handlePing)
	h.router.Handle(ws.EventJoinRoom, h.handleJoinRoom)
	h.router.Handle(ws.EventLeaveRoom, h.handleLeaveRoom)
	h.router.Handle(ws.EventSendMessage, h.handleSendMessage)
	h.router.Handle(ws.EventTyping, h.handleTyping)
	h.router.Handle(ws.EventStopTyping, h.handleStopTyping)
	h.router.Handle(ws.EventMessageRead, h.handleMessageRead)
	h.router.Handle(ws.EventMessagesRead, h.handleMessagesRead)
	return h
}

// RegisterRoutes mounts the upgrade guard and the socket endpoint.
func (h *WebSocketHandler) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			// Authenticate during the handshake; a bad token never upgrades.
			userID, err := middleware.SubjectFromToken(c.Query("token"), h.jwtSecret)
			if err != nil {
				return fiber.ErrUnauthorized
			}
			c.Locals("userID", userID)
			c.Locals("tracker", c.IP())
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(h.serve))
}

func (h *WebSocketHandler) serve(conn *websocket.Conn) {
	userID, _ := conn.Locals("userID").(string)
	tracker, _ := conn.Locals("tracker").(string)

	client := h.fanout.Hub().Register(userID, conn)
	defer h.fanout.Hub().Unregister(client.ID)

	h.fanout.EmitToClient(client, realtime.EventConnected, fiber.Map{
		"socketId": client.ID,
		"userId":   userID,
	}, nil)

	mc := &ws.MessageContext{
		Ctx:     context.Background(),
		Client:  client,
		Fanout:  h.fanout,
		Tracker: tracker,
	}

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Str("socket_id", client.ID).Msg("socket read ended")
			return
		}
		h.router.Dispatch(mc, raw)
	}
}

func (h *WebSocketHandler) handlePing(mc *ws.MessageContext, _ json.RawMessage) error {
	h.fanout.EmitToClient(mc.Client, realtime.EventPong, nil, nil)
	return nil
}

type roomPayload struct {
	ChatID uint `json:"chatId"`
}

func (h *WebSocketHandler) handleJoinRoom(mc *ws.MessageContext, payload json.RawMessage) error {
	req, err := ws.Decode[roomPayload](payload)
	if err != nil {
		return err
	}
	// Membership gates the room; joining is how a socket opts into a chat's
	// live traffic.
	if _, err := h.chats.GetChatByID(req.ChatID, mc.UserID()); err != nil {
		return err
	}
	room := realtime.ChatRoom(req.ChatID)
	h.fanout.Hub().Join(mc.Client.ID, room)
	h.fanout.EmitToClient(mc.Client, realtime.EventJoinedRoom, fiber.Map{"room": room}, nil)
	return nil
}

func (h *WebSocketHandler) handleLeaveRoom(mc *ws.MessageContext, payload json.RawMessage) error {
	req, err := ws.Decode[roomPayload](payload)
	if err != nil {
		return err
	}
	room := realtime.ChatRoom(req.ChatID)
	h.fanout.Hub().Leave(mc.Client.ID, room)
	h.fanout.EmitToClient(mc.Client, realtime.EventLeftRoom, fiber.Map{"room": room}, nil)
	return nil
}

type sendMessagePayload struct {
	ChatID   uint   `json:"chatId"`
	ClientID string `json:"clientId"`
	Content  string `json:"content"`
}

func (h *WebSocketHandler) handleSendMessage(mc *ws.MessageContext, payload json.RawMessage) error {
	req, err := ws.Decode[sendMessagePayload](payload)
	if err != nil {
		return err
	}
	message, err := h.chats.SendMessage(req.ChatID, mc.UserID(), service.SendMessageRequest{
		ClientID: req.ClientID,
		Content:  req.Content,
	})
	if err != nil {
		return err
	}
	return h.fanout.EmitToRoom(mc.Ctx, realtime.ChatRoom(req.ChatID), realtime.EventNewMessage, message.ToResponse(), nil)
}

func (h *WebSocketHandler) handleTyping(mc *ws.MessageContext, payload json.RawMessage) error {
	return h.relayTyping(mc, payload, realtime.EventUserTyping)
}

func (h *WebSocketHandler) handleStopTyping(mc *ws.MessageContext, payload json.RawMessage) error {
	return h.relayTyping(mc, payload, realtime.EventUserStoppedTyping)
}

func (h *WebSocketHandler) relayTyping(mc *ws.MessageContext, payload json.RawMessage, event string) error {
	req, err := ws.Decode[roomPayload](payload)
	if err != nil {
		return err
	}
	return h.fanout.EmitToRoom(mc.Ctx, realtime.ChatRoom(req.ChatID), event, fiber.Map{
		"chatId": req.ChatID,
		"userId": mc.UserID(),
	}, nil)
}

type messageReadPayload struct {
	ChatID    uint `json:"chatId"`
	MessageID uint `json:"messageId"`
}

func (h *WebSocketHandler) handleMessageRead(mc *ws.MessageContext, payload json.RawMessage) error {
	req, err := ws.Decode[messageReadPayload](payload)
	if err != nil {
		return err
	}
	if err := h.reads.MarkRead(req.ChatID, req.MessageID, mc.UserID()); err != nil {
		return err
	}
	return h.fanout.EmitToRoom(mc.Ctx, realtime.ChatRoom(req.ChatID), realtime.EventMessageRead, fiber.Map{
		"chatId":    req.ChatID,
		"messageId": req.MessageID,
		"userId":    mc.UserID(),
	}, nil)
}

type messagesReadPayload struct {
	ChatID     uint   `json:"chatId"`
	MessageIDs []uint `json:"messageIds"`
}

func (h *WebSocketHandler) handleMessagesRead(mc *ws.MessageContext, payload json.RawMessage) error {
	req, err := ws.Decode[messagesReadPayload](payload)
	if err != nil {
		return err
	}
	marked, err := h.reads.MarkManyRead(req.ChatID, req.MessageIDs, mc.UserID())
	if err != nil {
		return err
	}
	if len(marked) == 0 {
		return nil
	}
	return h.fanout.EmitToRoom(mc.Ctx, realtime.ChatRoom(req.ChatID), realtime.EventMessagesRead, fiber.Map{
		"chatId":     req.ChatID,
		"messageIds": marked,
		"userId":     mc.UserID(),
	}, nil)
}

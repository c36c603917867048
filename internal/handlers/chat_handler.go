package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/httpx"
	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/pagination"
	"github.com/harborchat/harbor-backend/internal/realtime"
	"github.com/harborchat/harbor-backend/internal/service"
)

// ChatHandler exposes the chat REST surface. Handlers call the services and
// broadcast the resulting events; the socket transport emits the same events
// for the same operations.
type ChatHandler struct {
	chats  *service.ChatService
	reads  *service.ReadReceiptService
	fanout *realtime.Fanout
}

func NewChatHandler(chats *service.ChatService, reads *service.ReadReceiptService, fanout *realtime.Fanout) *ChatHandler {
	return &ChatHandler{chats: chats, reads: reads, fanout: fanout}
}

func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/chats", h.CreateChat)
	router.Get("/chats", h.ListChats)
	router.Get("/chats/:chatId", h.GetChat)
	router.Post("/chats/:chatId/members", h.AddMember)
	router.Get("/chats/:chatId/messages", h.ListMessages)
	router.Post("/chats/:chatId/messages", h.SendMessage)
	router.Put("/chats/:chatId/messages/:messageId", h.UpdateMessage)
	router.Delete("/chats/:chatId/messages/:messageId", h.DeleteMessage)
	router.Post("/chats/:chatId/messages/read", h.MarkManyRead)
	router.Post("/chats/:chatId/messages/:messageId/read", h.MarkRead)
}

func (h *ChatHandler) CreateChat(c *fiber.Ctx) error {
	var req service.CreateChatRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Error(c, apperr.Validation("Invalid request body"))
	}

	chat, err := h.chats.CreateChat(httpx.UserID(c), req)
	if err != nil {
		return httpx.Error(c, err)
	}

	// Every member learns about the chat in their personal room; their
	// sockets may not have joined the chat room yet.
	resp := chat.ToResponse()
	for _, m := range chat.Members {
		_ = h.fanout.EmitToRoom(c.UserContext(), realtime.UserRoom(m.UserID), realtime.EventUserJoinedChat, resp, nil)
	}
	return httpx.Success(c, fiber.StatusCreated, resp, nil)
}

func (h *ChatHandler) ListChats(c *fiber.Ctx) error {
	chats, err := h.chats.GetUserChats(httpx.UserID(c))
	if err != nil {
		return httpx.Error(c, err)
	}
	responses := lo.Map(chats, func(chat models.Chat, _ int) models.ChatResponse {
		return chat.ToResponse()
	})
	return httpx.Success(c, fiber.StatusOK, responses, nil)
}

func (h *ChatHandler) GetChat(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	chat, err := h.chats.GetChatByID(chatID, httpx.UserID(c))
	if err != nil {
		return httpx.Error(c, err)
	}
	return httpx.Success(c, fiber.StatusOK, chat.ToResponse(), nil)
}

type addMemberRequest struct {
	UserID string `json:"userId"`
}

func (h *ChatHandler) AddMember(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Error(c, apperr.Validation("Invalid request body"))
	}

	chat, err := h.chats.AddMember(chatID, httpx.UserID(c), req.UserID)
	if err != nil {
		return httpx.Error(c, err)
	}

	resp := chat.ToResponse()
	_ = h.fanout.EmitToRoom(c.UserContext(), realtime.ChatRoom(chatID), realtime.EventMemberAdded, fiber.Map{
		"chatId": chatID,
		"userId": req.UserID,
	}, nil)
	_ = h.fanout.EmitToRoom(c.UserContext(), realtime.UserRoom(req.UserID), realtime.EventUserJoinedChat, resp, nil)
	return httpx.Success(c, fiber.StatusOK, resp, nil)
}

func (h *ChatHandler) ListMessages(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}

	req := service.ListMessagesRequest{
		Search: c.Query("search"),
		Options: pagination.Options{
			Limit:        c.QueryInt("limit"),
			AfterCursor:  c.Query("afterCursor"),
			BeforeCursor: c.Query("beforeCursor"),
			Order:        pagination.Order(c.Query("order")),
		},
	}

	page, err := h.chats.ListMessages(chatID, httpx.UserID(c), req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return httpx.Success(c, fiber.StatusOK, page.Data, paginationMeta(page.Meta))
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	var req service.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Error(c, apperr.Validation("Invalid request body"))
	}

	message, err := h.chats.SendMessage(chatID, httpx.UserID(c), req)
	if err != nil {
		return httpx.Error(c, err)
	}

	resp := message.ToResponse()
	_ = h.fanout.EmitToRoom(c.UserContext(), realtime.ChatRoom(chatID), realtime.EventNewMessage, resp, nil)
	return httpx.Success(c, fiber.StatusCreated, resp, nil)
}

type updateMessageRequest struct {
	Content string `json:"content"`
}

func (h *ChatHandler) UpdateMessage(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	messageID, err := httpx.ParseUintParam(c, "messageId")
	if err != nil {
		return httpx.Error(c, err)
	}
	var req updateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Error(c, apperr.Validation("Invalid request body"))
	}

	message, err := h.chats.UpdateMessage(chatID, messageID, httpx.UserID(c), req.Content)
	if err != nil {
		return httpx.Error(c, err)
	}

	resp := message.ToResponse()
	_ = h.fanout.EmitToRoom(c.UserContext(), realtime.ChatRoom(chatID), realtime.EventMessageUpdated, resp, nil)
	return httpx.Success(c, fiber.StatusOK, resp, nil)
}

func (h *ChatHandler) DeleteMessage(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	messageID, err := httpx.ParseUintParam(c, "messageId")
	if err != nil {
		return httpx.Error(c, err)
	}

	message, err := h.chats.DeleteMessage(chatID, messageID, httpx.UserID(c))
	if err != nil {
		return httpx.Error(c, err)
	}

	_ = h.fanout.EmitToRoom(c.UserContext(), realtime.ChatRoom(chatID), realtime.EventMessageDeleted, fiber.Map{
		"chatId":    chatID,
		"messageId": messageID,
	}, nil)
	return httpx.Success(c, fiber.StatusOK, message.ToResponse(), nil)
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	messageID, err := httpx.ParseUintParam(c, "messageId")
	if err != nil {
		return httpx.Error(c, err)
	}

	userID := httpx.UserID(c)
	if err := h.reads.MarkRead(chatID, messageID, userID); err != nil {
		return httpx.Error(c, err)
	}

	_ = h.fanout.EmitToRoom(c.UserContext(), realtime.ChatRoom(chatID), realtime.EventMessageRead, fiber.Map{
		"chatId":    chatID,
		"messageId": messageID,
		"userId":    userID,
	}, nil)
	return httpx.Success(c, fiber.StatusOK, fiber.Map{"marked": true}, nil)
}

type markManyReadRequest struct {
	MessageIDs []uint `json:"messageIds"`
}

func (h *ChatHandler) MarkManyRead(c *fiber.Ctx) error {
	chatID, err := httpx.ParseUintParam(c, "chatId")
	if err != nil {
		return httpx.Error(c, err)
	}
	var req markManyReadRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.Error(c, apperr.Validation("Invalid request body"))
	}

	userID := httpx.UserID(c)
	marked, err := h.reads.MarkManyRead(chatID, req.MessageIDs, userID)
	if err != nil {
		return httpx.Error(c, err)
	}

	if len(marked) > 0 {
		_ = h.fanout.EmitToRoom(c.UserContext(), realtime.ChatRoom(chatID), realtime.EventMessagesRead, fiber.Map{
			"chatId":     chatID,
			"messageIds": marked,
			"userId":     userID,
		}, nil)
	}
	return httpx.Success(c, fiber.StatusOK, fiber.Map{"markedCount": len(marked)}, nil)
}

func paginationMeta(m pagination.Meta) map[string]interface{} {
	meta := map[string]interface{}{
		"limit":           m.Limit,
		"hasNextPage":     m.HasNextPage,
		"hasPreviousPage": m.HasPreviousPage,
	}
	if m.NextCursor != "" {
		meta["nextCursor"] = m.NextCursor
	}
	if m.PreviousCursor != "" {
		meta["previousCursor"] = m.PreviousCursor
	}
	return meta
}

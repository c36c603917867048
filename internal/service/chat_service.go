package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/cache"
	"github.com/harborchat/harbor-backend/internal/logger"
	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/pagination"
	"github.com/harborchat/harbor-backend/internal/repository"
)

// EditWindow bounds how long after sending a message its author may edit or
// delete it.
const EditWindow = 10 * time.Minute

type CreateChatRequest struct {
	Name      *string         `json:"name"`
	Type      models.ChatType `json:"type"`
	MemberIDs []string        `json:"memberIds"`
}

type SendMessageRequest struct {
	ClientID string `json:"clientId"`
	Content  string `json:"content"`
}

type ListMessagesRequest struct {
	Search string
	pagination.Options
}

// ChatService owns chat lifecycle and message rules. Transports call it and
// translate its typed errors; it never knows which transport called.
type ChatService struct {
	chatRepo    repository.ChatRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
	readRepo    repository.MessageReadRepositoryInterface
	chatCache   *cache.ChatListCache

	now func() time.Time
	// autoReadDone runs after the detached mark-read pass finishes. Tests use
	// it to synchronize; production leaves it nil.
	autoReadDone func()
}

func NewChatService(
	chatRepo repository.ChatRepositoryInterface,
	messageRepo repository.MessageRepositoryInterface,
	readRepo repository.MessageReadRepositoryInterface,
	chatCache *cache.ChatListCache,
) *ChatService {
	return &ChatService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		readRepo:    readRepo,
		chatCache:   chatCache,
		now:         time.Now,
	}
}

// CreateChat validates and persists a new chat with the creator plus the
// requested members. Direct chats have exactly two members and no name;
// group chats require a name.
func (s *ChatService) CreateChat(creatorID string, req CreateChatRequest) (*models.Chat, error) {
	others := lo.Uniq(lo.Filter(req.MemberIDs, func(id string, _ int) bool {
		return id != "" && id != creatorID
	}))

	switch req.Type {
	case models.DirectChat:
		if len(others) != 1 {
			return nil, apperr.Validation("Direct chats require exactly one other member")
		}
	case models.GroupChat:
		if req.Name == nil || *req.Name == "" {
			return nil, apperr.Validation("Group chats require a name")
		}
		if len(others) == 0 {
			return nil, apperr.Validation("Group chats require at least one other member")
		}
	default:
		return nil, apperr.Validation("Chat type must be GROUP or DIRECT")
	}

	name := req.Name
	if req.Type == models.DirectChat {
		name = nil
	}

	chat := &models.Chat{
		Name:      name,
		Type:      req.Type,
		CreatorID: creatorID,
	}
	memberIDs := append([]string{creatorID}, others...)
	if err := s.chatRepo.CreateWithMembers(chat, memberIDs); err != nil {
		return nil, apperr.Internal(err)
	}

	s.invalidateChatLists(memberIDs)
	return chat, nil
}

// GetUserChats returns the caller's chats ordered by recency, serving from
// the per-user cache when it is warm.
func (s *ChatService) GetUserChats(userID string) ([]models.Chat, error) {
	if chats, ok := s.chatCache.Get(userID); ok {
		return chats, nil
	}

	chats, err := s.chatRepo.FindChatsForUser(userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if err := s.chatCache.Set(userID, chats); err != nil {
		logger.Warn().Err(err).Str("user_id", userID).Msg("chat list cache write failed")
	}
	return chats, nil
}

// GetChatByID returns one chat, visible to members only.
func (s *ChatService) GetChatByID(chatID uint, userID string) (*models.Chat, error) {
	return s.memberChat(chatID, userID)
}

// AddMember adds a user to a group chat. Direct chat membership is fixed at
// creation.
func (s *ChatService) AddMember(chatID uint, actorID, newMemberID string) (*models.Chat, error) {
	chat, err := s.memberChat(chatID, actorID)
	if err != nil {
		return nil, err
	}
	if chat.Type != models.GroupChat {
		return nil, apperr.Validation("Members can only be added to group chats")
	}
	if newMemberID == "" {
		return nil, apperr.Validation("Member id is required")
	}
	if chat.HasMember(newMemberID) {
		return nil, apperr.Validation("User is already a member of this chat")
	}
	if err := s.chatRepo.AddMember(chatID, newMemberID); err != nil {
		return nil, apperr.Internal(err)
	}

	chat, err = s.chatRepo.FindByID(chatID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	affected := append(lo.Map(chat.Members, func(m models.ChatMember, _ int) string { return m.UserID }), newMemberID)
	s.invalidateChatLists(affected)
	return chat, nil
}

// SendMessage appends a message to a chat the sender belongs to. A resend
// carrying an already-seen clientId returns the original message instead of
// creating a duplicate.
func (s *ChatService) SendMessage(chatID uint, senderID string, req SendMessageRequest) (*models.Message, error) {
	chat, err := s.memberChat(chatID, senderID)
	if err != nil {
		return nil, err
	}
	if req.Content == "" {
		return nil, apperr.Validation("Message content is required")
	}
	if req.ClientID != "" {
		if uuid.Validate(req.ClientID) != nil {
			return nil, apperr.Validation("clientId must be a valid UUID")
		}
		if existing, err := s.messageRepo.FindByClientID(req.ClientID, senderID); err != nil {
			return nil, apperr.Internal(err)
		} else if existing != nil {
			return existing, nil
		}
	}

	message := &models.Message{
		ChatID:   chatID,
		SenderID: senderID,
		Content:  req.Content,
	}
	if req.ClientID != "" {
		message.ClientID = &req.ClientID
	}
	if err := s.messageRepo.CreateAndTouchChat(message); err != nil {
		return nil, apperr.Internal(err)
	}

	s.invalidateChatLists(lo.Map(chat.Members, func(m models.ChatMember, _ int) string { return m.UserID }))
	return message, nil
}

// ListMessages pages through a chat's messages for a member. Every message the
// page returns is marked read for the caller in the background; listing never
// waits on, or fails because of, receipt writes.
func (s *ChatService) ListMessages(chatID uint, userID string, req ListMessagesRequest) (pagination.Page[models.MessageResponse], error) {
	if _, err := s.memberChat(chatID, userID); err != nil {
		return pagination.Page[models.MessageResponse]{}, err
	}

	filter := repository.MessageFilter{ChatID: chatID, Search: req.Search}
	opts := req.Options
	if opts.Order == "" {
		opts.Order = pagination.OrderDesc
	}

	page, err := pagination.Paginate(func(q pagination.Query) ([]models.Message, error) {
		return s.messageRepo.ListByChat(filter, q)
	}, opts, func(m models.Message) uint { return m.ID })
	if err != nil {
		return pagination.Page[models.MessageResponse]{}, err
	}

	s.markPageRead(userID, page.Data)

	responses := lo.Map(page.Data, func(m models.Message, _ int) models.MessageResponse {
		return m.ToResponse()
	})
	return pagination.Page[models.MessageResponse]{Data: responses, Meta: page.Meta}, nil
}

// markPageRead records read receipts for the listed messages without blocking
// the response. Failures are logged and dropped; the next listing retries
// naturally.
func (s *ChatService) markPageRead(userID string, messages []models.Message) {
	ids := make([]uint, 0, len(messages))
	for _, m := range messages {
		if m.SenderID != userID {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return
	}

	done := s.autoReadDone
	go func() {
		if err := s.readRepo.BulkUpsert(ids, userID); err != nil {
			logger.Warn().Err(err).Str("user_id", userID).Int("count", len(ids)).Msg("auto mark-read failed")
		}
		if done != nil {
			done()
		}
	}()
}

// UpdateMessage edits a message's content. Only the sender may edit, and only
// within the edit window.
func (s *ChatService) UpdateMessage(chatID, messageID uint, userID, content string) (*models.Message, error) {
	if content == "" {
		return nil, apperr.Validation("Message content is required")
	}
	message, err := s.mutableMessage(chatID, messageID, userID, "edited")
	if err != nil {
		return nil, err
	}
	updated, err := s.messageRepo.UpdateContent(message.ID, content)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return updated, nil
}

// DeleteMessage soft-deletes a message under the same sender and window rules
// as editing. Content is retained.
func (s *ChatService) DeleteMessage(chatID, messageID uint, userID string) (*models.Message, error) {
	message, err := s.mutableMessage(chatID, messageID, userID, "deleted")
	if err != nil {
		return nil, err
	}
	deleted, err := s.messageRepo.SoftDelete(message.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return deleted, nil
}

func (s *ChatService) mutableMessage(chatID, messageID uint, userID, verb string) (*models.Message, error) {
	if _, err := s.memberChat(chatID, userID); err != nil {
		return nil, err
	}
	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if message == nil || message.IsDeleted || message.ChatID != chatID {
		return nil, apperr.NotFound("Message not found")
	}
	if message.SenderID != userID {
		return nil, apperr.Forbidden("Only the sender can modify a message")
	}
	if s.now().Sub(message.CreatedAt) > EditWindow {
		return nil, apperr.Validation("Messages can only be " + verb + " within 10 minutes of sending")
	}
	return message, nil
}

// memberChat loads a chat and enforces membership. Non-members get the same
// forbidden answer whether or not the chat exists beyond a 404 for truly
// missing ids.
func (s *ChatService) memberChat(chatID uint, userID string) (*models.Chat, error) {
	chat, err := s.chatRepo.FindByID(chatID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if chat == nil {
		return nil, apperr.NotFound("Chat not found")
	}
	if !chat.HasMember(userID) {
		return nil, apperr.Forbidden("You are not a member of this chat")
	}
	return chat, nil
}

func (s *ChatService) invalidateChatLists(userIDs []string) {
	if err := s.chatCache.InvalidateUsers(lo.Uniq(userIDs)); err != nil {
		logger.Warn().Err(err).Msg("chat list cache invalidation failed")
	}
}

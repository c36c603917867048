package service

import (
	"github.com/samber/lo"

	"github.com/harborchat/harbor-backend/internal/apperr"
	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/repository"
)

// ReadReceiptService records per-user read receipts. Marking is idempotent:
// re-reading a message refreshes the receipt timestamp and nothing else.
type ReadReceiptService struct {
	chatRepo    repository.ChatRepositoryInterface
	messageRepo repository.MessageRepositoryInterface
	readRepo    repository.MessageReadRepositoryInterface
}

func NewReadReceiptService(
	chatRepo repository.ChatRepositoryInterface,
	messageRepo repository.MessageRepositoryInterface,
	readRepo repository.MessageReadRepositoryInterface,
) *ReadReceiptService {
	return &ReadReceiptService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		readRepo:    readRepo,
	}
}

// MarkRead records that the user has read one message in the chat. Reading
// your own message is a silent no-op.
func (s *ReadReceiptService) MarkRead(chatID, messageID uint, userID string) error {
	if err := s.requireMembership(chatID, userID); err != nil {
		return err
	}

	message, err := s.messageRepo.FindByID(messageID)
	if err != nil {
		return apperr.Internal(err)
	}
	if message == nil || message.ChatID != chatID {
		return apperr.NotFound("Message not found")
	}
	if message.SenderID == userID {
		return nil
	}

	if err := s.readRepo.Upsert(messageID, userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// MarkManyRead records receipts for a batch of messages at once. The caller
// must be a member of every chat the batch's messages resolve to, otherwise
// the whole batch fails. Unknown ids and the caller's own messages are
// skipped, not errors; the marked ids are returned so callers can broadcast
// exactly what changed.
func (s *ReadReceiptService) MarkManyRead(chatID uint, messageIDs []uint, userID string) ([]uint, error) {
	if err := s.requireMembership(chatID, userID); err != nil {
		return nil, err
	}

	ids := lo.Uniq(messageIDs)
	if len(ids) == 0 {
		return []uint{}, nil
	}

	messages, err := s.messageRepo.FindManyByID(ids)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	for _, cid := range lo.Uniq(lo.Map(messages, func(m models.Message, _ int) uint { return m.ChatID })) {
		if cid == chatID {
			continue
		}
		ok, err := s.chatRepo.IsMember(cid, userID)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !ok {
			return nil, apperr.Forbidden("You are not a member of one or more chats")
		}
	}

	markable := lo.FilterMap(messages, func(m models.Message, _ int) (uint, bool) {
		return m.ID, m.SenderID != userID
	})
	if len(markable) == 0 {
		return []uint{}, nil
	}

	if err := s.readRepo.BulkUpsert(markable, userID); err != nil {
		return nil, apperr.Internal(err)
	}
	return markable, nil
}

func (s *ReadReceiptService) requireMembership(chatID uint, userID string) error {
	ok, err := s.chatRepo.IsMember(chatID, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	if !ok {
		return apperr.Forbidden("You are not a member of this chat")
	}
	return nil
}

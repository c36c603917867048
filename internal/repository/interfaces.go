package repository

import (
	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/pagination"
)

// Find methods returning a pointer yield (nil, nil) when no row matches.

// ChatRepositoryInterface defines the contract for chat persistence.
type ChatRepositoryInterface interface {
	// CreateWithMembers persists the chat and all membership rows in one
	// transaction.
	CreateWithMembers(chat *models.Chat, memberIDs []string) error
	FindByID(id uint) (*models.Chat, error)
	FindChatsForUser(userID string) ([]models.Chat, error)
	AddMember(chatID uint, userID string) error
	IsMember(chatID uint, userID string) (bool, error)
}

// MessageFilter narrows the message listing used by keyset pagination.
type MessageFilter struct {
	ChatID uint
	// Search is an optional case-insensitive content substring filter.
	Search string
}

// MessageRepositoryInterface defines the contract for message persistence.
type MessageRepositoryInterface interface {
	// CreateAndTouchChat appends the message and bumps the chat's updatedAt
	// in one transaction.
	CreateAndTouchChat(message *models.Message) error
	FindByID(id uint) (*models.Message, error)
	FindByClientID(clientID, senderID string) (*models.Message, error)
	FindManyByID(ids []uint) ([]models.Message, error)
	UpdateContent(id uint, content string) (*models.Message, error)
	SoftDelete(id uint) (*models.Message, error)
	// ListByChat returns non-deleted messages per the pagination query.
	ListByChat(filter MessageFilter, q pagination.Query) ([]models.Message, error)
	// CountUnreadForUserInChat counts non-deleted messages in the chat that
	// the user neither authored nor has a read receipt for.
	CountUnreadForUserInChat(chatID uint, userID string) (int64, error)
	// FindLastUnreadForUserInChat returns the newest such message, or nil.
	FindLastUnreadForUserInChat(chatID uint, userID string) (*models.Message, error)
}

// MessageReadRepositoryInterface defines the contract for read receipts.
type MessageReadRepositoryInterface interface {
	// Upsert creates the receipt or refreshes readAt if it already exists.
	Upsert(messageID uint, userID string) error
	// BulkUpsert applies Upsert semantics to many messages at once.
	BulkUpsert(messageIDs []uint, userID string) error
}

// MembershipRepositoryInterface exposes the membership scan the digest job
// runs over. Split from ChatRepositoryInterface so the job depends only on
// what it reads.
type MembershipRepositoryInterface interface {
	// ListAllMemberships returns every (chat, member) pair with the chat
	// preloaded.
	ListAllMemberships() ([]models.ChatMember, error)
}

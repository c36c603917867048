package repository

import (
	"errors"
	"time"

	"github.com/harborchat/harbor-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) CreateWithMembers(chat *models.Chat, memberIDs []string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}

		members := make([]models.ChatMember, 0, len(memberIDs))
		now := time.Now()
		for _, userID := range memberIDs {
			members = append(members, models.ChatMember{
				ChatID:   chat.ID,
				UserID:   userID,
				JoinedAt: now,
			})
		}
		if err := tx.Create(&members).Error; err != nil {
			return err
		}

		// Reload with ordered membership for the response.
		return tx.Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, user_id ASC")
		}).First(chat, chat.ID).Error
	})
}

func (r *ChatRepository) FindByID(id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.Preload("Members", func(db *gorm.DB) *gorm.DB {
		return db.Order("joined_at ASC, user_id ASC")
	}).First(&chat, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (r *ChatRepository) FindChatsForUser(userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.
		Joins("JOIN chat_members cm ON cm.chat_id = chats.id AND cm.user_id = ?", userID).
		Preload("Members", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, user_id ASC")
		}).
		Order("chats.updated_at DESC, chats.id DESC").
		Find(&chats).Error
	return chats, err
}

// AddMember appends a membership row. The (chat_id, user_id) primary key makes
// duplicate additions safe under races; conflicts are ignored so the losing
// writer sees success.
func (r *ChatRepository) AddMember(chatID uint, userID string) error {
	member := models.ChatMember{
		ChatID:   chatID,
		UserID:   userID,
		JoinedAt: time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error
}

func (r *ChatRepository) IsMember(chatID uint, userID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *ChatRepository) ListAllMemberships() ([]models.ChatMember, error) {
	var members []models.ChatMember
	err := r.db.Preload("Chat").Find(&members).Error
	return members, err
}

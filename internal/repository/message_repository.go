package repository

import (
	"errors"

	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/pagination"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) CreateAndTouchChat(message *models.Message) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}
		// Bump the chat's updated_at so chat lists order by recency.
		return tx.Model(&models.Chat{}).
			Where("id = ?", message.ChatID).
			Update("updated_at", gorm.Expr("NOW()")).Error
	})
}

func (r *MessageRepository) FindByID(id uint) (*models.Message, error) {
	var message models.Message
	err := r.db.First(&message, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) FindByClientID(clientID, senderID string) (*models.Message, error) {
	var message models.Message
	err := r.db.Where("client_id = ? AND sender_id = ?", clientID, senderID).
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *MessageRepository) FindManyByID(ids []uint) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.Where("id IN ?", ids).Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) UpdateContent(id uint, content string) (*models.Message, error) {
	err := r.db.Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":    content,
			"is_edited":  true,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(id)
}

func (r *MessageRepository) SoftDelete(id uint) (*models.Message, error) {
	err := r.db.Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"updated_at": gorm.Expr("NOW()"),
		}).Error
	if err != nil {
		return nil, err
	}
	return r.FindByID(id)
}

// ListByChat serves the keyset pagination query: the id column is the
// monotonic tie-break, the cursor bound is strict, and one extra row beyond
// the page size is the caller's more-pages probe.
func (r *MessageRepository) ListByChat(filter MessageFilter, q pagination.Query) ([]models.Message, error) {
	tx := r.db.Where("chat_id = ? AND is_deleted = false", filter.ChatID)

	if filter.Search != "" {
		tx = tx.Where("content ILIKE ?", "%"+filter.Search+"%")
	}

	if q.CursorID != 0 {
		if q.Order == pagination.OrderAsc {
			tx = tx.Where("id > ?", q.CursorID)
		} else {
			tx = tx.Where("id < ?", q.CursorID)
		}
	}

	order := "id ASC"
	if q.Order == pagination.OrderDesc {
		order = "id DESC"
	}

	var messages []models.Message
	err := tx.Order(order).Limit(q.Limit).Find(&messages).Error
	return messages, err
}

func (r *MessageRepository) CountUnreadForUserInChat(chatID uint, userID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.Message{}).
		Where("chat_id = ? AND is_deleted = false AND sender_id <> ?", chatID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Count(&count).Error
	return count, err
}

func (r *MessageRepository) FindLastUnreadForUserInChat(chatID uint, userID string) (*models.Message, error) {
	var message models.Message
	err := r.db.
		Where("chat_id = ? AND is_deleted = false AND sender_id <> ?", chatID, userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID).
		Order("id DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

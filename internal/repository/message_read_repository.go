package repository

import (
	"time"

	"github.com/harborchat/harbor-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MessageReadRepository struct {
	db *gorm.DB
}

func NewMessageReadRepository(db *gorm.DB) *MessageReadRepository {
	return &MessageReadRepository{db: db}
}

// Upsert records the receipt, refreshing read_at on repeat calls. The
// (message_id, user_id) primary key makes concurrent duplicates converge to a
// single row.
func (r *MessageReadRepository) Upsert(messageID uint, userID string) error {
	read := models.MessageRead{
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    time.Now(),
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": gorm.Expr("NOW()")}),
	}).Create(&read).Error
}

func (r *MessageReadRepository) BulkUpsert(messageIDs []uint, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	now := time.Now()
	reads := make([]models.MessageRead, 0, len(messageIDs))
	for _, id := range messageIDs {
		reads = append(reads, models.MessageRead{
			MessageID: id,
			UserID:    userID,
			ReadAt:    now,
		})
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"read_at": gorm.Expr("NOW()")}),
	}).Create(&reads).Error
}

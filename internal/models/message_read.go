package models

import (
	"time"
)

// MessageRead records that a user has seen a message. One row per
// (message, user); repeat reads refresh ReadAt. Senders never get a row for
// their own messages.
type MessageRead struct {
	MessageID uint      `gorm:"primaryKey" json:"message_id"`
	UserID    string    `gorm:"primaryKey;size:64" json:"user_id"`
	ReadAt    time.Time `gorm:"not null" json:"read_at"`

	Message Message `gorm:"foreignKey:MessageID" json:"-"`
}

package models

import (
	"time"
)

type Message struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// ClientID is an optional client-generated UUID used to deduplicate
	// resends over flaky connections. Unique per sender; NULL when the client
	// did not supply one.
	ClientID *string `gorm:"type:varchar(36);uniqueIndex:idx_client_sender" json:"client_id"`

	ChatID   uint   `gorm:"not null;index" json:"chat_id"`
	Chat     *Chat  `gorm:"foreignKey:ChatID" json:"-"`
	SenderID string `gorm:"size:64;not null;uniqueIndex:idx_client_sender;index" json:"sender_id"`

	Content string `gorm:"type:text;not null" json:"content"`

	IsEdited bool `gorm:"default:false" json:"is_edited"`
	// Deleted messages keep their content for audit but are excluded from
	// every read path.
	IsDeleted bool `gorm:"default:false;index" json:"is_deleted"`
}

type MessageResponse struct {
	ID        uint      `json:"id"`
	ChatID    uint      `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	IsEdited  bool      `json:"isEdited"`
	IsDeleted bool      `json:"isDeleted"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m *Message) ToResponse() MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		IsEdited:  m.IsEdited,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

package models

import (
	"time"
)

type ChatType string

const (
	GroupChat  ChatType = "GROUP"
	DirectChat ChatType = "DIRECT"
)

type Chat struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is bumped whenever a message lands in the chat so chat lists
	// can be ordered by recency.
	UpdatedAt time.Time `json:"updated_at"`

	Name      *string  `gorm:"size:100" json:"name"`
	Type      ChatType `gorm:"type:varchar(10);not null" json:"type"`
	CreatorID string   `gorm:"size:64;not null;index" json:"creator_id"`

	Members []ChatMember `gorm:"foreignKey:ChatID" json:"members"`
}

// ChatMember is append-only: members are never removed once added.
type ChatMember struct {
	ChatID   uint      `gorm:"primaryKey" json:"chat_id"`
	UserID   string    `gorm:"primaryKey;size:64" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`

	Chat Chat `gorm:"foreignKey:ChatID" json:"-"`
}

type ChatMemberResponse struct {
	UserID   string    `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

type ChatResponse struct {
	ID        uint                 `json:"id"`
	Name      *string              `json:"name"`
	Type      ChatType             `json:"type"`
	CreatorID string               `json:"creatorId"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
	Members   []ChatMemberResponse `json:"members"`
}

func (c *Chat) ToResponse() ChatResponse {
	members := make([]ChatMemberResponse, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, ChatMemberResponse{
			UserID:   m.UserID,
			JoinedAt: m.JoinedAt,
		})
	}
	return ChatResponse{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		CreatorID: c.CreatorID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Members:   members,
	}
}

// HasMember reports whether userID belongs to the chat. Requires Members to
// be loaded.
func (c *Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

package cache

import (
	"fmt"
	"time"

	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// ChatListTTL bounds staleness of per-user chat lists between invalidations.
const ChatListTTL = 2 * time.Minute

// ChatListCache caches each user's chat list. Entries are invalidated for
// every member whenever a chat is created, a member joins, or a message bumps
// the chat's recency.
type ChatListCache struct {
	redis *RedisCache
}

func NewChatListCache(redis *RedisCache) *ChatListCache {
	return &ChatListCache{redis: redis}
}

func chatListKey(userID string) string {
	return fmt.Sprintf("chatlist:%s", userID)
}

// Get retrieves the cached chat list for a user
func (c *ChatListCache) Get(userID string) ([]models.Chat, bool) {
	if c == nil || c.redis == nil {
		return nil, false
	}
	data, err := c.redis.Get(chatListKey(userID))
	if err != nil || data == nil {
		return nil, false
	}

	var chats []models.Chat
	if err := msgpack.Unmarshal(data, &chats); err != nil {
		return nil, false
	}
	return chats, true
}

// Set caches the chat list for a user
func (c *ChatListCache) Set(userID string, chats []models.Chat) error {
	if c == nil || c.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(chats)
	if err != nil {
		return err
	}
	return c.redis.Set(chatListKey(userID), data, ChatListTTL)
}

// InvalidateUsers drops the cached lists of all affected members
func (c *ChatListCache) InvalidateUsers(userIDs []string) error {
	if c == nil || c.redis == nil {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, chatListKey(id))
	}
	return c.redis.Delete(keys...)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harborchat/harbor-backend/internal/models"
	"github.com/harborchat/harbor-backend/internal/pagination"
	"github.com/harborchat/harbor-backend/internal/repository"
)

var errDB = errors.New("database unavailable")

type mockChatRepo struct {
	mu     sync.Mutex
	chats  map[uint]*models.Chat
	nextID uint
	err    error
}

func newMockChatRepo() *mockChatRepo {
	return &mockChatRepo{chats: make(map[uint]*models.Chat), nextID: 1}
}

func (r *mockChatRepo) seed(chat models.Chat) *models.Chat {
	r.mu.Lock()
	defer r.mu.Unlock()
	if chat.ID == 0 {
		chat.ID = r.nextID
		r.nextID++
	} else if chat.ID >= r.nextID {
		r.nextID = chat.ID + 1
	}
	c := chat
	r.chats[c.ID] = &c
	return &c
}

func (r *mockChatRepo) CreateWithMembers(chat *models.Chat, memberIDs []string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chat.ID = r.nextID
	r.nextID++
	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	for _, id := range memberIDs {
		chat.Members = append(chat.Members, models.ChatMember{ChatID: chat.ID, UserID: id, JoinedAt: now})
	}
	stored := *chat
	r.chats[chat.ID] = &stored
	return nil
}

func (r *mockChatRepo) FindByID(id uint) (*models.Chat, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[id]
	if !ok {
		return nil, nil
	}
	c := *chat
	return &c, nil
}

func (r *mockChatRepo) FindChatsForUser(userID string) ([]models.Chat, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Chat
	for _, chat := range r.chats {
		if chat.HasMember(userID) {
			out = append(out, *chat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *mockChatRepo) AddMember(chatID uint, userID string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	chat, ok := r.chats[chatID]
	if !ok {
		return fmt.Errorf("chat %d not found", chatID)
	}
	if chat.HasMember(userID) {
		return nil
	}
	chat.Members = append(chat.Members, models.ChatMember{ChatID: chatID, UserID: userID, JoinedAt: time.Now()})
	return nil
}

func (r *mockChatRepo) IsMember(chatID uint, userID string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	chat, err := r.FindByID(chatID)
	if err != nil || chat == nil {
		return false, err
	}
	return chat.HasMember(userID), nil
}

func (r *mockChatRepo) ListAllMemberships() ([]models.ChatMember, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatMember
	ids := make([]uint, 0, len(r.chats))
	for id := range r.chats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		chat := r.chats[id]
		for _, m := range chat.Members {
			m.Chat = *chat
			out = append(out, m)
		}
	}
	return out, nil
}

type mockMessageRepo struct {
	mu       sync.Mutex
	messages map[uint]*models.Message
	reads    map[string]map[uint]bool
	nextID   uint
	err      error
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{
		messages: make(map[uint]*models.Message),
		reads:    make(map[string]map[uint]bool),
		nextID:   1,
	}
}

func (r *mockMessageRepo) seed(m models.Message) *models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	} else if m.ID >= r.nextID {
		r.nextID = m.ID + 1
	}
	stored := m
	r.messages[stored.ID] = &stored
	return &stored
}

func (r *mockMessageRepo) markRead(userID string, messageIDs ...uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reads[userID] == nil {
		r.reads[userID] = make(map[uint]bool)
	}
	for _, id := range messageIDs {
		r.reads[userID][id] = true
	}
}

func (r *mockMessageRepo) CreateAndTouchChat(message *models.Message) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	message.ID = r.nextID
	r.nextID++
	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now
	stored := *message
	r.messages[message.ID] = &stored
	return nil
}

func (r *mockMessageRepo) FindByID(id uint) (*models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, nil
	}
	c := *m
	return &c, nil
}

func (r *mockMessageRepo) FindByClientID(clientID, senderID string) (*models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ClientID != nil && *m.ClientID == clientID && m.SenderID == senderID {
			c := *m
			return &c, nil
		}
	}
	return nil, nil
}

func (r *mockMessageRepo) FindManyByID(ids []uint) ([]models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Message
	for _, id := range ids {
		if m, ok := r.messages[id]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r *mockMessageRepo) UpdateContent(id uint, content string) (*models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d not found", id)
	}
	m.Content = content
	m.IsEdited = true
	m.UpdatedAt = time.Now()
	c := *m
	return &c, nil
}

func (r *mockMessageRepo) SoftDelete(id uint) (*models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d not found", id)
	}
	m.IsDeleted = true
	m.UpdatedAt = time.Now()
	c := *m
	return &c, nil
}

func (r *mockMessageRepo) ListByChat(filter repository.MessageFilter, q pagination.Query) ([]models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var rows []models.Message
	for _, m := range r.messages {
		if m.ChatID != filter.ChatID || m.IsDeleted {
			continue
		}
		if q.CursorID != 0 {
			if q.Order == pagination.OrderAsc && m.ID <= q.CursorID {
				continue
			}
			if q.Order == pagination.OrderDesc && m.ID >= q.CursorID {
				continue
			}
		}
		rows = append(rows, *m)
	}
	sort.Slice(rows, func(i, j int) bool {
		if q.Order == pagination.OrderDesc {
			return rows[i].ID > rows[j].ID
		}
		return rows[i].ID < rows[j].ID
	})
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (r *mockMessageRepo) unreadInChat(chatID uint, userID string) []models.Message {
	var out []models.Message
	for _, m := range r.messages {
		if m.ChatID != chatID || m.IsDeleted || m.SenderID == userID {
			continue
		}
		if r.reads[userID][m.ID] {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *mockMessageRepo) CountUnreadForUserInChat(chatID uint, userID string) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.unreadInChat(chatID, userID))), nil
}

func (r *mockMessageRepo) FindLastUnreadForUserInChat(chatID uint, userID string) (*models.Message, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	unread := r.unreadInChat(chatID, userID)
	if len(unread) == 0 {
		return nil, nil
	}
	last := unread[len(unread)-1]
	return &last, nil
}

type mockReadRepo struct {
	mu      sync.Mutex
	upserts map[string][]uint
	err     error
}

func newMockReadRepo() *mockReadRepo {
	return &mockReadRepo{upserts: make(map[string][]uint)}
}

func (r *mockReadRepo) Upsert(messageID uint, userID string) error {
	return r.BulkUpsert([]uint{messageID}, userID)
}

func (r *mockReadRepo) BulkUpsert(messageIDs []uint, userID string) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts[userID] = append(r.upserts[userID], messageIDs...)
	return nil
}

func (r *mockReadRepo) upsertedFor(userID string) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint, len(r.upserts[userID]))
	copy(out, r.upserts[userID])
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type publishedMessage struct {
	topic   string
	payload interface{}
}

type mockPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	// failUsers makes Publish fail for specific digest recipients.
	failUsers map[string]error
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{failUsers: make(map[string]error)}
}

func (p *mockPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	if digest, ok := payload.(DigestPayload); ok {
		if err := p.failUsers[digest.UserID]; err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (p *mockPublisher) digests() []DigestPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []DigestPayload
	for _, msg := range p.published {
		if d, ok := msg.payload.(DigestPayload); ok {
			out = append(out, d)
		}
	}
	return out
}

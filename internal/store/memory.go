package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// MemoryStore is an in-process Store used in development and tests.
// All operations run under a single mutex, which trivially serializes
// read-modify-write sequences on individual records.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]*models.Chat
	chatPair map[string]string // sorted participant pair -> chat id
	messages map[string]*models.Message
	users    map[string]*models.User
	emails   map[string]string // email -> user id
	sessions map[string]session
}

type session struct {
	userID    string
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*models.Chat),
		chatPair: make(map[string]string),
		messages: make(map[string]*models.Message),
		users:    make(map[string]*models.User),
		emails:   make(map[string]string),
		sessions: make(map[string]session),
	}
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// pairKey builds an order-insensitive key for a participant pair.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// FindChatByParticipants looks up the chat between two users.
func (s *MemoryStore) FindChatByParticipants(ctx context.Context, a, b string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.chatPair[pairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyChat(s.chats[id]), nil
}

// CreateChat creates the chat between two users, returning the existing
// record if one was created concurrently (creation is idempotent per pair).
func (s *MemoryStore) CreateChat(ctx context.Context, a, b string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(a, b)
	if id, ok := s.chatPair[key]; ok {
		return copyChat(s.chats[id]), nil
	}

	now := time.Now().UTC()
	chat := &models.Chat{
		ID:        uuid.NewString(),
		Users:     []string{a, b},
		DeletedBy: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.chats[chat.ID] = chat
	s.chatPair[key] = chat.ID
	return copyChat(chat), nil
}

// FindChat loads a chat by id.
func (s *MemoryStore) FindChat(ctx context.Context, id string) (*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyChat(chat), nil
}

// UpdateChat applies fn to the chat and persists the result atomically.
func (s *MemoryStore) UpdateChat(ctx context.Context, id string, fn func(*models.Chat) error) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := copyChat(chat)
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	s.chats[id] = updated
	return copyChat(updated), nil
}

// DeleteChat removes a chat record. Deleting an absent chat is a no-op.
func (s *MemoryStore) DeleteChat(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if chat, ok := s.chats[id]; ok {
		delete(s.chatPair, pairKey(chat.Users[0], chat.Users[1]))
		delete(s.chats, id)
	}
	return nil
}

// ChatsFor returns every chat the user participates in and has not deleted.
func (s *MemoryStore) ChatsFor(ctx context.Context, userID string) ([]*models.Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Chat
	for _, chat := range s.chats {
		if chat.HasParticipant(userID) && !chat.DeletedByUser(userID) {
			out = append(out, copyChat(chat))
		}
	}
	return out, nil
}

// CreateMessage stores a new message, assigning an id and timestamps if unset.
func (s *MemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now
	s.messages[msg.ID] = copyMessage(msg)
	return nil
}

// FindMessage loads a message by id.
func (s *MemoryStore) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyMessage(msg), nil
}

// UpdateMessage applies fn to the message and persists the result atomically.
func (s *MemoryStore) UpdateMessage(ctx context.Context, id string, fn func(*models.Message) error) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := copyMessage(msg)
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = time.Now().UTC()
	s.messages[id] = updated
	return copyMessage(updated), nil
}

// DeleteMessage removes a message record. Absent ids are a no-op.
func (s *MemoryStore) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, id)
	return nil
}

// MessagesByChat returns a chat's messages newest first.
func (s *MemoryStore) MessagesByChat(ctx context.Context, chatID string, skip, limit int) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.chatMessages(chatID)
	sort.Slice(msgs, func(i, j int) bool {
		return newerThan(msgs[i], msgs[j])
	})

	if skip >= len(msgs) {
		return nil, nil
	}
	msgs = msgs[skip:]
	if limit > 0 && limit < len(msgs) {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// LastMessage returns the most recent message of a chat, or ErrNotFound.
func (s *MemoryStore) LastMessage(ctx context.Context, chatID string) (*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *models.Message
	for _, msg := range s.messages {
		if msg.ChatID != chatID {
			continue
		}
		if last == nil || newerThan(msg, last) {
			last = msg
		}
	}
	if last == nil {
		return nil, ErrNotFound
	}
	return copyMessage(last), nil
}

// CountUnread counts delivered-but-unread messages from senderID in a chat.
func (s *MemoryStore) CountUnread(ctx context.Context, chatID, senderID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, msg := range s.messages {
		if msg.ChatID == chatID && msg.SenderID == senderID && msg.Status == models.StatusDelivered {
			n++
		}
	}
	return n, nil
}

// UndeliveredTo returns every message addressed to receiverID still in
// status "sent", oldest first.
func (s *MemoryStore) UndeliveredTo(ctx context.Context, receiverID string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Message
	for _, msg := range s.messages {
		if msg.ReceiverID == receiverID && msg.Status == models.StatusSent {
			out = append(out, copyMessage(msg))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return newerThan(out[j], out[i])
	})
	return out, nil
}

// ExpiredDeleted returns globally deleted messages whose DeletedAt is older
// than cutoff.
func (s *MemoryStore) ExpiredDeleted(ctx context.Context, cutoff time.Time) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Message
	for _, msg := range s.messages {
		if msg.Deleted && msg.DeletedAt != nil && msg.DeletedAt.Before(cutoff) {
			out = append(out, copyMessage(msg))
		}
	}
	return out, nil
}

// CreateUser stores a new user, assigning an id and timestamps if unset.
func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	if _, taken := s.emails[email]; taken {
		return ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.LastSeen.IsZero() {
		user.LastSeen = now
	}
	s.users[user.ID] = copyUser(user)
	s.emails[email] = user.ID
	return nil
}

// FindUser loads a user by id.
func (s *MemoryStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(user), nil
}

// FindUserByEmail loads a user by email address.
func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(s.users[id]), nil
}

// ListUsers returns the users with the given ids; unknown ids are skipped.
func (s *MemoryStore) ListUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		if user, ok := s.users[id]; ok {
			out = append(out, copyUser(user))
		}
	}
	return out, nil
}

// AllUsers returns every user except the given id.
func (s *MemoryStore) AllUsers(ctx context.Context, exceptID string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.User
	for _, user := range s.users {
		if user.ID != exceptID {
			out = append(out, copyUser(user))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateUserLastSeen stamps the user's last-seen time.
func (s *MemoryStore) UpdateUserLastSeen(ctx context.Context, id string, t time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user.LastSeen = t
	user.UpdatedAt = time.Now().UTC()
	return copyUser(user), nil
}

// CreateSession stores a session token for a user.
func (s *MemoryStore) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[token] = session{userID: userID, expiresAt: time.Now().Add(ttl)}
	return nil
}

// UserIDForSession resolves a session token to a user id.
func (s *MemoryStore) UserIDForSession(ctx context.Context, token string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok || time.Now().After(sess.expiresAt) {
		return "", ErrNotFound
	}
	return sess.userID, nil
}

func (s *MemoryStore) chatMessages(chatID string) []*models.Message {
	var out []*models.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			out = append(out, copyMessage(msg))
		}
	}
	return out
}

// newerThan orders messages by creation time, falling back to the ULID
// (which sorts lexicographically by time) for identical timestamps.
func newerThan(a, b *models.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

func copyChat(c *models.Chat) *models.Chat {
	out := *c
	out.Users = append([]string(nil), c.Users...)
	out.DeletedBy = append([]string(nil), c.DeletedBy...)
	return &out
}

func copyMessage(m *models.Message) *models.Message {
	out := *m
	out.Images = append([]string(nil), m.Images...)
	out.ImagePublicIDs = append([]string(nil), m.ImagePublicIDs...)
	out.OriginalImages = append([]string(nil), m.OriginalImages...)
	out.OriginalImagePublicIDs = append([]string(nil), m.OriginalImagePublicIDs...)
	out.ReadBy = append([]string(nil), m.ReadBy...)
	out.HiddenFor = append([]string(nil), m.HiddenFor...)
	out.DeletedBy = append([]string(nil), m.DeletedBy...)
	if m.OriginalContent != nil {
		v := *m.OriginalContent
		out.OriginalContent = &v
	}
	if m.DeletedAt != nil {
		t := *m.DeletedAt
		out.DeletedAt = &t
	}
	return &out
}

func copyUser(u *models.User) *models.User {
	out := *u
	return &out
}

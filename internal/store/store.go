package store

import (
	"context"
	"errors"
	"time"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicateEmail is returned by CreateUser when the email is taken.
var ErrDuplicateEmail = errors.New("store: email already in use")

// Store defines the interface for durable chat, message, user and session
// records. Both RedisStore and MemoryStore implement this interface.
//
// UpdateChat and UpdateMessage apply fn to the current record and persist
// the result atomically with respect to concurrent updates of the same
// record; they are the only way the engine mutates existing records.
type Store interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	// Chat operations
	FindChatByParticipants(ctx context.Context, a, b string) (*models.Chat, error)
	CreateChat(ctx context.Context, a, b string) (*models.Chat, error)
	FindChat(ctx context.Context, id string) (*models.Chat, error)
	UpdateChat(ctx context.Context, id string, fn func(*models.Chat) error) (*models.Chat, error)
	DeleteChat(ctx context.Context, id string) error
	ChatsFor(ctx context.Context, userID string) ([]*models.Chat, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	FindMessage(ctx context.Context, id string) (*models.Message, error)
	UpdateMessage(ctx context.Context, id string, fn func(*models.Message) error) (*models.Message, error)
	DeleteMessage(ctx context.Context, id string) error
	MessagesByChat(ctx context.Context, chatID string, skip, limit int) ([]*models.Message, error)
	LastMessage(ctx context.Context, chatID string) (*models.Message, error)
	CountUnread(ctx context.Context, chatID, senderID string) (int64, error)
	UndeliveredTo(ctx context.Context, receiverID string) ([]*models.Message, error)
	ExpiredDeleted(ctx context.Context, cutoff time.Time) ([]*models.Message, error)

	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, ids []string) ([]*models.User, error)
	AllUsers(ctx context.Context, exceptID string) ([]*models.User, error)
	UpdateUserLastSeen(ctx context.Context, id string, t time.Time) (*models.User, error)

	// Session operations
	CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error
	UserIDForSession(ctx context.Context, token string) (string, error)
}

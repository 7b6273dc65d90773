package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// maxTxRetries bounds optimistic retries of WATCH transactions.
const maxTxRetries = 5

// RedisStore stores chats, messages, users and sessions as JSON documents
// in Redis, with secondary indexes kept as sets and sorted sets.
//
// Read-modify-write of a single record goes through a WATCH transaction so
// concurrent updates of the same record serialize instead of losing writes.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for middleware (rate limiting).
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func chatKey(id string) string         { return "chat:" + id }
func chatPairKey(a, b string) string   { return "chatpair:" + pairKey(a, b) }
func chatMsgsKey(chatID string) string { return fmt.Sprintf("chat:%s:msgs", chatID) }
func userChatsKey(userID string) string {
	return fmt.Sprintf("user:%s:chats", userID)
}
func msgKey(id string) string       { return "msg:" + id }
func sentInboxKey(id string) string { return fmt.Sprintf("inbox:sent:%s", id) }
func userKey(id string) string      { return "user:" + id }
func emailKey(email string) string  { return "user:email:" + strings.ToLower(email) }
func sessionKey(token string) string {
	return "session:" + token
}

// deletedMsgsKey indexes globally deleted messages by deletion time, so the
// purge sweep never scans live messages.
const deletedMsgsKey = "msgs:deleted"

const usersKey = "users"

// FindChatByParticipants looks up the chat between two users.
func (s *RedisStore) FindChatByParticipants(ctx context.Context, a, b string) (*models.Chat, error) {
	id, err := s.client.Get(ctx, chatPairKey(a, b)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindChat(ctx, id)
}

// CreateChat creates the chat between two users. Creation is idempotent per
// participant pair: if another caller won the SETNX race, the existing chat
// is returned.
func (s *RedisStore) CreateChat(ctx context.Context, a, b string) (*models.Chat, error) {
	now := time.Now().UTC()
	chat := &models.Chat{
		ID:        uuid.NewString(),
		Users:     []string{a, b},
		DeletedBy: []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	ok, err := s.client.SetNX(ctx, chatPairKey(a, b), chat.ID, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return s.FindChatByParticipants(ctx, a, b)
	}

	data, err := json.Marshal(chat)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, chatKey(chat.ID), data, 0)
		pipe.SAdd(ctx, userChatsKey(a), chat.ID)
		pipe.SAdd(ctx, userChatsKey(b), chat.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// FindChat loads a chat by id.
func (s *RedisStore) FindChat(ctx context.Context, id string) (*models.Chat, error) {
	data, err := s.client.Get(ctx, chatKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var chat models.Chat
	if err := json.Unmarshal(data, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// UpdateChat applies fn to the chat inside a WATCH transaction.
func (s *RedisStore) UpdateChat(ctx context.Context, id string, fn func(*models.Chat) error) (*models.Chat, error) {
	key := chatKey(id)
	var updated *models.Chat

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var chat models.Chat
		if err := json.Unmarshal(data, &chat); err != nil {
			return err
		}
		if err := fn(&chat); err != nil {
			return err
		}
		chat.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&chat)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = &chat
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("chat %s: %w", id, redis.TxFailedErr)
}

// DeleteChat removes a chat record and its indexes.
func (s *RedisStore) DeleteChat(ctx context.Context, id string) error {
	chat, err := s.FindChat(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, chatKey(id), chatMsgsKey(id))
		pipe.Del(ctx, chatPairKey(chat.Users[0], chat.Users[1]))
		for _, u := range chat.Users {
			pipe.SRem(ctx, userChatsKey(u), id)
		}
		return nil
	})
	return err
}

// ChatsFor returns every chat the user participates in and has not deleted.
func (s *RedisStore) ChatsFor(ctx context.Context, userID string) ([]*models.Chat, error) {
	ids, err := s.client.SMembers(ctx, userChatsKey(userID)).Result()
	if err != nil {
		return nil, err
	}

	var out []*models.Chat
	for _, id := range ids {
		chat, err := s.FindChat(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !chat.DeletedByUser(userID) {
			out = append(out, chat)
		}
	}
	return out, nil
}

// CreateMessage stores a new message and its index entries.
func (s *RedisStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = ulid.Make().String()
	}
	now := time.Now().UTC()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	msg.UpdatedAt = now

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, msgKey(msg.ID), data, 0)
		pipe.ZAdd(ctx, chatMsgsKey(msg.ChatID), redis.Z{
			Score:  float64(msg.CreatedAt.UnixMilli()),
			Member: msg.ID,
		})
		if msg.Status == models.StatusSent {
			pipe.SAdd(ctx, sentInboxKey(msg.ReceiverID), msg.ID)
		}
		return nil
	})
	return err
}

// FindMessage loads a message by id.
func (s *RedisStore) FindMessage(ctx context.Context, id string) (*models.Message, error) {
	data, err := s.client.Get(ctx, msgKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var msg models.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// UpdateMessage applies fn to the message inside a WATCH transaction and
// maintains the sent-inbox and deleted indexes when those fields change.
func (s *RedisStore) UpdateMessage(ctx context.Context, id string, fn func(*models.Message) error) (*models.Message, error) {
	key := msgKey(id)
	var updated *models.Message

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var before models.Message
		if err := json.Unmarshal(data, &before); err != nil {
			return err
		}
		after := before
		if err := fn(&after); err != nil {
			return err
		}
		after.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&after)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)

			wasSent := before.Status == models.StatusSent
			isSent := after.Status == models.StatusSent
			if wasSent && !isSent {
				pipe.SRem(ctx, sentInboxKey(after.ReceiverID), id)
			} else if !wasSent && isSent {
				pipe.SAdd(ctx, sentInboxKey(after.ReceiverID), id)
			}

			if after.Deleted && after.DeletedAt != nil {
				pipe.ZAdd(ctx, deletedMsgsKey, redis.Z{
					Score:  float64(after.DeletedAt.UnixMilli()),
					Member: id,
				})
			} else if before.Deleted && !after.Deleted {
				pipe.ZRem(ctx, deletedMsgsKey, id)
			}
			return nil
		})
		if err == nil {
			updated = &after
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("message %s: %w", id, redis.TxFailedErr)
}

// DeleteMessage removes a message record and its index entries.
func (s *RedisStore) DeleteMessage(ctx context.Context, id string) error {
	msg, err := s.FindMessage(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, msgKey(id))
		pipe.ZRem(ctx, chatMsgsKey(msg.ChatID), id)
		pipe.SRem(ctx, sentInboxKey(msg.ReceiverID), id)
		pipe.ZRem(ctx, deletedMsgsKey, id)
		return nil
	})
	return err
}

// MessagesByChat returns a chat's messages newest first.
func (s *RedisStore) MessagesByChat(ctx context.Context, chatID string, skip, limit int) ([]*models.Message, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(skip + limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, chatMsgsKey(chatID), int64(skip), stop).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchMessages(ctx, ids)
}

// LastMessage returns the most recent message of a chat, or ErrNotFound.
func (s *RedisStore) LastMessage(ctx context.Context, chatID string) (*models.Message, error) {
	ids, err := s.client.ZRevRange(ctx, chatMsgsKey(chatID), 0, 0).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	return s.FindMessage(ctx, ids[0])
}

// CountUnread counts delivered-but-unread messages from senderID in a chat.
func (s *RedisStore) CountUnread(ctx context.Context, chatID, senderID string) (int64, error) {
	ids, err := s.client.ZRange(ctx, chatMsgsKey(chatID), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	msgs, err := s.fetchMessages(ctx, ids)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, msg := range msgs {
		if msg.SenderID == senderID && msg.Status == models.StatusDelivered {
			n++
		}
	}
	return n, nil
}

// UndeliveredTo returns every message addressed to receiverID still in
// status "sent", oldest first.
func (s *RedisStore) UndeliveredTo(ctx context.Context, receiverID string) ([]*models.Message, error) {
	ids, err := s.client.SMembers(ctx, sentInboxKey(receiverID)).Result()
	if err != nil {
		return nil, err
	}
	msgs, err := s.fetchMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	// ULIDs sort by creation time
	for i := 1; i < len(msgs); i++ {
		for j := i; j > 0 && msgs[j].ID < msgs[j-1].ID; j-- {
			msgs[j], msgs[j-1] = msgs[j-1], msgs[j]
		}
	}
	return msgs, nil
}

// ExpiredDeleted returns globally deleted messages whose DeletedAt is older
// than cutoff.
func (s *RedisStore) ExpiredDeleted(ctx context.Context, cutoff time.Time) ([]*models.Message, error) {
	ids, err := s.client.ZRangeByScore(ctx, deletedMsgsKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("(%d", cutoff.UnixMilli()),
	}).Result()
	if err != nil {
		return nil, err
	}
	return s.fetchMessages(ctx, ids)
}

// CreateUser stores a new user, enforcing email uniqueness via SETNX.
func (s *RedisStore) CreateUser(ctx context.Context, user *models.User) error {
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

	ok, err := s.client.SetNX(ctx, emailKey(user.Email), user.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrDuplicateEmail
	}

	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(user.ID), data, 0)
		pipe.SAdd(ctx, usersKey, user.ID)
		return nil
	})
	return err
}

// FindUser loads a user by id.
func (s *RedisStore) FindUser(ctx context.Context, id string) (*models.User, error) {
	data, err := s.client.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindUserByEmail loads a user by email address.
func (s *RedisStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	id, err := s.client.Get(ctx, emailKey(email)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.FindUser(ctx, id)
}

// ListUsers returns the users with the given ids; unknown ids are skipped.
func (s *RedisStore) ListUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	out := make([]*models.User, 0, len(ids))
	for _, id := range ids {
		user, err := s.FindUser(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

// AllUsers returns every user except the given id.
func (s *RedisStore) AllUsers(ctx context.Context, exceptID string) ([]*models.User, error) {
	ids, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, err
	}

	var out []*models.User
	for _, id := range ids {
		if id == exceptID {
			continue
		}
		user, err := s.FindUser(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

// UpdateUserLastSeen stamps the user's last-seen time.
func (s *RedisStore) UpdateUserLastSeen(ctx context.Context, id string, t time.Time) (*models.User, error) {
	key := userKey(id)
	var updated *models.User

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var user models.User
		if err := json.Unmarshal(data, &user); err != nil {
			return err
		}
		user.LastSeen = t
		user.UpdatedAt = time.Now().UTC()

		out, err := json.Marshal(&user)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = &user
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("user %s: %w", id, redis.TxFailedErr)
}

// CreateSession stores a session token for a user.
func (s *RedisStore) CreateSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(token), userID, ttl).Err()
}

// UserIDForSession resolves a session token to a user id.
func (s *RedisStore) UserIDForSession(ctx context.Context, token string) (string, error) {
	id, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) fetchMessages(ctx context.Context, ids []string) ([]*models.Message, error) {
	msgs := make([]*models.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.FindMessage(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue // record expired between index read and fetch
		}
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

func TestCreateChatPairIsOrderInsensitive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first, err := s.CreateChat(ctx, "alice", "bob")
	require.NoError(t, err)
	second, err := s.CreateChat(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	found, err := s.FindChatByParticipants(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestUpdateMessageErrorAbortsWrite(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg := &models.Message{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Content: "hi"}
	require.NoError(t, s.CreateMessage(ctx, msg))

	boom := errors.New("abort")
	_, err := s.UpdateMessage(ctx, msg.ID, func(m *models.Message) error {
		m.Content = "changed"
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := s.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", stored.Content)
}

func TestUpdateMissingRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.UpdateMessage(ctx, "missing", func(m *models.Message) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpdateChat(ctx, "missing", func(c *models.Chat) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UpdateUserLastSeen(ctx, "missing", time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMessagesByChatOrderAndPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 5; i++ {
		msg := &models.Message{
			ChatID:     "c",
			SenderID:   "alice",
			ReceiverID: "bob",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.CreateMessage(ctx, msg))
		ids = append(ids, msg.ID)
	}

	// Newest first.
	page, err := s.MessagesByChat(ctx, "c", 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, err = s.MessagesByChat(ctx, "c", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)

	page, err = s.MessagesByChat(ctx, "c", 10, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestUndeliveredToOldestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	older := &models.Message{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent, CreatedAt: base}
	newer := &models.Message{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Status: models.StatusSent, CreatedAt: base.Add(time.Minute)}
	delivered := &models.Message{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Status: models.StatusDelivered, CreatedAt: base}
	otherReceiver := &models.Message{ChatID: "c", SenderID: "bob", ReceiverID: "alice", Status: models.StatusSent, CreatedAt: base}
	for _, m := range []*models.Message{newer, older, delivered, otherReceiver} {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	pending, err := s.UndeliveredTo(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, newer.ID, pending[1].ID)
}

func TestExpiredDeletedRespectsCutoff(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	old := now.Add(-25 * time.Hour)
	recent := now.Add(-time.Hour)

	expired := &models.Message{ChatID: "c", SenderID: "a", ReceiverID: "b", Deleted: true, DeletedAt: &old}
	inGrace := &models.Message{ChatID: "c", SenderID: "a", ReceiverID: "b", Deleted: true, DeletedAt: &recent}
	locallyDeleted := &models.Message{ChatID: "c", SenderID: "a", ReceiverID: "b", DeletedBy: []string{"b"}}
	for _, m := range []*models.Message{expired, inGrace, locallyDeleted} {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	got, err := s.ExpiredDeleted(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, expired.ID, got[0].ID)
}

func TestCountUnread(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, m := range []*models.Message{
		{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Status: models.StatusDelivered},
		{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Status: models.StatusDelivered},
		{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Status: models.StatusRead},
		{ChatID: "c", SenderID: "bob", ReceiverID: "alice", Status: models.StatusDelivered},
	} {
		require.NoError(t, s.CreateMessage(ctx, m))
	}

	n, err := s.CountUnread(ctx, "c", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{Name: "Alice", Email: "alice@example.com"}))

	err := s.CreateUser(ctx, &models.User{Name: "Imposter", Email: "Alice@Example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestSessionExpiry(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "live-token", "alice", time.Hour))
	require.NoError(t, s.CreateSession(ctx, "dead-token", "alice", -time.Minute))

	userID, err := s.UserIDForSession(ctx, "live-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	_, err = s.UserIDForSession(ctx, "dead-token")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.UserIDForSession(ctx, "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	msg := &models.Message{ChatID: "c", SenderID: "alice", ReceiverID: "bob", Content: "hi", ReadBy: []string{}}
	require.NoError(t, s.CreateMessage(ctx, msg))

	got, err := s.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	got.Content = "tampered"
	got.ReadBy = append(got.ReadBy, "bob")

	fresh, err := s.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", fresh.Content)
	assert.Empty(t, fresh.ReadBy)
}

func TestChatsForSkipsDeleted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	chat, err := s.CreateChat(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = s.CreateChat(ctx, "alice", "carol")
	require.NoError(t, err)

	_, err = s.UpdateChat(ctx, chat.ID, func(c *models.Chat) error {
		c.DeletedBy = append(c.DeletedBy, "alice")
		return nil
	})
	require.NoError(t, err)

	chats, err := s.ChatsFor(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	chats, err = s.ChatsFor(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)
}

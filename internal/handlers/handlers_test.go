package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api/middleware"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/engine"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/media"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/presence"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

type env struct {
	handler *Handler
	store   *store.MemoryStore
	engine  *engine.Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemoryStore()
	eng := engine.New(
		st,
		media.Noop{},
		presence.NewRegistry(),
		events.NewDispatcher(zerolog.Nop()),
		zerolog.Nop(),
	)
	return &env{
		handler: NewHandler(st, eng, zerolog.Nop()),
		store:   st,
		engine:  eng,
	}
}

func (e *env) createUser(t *testing.T, name, email string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: email}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

// asUser injects the user into the request context the way RequireAuth does.
func asUser(r *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserContextKey, user)
	return r.WithContext(ctx)
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestRegister(t *testing.T) {
	e := newEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", jsonBody(t, RegisterRequest{
		Name:  "  Alice\x00 ",
		Email: "alice@example.com",
	}))
	e.handler.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var user models.User
	decode(t, rec, &user)
	assert.Equal(t, "Alice", user.Name)
	assert.NotEmpty(t, user.ID)
}

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		body RegisterRequest
	}{
		{"missing name", RegisterRequest{Email: "a@example.com"}},
		{"missing email", RegisterRequest{Name: "Alice"}},
		{"malformed email", RegisterRequest{Name: "Alice", Email: "not-an-email"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/register", jsonBody(t, tc.body))
			e.handler.Register(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.createUser(t, "Alice", "alice@example.com")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/register", jsonBody(t, RegisterRequest{
		Name:  "Imposter",
		Email: "alice@example.com",
	}))
	e.handler.Register(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	e := newEnv(t)
	user := e.createUser(t, "Alice", "alice@example.com")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, LoginRequest{Email: "alice@example.com"}))
	e.handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LoginResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, user.ID, resp.User.ID)

	resolved, err := e.store.UserIDForSession(context.Background(), resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved)
}

func TestLoginUnknownUser(t *testing.T) {
	e := newEnv(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", jsonBody(t, LoginRequest{Email: "ghost@example.com"}))
	e.handler.Login(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsersExcludesCaller(t *testing.T) {
	e := newEnv(t)
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/users", nil), alice)
	e.handler.ListUsers(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var users []*models.User
	decode(t, rec, &users)
	require.Len(t, users, 1)
	assert.Equal(t, bob.ID, users[0].ID)
}

func TestCreateChatEndpoint(t *testing.T) {
	e := newEnv(t)
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPost, "/chats", jsonBody(t, CreateChatRequest{UserID: bob.ID})), alice)
	e.handler.CreateChat(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var chat models.Chat
	decode(t, rec, &chat)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, chat.Users)

	// Same pair again returns the same chat.
	rec = httptest.NewRecorder()
	req = asUser(httptest.NewRequest(http.MethodPost, "/chats", jsonBody(t, CreateChatRequest{UserID: bob.ID})), alice)
	e.handler.CreateChat(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var again models.Chat
	decode(t, rec, &again)
	assert.Equal(t, chat.ID, again.ID)
}

func TestCreateChatWithUnknownTarget(t *testing.T) {
	e := newEnv(t)
	alice := e.createUser(t, "Alice", "alice@example.com")

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPost, "/chats", jsonBody(t, CreateChatRequest{UserID: "no-such-user"})), alice)
	e.handler.CreateChat(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSummaries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")

	chat, err := e.engine.CreateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	_, err = e.engine.SendMessage(ctx, engine.SendRequest{
		ChatID:     chat.ID,
		SenderID:   bob.ID,
		ReceiverID: alice.ID,
		Content:    "latest",
	})
	require.NoError(t, err)
	// Unread counting only sees delivered messages; mark it by hand.
	msgs, err := e.store.MessagesByChat(ctx, chat.ID, 0, 0)
	require.NoError(t, err)
	_, err = e.store.UpdateMessage(ctx, msgs[0].ID, func(m *models.Message) error {
		m.Status = models.StatusDelivered
		return nil
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/chats", nil), alice)
	e.handler.ChatSummaries(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var summaries []ChatSummary
	decode(t, rec, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, chat.ID, summaries[0].ChatID)
	assert.Equal(t, bob.ID, summaries[0].User.ID)
	assert.Equal(t, "latest", summaries[0].LastMessage)
	assert.Equal(t, int64(1), summaries[0].UnreadCount)
}

func TestDeleteChatEndpointStatusMapping(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")
	mallory := e.createUser(t, "Mallory", "mallory@example.com")

	chat, err := e.engine.CreateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	do := func(chatID string, caller *models.User) *httptest.ResponseRecorder {
		router := chi.NewRouter()
		router.Delete("/chats/{id}", e.handler.DeleteChat)
		rec := httptest.NewRecorder()
		req := asUser(httptest.NewRequest(http.MethodDelete, "/chats/"+chatID, nil), caller)
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNotFound, do("missing", alice).Code)
	assert.Equal(t, http.StatusForbidden, do(chat.ID, mallory).Code)
	assert.Equal(t, http.StatusOK, do(chat.ID, alice).Code)
}

func TestChatMessagesHidesChatDeletes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")

	chat, err := e.engine.CreateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	older := &models.Message{ChatID: chat.ID, SenderID: alice.ID, ReceiverID: bob.ID, Content: "first", CreatedAt: base}
	hidden := &models.Message{ChatID: chat.ID, SenderID: alice.ID, ReceiverID: bob.ID, Content: "hidden", HiddenFor: []string{bob.ID}, CreatedAt: base.Add(time.Minute)}
	newer := &models.Message{ChatID: chat.ID, SenderID: bob.ID, ReceiverID: alice.ID, Content: "second", CreatedAt: base.Add(2 * time.Minute)}
	for _, m := range []*models.Message{older, hidden, newer} {
		require.NoError(t, e.store.CreateMessage(ctx, m))
	}

	router := chi.NewRouter()
	router.Get("/chats/{id}/messages", e.handler.ChatMessages)

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/chats/"+chat.ID+"/messages", nil), bob)
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []*models.Message
	decode(t, rec, &msgs)
	require.Len(t, msgs, 2)
	// Oldest first, with the hidden message gone.
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
}

func TestMarkReadEndpoint(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")

	chat, err := e.engine.CreateChat(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	msg := &models.Message{ChatID: chat.ID, SenderID: alice.ID, ReceiverID: bob.ID, Content: "hi", Status: models.StatusDelivered}
	require.NoError(t, e.store.CreateMessage(ctx, msg))

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodPost, "/messages/read", jsonBody(t, MarkReadRequest{ChatID: chat.ID})), bob)
	e.handler.MarkRead(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := e.store.FindMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, stored.Status)
}

func TestLastSeenEndpoint(t *testing.T) {
	e := newEnv(t)
	alice := e.createUser(t, "Alice", "alice@example.com")
	bob := e.createUser(t, "Bob", "bob@example.com")

	router := chi.NewRouter()
	router.Get("/users/{id}/lastseen", e.handler.LastSeen)

	rec := httptest.NewRecorder()
	req := asUser(httptest.NewRequest(http.MethodGet, "/users/"+bob.ID+"/lastseen", nil), alice)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp LastSeenResponse
	decode(t, rec, &resp)
	assert.False(t, resp.LastSeen.IsZero())

	rec = httptest.NewRecorder()
	req = asUser(httptest.NewRequest(http.MethodGet, "/users/missing/lastseen", nil), alice)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

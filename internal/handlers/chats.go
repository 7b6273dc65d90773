package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api/middleware"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/engine"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

// CreateChatRequest represents the create-chat request body.
type CreateChatRequest struct {
	UserID string `json:"userId"`
}

// CreateChat finds or creates the chat between the caller and the target
// user. Calling it twice returns the same chat.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}
	if _, err := h.store.FindUser(r.Context(), req.UserID); errors.Is(err, store.ErrNotFound) {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	chat, err := h.engine.CreateChat(r.Context(), caller.ID, req.UserID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create chat")
		return
	}
	h.JSON(w, http.StatusOK, chat)
}

// ChatSummary is one sidebar entry: the other participant, the latest
// message preview and the unread count.
type ChatSummary struct {
	ChatID        string       `json:"chatId"`
	User          *models.User `json:"user"`
	IsPhoto       bool         `json:"isPhoto"`
	Deleted       bool         `json:"deleted"`
	DeletedBy     []string     `json:"deletedBy"`
	LastMessage   string       `json:"lastMessage"`
	UnreadCount   int64        `json:"unreadCount"`
	LastMessageAt time.Time    `json:"lastMessageAt"`
}

// ChatSummaries returns the caller's sidebar, newest activity first.
func (h *Handler) ChatSummaries(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	chats, err := h.store.ChatsFor(r.Context(), caller.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load chats")
		return
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		otherID := chat.OtherParticipant(caller.ID)
		other, err := h.store.FindUser(r.Context(), otherID)
		if err != nil {
			continue
		}

		summary := ChatSummary{
			ChatID:        chat.ID,
			User:          other,
			DeletedBy:     []string{},
			LastMessageAt: chat.UpdatedAt,
		}

		last, err := h.store.LastMessage(r.Context(), chat.ID)
		if err == nil {
			summary.IsPhoto = len(last.Images) > 0
			summary.Deleted = last.Deleted
			summary.DeletedBy = last.DeletedBy
			summary.LastMessage = last.Content
			summary.LastMessageAt = last.CreatedAt
		}

		unread, err := h.store.CountUnread(r.Context(), chat.ID, otherID)
		if err == nil {
			summary.UnreadCount = unread
		}

		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].LastMessageAt.After(summaries[j].LastMessageAt)
	})
	h.JSON(w, http.StatusOK, summaries)
}

// DeleteChat soft-deletes a chat for the caller; when the last participant
// deletes it the whole conversation is destroyed.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	chatID := chi.URLParam(r, "id")

	err := h.engine.DeleteChat(r.Context(), chatID, caller.ID)
	switch {
	case errors.Is(err, engine.ErrNotFound):
		h.Error(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, engine.ErrForbidden):
		h.Error(w, http.StatusForbidden, "not a participant of this chat")
	case err != nil:
		h.Error(w, http.StatusInternalServerError, "failed to delete chat")
	default:
		h.JSON(w, http.StatusOK, map[string]string{"message": "chat deleted"})
	}
}

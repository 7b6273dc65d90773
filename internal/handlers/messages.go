package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api/middleware"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// ChatMessages returns a page of a chat's history, oldest first, excluding
// messages hidden from the caller by a chat-level delete.
func (h *Handler) ChatMessages(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())
	chatID := chi.URLParam(r, "id")

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 20)

	msgs, err := h.store.MessagesByChat(r.Context(), chatID, skip, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}

	visible := make([]*models.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.HiddenForUser(caller.ID) {
			visible = append(visible, msg)
		}
	}

	// The store returns newest first; clients render oldest first.
	for i, j := 0, len(visible)-1; i < j; i, j = i+1, j-1 {
		visible[i], visible[j] = visible[j], visible[i]
	}
	h.JSON(w, http.StatusOK, visible)
}

// MarkReadRequest represents the bulk read-status request body.
type MarkReadRequest struct {
	ChatID string `json:"chatId"`
}

// MarkRead moves every delivered message addressed to the caller in a chat
// to read, notifying senders the same way a per-message acknowledgment does.
func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ChatID == "" {
		h.Error(w, http.StatusBadRequest, "chatId is required")
		return
	}

	if err := h.engine.MarkChatRead(r.Context(), req.ChatID, caller.ID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to update status")
		return
	}
	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

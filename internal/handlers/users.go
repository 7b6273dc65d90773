package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/api/middleware"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

const sessionTTL = 72 * time.Hour

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	user := &models.User{
		Name:   name,
		Email:  req.Email,
		Avatar: req.Avatar,
	}
	err := h.store.CreateUser(r.Context(), user)
	if errors.Is(err, store.ErrDuplicateEmail) {
		h.Error(w, http.StatusConflict, "email already in use")
		return
	}
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.JSON(w, http.StatusCreated, user)
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Email string `json:"email"`
}

// LoginResponse represents the login response.
type LoginResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Login issues a session token for a known user. Credential verification
// lives outside the core; the token only binds connections to an identity.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.store.FindUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.Error(w, http.StatusUnauthorized, "user does not exist")
		return
	}
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := newSessionToken()
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "login failed")
		return
	}
	if err := h.store.CreateSession(r.Context(), token, user.ID, sessionTTL); err != nil {
		h.Error(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.JSON(w, http.StatusOK, LoginResponse{Token: token, User: user})
}

// ListUsers returns every user except the caller.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromContext(r.Context())

	users, err := h.store.AllUsers(r.Context(), caller.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load users")
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	h.JSON(w, http.StatusOK, users)
}

// LastSeenResponse represents the last-seen lookup response.
type LastSeenResponse struct {
	LastSeen time.Time `json:"lastSeen"`
}

// LastSeen returns a user's last-seen timestamp.
func (h *Handler) LastSeen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user, err := h.store.FindUser(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to load user")
		return
	}

	h.JSON(w, http.StatusOK, LastSeenResponse{LastSeen: user.LastSeen})
}

// newSessionToken returns 32 bytes of hex-encoded randomness.
func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

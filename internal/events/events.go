// Package events defines the domain events the core emits to client
// connections and the dispatcher that fans them out.
package events

import (
	"time"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/models"
)

// Event is a named domain event. Each event name has exactly one payload
// type; payloads are closed structs, never free-form maps.
type Event interface {
	EventName() string
}

// Conn is one live client connection. Send delivers a single event; a
// failed send means the connection is gone and the event is dropped.
type Conn interface {
	Send(ev Event) error
}

// OnlineUsers carries the full list of currently reachable users.
// Broadcast to everyone on every presence change.
type OnlineUsers struct {
	Users []*models.User `json:"users"`
}

func (OnlineUsers) EventName() string { return "onlineUsers" }

// ReceiveMessage delivers a message to its receiver.
type ReceiveMessage struct {
	*models.Message
}

func (ReceiveMessage) EventName() string { return "receiveMessage" }

// MessageSent confirms a send (or edit) back to the sender's connection.
type MessageSent struct {
	*models.Message
}

func (MessageSent) EventName() string { return "messageSent" }

// MessageStatus notifies the sender of a delivery-state transition.
type MessageStatus struct {
	MessageID string        `json:"messageId"`
	Status    models.Status `json:"status"`
}

func (MessageStatus) EventName() string { return "messageStatus" }

// MessageDeleted carries the full updated message after a delete.
type MessageDeleted struct {
	*models.Message
}

func (MessageDeleted) EventName() string { return "messageDeleted" }

// MessageRestored carries the full updated message after an undo.
type MessageRestored struct {
	*models.Message
}

func (MessageRestored) EventName() string { return "messageRestored" }

// MessagePurged announces the permanent removal of a message.
type MessagePurged struct {
	ID string `json:"id"`
}

func (MessagePurged) EventName() string { return "messagePurged" }

// SidebarUpdate tells chat-list views to recompute previews and unread
// counts. The message is optional; a bare signal forces a full refresh.
type SidebarUpdate struct {
	Message *models.Message `json:"message,omitempty"`
}

func (SidebarUpdate) EventName() string { return "sidebarUpdate" }

// Typing signals that a user is typing in a chat.
type Typing struct {
	UserID string `json:"userId"`
}

func (Typing) EventName() string { return "typing" }

// UserLastSeenUpdated announces a user's new last-seen timestamp after
// they go offline.
type UserLastSeenUpdated struct {
	UserID   string    `json:"userId"`
	LastSeen time.Time `json:"lastSeen"`
}

func (UserLastSeenUpdated) EventName() string { return "userLastSeenUpdated" }

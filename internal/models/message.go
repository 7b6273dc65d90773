package models

import "time"

// Status is the delivery state of a message.
type Status string

const (
	StatusSent      Status = "sent"      // receiver was unreachable at send time
	StatusDelivered Status = "delivered" // handed to the receiver's connection
	StatusRead      Status = "read"      // receiver explicitly acknowledged
)

// MessageType describes a message's content shape.
type MessageType string

const (
	TypeText  MessageType = "text"
	TypeImage MessageType = "image"
	TypeMixed MessageType = "mixed"
)

// Message is a single direct message inside a chat.
//
// The Original* fields are shadow copies taken when the sender globally
// deletes the message; they back the undo operation and are nulled out when
// the message is restored. DeletedBy tracks receiver-local deletion and is
// independent of the sender-global Deleted flag: global deletion clears it,
// but a later local delete may add entries again (global delete dominates).
type Message struct {
	ID                     string      `json:"id"` // ULID
	ChatID                 string      `json:"chat"`
	SenderID               string      `json:"sender"`
	ReceiverID             string      `json:"receiver"`
	Content                string      `json:"content"`
	Images                 []string    `json:"images"`
	ImagePublicIDs         []string    `json:"imagePublicIds"`
	OriginalContent        *string     `json:"originalContent,omitempty"`
	OriginalImages         []string    `json:"originalImages,omitempty"`
	OriginalImagePublicIDs []string    `json:"originalImagePublicIds,omitempty"`
	Type                   MessageType `json:"type,omitempty"`
	Status                 Status      `json:"status"`
	ReadBy                 []string    `json:"readBy"`
	HiddenFor              []string    `json:"hiddenFor"`
	Edited                 bool        `json:"edited"`
	Deleted                bool        `json:"deleted"`
	DeletedBy              []string    `json:"deletedBy"`
	DeletedAt              *time.Time  `json:"deletedAt,omitempty"`
	CreatedAt              time.Time   `json:"createdAt"`
	UpdatedAt              time.Time   `json:"updatedAt"`
}

// HiddenForUser reports whether the message is hidden from the given user
// by a chat-level soft delete.
func (m *Message) HiddenForUser(userID string) bool {
	return Contains(m.HiddenFor, userID)
}

// DeletedByUser reports whether the given user locally deleted the message.
func (m *Message) DeletedByUser(userID string) bool {
	return Contains(m.DeletedBy, userID)
}

// ReadByUser reports whether the given user already acknowledged the message.
func (m *Message) ReadByUser(userID string) bool {
	return Contains(m.ReadBy, userID)
}

// Contains reports whether id appears in ids.
func Contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// AddToSet appends id if absent and reports whether the slice changed.
func AddToSet(ids []string, id string) ([]string, bool) {
	if Contains(ids, id) {
		return ids, false
	}
	return append(ids, id), true
}

// RemoveFromSet drops every occurrence of id.
func RemoveFromSet(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

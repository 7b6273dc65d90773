package models

import "time"

// Chat is a two-participant conversation container.
//
// DeletedBy holds participants who soft-deleted the chat; a chat is visible
// to a participant iff their id is not in DeletedBy. When every participant
// has deleted the chat it is destroyed along with its messages and media.
type Chat struct {
	ID        string    `json:"id"`
	Users     []string  `json:"users"` // exactly two participant ids
	DeletedBy []string  `json:"deletedBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasParticipant reports whether userID is one of the chat's two users.
func (c *Chat) HasParticipant(userID string) bool {
	return Contains(c.Users, userID)
}

// DeletedByUser reports whether userID soft-deleted the chat.
func (c *Chat) DeletedByUser(userID string) bool {
	return Contains(c.DeletedBy, userID)
}

// DeletedByAll reports whether every participant has deleted the chat.
func (c *Chat) DeletedByAll() bool {
	for _, u := range c.Users {
		if !Contains(c.DeletedBy, u) {
			return false
		}
	}
	return len(c.Users) > 0
}

// OtherParticipant returns the participant that is not userID.
func (c *Chat) OtherParticipant(userID string) string {
	for _, u := range c.Users {
		if u != userID {
			return u
		}
	}
	return ""
}

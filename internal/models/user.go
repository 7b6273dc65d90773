package models

import "time"

// User is a registered account. Reachability is derived from the presence
// registry and never persisted; LastSeen is updated on disconnect/logout.
type User struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Avatar         string    `json:"avatar,omitempty"`
	AvatarPublicID string    `json:"avatarPublicId,omitempty"`
	LastSeen       time.Time `json:"lastSeen"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

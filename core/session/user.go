package session

import "time"

// User is the identity record of the authenticated account.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	IsAdmin     bool      `json:"is_admin"`
	IsModerator bool      `json:"is_moderator"`
	Karma       int       `json:"karma"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// Credentials is the token/user pair the backend issues after a successful
// login or code exchange.
type Credentials struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// Snapshot is the persisted token/user pair the bootstrap recovers before
// the first render. It is a cache, never authoritative.
type Snapshot struct {
	Token string
	User  *User
}

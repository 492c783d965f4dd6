package models

import "time"

// Session is the server-side state of one client session (a browser tab).
// It is anonymous while UserID is empty.
type Session struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId,omitempty"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	PromptCount int       `json:"promptCount"`
	Epoch       int64     `json:"epoch"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Authenticated reports whether an identity is bound to the session.
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Identity is what the identity provider knows about a signed in user.
type Identity struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Token       string    `json:"token,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// IdentityEventType enumerates identity provider push events.
type IdentityEventType string

const (
	IdentitySignedIn  IdentityEventType = "signed_in"
	IdentitySignedOut IdentityEventType = "signed_out"
	IdentityRefreshed IdentityEventType = "token_refreshed"
)

// IdentityEvent is pushed by the identity provider for a client session.
// Identity is nil on sign out.
type IdentityEvent struct {
	Type            IdentityEventType
	ClientSessionID string
	Identity        *Identity
}

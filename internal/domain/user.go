package domain

import "time"

// User is the public view of an account
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StoredUser is a user record as persisted by a UserRepository
type StoredUser struct {
	User         `bson:",inline"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	CreatedAt    time.Time `json:"-" bson:"created_at"`
}

// SessionState is the lifecycle state of a session
type SessionState string

const (
	SessionLoading       SessionState = "loading"
	SessionAnonymous     SessionState = "anonymous"
	SessionAuthenticated SessionState = "authenticated"
)

// Session is the state of one signed-in (or anonymous) caller
type Session struct {
	Token     string       `json:"token,omitempty"`
	User      *User        `json:"user,omitempty"`
	State     SessionState `json:"state"`
	ExpiresAt time.Time    `json:"expiresAt,omitempty"`

	// BackendToken is the product backend's bearer token for this user, when obtained
	BackendToken string `json:"-"`
}

// Authenticated reports whether the session carries a signed-in user
func (s *Session) Authenticated() bool {
	return s != nil && s.State == SessionAuthenticated && s.User != nil
}

package auth

import "time"

// User represents a portal account
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	FullName    string    `json:"full_name,omitempty"`
	IsSuperuser bool      `json:"is_superuser"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DisplayName returns the full name when set, otherwise the username
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// APIToken represents a bearer token that identifies a user session
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// IsExpired reports whether the token has an expiry in the past
func (t *APIToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}

// IsRevoked reports whether the token was revoked
func (t *APIToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// AuthContext holds authenticated user information
type AuthContext struct {
	User  *User
	Token *APIToken
}

// Actor returns the authenticated user, or nil for an anonymous context
func (ac *AuthContext) Actor() *User {
	if ac == nil {
		return nil
	}
	return ac.User
}

// IsAuthenticated reports whether the context carries an active user
func (ac *AuthContext) IsAuthenticated() bool {
	return ac != nil && ac.User != nil && ac.User.IsActive
}

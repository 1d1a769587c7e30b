// Package auth provides user accounts and bearer-token session identity for
// the meetup service.
//
// # Tokens
//
// Tokens have the form meetup_<base64url(32 random bytes)>. The plaintext is
// returned exactly once at creation; only its SHA-256 hash and a short display
// prefix are stored.
//
//	manager := auth.NewTokenManager(auth.NewStore(db))
//	apiToken, plaintext, err := manager.CreateToken(ctx, user.ID, "laptop", nil)
//
// ValidateToken resolves a presented token to its user, rejecting revoked and
// expired tokens and inactive users, and records the last use time.
//
// # Anonymous actors
//
// Requests without a token carry no AuthContext. Helpers on AuthContext are
// nil-safe so callers can pass the result of middleware.GetAuthContext
// straight through to the authorization layer.
package auth

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/meetup/pkg/outcome"
)

const (
	// TokenPrefix identifies meetup session tokens
	TokenPrefix = "meetup_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates bearer tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new token
// Format: meetup_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	// Generate random bytes
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// Encode to base64url (URL-safe, no padding)
	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)

	// Construct full token
	fullToken := TokenPrefix + encodedToken

	// Calculate SHA256 hash for storage
	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// Display prefix is the first 8 encoded chars
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	// Decode to verify it's valid base64url
	_, err := base64.RawURLEncoding.DecodeString(encodedPart)
	if err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// ExtractPrefix extracts the prefix from a token for display
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return ""
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) >= 8 {
		return TokenPrefix + encodedPart[:8]
	}

	return token
}

var (
	// ErrInvalidToken is returned for malformed, unknown, revoked or expired tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)

// TokenManager manages token lifecycle against the store
type TokenManager struct {
	generator *TokenGenerator
	store     *Store
	now       func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(store *Store) *TokenManager {
	return &TokenManager{
		generator: NewTokenGenerator(),
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateToken creates a token for a user. The plaintext token is returned
// once and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name string, expiresAt *time.Time) (*APIToken, string, error) {
	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		ExpiresAt:   expiresAt,
		CreatedAt:   tm.now(),
	}

	if err := tm.store.InsertToken(ctx, apiToken); err != nil {
		return nil, "", err
	}

	return apiToken, token, nil
}

// ValidateToken resolves a presented token to its record and active user
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*APIToken, *User, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	apiToken, err := tm.store.GetTokenByHash(ctx, tm.generator.HashToken(token))
	if err != nil {
		if outcome.IsNotFound(err) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}

	now := tm.now()
	if apiToken.IsRevoked() || apiToken.IsExpired(now) {
		return nil, nil, ErrInvalidToken
	}

	user, err := tm.store.GetUser(ctx, apiToken.UserID)
	if err != nil {
		if outcome.IsNotFound(err) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	if !user.IsActive {
		return nil, nil, ErrInvalidToken
	}

	if err := tm.store.TouchToken(ctx, apiToken.ID, now); err != nil {
		return nil, nil, err
	}
	apiToken.LastUsedAt = &now

	return apiToken, user, nil
}

// RevokeToken revokes a token
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID int64) error {
	return tm.store.RevokeToken(ctx, tokenID, tm.now())
}

// ListUserTokens lists all tokens for a user
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	return tm.store.ListUserTokens(ctx, userID)
}

// CleanupExpiredTokens removes expired tokens and returns how many were deleted
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return tm.store.DeleteExpiredTokens(ctx, tm.now())
}

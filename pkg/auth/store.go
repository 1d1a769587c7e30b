package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/storage"
)

// Store handles database operations for users and tokens
type Store struct {
	db *sql.DB
}

// NewStore creates a new auth store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `id, username, email, full_name, is_superuser, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.IsSuperuser, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser creates a new user
func (s *Store) CreateUser(ctx context.Context, user *User) error {
	if user.Username == "" {
		verr := outcome.NewValidationError()
		verr.Add("username", "This field is required.")
		return verr
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (username, email, full_name, is_superuser, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	err := s.db.QueryRowContext(ctx, query,
		user.Username, user.Email, user.FullName, user.IsSuperuser, user.IsActive, user.CreatedAt, user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return fmt.Errorf("username %q already exists: %w", user.Username, outcome.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// GetUser retrieves a user by ID
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("user", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("user", username)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// SetSuperuser toggles the superuser flag
func (s *Store) SetSuperuser(ctx context.Context, userID int64, superuser bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_superuser = $1, updated_at = $2 WHERE id = $3`,
		superuser, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result, outcome.NotFound("user", fmt.Sprintf("%d", userID)))
}

// SetActive activates or deactivates a user
func (s *Store) SetActive(ctx context.Context, userID int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET is_active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(result, outcome.NotFound("user", fmt.Sprintf("%d", userID)))
}

// InsertToken stores a token record
func (s *Store) InsertToken(ctx context.Context, token *APIToken) error {
	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		token.UserID, token.TokenHash, token.TokenPrefix, token.Name, token.ExpiresAt, token.CreatedAt,
	).Scan(&token.ID)
	if err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}
	return nil
}

const tokenColumns = `id, user_id, token_hash, token_prefix, name, expires_at, last_used_at, created_at, revoked_at`

func scanToken(row interface{ Scan(...interface{}) error }) (*APIToken, error) {
	var (
		t          APIToken
		expiresAt  sql.NullTime
		lastUsedAt sql.NullTime
		revokedAt  sql.NullTime
	)
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name, &expiresAt, &lastUsedAt, &t.CreatedAt, &revokedAt)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	if lastUsedAt.Valid {
		t.LastUsedAt = &lastUsedAt.Time
	}
	if revokedAt.Valid {
		t.RevokedAt = &revokedAt.Time
	}
	return &t, nil
}

// GetTokenByHash retrieves a token by its SHA-256 hash
func (s *Store) GetTokenByHash(ctx context.Context, hash string) (*APIToken, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+tokenColumns+` FROM api_tokens WHERE token_hash = $1`, hash)
	token, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("token", "")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}

// TouchToken records the last time a token was used
func (s *Store) TouchToken(ctx context.Context, tokenID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, at, tokenID)
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}

// RevokeToken marks a token revoked
func (s *Store) RevokeToken(ctx context.Context, tokenID int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE api_tokens SET revoked_at = $1 WHERE id = $2 AND revoked_at IS NULL`,
		at, tokenID,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return requireAffected(result, outcome.NotFound("token", fmt.Sprintf("%d", tokenID)))
}

// ListUserTokens lists a user's tokens, newest first
func (s *Store) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

// DeleteExpiredTokens removes tokens that expired before the cutoff
func (s *Store) DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Store handles database operations for groups and grants
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Group is an authorization group
type Group struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Grant is a capability held by a group on a location
type Grant struct {
	GroupID    int64      `json:"group_id"`
	Capability Capability `json:"capability"`
	LocationID int64      `json:"location_id"`
}

// AddToGroup adds a user to the named group. Adding an existing member is a no-op.
func (s *Store) AddToGroup(ctx context.Context, tx *sql.Tx, groupName string, userID int64) error {
	query := `
		INSERT INTO auth_group_members (group_id, user_id)
		SELECT id, CAST($1 AS BIGINT) FROM auth_groups WHERE name = $2
		ON CONFLICT DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query, userID, groupName); err != nil {
		return fmt.Errorf("failed to add user to group %q: %w", groupName, err)
	}
	return nil
}

// RemoveFromGroup removes a user from the named group if present
func (s *Store) RemoveFromGroup(ctx context.Context, tx *sql.Tx, groupName string, userID int64) error {
	query := `
		DELETE FROM auth_group_members
		WHERE user_id = $1 AND group_id IN (SELECT id FROM auth_groups WHERE name = $2)
	`
	if _, err := tx.ExecContext(ctx, query, userID, groupName); err != nil {
		return fmt.Errorf("failed to remove user from group %q: %w", groupName, err)
	}
	return nil
}

// GetGroup retrieves a group by name, nil when absent
func (s *Store) GetGroup(ctx context.Context, name string) (*Group, error) {
	var g Group
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM auth_groups WHERE name = $1`, name,
	).Scan(&g.ID, &g.Name, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return &g, nil
}

// ListGroups lists all groups ordered by name
func (s *Store) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM auth_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// GroupMembers lists the user IDs in the named group
func (s *Store) GroupMembers(ctx context.Context, groupName string) ([]int64, error) {
	query := `
		SELECT m.user_id FROM auth_group_members m
		JOIN auth_groups g ON g.id = m.group_id
		WHERE g.name = $1
		ORDER BY m.user_id
	`
	rows, err := s.db.QueryContext(ctx, query, groupName)
	if err != nil {
		return nil, fmt.Errorf("failed to list group members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GroupGrants lists the capabilities the named group holds, ordered by capability
func (s *Store) GroupGrants(ctx context.Context, groupName string) ([]Grant, error) {
	query := `
		SELECT gg.group_id, gg.capability, gg.location_id FROM auth_group_grants gg
		JOIN auth_groups g ON g.id = gg.group_id
		WHERE g.name = $1
		ORDER BY gg.capability, gg.location_id
	`
	rows, err := s.db.QueryContext(ctx, query, groupName)
	if err != nil {
		return nil, fmt.Errorf("failed to list group grants: %w", err)
	}
	defer rows.Close()

	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.GroupID, &g.Capability, &g.LocationID); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GrantUser gives a user a model-level capability
func (s *Store) GrantUser(ctx context.Context, userID int64, capability Capability) error {
	if !capability.IsModelLevel() {
		return fmt.Errorf("capability %q is not model-level", capability)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_grants (user_id, capability, granted_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
		userID, capability, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to grant capability: %w", err)
	}
	return nil
}

// RevokeUser removes a model-level capability from a user
func (s *Store) RevokeUser(ctx context.Context, userID int64, capability Capability) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM user_grants WHERE user_id = $1 AND capability = $2`,
		userID, capability,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke capability: %w", err)
	}
	return nil
}

// UserGrants lists a user's model-level capabilities
func (s *Store) UserGrants(ctx context.Context, userID int64) ([]Capability, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT capability FROM user_grants WHERE user_id = $1 ORDER BY capability`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list user grants: %w", err)
	}
	defer rows.Close()

	var caps []Capability
	for rows.Next() {
		var c Capability
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan user grant: %w", err)
		}
		caps = append(caps, c)
	}
	return caps, rows.Err()
}

// hasUserGrant reports whether a user holds a model-level capability
func (s *Store) hasUserGrant(ctx context.Context, userID int64, capability Capability) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_grants WHERE user_id = $1 AND capability = $2`,
		userID, capability,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check user grant: %w", err)
	}
	return n > 0, nil
}

// hasGroupGrant reports whether any of the user's groups holds capability on a location
func (s *Store) hasGroupGrant(ctx context.Context, userID int64, capability Capability, locationID int64) (bool, error) {
	query := `
		SELECT COUNT(*) FROM auth_group_grants gg
		JOIN auth_group_members m ON m.group_id = gg.group_id
		WHERE m.user_id = $1 AND gg.capability = $2 AND gg.location_id = $3
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, userID, capability, locationID).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check group grant: %w", err)
	}
	return n > 0, nil
}

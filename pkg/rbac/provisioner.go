package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Provisioner keeps the authorization groups of each location in step with
// the permission table
type Provisioner struct {
	table *PermissionTable
}

// NewProvisioner creates a provisioner applying table
func NewProvisioner(table *PermissionTable) *Provisioner {
	if table == nil {
		table = DefaultPermissionTable()
	}
	return &Provisioner{table: table}
}

// Table returns the permission table in use
func (p *Provisioner) Table() *PermissionTable {
	return p.table
}

// Provision creates the location's groups if absent and applies the table's
// grants to them. Running it again changes nothing.
func (p *Provisioner) Provision(ctx context.Context, tx *sql.Tx, loc LocationRef) (GroupNames, error) {
	names := GroupNamesFor(loc.Name)
	now := time.Now().UTC()

	for _, role := range AllRoles {
		name := names.For(role)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO auth_groups (name, created_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			name, now,
		); err != nil {
			return names, fmt.Errorf("failed to create group %q: %w", name, err)
		}

		var groupID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM auth_groups WHERE name = $1`, name).Scan(&groupID); err != nil {
			return names, fmt.Errorf("failed to look up group %q: %w", name, err)
		}

		caps := p.table.Capabilities(role)
		for _, c := range caps {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO auth_group_grants (group_id, capability, location_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				groupID, c, loc.ID,
			); err != nil {
				return names, fmt.Errorf("failed to grant %s to %q: %w", c, name, err)
			}
		}

		if err := pruneGrants(ctx, tx, groupID, loc.ID, caps); err != nil {
			return names, err
		}
	}

	return names, nil
}

// pruneGrants drops grants no longer present in the table
func pruneGrants(ctx context.Context, tx *sql.Tx, groupID, locationID int64, keep []Capability) error {
	query := `DELETE FROM auth_group_grants WHERE group_id = $1 AND location_id = $2`
	args := []interface{}{groupID, locationID}

	if len(keep) > 0 {
		placeholders := make([]string, len(keep))
		for i, c := range keep {
			args = append(args, c)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` AND capability NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to prune grants: %w", err)
	}
	return nil
}

// Teardown deletes the location's groups. Missing groups are ignored and
// other groups are untouched.
func (p *Provisioner) Teardown(ctx context.Context, tx *sql.Tx, loc LocationRef) error {
	names := GroupNamesFor(loc.Name)
	for _, name := range names.All() {
		if _, err := tx.ExecContext(ctx, `DELETE FROM auth_groups WHERE name = $1`, name); err != nil {
			return fmt.Errorf("failed to delete group %q: %w", name, err)
		}
	}
	return nil
}

// Rename moves the location's groups to names derived from its new name
func (p *Provisioner) Rename(ctx context.Context, tx *sql.Tx, oldName string, loc LocationRef) error {
	if oldName == loc.Name {
		return nil
	}

	from := GroupNamesFor(oldName)
	to := GroupNamesFor(loc.Name)
	for _, role := range AllRoles {
		if _, err := tx.ExecContext(ctx,
			`UPDATE auth_groups SET name = $1 WHERE name = $2`,
			to.For(role), from.For(role),
		); err != nil {
			return fmt.Errorf("failed to rename group %q: %w", from.For(role), err)
		}
	}

	// Recreate anything that was missing under the old name
	_, err := p.Provision(ctx, tx, loc)
	return err
}

// Reconcile re-provisions every existing location and returns how many were
// processed. Each location is handled in its own transaction.
func (p *Provisioner) Reconcile(ctx context.Context, db *sql.DB) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name FROM meetup_locations ORDER BY id`)
	if err != nil {
		return 0, fmt.Errorf("failed to list locations: %w", err)
	}

	var locs []LocationRef
	for rows.Next() {
		var loc LocationRef
		if err := rows.Scan(&loc.ID, &loc.Name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan location: %w", err)
		}
		locs = append(locs, loc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to list locations: %w", err)
	}

	for i, loc := range locs {
		if err := p.provisionOne(ctx, db, loc); err != nil {
			return i, err
		}
	}
	return len(locs), nil
}

func (p *Provisioner) provisionOne(ctx context.Context, db *sql.DB, loc LocationRef) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := p.Provision(ctx, tx, loc); err != nil {
		return fmt.Errorf("failed to provision location %d: %w", loc.ID, err)
	}
	return tx.Commit()
}

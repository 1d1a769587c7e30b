package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/storage"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store handles database operations for locations and their membership sets
type Store struct {
	db *sql.DB
}

// NewStore creates a new location store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const locationColumns = `id, name, slug, city, country, description, email, sponsors, created_at, updated_at`

func scanLocation(row interface{ Scan(...interface{}) error }) (*Location, error) {
	var l Location
	err := row.Scan(&l.ID, &l.Name, &l.Slug, &l.City, &l.Country, &l.Description,
		&l.Email, &l.Sponsors, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLocationBySlug retrieves a location by slug
func (s *Store) GetLocationBySlug(ctx context.Context, slug string) (*Location, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM meetup_locations WHERE slug = $1`, slug)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("meetup location", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meetup location: %w", err)
	}
	return loc, nil
}

// GetLocation retrieves a location by ID
func (s *Store) GetLocation(ctx context.Context, id int64) (*Location, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+locationColumns+` FROM meetup_locations WHERE id = $1`, id)
	loc, err := scanLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("meetup location", fmt.Sprintf("%d", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meetup location: %w", err)
	}
	return loc, nil
}

// ListLocations returns one page of locations ordered by name. Pages start at 1.
func (s *Store) ListLocations(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetup_locations`).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count meetup locations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM meetup_locations ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2`,
		PageSize, (page-1)*PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetup locations: %w", err)
	}
	defer rows.Close()

	result := &Page{
		Locations:  []*Location{},
		Page:       page,
		Total:      total,
		TotalPages: (total + PageSize - 1) / PageSize,
	}
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup location: %w", err)
		}
		result.Locations = append(result.Locations, loc)
	}
	return result, rows.Err()
}

// MembersOf lists a location's members, organizers flagged, by username
func (s *Store) MembersOf(ctx context.Context, locationID int64) ([]Member, error) {
	query := `
		SELECT u.id, u.username, u.full_name, lm.joined_at,
		       CASE WHEN lo.user_id IS NULL THEN 0 ELSE 1 END
		FROM location_members lm
		JOIN users u ON u.id = lm.user_id
		LEFT JOIN location_organizers lo ON lo.location_id = lm.location_id AND lo.user_id = lm.user_id
		WHERE lm.location_id = $1
		ORDER BY u.username ASC
	`
	return s.queryMembers(ctx, query, locationID)
}

// OrganizersOf lists a location's organizers by username
func (s *Store) OrganizersOf(ctx context.Context, locationID int64) ([]Member, error) {
	query := `
		SELECT u.id, u.username, u.full_name, lo.appointed_at, 1
		FROM location_organizers lo
		JOIN users u ON u.id = lo.user_id
		WHERE lo.location_id = $1
		ORDER BY u.username ASC
	`
	return s.queryMembers(ctx, query, locationID)
}

func (s *Store) queryMembers(ctx context.Context, query string, locationID int64) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []Member{}
	for rows.Next() {
		var (
			m         Member
			organizer int
		)
		if err := rows.Scan(&m.UserID, &m.Username, &m.FullName, &m.JoinedAt, &organizer); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.IsOrganizer = organizer == 1
		members = append(members, m)
	}
	return members, rows.Err()
}

// PendingRequestsOf lists pending join requests, oldest first
func (s *Store) PendingRequestsOf(ctx context.Context, locationID int64) ([]JoinRequest, error) {
	query := `
		SELECT jr.id, jr.location_id, jr.user_id, u.username, jr.requested_at
		FROM location_join_requests jr
		JOIN users u ON u.id = jr.user_id
		WHERE jr.location_id = $1
		ORDER BY jr.requested_at ASC, jr.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list join requests: %w", err)
	}
	defer rows.Close()

	requests := []JoinRequest{}
	for rows.Next() {
		var jr JoinRequest
		if err := rows.Scan(&jr.ID, &jr.LocationID, &jr.UserID, &jr.Username, &jr.RequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan join request: %w", err)
		}
		requests = append(requests, jr)
	}
	return requests, rows.Err()
}

// StaleRequests lists join requests across all locations made before the
// cutoff, grouped by location and oldest first
func (s *Store) StaleRequests(ctx context.Context, before time.Time) ([]JoinRequest, error) {
	query := `
		SELECT jr.id, jr.location_id, jr.user_id, u.username, jr.requested_at
		FROM location_join_requests jr
		JOIN users u ON u.id = jr.user_id
		WHERE jr.requested_at < $1
		ORDER BY jr.location_id ASC, jr.requested_at ASC, jr.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale join requests: %w", err)
	}
	defer rows.Close()

	var requests []JoinRequest
	for rows.Next() {
		var jr JoinRequest
		if err := rows.Scan(&jr.ID, &jr.LocationID, &jr.UserID, &jr.Username, &jr.RequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan join request: %w", err)
		}
		requests = append(requests, jr)
	}
	return requests, rows.Err()
}

// StateOf reports a user's membership state in a location
func (s *Store) StateOf(ctx context.Context, locationID, userID int64) (MembershipState, error) {
	return stateOf(ctx, s.db, locationID, userID)
}

// AffectedUsers returns every user holding any role or pending request in a location
func (s *Store) AffectedUsers(ctx context.Context, locationID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM location_members WHERE location_id = $1
		UNION
		SELECT user_id FROM location_organizers WHERE location_id = $1
		UNION
		SELECT user_id FROM location_join_requests WHERE location_id = $1
	`
	rows, err := s.db.QueryContext(ctx, query, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list location users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// stateOf derives the state from the three membership tables. Organizer
// wins over member, member over pending.
func stateOf(ctx context.Context, q querier, locationID, userID int64) (MembershipState, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM location_organizers WHERE location_id = $1 AND user_id = $2),
			(SELECT COUNT(*) FROM location_members WHERE location_id = $1 AND user_id = $2),
			(SELECT COUNT(*) FROM location_join_requests WHERE location_id = $1 AND user_id = $2)
	`
	var organizer, member, pending int
	if err := q.QueryRowContext(ctx, query, locationID, userID).Scan(&organizer, &member, &pending); err != nil {
		return StateNone, fmt.Errorf("failed to read membership state: %w", err)
	}

	switch {
	case organizer > 0:
		return StateOrganizer, nil
	case member > 0:
		return StateMember, nil
	case pending > 0:
		return StatePending, nil
	default:
		return StateNone, nil
	}
}

// insertLocation stores a new location and sets its ID and timestamps
func insertLocation(ctx context.Context, tx *sql.Tx, loc *Location, now time.Time) error {
	loc.CreatedAt = now
	loc.UpdatedAt = now

	query := `
		INSERT INTO meetup_locations (name, slug, city, country, description, email, sponsors, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := tx.QueryRowContext(ctx, query,
		loc.Name, loc.Slug, loc.City, loc.Country, loc.Description, loc.Email, loc.Sponsors,
		loc.CreatedAt, loc.UpdatedAt,
	).Scan(&loc.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return fmt.Errorf("meetup location name or slug already exists: %w", outcome.ErrConflict)
		}
		return fmt.Errorf("failed to create meetup location: %w", err)
	}
	return nil
}

// updateLocation writes every editable field of loc
func updateLocation(ctx context.Context, tx *sql.Tx, loc *Location, now time.Time) error {
	loc.UpdatedAt = now

	query := `
		UPDATE meetup_locations
		SET name = $1, slug = $2, city = $3, country = $4, description = $5, email = $6, sponsors = $7, updated_at = $8
		WHERE id = $9
	`
	_, err := tx.ExecContext(ctx, query,
		loc.Name, loc.Slug, loc.City, loc.Country, loc.Description, loc.Email, loc.Sponsors,
		loc.UpdatedAt, loc.ID,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return fmt.Errorf("meetup location name or slug already exists: %w", outcome.ErrConflict)
		}
		return fmt.Errorf("failed to update meetup location: %w", err)
	}
	return nil
}

// deleteLocation removes a location; memberships and grants cascade
func deleteLocation(ctx context.Context, tx *sql.Tx, locationID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM meetup_locations WHERE id = $1`, locationID); err != nil {
		return fmt.Errorf("failed to delete meetup location: %w", err)
	}
	return nil
}

// lockLocation takes the location's row lock so that concurrent transitions
// on the same location serialize
func lockLocation(ctx context.Context, tx *sql.Tx, locationID int64) error {
	result, err := tx.ExecContext(ctx, `UPDATE meetup_locations SET updated_at = updated_at WHERE id = $1`, locationID)
	if err != nil {
		return fmt.Errorf("failed to lock meetup location: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to lock meetup location: %w", err)
	}
	if n == 0 {
		return outcome.NotFound("meetup location", fmt.Sprintf("%d", locationID))
	}
	return nil
}

func insertMember(ctx context.Context, tx *sql.Tx, locationID, userID int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO location_members (location_id, user_id, joined_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, locationID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func deleteMember(ctx context.Context, tx *sql.Tx, locationID, userID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM location_members WHERE location_id = $1 AND user_id = $2`, locationID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return nil
}

func insertOrganizer(ctx context.Context, tx *sql.Tx, locationID, userID int64, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO location_organizers (location_id, user_id, appointed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, locationID, userID, now)
	if err != nil {
		return fmt.Errorf("failed to add organizer: %w", err)
	}
	return nil
}

func deleteOrganizer(ctx context.Context, tx *sql.Tx, locationID, userID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM location_organizers WHERE location_id = $1 AND user_id = $2`, locationID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove organizer: %w", err)
	}
	return nil
}

func countOrganizers(ctx context.Context, tx *sql.Tx, locationID int64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM location_organizers WHERE location_id = $1`, locationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count organizers: %w", err)
	}
	return n, nil
}

// insertJoinRequest records a pending request. It reports false when the
// user already has one.
func insertJoinRequest(ctx context.Context, tx *sql.Tx, locationID, userID int64, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO location_join_requests (location_id, user_id, requested_at)
		VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING
	`, locationID, userID, now)
	if err != nil {
		return false, fmt.Errorf("failed to create join request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// deleteJoinRequest removes a pending request and reports whether one existed
func deleteJoinRequest(ctx context.Context, tx *sql.Tx, locationID, userID int64) (bool, error) {
	result, err := tx.ExecContext(ctx,
		`DELETE FROM location_join_requests WHERE location_id = $1 AND user_id = $2`,
		locationID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete join request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

package meetups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/storage"
)

// Store handles database operations for meetups and what hangs off them
type Store struct {
	db *sql.DB
}

// NewStore creates a new meetup store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	id := n.Int64
	return &id
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}

const meetupColumns = `id, location_id, title, slug, meetup_date, meetup_time, venue, description, created_by, created_at, updated_at`

func scanMeetup(row scanner) (*Meetup, error) {
	var (
		m         Meetup
		startTime sql.NullString
		createdBy sql.NullInt64
	)
	err := row.Scan(&m.ID, &m.LocationID, &m.Title, &m.Slug, &m.Date, &startTime,
		&m.Venue, &m.Description, &createdBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Time = startTime.String
	m.CreatedBy = idPtr(createdBy)
	return &m, nil
}

// GetMeetup retrieves a meetup of a location by slug. Meetups of other
// locations are not found.
func (s *Store) GetMeetup(ctx context.Context, locationID int64, slug string) (*Meetup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetupColumns+` FROM meetups WHERE location_id = $1 AND slug = $2`,
		locationID, slug,
	)
	m, err := scanMeetup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("meetup", slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meetup: %w", err)
	}
	return m, nil
}

// getMeetupByID retrieves a meetup of a location by ID
func (s *Store) getMeetupByID(ctx context.Context, locationID, id int64) (*Meetup, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+meetupColumns+` FROM meetups WHERE location_id = $1 AND id = $2`,
		locationID, id,
	)
	m, err := scanMeetup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("meetup", key(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meetup: %w", err)
	}
	return m, nil
}

// UpcomingMeetups lists meetups on or after today, soonest first
func (s *Store) UpcomingMeetups(ctx context.Context, locationID int64, today string) ([]*Meetup, error) {
	return s.queryMeetups(ctx, `
		SELECT `+meetupColumns+` FROM meetups
		WHERE location_id = $1 AND meetup_date >= $2
		ORDER BY meetup_date ASC, meetup_time ASC, id ASC
	`, locationID, today)
}

// PastMeetups lists meetups before today, most recent first
func (s *Store) PastMeetups(ctx context.Context, locationID int64, today string) ([]*Meetup, error) {
	return s.queryMeetups(ctx, `
		SELECT `+meetupColumns+` FROM meetups
		WHERE location_id = $1 AND meetup_date < $2
		ORDER BY meetup_date DESC, meetup_time DESC, id DESC
	`, locationID, today)
}

func (s *Store) queryMeetups(ctx context.Context, query string, args ...interface{}) ([]*Meetup, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetups: %w", err)
	}
	defer rows.Close()

	meetups := []*Meetup{}
	for rows.Next() {
		m, err := scanMeetup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meetup: %w", err)
		}
		meetups = append(meetups, m)
	}
	return meetups, rows.Err()
}

func startTime(m *Meetup) sql.NullString {
	return sql.NullString{String: m.Time, Valid: m.Time != ""}
}

// CreateMeetup stores a new meetup and sets its ID and timestamps
func (s *Store) CreateMeetup(ctx context.Context, m *Meetup, now time.Time) error {
	m.CreatedAt = now
	m.UpdatedAt = now

	query := `
		INSERT INTO meetups (location_id, title, slug, meetup_date, meetup_time, venue, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		m.LocationID, m.Title, m.Slug, m.Date, startTime(m), m.Venue, m.Description,
		nullableID(m.CreatedBy), m.CreatedAt, m.UpdatedAt,
	).Scan(&m.ID)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return fmt.Errorf("meetup slug %q already exists: %w", m.Slug, outcome.ErrConflict)
		}
		return fmt.Errorf("failed to create meetup: %w", err)
	}
	return nil
}

// UpdateMeetup writes every editable field of m
func (s *Store) UpdateMeetup(ctx context.Context, m *Meetup, now time.Time) error {
	m.UpdatedAt = now

	query := `
		UPDATE meetups
		SET title = $1, slug = $2, meetup_date = $3, meetup_time = $4, venue = $5, description = $6, updated_at = $7
		WHERE id = $8
	`
	result, err := s.db.ExecContext(ctx, query,
		m.Title, m.Slug, m.Date, startTime(m), m.Venue, m.Description, m.UpdatedAt, m.ID,
	)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return fmt.Errorf("meetup slug %q already exists: %w", m.Slug, outcome.ErrConflict)
		}
		return fmt.Errorf("failed to update meetup: %w", err)
	}
	return requireAffected(result, outcome.NotFound("meetup", m.Slug))
}

// DeleteMeetup removes a meetup; RSVPs, support requests and comments cascade
func (s *Store) DeleteMeetup(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meetups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete meetup: %w", err)
	}
	return requireAffected(result, outcome.NotFound("meetup", key(id)))
}

// UpsertRsvp records a user's answer, replacing a previous one
func (s *Store) UpsertRsvp(ctx context.Context, r *Rsvp, now time.Time) error {
	query := `
		INSERT INTO rsvps (meetup_id, user_id, coming, plus_one, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (meetup_id, user_id)
		DO UPDATE SET coming = excluded.coming, plus_one = excluded.plus_one, updated_at = excluded.updated_at
		RETURNING id, created_at, updated_at
	`
	err := s.db.QueryRowContext(ctx, query, r.MeetupID, r.UserID, r.Coming, r.PlusOne, now).
		Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save rsvp: %w", err)
	}
	return nil
}

// Rsvps lists a meetup's answers by username
func (s *Store) Rsvps(ctx context.Context, meetupID int64) ([]Rsvp, error) {
	query := `
		SELECT r.id, r.meetup_id, r.user_id, u.username, r.coming, r.plus_one, r.created_at, r.updated_at
		FROM rsvps r
		JOIN users u ON u.id = r.user_id
		WHERE r.meetup_id = $1
		ORDER BY u.username ASC
	`
	rows, err := s.db.QueryContext(ctx, query, meetupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rsvps: %w", err)
	}
	defer rows.Close()

	rsvps := []Rsvp{}
	for rows.Next() {
		var r Rsvp
		if err := rows.Scan(&r.ID, &r.MeetupID, &r.UserID, &r.Username, &r.Coming, &r.PlusOne, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rsvp: %w", err)
		}
		rsvps = append(rsvps, r)
	}
	return rsvps, rows.Err()
}

const supportRequestQuery = `
	SELECT sr.id, sr.meetup_id, sr.volunteer_id, COALESCE(u.username, ''), sr.description, sr.is_approved, sr.created_at, sr.updated_at
	FROM support_requests sr
	LEFT JOIN users u ON u.id = sr.volunteer_id
`

func scanSupportRequest(row scanner) (*SupportRequest, error) {
	var (
		sr        SupportRequest
		volunteer sql.NullInt64
	)
	err := row.Scan(&sr.ID, &sr.MeetupID, &volunteer, &sr.VolunteerUsername, &sr.Description,
		&sr.IsApproved, &sr.CreatedAt, &sr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sr.VolunteerID = idPtr(volunteer)
	return &sr, nil
}

// GetSupportRequest retrieves a support request of a meetup
func (s *Store) GetSupportRequest(ctx context.Context, meetupID, id int64) (*SupportRequest, error) {
	row := s.db.QueryRowContext(ctx, supportRequestQuery+` WHERE sr.meetup_id = $1 AND sr.id = $2`, meetupID, id)
	sr, err := scanSupportRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("support request", key(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get support request: %w", err)
	}
	return sr, nil
}

// getSupportRequestInLocation retrieves a support request whose meetup
// belongs to the location
func (s *Store) getSupportRequestInLocation(ctx context.Context, locationID, id int64) (*SupportRequest, error) {
	row := s.db.QueryRowContext(ctx, supportRequestQuery+`
		JOIN meetups m ON m.id = sr.meetup_id
		WHERE m.location_id = $1 AND sr.id = $2
	`, locationID, id)
	sr, err := scanSupportRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("support request", key(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get support request: %w", err)
	}
	return sr, nil
}

// SupportRequests lists a meetup's support requests, oldest first
func (s *Store) SupportRequests(ctx context.Context, meetupID int64) ([]*SupportRequest, error) {
	rows, err := s.db.QueryContext(ctx, supportRequestQuery+`
		WHERE sr.meetup_id = $1
		ORDER BY sr.created_at ASC, sr.id ASC
	`, meetupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list support requests: %w", err)
	}
	defer rows.Close()

	requests := []*SupportRequest{}
	for rows.Next() {
		sr, err := scanSupportRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan support request: %w", err)
		}
		requests = append(requests, sr)
	}
	return requests, rows.Err()
}

// CreateSupportRequest stores a new, unapproved support request
func (s *Store) CreateSupportRequest(ctx context.Context, sr *SupportRequest, now time.Time) error {
	sr.CreatedAt = now
	sr.UpdatedAt = now
	sr.IsApproved = false

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO support_requests (meetup_id, volunteer_id, description, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, sr.MeetupID, nullableID(sr.VolunteerID), sr.Description, sr.IsApproved, sr.CreatedAt, sr.UpdatedAt).Scan(&sr.ID)
	if err != nil {
		return fmt.Errorf("failed to create support request: %w", err)
	}
	return nil
}

// UpdateSupportRequest changes a support request's description
func (s *Store) UpdateSupportRequest(ctx context.Context, sr *SupportRequest, now time.Time) error {
	sr.UpdatedAt = now
	result, err := s.db.ExecContext(ctx,
		`UPDATE support_requests SET description = $1, updated_at = $2 WHERE id = $3`,
		sr.Description, sr.UpdatedAt, sr.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update support request: %w", err)
	}
	return requireAffected(result, outcome.NotFound("support request", key(sr.ID)))
}

// ApproveSupportRequest marks a request approved and reports whether it
// was pending
func (s *Store) ApproveSupportRequest(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE support_requests SET is_approved = $1, updated_at = $2 WHERE id = $3 AND is_approved = $4`,
		true, now, id, false,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve support request: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteSupportRequest removes a support request and its comments
func (s *Store) DeleteSupportRequest(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM support_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete support request: %w", err)
	}
	return requireAffected(result, outcome.NotFound("support request", key(id)))
}

const commentQuery = `
	SELECT c.id, c.location_id, c.meetup_id, c.support_request_id, c.author_id, COALESCE(u.username, ''),
	       c.body, c.is_approved, c.created_at, c.updated_at
	FROM comments c
	LEFT JOIN users u ON u.id = c.author_id
`

func scanComment(row scanner) (*Comment, error) {
	var (
		c              Comment
		meetupID       sql.NullInt64
		supportRequest sql.NullInt64
		author         sql.NullInt64
	)
	err := row.Scan(&c.ID, &c.LocationID, &meetupID, &supportRequest, &author, &c.AuthorUsername,
		&c.Body, &c.IsApproved, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	switch {
	case meetupID.Valid:
		c.Target = MeetupTarget(meetupID.Int64)
	case supportRequest.Valid:
		c.Target = SupportRequestTarget(supportRequest.Int64)
	}
	c.AuthorID = idPtr(author)
	return &c, nil
}

// targetColumns splits a target into the meetup_id and support_request_id columns
func targetColumns(t Target) (meetupID, supportRequestID sql.NullInt64) {
	switch t.Kind {
	case TargetMeetup:
		meetupID = sql.NullInt64{Int64: t.ID, Valid: true}
	case TargetSupportRequest:
		supportRequestID = sql.NullInt64{Int64: t.ID, Valid: true}
	}
	return meetupID, supportRequestID
}

// GetComment retrieves a comment of a location
func (s *Store) GetComment(ctx context.Context, locationID, id int64) (*Comment, error) {
	row := s.db.QueryRowContext(ctx, commentQuery+` WHERE c.location_id = $1 AND c.id = $2`, locationID, id)
	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, outcome.NotFound("comment", key(id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// Comments lists the comments on a target, oldest first
func (s *Store) Comments(ctx context.Context, target Target) ([]*Comment, error) {
	column := "c.meetup_id"
	if target.Kind == TargetSupportRequest {
		column = "c.support_request_id"
	}

	rows, err := s.db.QueryContext(ctx, commentQuery+`
		WHERE `+column+` = $1
		ORDER BY c.created_at ASC, c.id ASC
	`, target.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// CreateComment stores a new comment
func (s *Store) CreateComment(ctx context.Context, c *Comment, now time.Time) error {
	c.CreatedAt = now
	c.UpdatedAt = now
	meetupID, supportRequestID := targetColumns(c.Target)

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO comments (location_id, meetup_id, support_request_id, author_id, body, is_approved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, c.LocationID, meetupID, supportRequestID, nullableID(c.AuthorID), c.Body, c.IsApproved, c.CreatedAt, c.UpdatedAt).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// UpdateComment changes a comment's body
func (s *Store) UpdateComment(ctx context.Context, c *Comment, now time.Time) error {
	c.UpdatedAt = now
	result, err := s.db.ExecContext(ctx,
		`UPDATE comments SET body = $1, updated_at = $2 WHERE id = $3`,
		c.Body, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	return requireAffected(result, outcome.NotFound("comment", key(c.ID)))
}

// ApproveComment marks a comment approved and reports whether it was pending
func (s *Store) ApproveComment(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE comments SET is_approved = $1, updated_at = $2 WHERE id = $3 AND is_approved = $4`,
		true, now, id, false,
	)
	if err != nil {
		return false, fmt.Errorf("failed to approve comment: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// DeleteComment removes a comment
func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return requireAffected(result, outcome.NotFound("comment", key(id)))
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

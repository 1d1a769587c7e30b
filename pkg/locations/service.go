package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// ActivitySource answers audit trail queries
type ActivitySource interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.AuditEvent, error)
}

// Service runs the location lifecycle and the membership role transitions.
// Every mutation runs in one transaction together with its group side
// effects; audit events, notices and guard cache invalidation follow the
// commit.
type Service struct {
	db          *sql.DB
	store       *Store
	users       *auth.Store
	groups      *rbac.Store
	provisioner *rbac.Provisioner
	checker     rbac.Checker

	audit    audit.Logger
	activity ActivitySource
	notices  *notifications.Emitter
	metrics  *observability.Metrics
	now      func() time.Time
}

// NewService creates a location service
func NewService(db *sql.DB, provisioner *rbac.Provisioner, checker rbac.Checker) *Service {
	return &Service{
		db:          db,
		store:       NewStore(db),
		users:       auth.NewStore(db),
		groups:      rbac.NewStore(db),
		provisioner: provisioner,
		checker:     checker,
		audit:       audit.NoOpLogger{},
		notices:     notifications.NewEmitter(nil, nil),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditLogger sets where transition events are recorded
func (s *Service) SetAuditLogger(logger audit.Logger) {
	s.audit = logger
}

// SetActivitySource enables the per-location activity listing
func (s *Service) SetActivitySource(source ActivitySource) {
	s.activity = source
}

// SetEmitter sets the notice emitter
func (s *Service) SetEmitter(emitter *notifications.Emitter) {
	s.notices = emitter
}

// SetMetrics enables transition metrics
func (s *Service) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetClock overrides the time source
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Store exposes the read side
func (s *Service) Store() *Store {
	return s.store
}

// operation carries what finish needs to report a transition
type operation struct {
	name     string
	event    audit.EventType
	actor    *auth.User
	loc      *Location
	target   *auth.User
	affected []int64
	span     trace.Span
	start    time.Time
}

func (s *Service) begin(ctx context.Context, name string, event audit.EventType, actor *auth.User, slug string) (context.Context, *operation) {
	ctx, span := observability.StartSpan(ctx, "locations."+name, attribute.String("location.slug", slug))
	return ctx, &operation{
		name:  name,
		event: event,
		actor: actor,
		span:  span,
		start: time.Now(),
	}
}

// finish records metrics, invalidates cached guard decisions of every user
// whose groups changed, writes the audit event and ends the span
func (s *Service) finish(ctx context.Context, op *operation, res *outcome.Result, err error) {
	label := OutcomeLabel(res, err)
	op.span.SetAttributes(attribute.String("outcome", label))

	if s.metrics != nil {
		s.metrics.RecordTransition(op.name, label, time.Since(op.start))
	}

	if err == nil && res != nil && res.Changed {
		affected := op.affected
		if op.target != nil {
			affected = append(affected, op.target.ID)
		}
		for _, userID := range affected {
			if ierr := s.checker.InvalidateCache(ctx, userID); ierr != nil {
				observability.FromContext(ctx).WithError(ierr).WithField("user_id", userID).
					Warn("failed to invalidate permission cache")
			}
		}
	}

	if op.loc != nil && (err == nil || errors.Is(err, rbac.ErrForbidden)) {
		s.record(ctx, op, res, err)
	}

	observability.EndSpan(op.span, err)
}

func (s *Service) record(ctx context.Context, op *operation, res *outcome.Result, err error) {
	status := audit.EventStatusSuccess
	switch {
	case err != nil:
		status = audit.EventStatusDenied
	case res.IsNoOp():
		status = audit.EventStatusNoOp
	}

	event := audit.NewEvent(ctx, op.event, status)
	if op.actor != nil {
		actorID := op.actor.ID
		event.ActorID = &actorID
		event.ActorUsername = op.actor.Username
	}
	locationID := op.loc.ID
	event.LocationID = &locationID
	event.LocationSlug = op.loc.Slug
	if op.target != nil {
		targetID := op.target.ID
		event.TargetUserID = &targetID
		event.TargetUsername = op.target.Username
	}
	if err != nil {
		event.Message = err.Error()
	} else {
		event.Message = res.Message
	}

	if lerr := s.audit.Log(ctx, event); lerr != nil {
		observability.FromContext(ctx).WithError(lerr).WithField("event_type", string(op.event)).
			Warn("failed to write audit event")
	}
}

// OutcomeLabel classifies a transition result for metrics and spans
func OutcomeLabel(res *outcome.Result, err error) string {
	switch {
	case err == nil && res.IsNoOp():
		return "noop"
	case err == nil:
		return "success"
	case errors.Is(err, rbac.ErrAuthenticationRequired):
		return "unauthenticated"
	case errors.Is(err, rbac.ErrForbidden):
		return "forbidden"
	case outcome.IsNotFound(err):
		return "not_found"
	case errors.Is(err, outcome.ErrValidation):
		return "invalid"
	case errors.Is(err, outcome.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

// authorize requires an authenticated actor, resolves the location and,
// when capability is set, checks it on that location
func (s *Service) authorize(ctx context.Context, op *operation, slug string, capability rbac.Capability) error {
	if err := rbac.Enforce(ctx, op.actor, rbac.RequireAuthenticated()); err != nil {
		return err
	}

	loc, err := s.store.GetLocationBySlug(ctx, slug)
	if err != nil {
		return err
	}
	op.loc = loc

	if capability == "" {
		return nil
	}
	return rbac.Enforce(ctx, op.actor, rbac.RequireCapability(s.checker, capability, rbac.LocationScope(loc.ID)))
}

// resolveTarget looks up the user a transition acts on
func (s *Service) resolveTarget(ctx context.Context, op *operation, username string) error {
	target, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return err
	}
	op.target = target
	return nil
}

func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) notice(op *operation, noticeType notifications.NoticeType, recipients []int64, format string, args ...interface{}) *notifications.Notice {
	n := notifications.NewNotice(noticeType, recipients, fmt.Sprintf(format, args...))
	n.LocationSlug = op.loc.Slug
	if op.actor != nil {
		actorID := op.actor.ID
		n.ActorID = &actorID
	}
	if op.target != nil {
		n.Data["username"] = op.target.Username
	}
	return n
}

// organizerIDs lists the organizers to notify, excluding the actor
func (s *Service) organizerIDs(ctx context.Context, op *operation) []int64 {
	organizers, err := s.store.OrganizersOf(ctx, op.loc.ID)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to list organizers for notice")
		return nil
	}

	ids := make([]int64, 0, len(organizers))
	for _, o := range organizers {
		if op.actor != nil && o.UserID == op.actor.ID {
			continue
		}
		ids = append(ids, o.UserID)
	}
	return ids
}

// GetLocation returns a location by slug
func (s *Service) GetLocation(ctx context.Context, slug string) (*Location, error) {
	return s.store.GetLocationBySlug(ctx, slug)
}

// ListLocations returns one page of locations
func (s *Service) ListLocations(ctx context.Context, page int) (*Page, error) {
	return s.store.ListLocations(ctx, page)
}

// Members lists a location's members with their organizer flag
func (s *Service) Members(ctx context.Context, slug string) ([]Member, error) {
	loc, err := s.store.GetLocationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.store.MembersOf(ctx, loc.ID)
}

// JoinRequests lists pending requests to actors who may approve them
func (s *Service) JoinRequests(ctx context.Context, actor *auth.User, slug string) ([]JoinRequest, error) {
	op := &operation{actor: actor}
	if err := s.authorize(ctx, op, slug, rbac.CapApproveJoinRequest); err != nil {
		return nil, err
	}
	return s.store.PendingRequestsOf(ctx, op.loc.ID)
}

// Activity returns a location's audit trail, newest first
func (s *Service) Activity(ctx context.Context, actor *auth.User, slug string, filter audit.SearchFilter) ([]*audit.AuditEvent, error) {
	op := &operation{actor: actor}
	if err := s.authorize(ctx, op, slug, rbac.CapChangeLocation); err != nil {
		return nil, err
	}
	if s.activity == nil {
		return []*audit.AuditEvent{}, nil
	}

	filter.LocationSlug = op.loc.Slug
	return s.activity.Search(ctx, filter)
}

// CreateLocation creates a location, provisions its groups and grants, and
// makes the actor its first organizer
func (s *Service) CreateLocation(ctx context.Context, actor *auth.User, input LocationInput) (loc *Location, err error) {
	ctx, op := s.begin(ctx, "create_location", audit.EventTypeLocationCreated, actor, input.Slug)
	var res *outcome.Result
	defer func() { s.finish(ctx, op, res, err) }()

	if err := rbac.Enforce(ctx, actor, rbac.RequireCapability(s.checker, rbac.CapAddLocation, nil)); err != nil {
		return nil, err
	}

	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	loc = &Location{}
	input.apply(loc)
	now := s.now()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertLocation(ctx, tx, loc, now); err != nil {
			return err
		}

		groups, err := s.provisioner.Provision(ctx, tx, loc.Ref())
		if err != nil {
			return err
		}

		if err := insertMember(ctx, tx, loc.ID, actor.ID, now); err != nil {
			return err
		}
		if err := insertOrganizer(ctx, tx, loc.ID, actor.ID, now); err != nil {
			return err
		}
		if err := s.groups.AddToGroup(ctx, tx, groups.Members, actor.ID); err != nil {
			return err
		}
		return s.groups.AddToGroup(ctx, tx, groups.Organizers, actor.ID)
	})
	if err != nil {
		return nil, err
	}

	op.loc = loc
	op.target = actor
	res = outcome.Success("Meetup location %s has been created.", loc.Name)
	return loc, nil
}

// UpdateLocation edits a location. Renaming it renames its groups.
func (s *Service) UpdateLocation(ctx context.Context, actor *auth.User, slug string, input LocationInput) (loc *Location, err error) {
	ctx, op := s.begin(ctx, "update_location", audit.EventTypeLocationUpdated, actor, slug)
	var res *outcome.Result
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, rbac.CapChangeLocation); err != nil {
		return nil, err
	}

	if input.Slug == "" {
		input.Slug = op.loc.Slug
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	oldName := op.loc.Name
	updated := *op.loc
	input.apply(&updated)

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := updateLocation(ctx, tx, &updated, s.now()); err != nil {
			return err
		}
		if updated.Name != oldName {
			return s.provisioner.Rename(ctx, tx, oldName, updated.Ref())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res = outcome.Success("Meetup location %s has been updated.", updated.Name)
	return &updated, nil
}

// DeleteLocation removes a location, its groups and everything it owns
func (s *Service) DeleteLocation(ctx context.Context, actor *auth.User, slug string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "delete_location", audit.EventTypeLocationDeleted, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.authorize(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, rbac.RequireCapability(s.checker, rbac.CapDeleteLocation, nil)); err != nil {
		return nil, err
	}

	affected, err := s.store.AffectedUsers(ctx, op.loc.ID)
	if err != nil {
		return nil, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.provisioner.Teardown(ctx, tx, op.loc.Ref()); err != nil {
			return err
		}
		return deleteLocation(ctx, tx, op.loc.ID)
	})
	if err != nil {
		return nil, err
	}

	op.affected = affected
	return outcome.Success("Meetup location %s has been deleted.", op.loc.Name), nil
}

package meetups

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
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// Service manages meetups, RSVPs, support requests and comments of
// meetup locations
type Service struct {
	store     *Store
	locations *locations.Store
	checker   rbac.Checker

	audit   audit.Logger
	notices *notifications.Emitter
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a meetup service
func NewService(db *sql.DB, checker rbac.Checker) *Service {
	return &Service{
		store:     NewStore(db),
		locations: locations.NewStore(db),
		checker:   checker,
		audit:     audit.NoOpLogger{},
		notices:   notifications.NewEmitter(nil, nil),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetAuditLogger sets where meetup events are recorded
func (s *Service) SetAuditLogger(logger audit.Logger) {
	s.audit = logger
}

// SetEmitter sets the notice emitter
func (s *Service) SetEmitter(emitter *notifications.Emitter) {
	s.notices = emitter
}

// SetMetrics enables operation metrics
func (s *Service) SetMetrics(metrics *observability.Metrics) {
	s.metrics = metrics
}

// SetClock overrides the time source used for validation and listings
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Store exposes the read side
func (s *Service) Store() *Store {
	return s.store
}

func (s *Service) today() string {
	return s.now().Format(DateLayout)
}

type operation struct {
	name   string
	event  audit.EventType
	actor  *auth.User
	loc    *locations.Location
	meetup *Meetup
	span   trace.Span
	start  time.Time
}

func (s *Service) begin(ctx context.Context, name string, event audit.EventType, actor *auth.User, slug string) (context.Context, *operation) {
	ctx, span := observability.StartSpan(ctx, "meetups."+name, attribute.String("location.slug", slug))
	return ctx, &operation{
		name:  name,
		event: event,
		actor: actor,
		span:  span,
		start: time.Now(),
	}
}

func (s *Service) finish(ctx context.Context, op *operation, res *outcome.Result, err error) {
	label := locations.OutcomeLabel(res, err)
	op.span.SetAttributes(attribute.String("outcome", label))

	if s.metrics != nil {
		s.metrics.RecordTransition(op.name, label, time.Since(op.start))
	}
	if op.event != "" && op.loc != nil && (err == nil || errors.Is(err, rbac.ErrForbidden)) {
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
	if op.meetup != nil {
		event.Metadata = map[string]interface{}{"meetup": op.meetup.Slug}
	}
	switch {
	case err != nil:
		event.Message = err.Error()
	case res != nil:
		event.Message = res.Message
	}

	if lerr := s.audit.Log(ctx, event); lerr != nil {
		observability.FromContext(ctx).WithError(lerr).WithField("event_type", string(op.event)).
			Warn("failed to write audit event")
	}
}

// resolve requires an authenticated actor and loads the location and,
// when meetupSlug is set, the meetup
func (s *Service) resolve(ctx context.Context, op *operation, slug, meetupSlug string) error {
	if err := rbac.Enforce(ctx, op.actor, rbac.RequireAuthenticated()); err != nil {
		return err
	}
	return s.load(ctx, op, slug, meetupSlug)
}

func (s *Service) load(ctx context.Context, op *operation, slug, meetupSlug string) error {
	loc, err := s.locations.GetLocationBySlug(ctx, slug)
	if err != nil {
		return err
	}
	op.loc = loc

	if meetupSlug == "" {
		return nil
	}
	m, err := s.store.GetMeetup(ctx, loc.ID, meetupSlug)
	if err != nil {
		return err
	}
	op.meetup = m
	return nil
}

func (s *Service) can(op *operation, capability rbac.Capability) rbac.Predicate {
	return rbac.RequireCapability(s.checker, capability, rbac.LocationScope(op.loc.ID))
}

// allowed reports whether a possibly anonymous actor holds capability,
// for filtering rather than guarding
func (s *Service) allowed(ctx context.Context, op *operation, capability rbac.Capability) (bool, error) {
	err := rbac.Enforce(ctx, op.actor, s.can(op, capability))
	if errors.Is(err, rbac.ErrAccessDenied) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) notice(op *operation, noticeType notifications.NoticeType, recipients []int64, format string, args ...interface{}) *notifications.Notice {
	n := notifications.NewNotice(noticeType, recipients, fmt.Sprintf(format, args...))
	n.LocationSlug = op.loc.Slug
	if op.actor != nil {
		actorID := op.actor.ID
		n.ActorID = &actorID
	}
	if op.meetup != nil {
		n.Data["meetup"] = op.meetup.Slug
	}
	return n
}

func excluding(members []locations.Member, actor *auth.User) []int64 {
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		if actor != nil && m.UserID == actor.ID {
			continue
		}
		ids = append(ids, m.UserID)
	}
	return ids
}

func (s *Service) memberIDs(ctx context.Context, op *operation) []int64 {
	members, err := s.locations.MembersOf(ctx, op.loc.ID)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to list members for notice")
		return nil
	}
	return excluding(members, op.actor)
}

func (s *Service) organizerIDs(ctx context.Context, op *operation) []int64 {
	organizers, err := s.locations.OrganizersOf(ctx, op.loc.ID)
	if err != nil {
		observability.FromContext(ctx).WithError(err).Warn("failed to list organizers for notice")
		return nil
	}
	return excluding(organizers, op.actor)
}

// UpcomingMeetups lists a location's meetups from today on
func (s *Service) UpcomingMeetups(ctx context.Context, slug string) ([]*Meetup, error) {
	loc, err := s.locations.GetLocationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.store.UpcomingMeetups(ctx, loc.ID, s.today())
}

// PastMeetups lists a location's meetups before today
func (s *Service) PastMeetups(ctx context.Context, slug string) ([]*Meetup, error) {
	loc, err := s.locations.GetLocationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.store.PastMeetups(ctx, loc.ID, s.today())
}

// GetMeetup returns a meetup of a location
func (s *Service) GetMeetup(ctx context.Context, slug, meetupSlug string) (*Meetup, error) {
	op := &operation{}
	if err := s.load(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	return op.meetup, nil
}

// CreateMeetup schedules a meetup and tells the location's members
func (s *Service) CreateMeetup(ctx context.Context, actor *auth.User, slug string, input MeetupInput) (m *Meetup, err error) {
	ctx, op := s.begin(ctx, "create_meetup", audit.EventTypeMeetupCreated, actor, slug)
	var res *outcome.Result
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, ""); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapAddMeetup)); err != nil {
		return nil, err
	}

	input.Normalize()
	if err := input.Validate(s.now()); err != nil {
		return nil, err
	}

	m = &Meetup{LocationID: op.loc.ID}
	input.apply(m)
	creator := actor.ID
	m.CreatedBy = &creator

	if err := s.store.CreateMeetup(ctx, m, s.now()); err != nil {
		return nil, err
	}
	op.meetup = m

	s.notices.Emit(ctx, s.notice(op, notifications.NoticeNewMeetup, s.memberIDs(ctx, op),
		"A new meetup %s has been scheduled at meetup location %s on %s.", m.Title, op.loc.Name, m.Date))
	res = outcome.Success("Meetup %s has been created.", m.Title)
	return m, nil
}

// UpdateMeetup edits a meetup. Its creator may always edit it.
func (s *Service) UpdateMeetup(ctx context.Context, actor *auth.User, slug, meetupSlug string, input MeetupInput) (m *Meetup, err error) {
	ctx, op := s.begin(ctx, "update_meetup", audit.EventTypeMeetupUpdated, actor, slug)
	var res *outcome.Result
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}

	guards := []rbac.Predicate{s.can(op, rbac.CapChangeMeetup)}
	if op.meetup.CreatedBy != nil {
		guards = append([]rbac.Predicate{rbac.RequireUser(*op.meetup.CreatedBy)}, guards...)
	}
	if err := rbac.Enforce(ctx, actor, rbac.AnyOf(guards...)); err != nil {
		return nil, err
	}

	if input.Slug == "" {
		input.Slug = op.meetup.Slug
	}
	input.Normalize()
	if err := input.Validate(s.now()); err != nil {
		return nil, err
	}

	updated := *op.meetup
	input.apply(&updated)
	if err := s.store.UpdateMeetup(ctx, &updated, s.now()); err != nil {
		return nil, err
	}
	op.meetup = &updated

	res = outcome.Success("Meetup %s has been updated.", updated.Title)
	return &updated, nil
}

// DeleteMeetup removes a meetup with its RSVPs, support requests and comments
func (s *Service) DeleteMeetup(ctx context.Context, actor *auth.User, slug, meetupSlug string) (res *outcome.Result, err error) {
	ctx, op := s.begin(ctx, "delete_meetup", audit.EventTypeMeetupDeleted, actor, slug)
	defer func() { s.finish(ctx, op, res, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapDeleteMeetup)); err != nil {
		return nil, err
	}

	if err := s.store.DeleteMeetup(ctx, op.meetup.ID); err != nil {
		return nil, err
	}
	return outcome.Success("Meetup %s has been deleted.", op.meetup.Title), nil
}

// Rsvps lists the answers for a meetup with their totals
func (s *Service) Rsvps(ctx context.Context, slug, meetupSlug string) ([]Rsvp, RsvpSummary, error) {
	op := &operation{}
	if err := s.load(ctx, op, slug, meetupSlug); err != nil {
		return nil, RsvpSummary{}, err
	}

	rsvps, err := s.store.Rsvps(ctx, op.meetup.ID)
	if err != nil {
		return nil, RsvpSummary{}, err
	}
	return rsvps, summarize(rsvps), nil
}

// SubmitRsvp records the actor's answer. Submitting again replaces it.
func (s *Service) SubmitRsvp(ctx context.Context, actor *auth.User, slug, meetupSlug string, input RsvpInput) (r *Rsvp, err error) {
	ctx, op := s.begin(ctx, "rsvp", "", actor, slug)
	defer func() { s.finish(ctx, op, nil, err) }()

	if err := s.resolve(ctx, op, slug, meetupSlug); err != nil {
		return nil, err
	}
	if err := rbac.Enforce(ctx, actor, s.can(op, rbac.CapAddRsvp)); err != nil {
		return nil, err
	}

	coming, plusOne := input.values()
	r = &Rsvp{
		MeetupID: op.meetup.ID,
		UserID:   actor.ID,
		Username: actor.Username,
		Coming:   coming,
		PlusOne:  plusOne,
	}
	if err := s.store.UpsertRsvp(ctx, r, s.now()); err != nil {
		return nil, err
	}
	return r, nil
}

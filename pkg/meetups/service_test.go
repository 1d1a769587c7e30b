package meetups

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
	"github.com/platinummonkey/meetup/pkg/storage/storagetest"
)

var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu      sync.Mutex
	notices []*notifications.Notice
}

func (p *recordingPublisher) Publish(ctx context.Context, n *notifications.Notice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
	return nil
}

func (p *recordingPublisher) ofType(t notifications.NoticeType) []*notifications.Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*notifications.Notice
	for _, n := range p.notices {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	db        *sql.DB
	svc       *Service
	locations *locations.Service
	audit     *audit.DBLogger
	publisher *recordingPublisher

	organizer *auth.User
	member    *auth.User
	outsider  *auth.User
	loc       *locations.Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := storagetest.NewDB(t)

	checker := rbac.NewPermissionChecker(db, rbac.CheckerConfig{})
	dbLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)
	publisher := &recordingPublisher{}

	svc := NewService(db, checker)
	svc.SetClock(func() time.Time { return fixedNow })
	svc.SetAuditLogger(dbLogger)
	svc.SetEmitter(notifications.NewEmitter(publisher, nil))

	f := &fixture{
		db:        db,
		svc:       svc,
		locations: locations.NewService(db, rbac.NewProvisioner(nil), checker),
		audit:     dbLogger,
		publisher: publisher,
	}

	f.organizer = f.user(t, "organizer")
	require.NoError(t, rbac.NewStore(db).GrantUser(ctx, f.organizer.ID, rbac.CapAddLocation))
	f.loc, err = f.locations.CreateLocation(ctx, f.organizer, locations.LocationInput{Name: "Foo Systers"})
	require.NoError(t, err)

	f.member = f.user(t, "member")
	f.join(t, f.loc, f.member)
	f.outsider = f.user(t, "outsider")

	return f
}

func (f *fixture) user(t *testing.T, username string) *auth.User {
	t.Helper()
	id := storagetest.CreateUser(t, f.db, username, false)
	return &auth.User{ID: id, Username: username, IsActive: true}
}

func (f *fixture) join(t *testing.T, loc *locations.Location, u *auth.User) {
	t.Helper()
	ctx := context.Background()
	_, err := f.locations.RequestJoin(ctx, u, loc.Slug)
	require.NoError(t, err)
	_, err = f.locations.ApproveJoin(ctx, f.organizer, loc.Slug, u.Username)
	require.NoError(t, err)
}

func (f *fixture) meetup(t *testing.T, title string) *Meetup {
	t.Helper()
	m, err := f.svc.CreateMeetup(context.Background(), f.organizer, f.loc.Slug, MeetupInput{
		Title: title,
		Date:  "2026-03-20",
		Time:  "18:30",
		Venue: "Community Hall",
	})
	require.NoError(t, err)
	return m
}

func TestMeetupInput_Validate(t *testing.T) {
	tests := []struct {
		name  string
		input MeetupInput
		field string
		msg   string
	}{
		{name: "tomorrow", input: MeetupInput{Title: "Foo", Date: "2026-03-11", Time: "08:00"}},
		{name: "today later", input: MeetupInput{Title: "Foo", Date: "2026-03-10", Time: "12:30"}},
		{name: "today without time", input: MeetupInput{Title: "Foo", Date: "2026-03-10"}},
		{name: "today single digit hour", input: MeetupInput{Title: "Foo", Date: "2026-03-10", Time: "9:30"},
			field: "time", msg: "Time should not be a time that has already passed."},
		{name: "yesterday", input: MeetupInput{Title: "Foo", Date: "2026-03-09"},
			field: "date", msg: "Date should not be less than today's date."},
		{name: "yesterday late", input: MeetupInput{Title: "Foo", Date: "2026-03-09", Time: "23:59"},
			field: "date", msg: "Date should not be less than today's date."},
		{name: "today earlier", input: MeetupInput{Title: "Foo", Date: "2026-03-10", Time: "11:59"},
			field: "time", msg: "Time should not be a time that has already passed."},
		{name: "missing title", input: MeetupInput{Date: "2026-03-11"},
			field: "title", msg: "This field is required."},
		{name: "long title", input: MeetupInput{Title: "A title that is far too long to fit in fifty characters", Slug: "ok", Date: "2026-03-11"},
			field: "title", msg: "Ensure this value has at most 50 characters."},
		{name: "missing date", input: MeetupInput{Title: "Foo"},
			field: "date", msg: "This field is required."},
		{name: "bad date", input: MeetupInput{Title: "Foo", Date: "10/03/2026"},
			field: "date", msg: "Enter a valid date."},
		{name: "bad time", input: MeetupInput{Title: "Foo", Date: "2026-03-11", Time: "25:00"},
			field: "time", msg: "Enter a valid time."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.input
			in.Normalize()
			err := in.Validate(fixedNow)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			verr, ok := outcome.AsValidationError(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.msg, verr.Fields[tt.field])
		})
	}
}

func TestMeetupInput_NormalizeDerivesSlug(t *testing.T) {
	in := MeetupInput{Title: "  Women in Tech: Spring Gathering and Lightning Talks  "}
	in.Normalize()
	assert.Equal(t, "Women in Tech: Spring Gathering and Lightning Talks", in.Title)
	assert.LessOrEqual(t, len(in.Slug), 50)
	assert.Regexp(t, `^women-in-tech-spring-gathering`, in.Slug)
	assert.NotRegexp(t, `-$`, in.Slug)
}

func TestCreateMeetup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	input := MeetupInput{Title: "Spring Social", Date: "2026-03-20"}

	_, err := f.svc.CreateMeetup(ctx, nil, f.loc.Slug, input)
	assert.ErrorIs(t, err, rbac.ErrAuthenticationRequired)

	_, err = f.svc.CreateMeetup(ctx, f.member, f.loc.Slug, input)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.CreateMeetup(ctx, f.organizer, "missing", input)
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.CreateMeetup(ctx, f.organizer, f.loc.Slug, MeetupInput{Title: "Late", Date: "2026-03-01"})
	_, ok := outcome.AsValidationError(err)
	assert.True(t, ok)

	m, err := f.svc.CreateMeetup(ctx, f.organizer, f.loc.Slug, input)
	require.NoError(t, err)
	assert.Equal(t, "spring-social", m.Slug)
	assert.Equal(t, f.loc.ID, m.LocationID)
	require.NotNil(t, m.CreatedBy)
	assert.Equal(t, f.organizer.ID, *m.CreatedBy)

	_, err = f.svc.CreateMeetup(ctx, f.organizer, f.loc.Slug, input)
	assert.ErrorIs(t, err, outcome.ErrConflict)

	notices := f.publisher.ofType(notifications.NoticeNewMeetup)
	require.Len(t, notices, 1)
	assert.Equal(t, []int64{f.member.ID}, notices[0].Recipients)
	assert.Equal(t, "spring-social", notices[0].Data["meetup"])

	events, err := f.audit.Search(ctx, audit.SearchFilter{
		LocationSlug: f.loc.Slug,
		EventTypes:   []audit.EventType{audit.EventTypeMeetupCreated},
	})
	require.NoError(t, err)
	statuses := make([]audit.EventStatus, 0, len(events))
	for _, e := range events {
		statuses = append(statuses, e.Status)
	}
	assert.ElementsMatch(t, []audit.EventStatus{audit.EventStatusSuccess, audit.EventStatusDenied}, statuses)
}

func TestMeetupsAreScopedToTheirLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")

	other, err := f.locations.CreateLocation(ctx, f.organizer, locations.LocationInput{Name: "Bar Systers"})
	require.NoError(t, err)

	_, err = f.svc.GetMeetup(ctx, other.Slug, m.Slug)
	assert.True(t, outcome.IsNotFound(err))

	got, err := f.svc.GetMeetup(ctx, f.loc.Slug, m.Slug)
	require.NoError(t, err)
	assert.Equal(t, "18:30", got.Time)
	assert.Equal(t, "Community Hall", got.Venue)
}

func TestUpcomingAndPastMeetups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, m := range []*Meetup{
		{Title: "Old", Slug: "old", Date: "2026-01-05"},
		{Title: "Older", Slug: "older", Date: "2025-12-01"},
		{Title: "Today", Slug: "today", Date: "2026-03-10", Time: "08:00"},
		{Title: "Later", Slug: "later", Date: "2026-04-01"},
		{Title: "Soon", Slug: "soon", Date: "2026-03-12"},
	} {
		m.LocationID = f.loc.ID
		require.NoError(t, f.svc.Store().CreateMeetup(ctx, m, fixedNow))
	}

	upcoming, err := f.svc.UpcomingMeetups(ctx, f.loc.Slug)
	require.NoError(t, err)
	assert.Equal(t, []string{"today", "soon", "later"}, slugs(upcoming))

	past, err := f.svc.PastMeetups(ctx, f.loc.Slug)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "older"}, slugs(past))

	_, err = f.svc.UpcomingMeetups(ctx, "missing")
	assert.True(t, outcome.IsNotFound(err))
}

func slugs(meetups []*Meetup) []string {
	out := make([]string, 0, len(meetups))
	for _, m := range meetups {
		out = append(out, m.Slug)
	}
	return out
}

func TestUpdateMeetup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	creator := f.user(t, "creator")
	f.join(t, f.loc, creator)
	_, err := f.locations.PromoteOrganizer(ctx, f.organizer, f.loc.Slug, "creator")
	require.NoError(t, err)

	m, err := f.svc.CreateMeetup(ctx, creator, f.loc.Slug, MeetupInput{Title: "Spring Social", Date: "2026-03-20"})
	require.NoError(t, err)

	_, err = f.locations.DemoteOrganizer(ctx, f.organizer, f.loc.Slug, "creator")
	require.NoError(t, err)

	updated, err := f.svc.UpdateMeetup(ctx, creator, f.loc.Slug, m.Slug, MeetupInput{Title: "Spring Social", Date: "2026-03-21", Venue: "Library"})
	require.NoError(t, err)
	assert.Equal(t, "spring-social", updated.Slug)
	assert.Equal(t, "2026-03-21", updated.Date)
	assert.Equal(t, "Library", updated.Venue)

	_, err = f.svc.UpdateMeetup(ctx, f.member, f.loc.Slug, m.Slug, MeetupInput{Title: "Nope", Date: "2026-03-21"})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.UpdateMeetup(ctx, f.organizer, f.loc.Slug, m.Slug, MeetupInput{Title: "Spring Social", Date: "2026-03-09"})
	verr, ok := outcome.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "Date should not be less than today's date.", verr.Fields["date"])

	renamed, err := f.svc.UpdateMeetup(ctx, f.organizer, f.loc.Slug, m.Slug, MeetupInput{Title: "Summer Social", Slug: "summer-social", Date: "2026-06-21"})
	require.NoError(t, err)
	assert.Equal(t, "summer-social", renamed.Slug)

	_, err = f.svc.GetMeetup(ctx, f.loc.Slug, "spring-social")
	assert.True(t, outcome.IsNotFound(err))
}

func TestDeleteMeetupCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")

	_, err := f.svc.SubmitRsvp(ctx, f.member, f.loc.Slug, m.Slug, RsvpInput{})
	require.NoError(t, err)
	sr, err := f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "I can help set up")
	require.NoError(t, err)
	_, err = f.svc.AddComment(ctx, f.member, f.loc.Slug, SupportRequestTarget(sr.ID), "Count me in")
	require.NoError(t, err)

	_, err = f.svc.DeleteMeetup(ctx, f.member, f.loc.Slug, m.Slug)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	res, err := f.svc.DeleteMeetup(ctx, f.organizer, f.loc.Slug, m.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Meetup Spring Social has been deleted.", res.Message)

	for _, table := range []string{"meetups", "rsvps", "support_requests", "comments"} {
		var n int
		require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestSubmitRsvpUpserts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")

	_, err := f.svc.SubmitRsvp(ctx, f.outsider, f.loc.Slug, m.Slug, RsvpInput{})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	first, err := f.svc.SubmitRsvp(ctx, f.member, f.loc.Slug, m.Slug, RsvpInput{})
	require.NoError(t, err)
	assert.True(t, first.Coming)
	assert.False(t, first.PlusOne)

	no, yes := false, true
	second, err := f.svc.SubmitRsvp(ctx, f.member, f.loc.Slug, m.Slug, RsvpInput{Coming: &yes, PlusOne: &yes})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	_, err = f.svc.SubmitRsvp(ctx, f.organizer, f.loc.Slug, m.Slug, RsvpInput{Coming: &no})
	require.NoError(t, err)

	rsvps, summary, err := f.svc.Rsvps(ctx, f.loc.Slug, m.Slug)
	require.NoError(t, err)
	require.Len(t, rsvps, 2)
	assert.Equal(t, "member", rsvps[0].Username)
	assert.True(t, rsvps[0].PlusOne)
	assert.Equal(t, RsvpSummary{Coming: 1, NotComing: 1, PlusOnes: 1, Attendees: 2}, summary)
}

func TestSupportRequestLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")
	other := f.user(t, "other")
	f.join(t, f.loc, other)

	_, err := f.svc.CreateSupportRequest(ctx, f.outsider, f.loc.Slug, m.Slug, "help")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "  ")
	_, ok := outcome.AsValidationError(err)
	assert.True(t, ok)

	sr, err := f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "I can bring snacks")
	require.NoError(t, err)
	assert.False(t, sr.IsApproved)

	notices := f.publisher.ofType(notifications.NoticeNewSupportRequest)
	require.Len(t, notices, 1)
	assert.Equal(t, []int64{f.organizer.ID}, notices[0].Recipients)

	visibleTo := func(u *auth.User) int {
		list, err := f.svc.SupportRequests(ctx, u, f.loc.Slug, m.Slug)
		require.NoError(t, err)
		return len(list)
	}
	assert.Equal(t, 1, visibleTo(f.member))
	assert.Equal(t, 1, visibleTo(f.organizer))
	assert.Equal(t, 0, visibleTo(other))
	assert.Equal(t, 0, visibleTo(nil))

	_, err = f.svc.GetSupportRequest(ctx, other, f.loc.Slug, m.Slug, sr.ID)
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.UpdateSupportRequest(ctx, other, f.loc.Slug, m.Slug, sr.ID, "mine now")
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	edited, err := f.svc.UpdateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, sr.ID, "I can bring snacks and drinks")
	require.NoError(t, err)
	assert.Equal(t, "I can bring snacks and drinks", edited.Description)

	_, err = f.svc.ApproveSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, sr.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	res, err := f.svc.ApproveSupportRequest(ctx, f.organizer, f.loc.Slug, m.Slug, sr.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, "The support request of member for meetup Spring Social has been approved.", res.Message)

	res, err = f.svc.ApproveSupportRequest(ctx, f.organizer, f.loc.Slug, m.Slug, sr.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, outcome.LevelWarning, res.Level)

	approved := f.publisher.ofType(notifications.NoticeSupportRequestApproved)
	require.Len(t, approved, 1)
	assert.Equal(t, []int64{f.member.ID}, approved[0].Recipients)

	assert.Equal(t, 1, visibleTo(other))
	assert.Equal(t, 1, visibleTo(nil))

	_, err = f.svc.ApproveSupportRequest(ctx, f.organizer, f.loc.Slug, m.Slug, 999)
	assert.True(t, outcome.IsNotFound(err))
}

func TestRejectAndDeleteSupportRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")

	first, err := f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "first")
	require.NoError(t, err)
	second, err := f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "second")
	require.NoError(t, err)

	res, err := f.svc.RejectSupportRequest(ctx, f.organizer, f.loc.Slug, m.Slug, first.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	_, err = f.svc.RejectSupportRequest(ctx, f.organizer, f.loc.Slug, m.Slug, first.ID)
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.DeleteSupportRequest(ctx, f.outsider, f.loc.Slug, m.Slug, second.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.DeleteSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, second.ID)
	require.NoError(t, err)

	list, err := f.svc.SupportRequests(ctx, f.organizer, f.loc.Slug, m.Slug)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestComments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")
	other := f.user(t, "other")
	f.join(t, f.loc, other)

	_, err := f.svc.AddComment(ctx, f.outsider, f.loc.Slug, MeetupTarget(m.ID), "hi")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.AddComment(ctx, f.member, f.loc.Slug, MeetupTarget(m.ID), "")
	_, ok := outcome.AsValidationError(err)
	assert.True(t, ok)

	_, err = f.svc.AddComment(ctx, f.member, f.loc.Slug, Target{Kind: "photo", ID: 1}, "hi")
	_, ok = outcome.AsValidationError(err)
	assert.True(t, ok)

	pending, err := f.svc.AddComment(ctx, f.member, f.loc.Slug, MeetupTarget(m.ID), "Looking forward to it")
	require.NoError(t, err)
	assert.False(t, pending.IsApproved)

	byOrganizer, err := f.svc.AddComment(ctx, f.organizer, f.loc.Slug, MeetupTarget(m.ID), "See you there")
	require.NoError(t, err)
	assert.True(t, byOrganizer.IsApproved)

	count := func(u *auth.User) int {
		list, err := f.svc.Comments(ctx, u, f.loc.Slug, MeetupTarget(m.ID))
		require.NoError(t, err)
		return len(list)
	}
	assert.Equal(t, 2, count(f.member))
	assert.Equal(t, 2, count(f.organizer))
	assert.Equal(t, 1, count(other))

	res, err := f.svc.ApproveComment(ctx, f.organizer, f.loc.Slug, pending.ID)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	res, err = f.svc.ApproveComment(ctx, f.organizer, f.loc.Slug, pending.ID)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, 2, count(other))

	_, err = f.svc.UpdateComment(ctx, other, f.loc.Slug, pending.ID, "edited")
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	edited, err := f.svc.UpdateComment(ctx, f.member, f.loc.Slug, pending.ID, "Really looking forward to it")
	require.NoError(t, err)
	assert.Equal(t, "Really looking forward to it", edited.Body)
	assert.Equal(t, MeetupTarget(m.ID), edited.Target)

	_, err = f.svc.DeleteComment(ctx, other, f.loc.Slug, pending.ID)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	_, err = f.svc.DeleteComment(ctx, f.organizer, f.loc.Slug, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count(f.organizer))
}

func TestCommentOnSupportRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")

	sr, err := f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "I can bring snacks")
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, f.member, f.loc.Slug, SupportRequestTarget(sr.ID), "Vegan options too")
	require.NoError(t, err)
	assert.Empty(t, f.publisher.ofType(notifications.NoticeSupportRequestComment))

	c, err := f.svc.AddComment(ctx, f.organizer, f.loc.Slug, SupportRequestTarget(sr.ID), "Thank you!")
	require.NoError(t, err)
	assert.Equal(t, SupportRequestTarget(sr.ID), c.Target)

	notices := f.publisher.ofType(notifications.NoticeSupportRequestComment)
	require.Len(t, notices, 1)
	assert.Equal(t, []int64{f.member.ID}, notices[0].Recipients)

	comments, err := f.svc.Comments(ctx, f.organizer, f.loc.Slug, SupportRequestTarget(sr.ID))
	require.NoError(t, err)
	assert.Len(t, comments, 2)

	meetupComments, err := f.svc.Comments(ctx, f.organizer, f.loc.Slug, MeetupTarget(m.ID))
	require.NoError(t, err)
	assert.Empty(t, meetupComments)
}

func TestCommentTargetFromAnotherLocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.meetup(t, "Spring Social")
	sr, err := f.svc.CreateSupportRequest(ctx, f.member, f.loc.Slug, m.Slug, "I can bring snacks")
	require.NoError(t, err)

	other, err := f.locations.CreateLocation(ctx, f.organizer, locations.LocationInput{Name: "Bar Systers"})
	require.NoError(t, err)

	_, err = f.svc.AddComment(ctx, f.organizer, other.Slug, SupportRequestTarget(sr.ID), "hi")
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.AddComment(ctx, f.organizer, other.Slug, MeetupTarget(m.ID), "hi")
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.Comments(ctx, f.organizer, other.Slug, MeetupTarget(m.ID))
	assert.True(t, outcome.IsNotFound(err))

	c, err := f.svc.AddComment(ctx, f.organizer, f.loc.Slug, MeetupTarget(m.ID), "hi")
	require.NoError(t, err)
	_, err = f.svc.DeleteComment(ctx, f.organizer, other.Slug, c.ID)
	assert.True(t, outcome.IsNotFound(err))
}

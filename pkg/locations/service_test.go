package locations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
	"github.com/platinummonkey/meetup/pkg/storage/storagetest"
)

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
	checker   *rbac.PermissionChecker
	groups    *rbac.Store
	audit     *audit.DBLogger
	publisher *recordingPublisher
	metrics   *observability.Metrics

	admin *auth.User
	loc   *Location
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := storagetest.NewDB(t)

	checker := rbac.NewPermissionChecker(db, rbac.DefaultCheckerConfig())
	svc := NewService(db, rbac.NewProvisioner(nil), checker)

	dbLogger, err := audit.NewDBLogger(db)
	require.NoError(t, err)
	svc.SetAuditLogger(dbLogger)
	svc.SetActivitySource(dbLogger)

	publisher := &recordingPublisher{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	svc.SetEmitter(notifications.NewEmitter(publisher, metrics))
	svc.SetMetrics(metrics)

	f := &fixture{
		db:        db,
		svc:       svc,
		checker:   checker,
		groups:    rbac.NewStore(db),
		audit:     dbLogger,
		publisher: publisher,
		metrics:   metrics,
	}

	f.admin = f.user(t, "admin")
	require.NoError(t, f.groups.GrantUser(ctx, f.admin.ID, rbac.CapAddLocation))
	require.NoError(t, f.groups.GrantUser(ctx, f.admin.ID, rbac.CapDeleteLocation))

	f.loc, err = svc.CreateLocation(ctx, f.admin, LocationInput{Name: "Foo Systers", City: "Foo"})
	require.NoError(t, err)

	return f
}

func (f *fixture) user(t *testing.T, username string) *auth.User {
	t.Helper()
	id := storagetest.CreateUser(t, f.db, username, false)
	return &auth.User{ID: id, Username: username, IsActive: true}
}

func (f *fixture) state(t *testing.T, u *auth.User) MembershipState {
	t.Helper()
	state, err := f.svc.Store().StateOf(context.Background(), f.loc.ID, u.ID)
	require.NoError(t, err)
	return state
}

func (f *fixture) usernames(t *testing.T, members []Member) []string {
	t.Helper()
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.Username)
	}
	return names
}

func (f *fixture) organizers(t *testing.T) []string {
	t.Helper()
	organizers, err := f.svc.Store().OrganizersOf(context.Background(), f.loc.ID)
	require.NoError(t, err)
	return f.usernames(t, organizers)
}

func (f *fixture) members(t *testing.T) []string {
	t.Helper()
	members, err := f.svc.Store().MembersOf(context.Background(), f.loc.ID)
	require.NoError(t, err)
	return f.usernames(t, members)
}

func (f *fixture) pending(t *testing.T) []string {
	t.Helper()
	requests, err := f.svc.Store().PendingRequestsOf(context.Background(), f.loc.ID)
	require.NoError(t, err)
	names := make([]string, 0, len(requests))
	for _, r := range requests {
		names = append(names, r.Username)
	}
	return names
}

func (f *fixture) inGroup(t *testing.T, group string, u *auth.User) bool {
	t.Helper()
	ids, err := f.groups.GroupMembers(context.Background(), group)
	require.NoError(t, err)
	for _, id := range ids {
		if id == u.ID {
			return true
		}
	}
	return false
}

func (f *fixture) can(t *testing.T, u *auth.User, c rbac.Capability) bool {
	t.Helper()
	result, err := f.checker.CheckPermission(context.Background(), rbac.PermissionCheck{
		Actor:      u,
		Capability: c,
		LocationID: rbac.LocationScope(f.loc.ID),
	})
	require.NoError(t, err)
	return result.Allowed
}

// join puts u through RequestJoin and ApproveJoin
func (f *fixture) join(t *testing.T, u *auth.User) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.RequestJoin(ctx, u, f.loc.Slug)
	require.NoError(t, err)
	_, err = f.svc.ApproveJoin(ctx, f.admin, f.loc.Slug, u.Username)
	require.NoError(t, err)
}

func assertSuccess(t *testing.T, res *outcome.Result, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, outcome.LevelSuccess, res.Level)
	assert.True(t, res.Changed)
}

func assertWarning(t *testing.T, res *outcome.Result, err error, message string) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, outcome.LevelWarning, res.Level)
	assert.False(t, res.Changed)
	assert.Equal(t, message, res.Message)
}

func TestCreateLocationProvisionsGroupsAndCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, "foo-systers", f.loc.Slug)
	assert.Equal(t, StateOrganizer, f.state(t, f.admin))
	assert.Equal(t, []string{"admin"}, f.organizers(t))
	assert.Equal(t, []string{"admin"}, f.members(t))

	table := rbac.DefaultPermissionTable()
	names := rbac.GroupNamesFor("Foo Systers")
	for _, role := range rbac.AllRoles {
		grants, err := f.groups.GroupGrants(ctx, names.For(role))
		require.NoError(t, err)

		var got []string
		for _, g := range grants {
			assert.Equal(t, f.loc.ID, g.LocationID)
			got = append(got, string(g.Capability))
		}
		var want []string
		for _, c := range table.Capabilities(role) {
			want = append(want, string(c))
		}
		sort.Strings(got)
		sort.Strings(want)
		assert.Equal(t, want, got, role)
	}

	assert.True(t, f.inGroup(t, names.Organizers, f.admin))
	assert.True(t, f.inGroup(t, names.Members, f.admin))
	assert.True(t, f.can(t, f.admin, rbac.CapApproveJoinRequest))
}

func TestCreateLocationGuardsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateLocation(ctx, nil, LocationInput{Name: "Bar"})
	assert.ErrorIs(t, err, rbac.ErrAuthenticationRequired)

	_, err = f.svc.CreateLocation(ctx, f.user(t, "nobody"), LocationInput{Name: "Bar"})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.CreateLocation(ctx, f.admin, LocationInput{Name: "   "})
	verr, ok := outcome.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "name")

	_, err = f.svc.CreateLocation(ctx, f.admin, LocationInput{Name: "Bar", Email: "not-an-email"})
	verr, ok = outcome.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "email")

	_, err = f.svc.CreateLocation(ctx, f.admin, LocationInput{Name: "Foo Systers"})
	assert.ErrorIs(t, err, outcome.ErrConflict)

	root := &auth.User{ID: storagetest.CreateUser(t, f.db, "root", true), Username: "root", IsActive: true, IsSuperuser: true}
	loc, err := f.svc.CreateLocation(ctx, root, LocationInput{Name: "Bar Systers", Slug: "bar"})
	require.NoError(t, err)
	assert.Equal(t, "bar", loc.Slug)
}

func TestDeleteLocationTearsDownOnlyItsGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other, err := f.svc.CreateLocation(ctx, f.admin, LocationInput{Name: "Bar Systers"})
	require.NoError(t, err)

	member := f.user(t, "member")
	f.join(t, member)
	require.True(t, f.can(t, member, rbac.CapAddRsvp))

	_, err = f.svc.DeleteLocation(ctx, member, f.loc.Slug)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	res, err := f.svc.DeleteLocation(ctx, f.admin, f.loc.Slug)
	assertSuccess(t, res, err)

	_, err = f.svc.GetLocation(ctx, f.loc.Slug)
	assert.True(t, outcome.IsNotFound(err))

	for _, name := range rbac.GroupNamesFor("Foo Systers").All() {
		group, err := f.groups.GetGroup(ctx, name)
		require.NoError(t, err)
		assert.Nil(t, group, name)
	}
	for _, name := range other.Groups().All() {
		group, err := f.groups.GetGroup(ctx, name)
		require.NoError(t, err)
		assert.NotNil(t, group, name)
	}

	assert.False(t, f.can(t, member, rbac.CapAddRsvp))
}

func TestUpdateLocationRenamesGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	member := f.user(t, "member")
	f.join(t, member)

	_, err := f.svc.UpdateLocation(ctx, member, f.loc.Slug, LocationInput{Name: "Nope"})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	updated, err := f.svc.UpdateLocation(ctx, f.admin, f.loc.Slug, LocationInput{Name: "Foo Women", Description: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Foo Women", updated.Name)
	assert.Equal(t, "foo-systers", updated.Slug)
	assert.Equal(t, "renamed", updated.Description)

	group, err := f.groups.GetGroup(ctx, "Foo Systers Members")
	require.NoError(t, err)
	assert.Nil(t, group)

	assert.True(t, f.inGroup(t, "Foo Women Members", member))
	assert.True(t, f.inGroup(t, "Foo Women Organizers", f.admin))
	assert.True(t, f.can(t, f.admin, rbac.CapChangeLocation))
}

func TestLocationNameTooLongForGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("a", rbac.MaxLocationNameLength+1)

	_, err := f.svc.CreateLocation(ctx, f.admin, LocationInput{Name: long, Slug: "long"})
	verr, ok := outcome.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "name")

	_, err = f.svc.UpdateLocation(ctx, f.admin, f.loc.Slug, LocationInput{Name: long})
	verr, ok = outcome.AsValidationError(err)
	require.True(t, ok)
	assert.Contains(t, verr.Fields, "name")

	// groups keep their old names
	assert.True(t, f.inGroup(t, "Foo Systers Organizers", f.admin))

	loc, err := f.svc.CreateLocation(ctx, f.admin, LocationInput{Name: long[1:], Slug: "long"})
	require.NoError(t, err)
	assert.True(t, f.inGroup(t, long[1:]+" Organizers", f.admin))
	assert.Equal(t, "long", loc.Slug)
}

func TestRequestJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.svc.RequestJoin(ctx, nil, f.loc.Slug)
	assert.ErrorIs(t, err, rbac.ErrAuthenticationRequired)

	_, err = f.svc.RequestJoin(ctx, alice, "missing")
	assert.True(t, outcome.IsNotFound(err))

	res, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	assertSuccess(t, res, err)
	assert.Equal(t, "Your request to join meetup location Foo Systers has been sent.", res.Message)
	assert.Equal(t, StatePending, f.state(t, alice))
	assert.True(t, f.inGroup(t, f.loc.Groups().Applicants, alice))

	res, err = f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	assertWarning(t, res, err, "You have already requested to join meetup location Foo Systers.")
	assert.Equal(t, []string{"alice"}, f.pending(t))

	res, err = f.svc.RequestJoin(ctx, f.admin, f.loc.Slug)
	assertWarning(t, res, err, "You are already a member of meetup location Foo Systers.")
	assert.Equal(t, []string{"alice"}, f.pending(t))

	notices := f.publisher.ofType(notifications.NoticeNewJoinRequest)
	require.Len(t, notices, 1)
	assert.Equal(t, []int64{f.admin.ID}, notices[0].Recipients)
	assert.Equal(t, "foo-systers", notices[0].LocationSlug)
}

func TestPendingRequestsOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, name := range []string{"carol", "alice", "bob"} {
		_, err := f.svc.RequestJoin(ctx, f.user(t, name), f.loc.Slug)
		require.NoError(t, err)
	}

	requests, err := f.svc.JoinRequests(ctx, f.admin, f.loc.Slug)
	require.NoError(t, err)
	require.Len(t, requests, 3)
	assert.Equal(t, []string{"carol", "alice", "bob"}, f.pending(t))
}

func TestApproveThenRejectReportsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)
	assert.False(t, f.can(t, alice, rbac.CapAddRsvp))

	res, err := f.svc.ApproveJoin(ctx, f.admin, f.loc.Slug, "alice")
	assertSuccess(t, res, err)

	_, err = f.svc.RejectJoin(ctx, f.admin, f.loc.Slug, "alice")
	require.Error(t, err)
	assert.True(t, outcome.IsNotFound(err))
	assert.Contains(t, err.Error(), "join request")

	assert.Equal(t, StateMember, f.state(t, alice))
	assert.Empty(t, f.pending(t))
	assert.ElementsMatch(t, []string{"admin", "alice"}, f.members(t))

	groups := f.loc.Groups()
	assert.False(t, f.inGroup(t, groups.Applicants, alice))
	assert.True(t, f.inGroup(t, groups.Members, alice))

	// the cached denial from before the approval must not survive it
	assert.True(t, f.can(t, alice, rbac.CapAddRsvp))

	notices := f.publisher.ofType(notifications.NoticeJoinedLocation)
	require.Len(t, notices, 1)
	assert.Equal(t, []int64{alice.ID}, notices[0].Recipients)
}

func TestApproveJoinGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.join(t, bob)

	_, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)

	_, err = f.svc.ApproveJoin(ctx, nil, f.loc.Slug, "alice")
	assert.ErrorIs(t, err, rbac.ErrAuthenticationRequired)

	_, err = f.svc.ApproveJoin(ctx, bob, f.loc.Slug, "alice")
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	assert.False(t, outcome.IsNotFound(err))

	_, err = f.svc.ApproveJoin(ctx, f.admin, "missing", "alice")
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.ApproveJoin(ctx, f.admin, f.loc.Slug, "ghost")
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.ApproveJoin(ctx, f.admin, f.loc.Slug, "bob")
	assert.True(t, outcome.IsNotFound(err))

	assert.Equal(t, StatePending, f.state(t, alice))
}

func TestConcurrentApprovalsSucceedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	_, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)

	const workers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApproveJoin(ctx, f.admin, f.loc.Slug, "alice")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case outcome.IsNotFound(err):
				notFound++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, notFound)
	assert.Equal(t, StateMember, f.state(t, alice))
}

func TestRejectJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)

	res, err := f.svc.RejectJoin(ctx, f.admin, f.loc.Slug, "alice")
	assertSuccess(t, res, err)

	assert.Equal(t, StateNone, f.state(t, alice))
	assert.False(t, f.inGroup(t, f.loc.Groups().Applicants, alice))
	assert.Equal(t, []string{"admin"}, f.members(t))

	res, err = f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	assertSuccess(t, res, err)
}

func TestWithdrawJoin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.svc.WithdrawJoin(ctx, alice, f.loc.Slug)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)

	res, err := f.svc.WithdrawJoin(ctx, alice, f.loc.Slug)
	assertSuccess(t, res, err)
	assert.Equal(t, StateNone, f.state(t, alice))
	assert.False(t, f.can(t, alice, rbac.CapWithdrawJoinRequest))
}

func TestAddMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")

	_, err := f.svc.AddMember(ctx, f.admin, f.loc.Slug, "ghost")
	assert.True(t, outcome.IsNotFound(err))

	_, err = f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)

	res, err := f.svc.AddMember(ctx, f.admin, f.loc.Slug, "alice")
	assertSuccess(t, res, err)
	assert.Equal(t, StateMember, f.state(t, alice))
	assert.Empty(t, f.pending(t))
	assert.False(t, f.inGroup(t, f.loc.Groups().Applicants, alice))

	res, err = f.svc.AddMember(ctx, f.admin, f.loc.Slug, "bob")
	assertSuccess(t, res, err)
	assert.Equal(t, StateMember, f.state(t, bob))

	res, err = f.svc.AddMember(ctx, f.admin, f.loc.Slug, "bob")
	assertWarning(t, res, err, "bob is already a member of meetup location Foo Systers.")

	_, err = f.svc.AddMember(ctx, bob, f.loc.Slug, "carol")
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestRemoveMemberScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.user(t, "b")
	f.join(t, b)

	res, err := f.svc.RemoveMember(ctx, f.admin, f.loc.Slug, "b")
	assertSuccess(t, res, err)
	assert.Equal(t, []string{"admin"}, f.members(t))
	assert.Equal(t, []string{"admin"}, f.organizers(t))
	assert.False(t, f.inGroup(t, f.loc.Groups().Members, b))

	res, err = f.svc.RemoveMember(ctx, f.admin, f.loc.Slug, "admin")
	assertWarning(t, res, err, "admin is the only organizer of meetup location Foo Systers and cannot be removed.")
	assert.Equal(t, []string{"admin"}, f.members(t))
	assert.Equal(t, []string{"admin"}, f.organizers(t))

	res, err = f.svc.RemoveMember(ctx, f.admin, f.loc.Slug, "b")
	assertWarning(t, res, err, "b is not a member of meetup location Foo Systers.")
}

func TestRemoveMemberDropsOrganizerStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.user(t, "b")
	f.join(t, b)
	_, err := f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, "b")
	require.NoError(t, err)

	res, err := f.svc.RemoveMember(ctx, b, f.loc.Slug, "admin")
	assertSuccess(t, res, err)

	assert.Equal(t, StateNone, f.state(t, f.admin))
	assert.Equal(t, []string{"b"}, f.organizers(t))
	assert.False(t, f.inGroup(t, f.loc.Groups().Organizers, f.admin))
	assert.False(t, f.can(t, f.admin, rbac.CapAddMeetup))
}

func TestPromoteOrganizer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")
	bob := f.user(t, "bob")
	f.join(t, bob)

	res, err := f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, "alice")
	assertWarning(t, res, err, "alice is not a member of meetup location Foo Systers.")
	assert.NotContains(t, f.organizers(t), "alice")
	assert.Equal(t, StateNone, f.state(t, alice))

	assert.False(t, f.can(t, bob, rbac.CapAddMeetup))

	res, err = f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, "bob")
	assertSuccess(t, res, err)
	assert.ElementsMatch(t, []string{"admin", "bob"}, f.organizers(t))
	assert.True(t, f.can(t, bob, rbac.CapAddMeetup))

	res, err = f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, "bob")
	assertWarning(t, res, err, "bob is already an organizer of meetup location Foo Systers.")
	assert.ElementsMatch(t, []string{"admin", "bob"}, f.organizers(t))

	notices := f.publisher.ofType(notifications.NoticeMadeOrganizer)
	require.Len(t, notices, 1)
	assert.Equal(t, []int64{bob.ID}, notices[0].Recipients)
}

func TestDemoteOrganizer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.user(t, "bob")
	f.join(t, bob)

	res, err := f.svc.DemoteOrganizer(ctx, f.admin, f.loc.Slug, "admin")
	assertWarning(t, res, err, "admin is the only organizer of meetup location Foo Systers.")

	res, err = f.svc.DemoteOrganizer(ctx, f.admin, f.loc.Slug, "bob")
	assertWarning(t, res, err, "bob is not an organizer of meetup location Foo Systers.")

	_, err = f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, "bob")
	require.NoError(t, err)

	res, err = f.svc.DemoteOrganizer(ctx, bob, f.loc.Slug, "admin")
	assertSuccess(t, res, err)
	assert.Equal(t, StateMember, f.state(t, f.admin))
	assert.Equal(t, []string{"bob"}, f.organizers(t))
	assert.ElementsMatch(t, []string{"admin", "bob"}, f.members(t))

	_, err = f.svc.DemoteOrganizer(ctx, f.admin, f.loc.Slug, "bob")
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestOrganizerSetNeverEmpties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users := []*auth.User{f.admin}
	for i := 0; i < 3; i++ {
		u := f.user(t, fmt.Sprintf("user%d", i))
		f.join(t, u)
		_, err := f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, u.Username)
		require.NoError(t, err)
		users = append(users, u)
	}

	root := &auth.User{ID: storagetest.CreateUser(t, f.db, "root", true), Username: "root", IsActive: true, IsSuperuser: true}
	for round := 0; round < 2; round++ {
		for i, u := range users {
			var err error
			if (i+round)%2 == 0 {
				_, err = f.svc.DemoteOrganizer(ctx, root, f.loc.Slug, u.Username)
			} else {
				_, err = f.svc.RemoveMember(ctx, root, f.loc.Slug, u.Username)
			}
			require.NoError(t, err)
			assert.NotEmpty(t, f.organizers(t))
		}
	}
	assert.Len(t, f.organizers(t), 1)
}

func TestPendingAndMembersStayDisjoint(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	steps := []func() error{
		func() error { _, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug); return err },
		func() error { _, err := f.svc.AddMember(ctx, f.admin, f.loc.Slug, "alice"); return err },
		func() error { _, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug); return err },
		func() error { _, err := f.svc.RemoveMember(ctx, f.admin, f.loc.Slug, "alice"); return err },
		func() error { _, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug); return err },
		func() error { _, err := f.svc.ApproveJoin(ctx, f.admin, f.loc.Slug, "alice"); return err },
	}

	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		pending := f.pending(t)
		for _, m := range f.members(t) {
			assert.NotContains(t, pending, m, "step %d", i)
		}
	}
}

func TestTransitionsAreAudited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	_, err := f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)
	_, err = f.svc.RequestJoin(ctx, alice, f.loc.Slug)
	require.NoError(t, err)
	_, err = f.svc.ApproveJoin(ctx, alice, f.loc.Slug, "alice")
	require.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = f.svc.Activity(ctx, alice, f.loc.Slug, audit.SearchFilter{})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	events, err := f.svc.Activity(ctx, f.admin, f.loc.Slug, audit.SearchFilter{})
	require.NoError(t, err)
	require.Len(t, events, 4)

	// newest first
	assert.Equal(t, audit.EventTypeJoinApproved, events[0].EventType)
	assert.Equal(t, audit.EventStatusDenied, events[0].Status)
	assert.Equal(t, audit.EventTypeJoinRequested, events[1].EventType)
	assert.Equal(t, audit.EventStatusNoOp, events[1].Status)
	assert.Equal(t, audit.EventStatusSuccess, events[2].Status)
	assert.Equal(t, "alice", events[2].TargetUsername)
	assert.Equal(t, audit.EventTypeLocationCreated, events[3].EventType)
}

func TestTransitionsAreMeasured(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.PromoteOrganizer(ctx, f.admin, f.loc.Slug, "admin")
	require.NoError(t, err)
	_, err = f.svc.PromoteOrganizer(ctx, nil, f.loc.Slug, "admin")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TransitionsTotal.WithLabelValues("promote_organizer", "noop")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TransitionsTotal.WithLabelValues("promote_organizer", "unauthenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TransitionsTotal.WithLabelValues("create_location", "success")))
}

func TestOutcomeLabel(t *testing.T) {
	tests := []struct {
		res  *outcome.Result
		err  error
		want string
	}{
		{outcome.Success("ok"), nil, "success"},
		{outcome.Warning("no"), nil, "noop"},
		{nil, rbac.ErrAuthenticationRequired, "unauthenticated"},
		{nil, fmt.Errorf("%w: nope", rbac.ErrForbidden), "forbidden"},
		{nil, outcome.NotFound("user", "x"), "not_found"},
		{nil, outcome.NewValidationError(), "invalid"},
		{nil, fmt.Errorf("dup: %w", outcome.ErrConflict), "conflict"},
		{nil, errors.New("db down"), "error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OutcomeLabel(tt.res, tt.err))
	}
}

// Package rbac provides capability-based access control for meetup locations.
//
// # Overview
//
// Access is expressed as named capabilities such as "add_meetup" or
// "approve_meetup_location_joinrequest". A capability is held either
// unscoped (model-level, granted to a user directly) or scoped to one
// location (object-level, granted to a group the user belongs to).
//
// The package has four parts:
//
//  1. PermissionTable: an immutable role -> capability mapping
//  2. Provisioner: creates, renames and deletes the groups of each location
//  3. Store: group membership and user-level grants
//  4. PermissionChecker and guard predicates: request-time authorization
//
// # Location Groups
//
// Every location owns three groups derived from its name:
//
//	Foo Systers Organizers
//	Foo Systers Members
//	Foo Systers Applicants
//
// Provision creates them when missing and applies the table's grants scoped
// to the location. It is idempotent and also removes grants that are no
// longer in the table, so a group's grants always equal the table entry for
// its role:
//
//	names, err := provisioner.Provision(ctx, tx, rbac.LocationRef{ID: loc.ID, Name: loc.Name})
//
// Teardown deletes the three groups; missing groups are not an error.
//
// # Permission Table
//
// The default table grants organizers full control over the location, members
// the right to RSVP, request support and comment, and applicants the right to
// withdraw their own join request. A YAML file can replace it at startup:
//
//	roles:
//	  organizer: [add_meetup, change_meetup, delete_meetup]
//	  member: [add_meetup_rsvp]
//	  applicant: [withdraw_meetup_location_joinrequest]
//
//	table, err := rbac.LoadPermissionTable("/etc/meetup/permissions.yaml")
//
// # Permission Checking
//
//	checker := rbac.NewPermissionChecker(db, rbac.DefaultCheckerConfig())
//	result, err := checker.CheckPermission(ctx, rbac.PermissionCheck{
//		Actor:      user,
//		Capability: rbac.CapApproveJoinRequest,
//		LocationID: rbac.LocationScope(loc.ID),
//	})
//
// Superusers are always allowed. Anonymous or inactive actors never are.
// Decisions are cached in an expiring LRU and concurrent identical lookups
// share one query. Call InvalidateCache after changing a user's groups.
// Processes sharing a database share invalidations over Redis:
//
//	bus := rbac.NewRedisInvalidationBus(client, rbac.DefaultInvalidationChannel)
//	checker.SetInvalidationBus(bus)
//	err := bus.Listen(ctx, checker)
//
// # Guards
//
// Operations run an ordered list of predicates before their body. The first
// failure wins:
//
//	err := rbac.Enforce(ctx, actor,
//		rbac.RequireAuthenticated(),
//		rbac.AnyOf(
//			rbac.RequireUser(meetup.CreatedBy),
//			rbac.RequireCapability(checker, rbac.CapChangeMeetup, rbac.LocationScope(loc.ID)),
//		),
//	)
//
// Denials wrap ErrAccessDenied. ErrAuthenticationRequired and ErrForbidden
// distinguish a missing actor from a missing capability.
package rbac

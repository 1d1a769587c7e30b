// Package locations owns meetup locations and the membership lifecycle of
// their users.
//
// A user's relationship to a location is one of four states, derived from
// the membership tables:
//
//	NONE --RequestJoin--> PENDING --ApproveJoin--> MEMBER --PromoteOrganizer--> ORGANIZER
//	                      PENDING --RejectJoin/WithdrawJoin--> NONE
//	NONE/PENDING --AddMember--> MEMBER --RemoveMember--> NONE
//	ORGANIZER --DemoteOrganizer--> MEMBER
//
// Every location has three authorization groups (Organizers, Members,
// Applicants) provisioned by rbac.Provisioner. Transitions update the
// membership tables and group memberships in one transaction and take the
// location row lock first when they depend on the organizer count, so a
// location always keeps at least one organizer.
//
// Operations that complete without changing anything because a business
// rule forbids it return a warning outcome.Result rather than an error.
package locations

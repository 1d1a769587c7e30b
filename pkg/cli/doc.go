// Package cli implements meetup-admin, the operator tool for user accounts,
// API tokens, site-wide grants and role group maintenance.
//
// Commands talk to the database directly and need no running server.
//
//	meetup-admin migrate [-down]
//	meetup-admin create-user -username alice -email alice@example.org [-superuser]
//	meetup-admin superuser -username alice [-off]
//	meetup-admin activate -username alice [-off]
//	meetup-admin issue-token -username alice -name deploy -expires-in 720h
//	meetup-admin list-tokens -username alice
//	meetup-admin revoke-token 42
//	meetup-admin grant -username alice -capability add_meetup_location
//	meetup-admin revoke -username alice -capability add_meetup_location
//	meetup-admin reconcile
//
// reconcile re-provisions the organizer and member groups of every location
// from the permission table, which is how an edited table reaches existing
// locations.
package cli

// Package audit records who changed what on a meetup location.
//
// Every role transition, location lifecycle event and moderated meetup
// action produces an AuditEvent after its transaction commits. Events name
// the actor, the location, the target user when there is one, the request ID
// and whether state changed (success) or a business rule kept it unchanged
// (noop).
//
// Loggers:
//
//   - DBLogger persists events to audit_logs and answers Search queries,
//     which back the per-location activity endpoint
//   - LogLogger writes events to the structured application log
//   - MultiLogger fans out to several loggers, optionally asynchronously
//
// Usage:
//
//	event := audit.NewEvent(ctx, audit.EventTypeJoinApproved, audit.EventStatusSuccess)
//	event.LocationSlug = loc.Slug
//	event.TargetUsername = user.Username
//	_ = logger.Log(ctx, event)
//
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{LocationSlug: "foo", Limit: 50})
package audit

// Package meetups manages what happens inside a meetup location: the
// meetups themselves, RSVPs, support requests from volunteers and
// comments.
//
// Meetups cannot be scheduled in the past. Dates are stored as YYYY-MM-DD
// and times as HH:MM, so listings split upcoming from past meetups by
// comparing against today's date string.
//
// A comment targets either a meetup or a support request:
//
//	c, err := svc.AddComment(ctx, actor, "foo-systers", meetups.SupportRequestTarget(id), "I can bring snacks")
//
// Targets are always resolved within the location named by the request, so
// a target from another location is reported as not found.
package meetups

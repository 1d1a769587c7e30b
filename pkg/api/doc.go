// Package api provides the HTTP REST API of the meetup location service.
//
// # Overview
//
// The API is built on gorilla/mux and organized into handler groups that
// register their own routes:
//
//   - AuthHandlers: the caller's profile and bearer tokens
//   - LocationHandlers: locations, members, organizers and join requests
//   - MeetupHandlers: meetups, RSVPs, support requests and comments
//
// Every route lives below /api/v1. Authentication is optional at the
// routing layer; each service operation decides whether it needs an
// actor and answers 401 when one is missing.
//
//	server := api.NewServer(api.Services{
//		Locations: locationService,
//		Meetups:   meetupService,
//		Tokens:    tokenManager,
//	})
//	http.ListenAndServe(":8080", server)
//
// # Endpoints
//
//	GET    /api/v1/locations?page=N
//	POST   /api/v1/locations
//	GET    /api/v1/locations/{slug}
//	PUT    /api/v1/locations/{slug}
//	DELETE /api/v1/locations/{slug}
//	GET    /api/v1/locations/{slug}/members
//	POST   /api/v1/locations/{slug}/members
//	DELETE /api/v1/locations/{slug}/members/{username}
//	POST   /api/v1/locations/{slug}/organizers/{username}
//	DELETE /api/v1/locations/{slug}/organizers/{username}
//	POST   /api/v1/locations/{slug}/join
//	DELETE /api/v1/locations/{slug}/join
//	GET    /api/v1/locations/{slug}/join-requests
//	POST   /api/v1/locations/{slug}/join-requests/{username}/approve
//	POST   /api/v1/locations/{slug}/join-requests/{username}/reject
//	GET    /api/v1/locations/{slug}/activity
//	GET    /api/v1/locations/{slug}/meetups
//	GET    /api/v1/locations/{slug}/meetups/past
//	...    /api/v1/locations/{slug}/meetups/{meetup}[/rsvps|/support-requests|/comments]
//	...    /api/v1/locations/{slug}/comments/{id}
//	GET    /api/v1/me
//	GET    /api/v1/me/tokens
//	POST   /api/v1/me/tokens
//	DELETE /api/v1/me/tokens/{id}
//
// # Responses
//
// State transitions answer 303 See Other with Location set to the listing
// the change shows up in and a body of {"level": ..., "message": ...}. A
// warning level means nothing changed. Errors use {"error": ...}, with
// per-field "details" for validation failures.
package api

package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/middleware"
	"github.com/platinummonkey/meetup/pkg/outcome"
)

const maxActivityLimit = 200

// LocationHandlers serves meetup locations and their role transitions
type LocationHandlers struct {
	service *locations.Service
}

// NewLocationHandlers creates a new LocationHandlers
func NewLocationHandlers(service *locations.Service) *LocationHandlers {
	return &LocationHandlers{service: service}
}

// RegisterRoutes registers the location collection routes
func (h *LocationHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/locations", h.listLocations).Methods("GET")
	router.HandleFunc("/locations", h.createLocation).Methods("POST")
}

// RegisterLocationRoutes registers routes below /locations/{slug}
func (h *LocationHandlers) RegisterLocationRoutes(router *mux.Router) {
	router.HandleFunc("", h.getLocation).Methods("GET")
	router.HandleFunc("", h.updateLocation).Methods("PUT")
	router.HandleFunc("", h.deleteLocation).Methods("DELETE")

	// Members
	router.HandleFunc("/members", h.listMembers).Methods("GET")
	router.HandleFunc("/members", h.addMember).Methods("POST")
	router.HandleFunc("/members/{username}", h.userTransition(h.service.RemoveMember, membersPath)).Methods("DELETE")

	// Organizers
	router.HandleFunc("/organizers/{username}", h.userTransition(h.service.PromoteOrganizer, membersPath)).Methods("POST")
	router.HandleFunc("/organizers/{username}", h.userTransition(h.service.DemoteOrganizer, membersPath)).Methods("DELETE")

	// Joining
	router.HandleFunc("/join", h.selfTransition(h.service.RequestJoin)).Methods("POST")
	router.HandleFunc("/join", h.selfTransition(h.service.WithdrawJoin)).Methods("DELETE")
	router.HandleFunc("/join-requests", h.listJoinRequests).Methods("GET")
	router.HandleFunc("/join-requests/{username}/approve", h.userTransition(h.service.ApproveJoin, joinRequestsPath)).Methods("POST")
	router.HandleFunc("/join-requests/{username}/reject", h.userTransition(h.service.RejectJoin, joinRequestsPath)).Methods("POST")

	router.HandleFunc("/activity", h.activity).Methods("GET")
}

func locationPath(slug string) string {
	return "/api/v1/locations/" + slug
}

func membersPath(slug string) string {
	return locationPath(slug) + "/members"
}

func joinRequestsPath(slug string) string {
	return locationPath(slug) + "/join-requests"
}

// listLocations handles GET /locations?page=N
func (h *LocationHandlers) listLocations(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.ListLocations(r.Context(), page)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// createLocation handles POST /locations
func (h *LocationHandlers) createLocation(w http.ResponseWriter, r *http.Request) {
	var input locations.LocationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	loc, err := h.service.CreateLocation(r.Context(), middleware.Actor(r), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", locationPath(loc.Slug))
	httputil.WriteCreated(w, loc)
}

// getLocation handles GET /locations/{slug}
func (h *LocationHandlers) getLocation(w http.ResponseWriter, r *http.Request) {
	if loc := middleware.GetLocation(r); loc != nil {
		httputil.WriteSuccess(w, loc)
		return
	}

	loc, err := h.service.GetLocation(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, loc)
}

// updateLocation handles PUT /locations/{slug}
func (h *LocationHandlers) updateLocation(w http.ResponseWriter, r *http.Request) {
	var input locations.LocationInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	loc, err := h.service.UpdateLocation(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"], input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, loc)
}

// deleteLocation handles DELETE /locations/{slug}
func (h *LocationHandlers) deleteLocation(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.DeleteLocation(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, "/api/v1/locations", res)
}

// listMembers handles GET /locations/{slug}/members
func (h *LocationHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.Members(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if members == nil {
		members = []locations.Member{}
	}
	httputil.WriteSuccess(w, members)
}

type usernameRequest struct {
	Username string `json:"username"`
}

// addMember handles POST /locations/{slug}/members
func (h *LocationHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	var req usernameRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Username == "" {
		verr := outcome.NewValidationError()
		verr.Add("username", "This field is required.")
		writeServiceError(w, r, verr)
		return
	}

	slug := mux.Vars(r)["slug"]
	res, err := h.service.AddMember(r.Context(), middleware.Actor(r), slug, req.Username)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, membersPath(slug), res)
}

type userTransitionFunc func(ctx context.Context, actor *auth.User, slug, username string) (*outcome.Result, error)

// userTransition adapts a transition on {username} to a handler answering
// 303 See Other at the listing built by next
func (h *LocationHandlers) userTransition(fn userTransitionFunc, next func(slug string) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		slug := vars["slug"]

		res, err := fn(r.Context(), middleware.Actor(r), slug, vars["username"])
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httputil.WriteResult(w, next(slug), res)
	}
}

type selfTransitionFunc func(ctx context.Context, actor *auth.User, slug string) (*outcome.Result, error)

// selfTransition adapts a transition of the actor's own standing
func (h *LocationHandlers) selfTransition(fn selfTransitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["slug"]

		res, err := fn(r.Context(), middleware.Actor(r), slug)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		httputil.WriteResult(w, locationPath(slug), res)
	}
}

// listJoinRequests handles GET /locations/{slug}/join-requests
func (h *LocationHandlers) listJoinRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.JoinRequests(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if requests == nil {
		requests = []locations.JoinRequest{}
	}
	httputil.WriteSuccess(w, requests)
}

// activity handles GET /locations/{slug}/activity?event_type=...&limit=N&offset=N
func (h *LocationHandlers) activity(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if limit <= 0 || limit > maxActivityLimit {
		limit = maxActivityLimit
	}
	if offset < 0 {
		offset = 0
	}

	filter := audit.SearchFilter{Limit: limit, Offset: offset}
	for _, t := range r.URL.Query()["event_type"] {
		filter.EventTypes = append(filter.EventTypes, audit.EventType(t))
	}

	events, err := h.service.Activity(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"], filter)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []*audit.AuditEvent{}
	}
	httputil.WriteSuccess(w, events)
}

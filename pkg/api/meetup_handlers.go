package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/meetups"
	"github.com/platinummonkey/meetup/pkg/middleware"
)

// MeetupHandlers serves meetups and what hangs off them: RSVPs, support
// requests and comments
type MeetupHandlers struct {
	service *meetups.Service
}

// NewMeetupHandlers creates a new MeetupHandlers
func NewMeetupHandlers(service *meetups.Service) *MeetupHandlers {
	return &MeetupHandlers{service: service}
}

// RegisterRoutes registers routes below /locations/{slug}
func (h *MeetupHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/meetups", h.upcoming).Methods("GET")
	router.HandleFunc("/meetups", h.createMeetup).Methods("POST")
	// Before {meetup} so "past" is never taken for a slug
	router.HandleFunc("/meetups/past", h.past).Methods("GET")
	router.HandleFunc("/meetups/{meetup}", h.getMeetup).Methods("GET")
	router.HandleFunc("/meetups/{meetup}", h.updateMeetup).Methods("PUT")
	router.HandleFunc("/meetups/{meetup}", h.deleteMeetup).Methods("DELETE")

	// RSVPs
	router.HandleFunc("/meetups/{meetup}/rsvps", h.listRsvps).Methods("GET")
	router.HandleFunc("/meetups/{meetup}/rsvps", h.submitRsvp).Methods("POST")

	// Support requests
	router.HandleFunc("/meetups/{meetup}/support-requests", h.listSupportRequests).Methods("GET")
	router.HandleFunc("/meetups/{meetup}/support-requests", h.createSupportRequest).Methods("POST")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}", h.getSupportRequest).Methods("GET")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}", h.updateSupportRequest).Methods("PUT")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}", h.deleteSupportRequest).Methods("DELETE")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}/approve", h.approveSupportRequest).Methods("POST")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}/reject", h.rejectSupportRequest).Methods("POST")

	// Comments
	router.HandleFunc("/meetups/{meetup}/comments", h.listMeetupComments).Methods("GET")
	router.HandleFunc("/meetups/{meetup}/comments", h.addMeetupComment).Methods("POST")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}/comments", h.listSupportRequestComments).Methods("GET")
	router.HandleFunc("/meetups/{meetup}/support-requests/{id:[0-9]+}/comments", h.addSupportRequestComment).Methods("POST")
	router.HandleFunc("/comments/{id:[0-9]+}", h.updateComment).Methods("PUT")
	router.HandleFunc("/comments/{id:[0-9]+}", h.deleteComment).Methods("DELETE")
	router.HandleFunc("/comments/{id:[0-9]+}/approve", h.approveComment).Methods("POST")
}

func meetupsPath(slug string) string {
	return locationPath(slug) + "/meetups"
}

func meetupPath(slug, meetupSlug string) string {
	return meetupsPath(slug) + "/" + meetupSlug
}

func supportRequestsPath(slug, meetupSlug string) string {
	return meetupPath(slug, meetupSlug) + "/support-requests"
}

// upcoming handles GET /meetups
func (h *MeetupHandlers) upcoming(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.UpcomingMeetups(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, nonNilMeetups(list))
}

// past handles GET /meetups/past
func (h *MeetupHandlers) past(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.PastMeetups(r.Context(), mux.Vars(r)["slug"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, nonNilMeetups(list))
}

func nonNilMeetups(list []*meetups.Meetup) []*meetups.Meetup {
	if list == nil {
		return []*meetups.Meetup{}
	}
	return list
}

// createMeetup handles POST /meetups
func (h *MeetupHandlers) createMeetup(w http.ResponseWriter, r *http.Request) {
	var input meetups.MeetupInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	slug := mux.Vars(r)["slug"]
	m, err := h.service.CreateMeetup(r.Context(), middleware.Actor(r), slug, input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", meetupPath(slug, m.Slug))
	httputil.WriteCreated(w, m)
}

// getMeetup handles GET /meetups/{meetup}
func (h *MeetupHandlers) getMeetup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	m, err := h.service.GetMeetup(r.Context(), vars["slug"], vars["meetup"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, m)
}

// updateMeetup handles PUT /meetups/{meetup}
func (h *MeetupHandlers) updateMeetup(w http.ResponseWriter, r *http.Request) {
	var input meetups.MeetupInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	vars := mux.Vars(r)
	m, err := h.service.UpdateMeetup(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, m)
}

// deleteMeetup handles DELETE /meetups/{meetup}
func (h *MeetupHandlers) deleteMeetup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	res, err := h.service.DeleteMeetup(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, meetupsPath(vars["slug"]), res)
}

type rsvpListResponse struct {
	Rsvps   []meetups.Rsvp      `json:"rsvps"`
	Summary meetups.RsvpSummary `json:"summary"`
}

// listRsvps handles GET /meetups/{meetup}/rsvps
func (h *MeetupHandlers) listRsvps(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	rsvps, summary, err := h.service.Rsvps(r.Context(), vars["slug"], vars["meetup"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rsvps == nil {
		rsvps = []meetups.Rsvp{}
	}
	httputil.WriteSuccess(w, rsvpListResponse{Rsvps: rsvps, Summary: summary})
}

// submitRsvp handles POST /meetups/{meetup}/rsvps
func (h *MeetupHandlers) submitRsvp(w http.ResponseWriter, r *http.Request) {
	var input meetups.RsvpInput
	if !httputil.ParseJSONOrError(w, r, &input) {
		return
	}

	vars := mux.Vars(r)
	rsvp, err := h.service.SubmitRsvp(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, rsvp)
}

type descriptionRequest struct {
	Description string `json:"description"`
}

// listSupportRequests handles GET /meetups/{meetup}/support-requests
func (h *MeetupHandlers) listSupportRequests(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	list, err := h.service.SupportRequests(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// createSupportRequest handles POST /meetups/{meetup}/support-requests
func (h *MeetupHandlers) createSupportRequest(w http.ResponseWriter, r *http.Request) {
	var req descriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	sr, err := h.service.CreateSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, sr)
}

// getSupportRequest handles GET /support-requests/{id}
func (h *MeetupHandlers) getSupportRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	vars := mux.Vars(r)
	sr, err := h.service.GetSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sr)
}

// updateSupportRequest handles PUT /support-requests/{id}
func (h *MeetupHandlers) updateSupportRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req descriptionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	vars := mux.Vars(r)
	sr, err := h.service.UpdateSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], id, req.Description)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, sr)
}

// deleteSupportRequest handles DELETE /support-requests/{id}
func (h *MeetupHandlers) deleteSupportRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	vars := mux.Vars(r)
	res, err := h.service.DeleteSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, supportRequestsPath(vars["slug"], vars["meetup"]), res)
}

// approveSupportRequest handles POST /support-requests/{id}/approve
func (h *MeetupHandlers) approveSupportRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	vars := mux.Vars(r)
	res, err := h.service.ApproveSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, supportRequestsPath(vars["slug"], vars["meetup"]), res)
}

// rejectSupportRequest handles POST /support-requests/{id}/reject
func (h *MeetupHandlers) rejectSupportRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	vars := mux.Vars(r)
	res, err := h.service.RejectSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, supportRequestsPath(vars["slug"], vars["meetup"]), res)
}

type commentRequest struct {
	Body string `json:"body"`
}

// meetupTarget resolves {meetup} to the comment target of that meetup
func (h *MeetupHandlers) meetupTarget(w http.ResponseWriter, r *http.Request) (meetups.Target, bool) {
	vars := mux.Vars(r)
	m, err := h.service.GetMeetup(r.Context(), vars["slug"], vars["meetup"])
	if err != nil {
		writeServiceError(w, r, err)
		return meetups.Target{}, false
	}
	return meetups.MeetupTarget(m.ID), true
}

// supportRequestTarget resolves {id} to the comment target of a support
// request of {meetup} the actor can see
func (h *MeetupHandlers) supportRequestTarget(w http.ResponseWriter, r *http.Request) (meetups.Target, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return meetups.Target{}, false
	}

	vars := mux.Vars(r)
	sr, err := h.service.GetSupportRequest(r.Context(), middleware.Actor(r), vars["slug"], vars["meetup"], id)
	if err != nil {
		writeServiceError(w, r, err)
		return meetups.Target{}, false
	}
	return meetups.SupportRequestTarget(sr.ID), true
}

func (h *MeetupHandlers) listComments(w http.ResponseWriter, r *http.Request, target meetups.Target) {
	list, err := h.service.Comments(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"], target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

func (h *MeetupHandlers) addComment(w http.ResponseWriter, r *http.Request, target meetups.Target) {
	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	c, err := h.service.AddComment(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"], target, req.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, c)
}

// listMeetupComments handles GET /meetups/{meetup}/comments
func (h *MeetupHandlers) listMeetupComments(w http.ResponseWriter, r *http.Request) {
	if target, ok := h.meetupTarget(w, r); ok {
		h.listComments(w, r, target)
	}
}

// addMeetupComment handles POST /meetups/{meetup}/comments
func (h *MeetupHandlers) addMeetupComment(w http.ResponseWriter, r *http.Request) {
	if target, ok := h.meetupTarget(w, r); ok {
		h.addComment(w, r, target)
	}
}

// listSupportRequestComments handles GET /support-requests/{id}/comments
func (h *MeetupHandlers) listSupportRequestComments(w http.ResponseWriter, r *http.Request) {
	if target, ok := h.supportRequestTarget(w, r); ok {
		h.listComments(w, r, target)
	}
}

// addSupportRequestComment handles POST /support-requests/{id}/comments
func (h *MeetupHandlers) addSupportRequestComment(w http.ResponseWriter, r *http.Request) {
	if target, ok := h.supportRequestTarget(w, r); ok {
		h.addComment(w, r, target)
	}
}

// updateComment handles PUT /comments/{id}
func (h *MeetupHandlers) updateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var req commentRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	c, err := h.service.UpdateComment(r.Context(), middleware.Actor(r), mux.Vars(r)["slug"], id, req.Body)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, c)
}

// deleteComment handles DELETE /comments/{id}
func (h *MeetupHandlers) deleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	slug := mux.Vars(r)["slug"]
	res, err := h.service.DeleteComment(r.Context(), middleware.Actor(r), slug, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, meetupsPath(slug), res)
}

// approveComment handles POST /comments/{id}/approve
func (h *MeetupHandlers) approveComment(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	slug := mux.Vars(r)["slug"]
	res, err := h.service.ApproveComment(r.Context(), middleware.Actor(r), slug, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, meetupsPath(slug), res)
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/meetups"
	"github.com/platinummonkey/meetup/pkg/middleware"
)

// Services are the collaborators the API serves
type Services struct {
	Locations *locations.Service
	Meetups   *meetups.Service
	Tokens    *auth.TokenManager
	// RateLimit is optional
	RateLimit *middleware.RateLimitMiddleware
}

// Server represents our API server
type Server struct {
	router   *mux.Router
	services Services
}

// NewServer creates a new API server
func NewServer(services Services) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		services: services,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.NewAuthMiddleware(s.services.Tokens, true).Handler)
	if s.services.RateLimit != nil {
		api.Use(s.services.RateLimit.Handler)
	}

	NewAuthHandlers(s.services.Tokens).RegisterRoutes(api)

	locationHandlers := NewLocationHandlers(s.services.Locations)
	locationHandlers.RegisterRoutes(api)

	scoped := api.PathPrefix("/locations/{slug}").Subrouter()
	scoped.Use(middleware.NewLocationMiddleware(s.services.Locations.Store()).Handler)
	locationHandlers.RegisterLocationRoutes(scoped)
	NewMeetupHandlers(s.services.Meetups).RegisterRoutes(scoped)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
	})
}

// Router exposes the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/middleware"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// AuthHandlers serves the authenticated user's profile and tokens
type AuthHandlers struct {
	tokens *auth.TokenManager
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(tokens *auth.TokenManager) *AuthHandlers {
	return &AuthHandlers{tokens: tokens}
}

// RegisterRoutes registers authentication routes
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.me).Methods("GET")
	router.HandleFunc("/me/tokens", h.listTokens).Methods("GET")
	router.HandleFunc("/me/tokens", h.createToken).Methods("POST")
	router.HandleFunc("/me/tokens/{id}", h.revokeToken).Methods("DELETE")
}

func requireActor(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	actor := middleware.Actor(r)
	if actor == nil {
		writeServiceError(w, r, rbac.ErrAuthenticationRequired)
		return nil, false
	}
	return actor, true
}

// me handles GET /me
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, actor)
}

// listTokens handles GET /me/tokens
func (h *AuthHandlers) listTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	tokens, err := h.tokens.ListUserTokens(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if tokens == nil {
		tokens = []*auth.APIToken{}
	}
	httputil.WriteSuccess(w, tokens)
}

type createTokenRequest struct {
	Name      string `json:"name"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

type createTokenResponse struct {
	*auth.APIToken
	Token string `json:"token"`
}

// createToken handles POST /me/tokens. The plaintext token is only ever
// returned here.
func (h *AuthHandlers) createToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	verr := outcome.NewValidationError()
	if req.Name == "" {
		verr.Add("name", "This field is required.")
	}
	var expiresAt *time.Time
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			verr.Add("expires_in", "Enter a positive duration such as 720h.")
		} else {
			t := time.Now().UTC().Add(d)
			expiresAt = &t
		}
	}
	if err := verr.OrNil(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	record, token, err := h.tokens.CreateToken(r.Context(), actor.ID, req.Name, expiresAt)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, createTokenResponse{APIToken: record, Token: token})
}

// revokeToken handles DELETE /me/tokens/{id}
func (h *AuthHandlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	tokens, err := h.tokens.ListUserTokens(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	owned := false
	for _, t := range tokens {
		if t.ID == id {
			owned = true
			break
		}
	}
	if !owned {
		writeServiceError(w, r, outcome.NotFound("token", mux.Vars(r)["id"]))
		return
	}

	if err := h.tokens.RevokeToken(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

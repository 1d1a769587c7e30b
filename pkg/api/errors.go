package api

import (
	"errors"
	"net/http"

	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/outcome"
	"github.com/platinummonkey/meetup/pkg/rbac"
)

// writeServiceError maps a service error onto its HTTP status. Anything
// unrecognized is logged and answered with a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if verr, ok := outcome.AsValidationError(err); ok {
		httputil.WriteValidationError(w, verr)
		return
	}

	switch {
	case errors.Is(err, rbac.ErrAuthenticationRequired):
		httputil.WriteUnauthorized(w, "authentication required")
	case errors.Is(err, rbac.ErrAccessDenied):
		httputil.WriteForbidden(w, "you do not have permission to perform this action")
	case errors.Is(err, outcome.ErrNotFound):
		httputil.WriteNotFoundError(w, err.Error())
	case errors.Is(err, outcome.ErrConflict):
		httputil.WriteConflict(w, err.Error())
	default:
		observability.FromContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
	}
}

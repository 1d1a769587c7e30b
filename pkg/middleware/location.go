package middleware

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/meetup/pkg/contextkeys"
	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/outcome"
)

// LocationMiddleware resolves the {slug} route variable to a meetup
// location. Unknown slugs are answered with 404 before any handler runs.
type LocationMiddleware struct {
	store *locations.Store
}

// NewLocationMiddleware creates a new location middleware
func NewLocationMiddleware(store *locations.Store) *LocationMiddleware {
	return &LocationMiddleware{store: store}
}

// Handler wraps an HTTP handler with location resolution
func (m *LocationMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := mux.Vars(r)["slug"]
		if slug == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		loc, err := m.store.GetLocationBySlug(ctx, slug)
		if err != nil {
			if errors.Is(err, outcome.ErrNotFound) {
				httputil.WriteNotFoundError(w, err.Error())
				return
			}
			observability.FromContext(ctx).WithError(err).Error("failed to resolve meetup location")
			httputil.WriteInternalError(w, err)
			return
		}

		ctx = contextkeys.WithLocation(ctx, loc)
		ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithField("location", loc.Slug))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetLocation returns the location resolved for a request, nil outside
// location routes
func GetLocation(r *http.Request) *locations.Location {
	loc, _ := r.Context().Value(contextkeys.LocationKey).(*locations.Location)
	return loc
}

package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/contextkeys"
	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/observability"
)

// AuthMiddleware resolves bearer tokens to users
type AuthMiddleware struct {
	tokens   *auth.TokenManager
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens *auth.TokenManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication. A request without an
// Authorization header continues anonymously when the middleware is
// optional; a header with a bad token is always rejected.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		ctx := r.Context()
		token, user, err := m.tokens.ValidateToken(ctx, strings.TrimSpace(parts[1]))
		if err != nil {
			if !errors.Is(err, auth.ErrInvalidToken) {
				observability.FromContext(ctx).WithError(err).Error("failed to validate token")
				httputil.WriteInternalError(w, err)
				return
			}
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx = contextkeys.WithAuth(ctx, &auth.AuthContext{User: user, Token: token})
		ctx = contextkeys.WithUserID(ctx, user.ID)
		ctx = observability.WithLogger(ctx, observability.GetLogger(ctx).WithField("username", user.Username))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts the auth context from a request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// Actor returns the authenticated user of a request, nil when anonymous
func Actor(r *http.Request) *auth.User {
	return GetAuthContext(r).Actor()
}

// Package httputil holds the JSON request and response helpers and the
// request-scoped middleware shared by the meetup API.
//
// Handlers parse path values with ParsePathString/ParsePathInt64 (gorilla/mux
// vars) and bodies with ParseJSONOrError, which rejects unknown fields.
// Role transitions answer through WriteResult:
//
//	httputil.WriteResult(w, "/api/v1/locations/foo-systers/members", outcome.Success("..."))
//
// The standard middleware stack, outermost first:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.ContentTypeMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)
package httputil

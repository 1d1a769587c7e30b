// Package middleware provides HTTP middleware for authentication, location
// resolution, and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware resolves a bearer token to a user:
//
//	authMW := middleware.NewAuthMiddleware(tokenManager, true)
//	router.Use(authMW.Handler)
//	// handlers call middleware.Actor(r) to get the user, nil when anonymous
//
// LocationMiddleware resolves the {slug} route variable:
//
//	sub.Use(middleware.NewLocationMiddleware(locationStore).Handler)
//
// RateLimitMiddleware throttles mutating requests per user, or per client
// address when anonymous. Buckets live in process, or in Redis when
// several instances share a budget:
//
//	rl := middleware.NewRateLimitMiddleware()
//	rl := middleware.NewDistributedRateLimitMiddleware(redisClient)
//	router.Use(rl.Handler)
//
// # Rate Limiting
//
// Anonymous: 30 req/min, 10 burst
// Per-User: 120 req/min, 30 burst
//
// Reads are never limited. Redis errors fail open.
package middleware

// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health checks and graceful shutdown for meetupd.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler. FromContext returns the request
// logger annotated with the request ID, the authenticated user and the active
// trace:
//
//	logger := observability.NewLogger(observability.ParseLogLevel("debug"), os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithField("location", slug).Info("join requested")
//
// # Metrics
//
// NewMetrics registers every collector on the given registry. HTTP metrics
// are labelled by mux route template, never by raw path:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	observability.RegisterMetricsEndpoint(adminMux, registry)
//
// Metrics also implements the guard's decision recorder, and the location
// service reports each role transition through RecordTransition.
//
// # Tracing
//
// InitOTel installs OTLP/gRPC trace and metric providers when enabled.
// StartSpan and EndSpan are safe to call either way; without a provider the
// global tracer is a no-op.
//
//	ctx, span := observability.StartSpan(ctx, "locations.ApproveJoin")
//	defer func() { observability.EndSpan(span, err) }()
//
// # Health
//
// The database is required for readiness. Redis only carries notices, so an
// unreachable Redis reports "degraded" and the probe still answers 200.
//
// # Shutdown
//
// ShutdownManager stops the HTTP servers first and then runs registered
// cleanup functions in order, all under one timeout.
package observability

// Command meetupd serves the meetup location API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/meetup/pkg/api"
	"github.com/platinummonkey/meetup/pkg/audit"
	"github.com/platinummonkey/meetup/pkg/auth"
	"github.com/platinummonkey/meetup/pkg/config"
	"github.com/platinummonkey/meetup/pkg/httputil"
	"github.com/platinummonkey/meetup/pkg/jobs"
	"github.com/platinummonkey/meetup/pkg/locations"
	"github.com/platinummonkey/meetup/pkg/meetups"
	"github.com/platinummonkey/meetup/pkg/middleware"
	"github.com/platinummonkey/meetup/pkg/notifications"
	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/rbac"
	"github.com/platinummonkey/meetup/pkg/storage"
)

func main() {
	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
	if err := run(logger); err != nil {
		logger.WithError(err).Error("meetupd exited with error")
		os.Exit(1)
	}
}

func run(logger *observability.Logger) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger = observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	otel, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := storage.Migrate(db, cfg.Database.Driver)
	if err != nil {
		return err
	}
	logger.WithField("schema_version", version).Info("Database migrated")

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = storage.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		logger.Info("Connected to Redis")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	app, err := buildApp(ctx, cfg, db, redisClient, metrics, logger)
	if err != nil {
		return err
	}
	services := app.services

	if cfg.Server.RateLimit {
		services.RateLimit = rateLimiter(ctx, redisClient)
	}

	server := api.NewServer(*services)
	if cfg.Observability.MetricsEnabled {
		server.Router().Use(observability.HTTPMetricsMiddleware(metrics))
	}

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(cfg.Server.MaxBodyBytes),
	)(server)
	if len(cfg.Server.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.Server.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Location", "X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
			AllowCredentials: false,
		}).Handler(handler)
	}
	if cfg.Observability.OTelEnabled {
		handler = otelhttp.NewHandler(handler, "meetupd")
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	scheduler, err := buildScheduler(cfg, app, metrics)
	if err != nil {
		return err
	}
	scheduler.Start()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, apiServer, healthServer)
	shutdown.RegisterShutdownFunc(scheduler.Stop)
	if app.async != nil {
		shutdown.RegisterShutdownFunc(app.async.Close)
	}
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otel, logger)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Meetup API listening on %s", apiServer.Addr)
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health server listening on %s", healthServer.Addr)
		return serve(healthServer)
	})
	g.Go(func() error {
		collectDBStats(gctx, db, metrics)
		return nil
	})
	g.Go(func() error {
		err := shutdown.WaitForSignal(gctx)
		cancel()
		return err
	})

	return g.Wait()
}

// application holds the wired services and the collaborators the jobs reuse
type application struct {
	services *api.Services
	audit    *audit.DBLogger
	notices  *notifications.Emitter
	// async is nil without Redis
	async *notifications.AsyncPublisher
}

// buildApp wires the domain services and the audit trail they share
func buildApp(ctx context.Context, cfg *config.Config, db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics, logger *observability.Logger) (*application, error) {
	table := rbac.DefaultPermissionTable()
	if cfg.RBAC.PermissionTablePath != "" {
		loaded, err := rbac.LoadPermissionTable(cfg.RBAC.PermissionTablePath)
		if err != nil {
			return nil, err
		}
		table = loaded
		logger.WithField("path", cfg.RBAC.PermissionTablePath).Info("Loaded permission table")
	}

	checker, err := buildChecker(ctx, cfg.RBAC, db, redisClient, metrics, logger)
	if err != nil {
		return nil, err
	}

	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, err
	}
	auditLog := audit.NewMultiLogger(dbAudit, audit.NewLogLogger(logger.WithField("component", "audit")))

	var (
		emitter *notifications.Emitter
		async   *notifications.AsyncPublisher
	)
	if redisClient != nil {
		redisPublisher := notifications.NewRedisPublisher(redisClient, cfg.Notifications.Queue, cfg.Notifications.Channel)
		async = notifications.NewAsyncPublisher(redisPublisher, cfg.Notifications.Workers, cfg.Notifications.Buffer, cfg.Notifications.Timeout, logger)
		async.SetMetrics(metrics)
		emitter = notifications.NewEmitter(async, nil)
	} else {
		emitter = notifications.NewEmitter(notifications.NewLogPublisher(logger), metrics)
	}

	locationService := locations.NewService(db, rbac.NewProvisioner(table), checker)
	locationService.SetAuditLogger(auditLog)
	locationService.SetActivitySource(dbAudit)
	locationService.SetEmitter(emitter)
	locationService.SetMetrics(metrics)

	meetupService := meetups.NewService(db, checker)
	meetupService.SetAuditLogger(auditLog)
	meetupService.SetEmitter(emitter)
	meetupService.SetMetrics(metrics)

	return &application{
		services: &api.Services{
			Locations: locationService,
			Meetups:   meetupService,
			Tokens:    auth.NewTokenManager(auth.NewStore(db)),
		},
		audit:   dbAudit,
		notices: emitter,
		async:   async,
	}, nil
}

// buildChecker caches guard decisions only when Redis carries invalidations
// between processes. Grants changed by meetup-admin or another replica reach
// this process through that channel alone.
func buildChecker(ctx context.Context, cfg config.RBACConfig, db *sql.DB, redisClient *redis.Client, metrics *observability.Metrics, logger *observability.Logger) (*rbac.PermissionChecker, error) {
	checkerConfig := cfg.CheckerConfig()
	if redisClient == nil {
		if checkerConfig.CacheSize > 0 {
			logger.Info("Guard cache disabled without Redis")
		}
		checker := rbac.NewPermissionChecker(db, rbac.CheckerConfig{})
		checker.SetRecorder(metrics)
		return checker, nil
	}

	checker := rbac.NewPermissionChecker(db, checkerConfig)
	checker.SetRecorder(metrics)

	bus := rbac.NewRedisInvalidationBus(redisClient, cfg.InvalidationChannel)
	checker.SetInvalidationBus(bus)
	if err := bus.Listen(ctx, checker); err != nil {
		return nil, err
	}
	logger.WithField("channel", cfg.InvalidationChannel).Info("Listening for guard cache invalidations")
	return checker, nil
}

// rateLimiter shares buckets through Redis when it is configured
func rateLimiter(ctx context.Context, redisClient *redis.Client) *middleware.RateLimitMiddleware {
	if redisClient != nil {
		return middleware.NewDistributedRateLimitMiddleware(redisClient)
	}

	user := middleware.NewRateLimiter(middleware.PerUserRateLimitConfig())
	anonymous := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig())
	user.StartCleanup(ctx)
	anonymous.StartCleanup(ctx)
	return middleware.NewRateLimitMiddlewareWith(user, anonymous)
}

func buildScheduler(cfg *config.Config, app *application, metrics *observability.Metrics) (*jobs.Scheduler, error) {
	jobLogger := logrus.New()
	jobLogger.SetFormatter(&logrus.JSONFormatter{})
	jobLogger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.Observability.LogLevel.String()); err == nil {
		jobLogger.SetLevel(level)
	}

	scheduler := jobs.NewScheduler(jobLogger, metrics)
	entries := []struct {
		job      jobs.Job
		schedule string
	}{
		{jobs.TokenCleanup(app.services.Tokens, jobLogger), cfg.Jobs.TokenCleanupSchedule},
		{jobs.JoinReminder(app.services.Locations.Store(), app.notices, cfg.Jobs.JoinReminderAge, jobLogger), cfg.Jobs.JoinReminderSchedule},
		{jobs.AuditCleanup(app.audit, cfg.Jobs.AuditRetention, jobLogger), cfg.Jobs.AuditCleanupSchedule},
	}
	for _, e := range entries {
		if err := scheduler.Add(e.job, e.schedule); err != nil {
			return nil, err
		}
	}
	return scheduler, nil
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s failed: %w", server.Addr, err)
	}
	return nil
}

func collectDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		case <-ctx.Done():
			return
		}
	}
}

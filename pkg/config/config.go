package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/meetup/pkg/observability"
	"github.com/platinummonkey/meetup/pkg/rbac"
	"github.com/platinummonkey/meetup/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database storage.Config

	// Redis configuration, optional
	Redis storage.RedisConfig

	// Guard configuration
	RBAC RBACConfig

	// Notice delivery
	Notifications NotificationsConfig

	// Scheduled jobs
	Jobs JobsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string
	RateLimit       bool

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// RBACConfig holds permission checker settings
type RBACConfig struct {
	// PermissionTablePath replaces the built-in role table when set
	PermissionTablePath string
	CacheSize           int
	CacheTTL            time.Duration
	// InvalidationChannel carries cache invalidations between processes
	// over Redis
	InvalidationChannel string
}

// NotificationsConfig holds where notices are published and how many
// publishes may be in flight
type NotificationsConfig struct {
	Queue   string
	Channel string
	Workers int
	Buffer  int
	Timeout time.Duration
}

// JobsConfig holds cron schedules. An empty schedule disables the job.
type JobsConfig struct {
	TokenCleanupSchedule string
	JoinReminderSchedule string
	JoinReminderAge      time.Duration
	AuditCleanupSchedule string
	AuditRetention       time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		RBAC:          loadRBACConfig(),
		Notifications: loadNotificationsConfig(),
		Jobs:          loadJobsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("MEETUP_HOST", "0.0.0.0"),
		Port:            getEnv("MEETUP_PORT", "8080"),
		ReadTimeout:     getEnvDuration("MEETUP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("MEETUP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("MEETUP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("MEETUP_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("MEETUP_MAX_BODY_BYTES", 1<<20),
		CORSOrigins:     getEnvList("MEETUP_CORS_ORIGINS"),
		RateLimit:       getEnvBool("MEETUP_RATE_LIMIT_ENABLED", true),
		HealthPort:      getEnv("MEETUP_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("MEETUP_DB_DRIVER", ""); driver != "" {
		cfg.Driver = driver
	}
	if dsn := getEnv("MEETUP_DB_DSN", ""); dsn != "" {
		cfg.DSN = dsn
	}
	if maxOpen := getEnvInt("MEETUP_DB_MAX_OPEN_CONNS", 0); maxOpen > 0 {
		cfg.MaxOpenConns = maxOpen
	}
	if maxIdle := getEnvInt("MEETUP_DB_MAX_IDLE_CONNS", 0); maxIdle > 0 {
		cfg.MaxIdleConns = maxIdle
	}
	if lifetime := getEnvDuration("MEETUP_DB_CONN_MAX_LIFETIME", 0); lifetime > 0 {
		cfg.ConnMaxLifetime = lifetime
	}
	if timeout := getEnvDuration("MEETUP_DB_PING_TIMEOUT", 0); timeout > 0 {
		cfg.PingTimeout = timeout
	}

	return cfg
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() storage.RedisConfig {
	return storage.RedisConfig{
		URL:        getEnv("MEETUP_REDIS_URL", ""),
		Password:   getEnv("MEETUP_REDIS_PASSWORD", ""),
		DB:         getEnvInt("MEETUP_REDIS_DB", 0),
		MaxRetries: getEnvInt("MEETUP_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("MEETUP_REDIS_POOL_SIZE", 10),
	}
}

func loadRBACConfig() RBACConfig {
	defaults := rbac.DefaultCheckerConfig()
	return RBACConfig{
		PermissionTablePath: getEnv("MEETUP_PERMISSION_TABLE", ""),
		CacheSize:           getEnvInt("MEETUP_GUARD_CACHE_SIZE", defaults.CacheSize),
		CacheTTL:            getEnvDuration("MEETUP_GUARD_CACHE_TTL", defaults.CacheTTL),
		InvalidationChannel: getEnv("MEETUP_GUARD_INVALIDATION_CHANNEL", rbac.DefaultInvalidationChannel),
	}
}

// CheckerConfig converts the settings for rbac.NewPermissionChecker
func (c RBACConfig) CheckerConfig() rbac.CheckerConfig {
	return rbac.CheckerConfig{CacheSize: c.CacheSize, CacheTTL: c.CacheTTL}
}

func loadNotificationsConfig() NotificationsConfig {
	return NotificationsConfig{
		Queue:   getEnv("MEETUP_NOTICE_QUEUE", "meetup:notices"),
		Channel: getEnv("MEETUP_NOTICE_CHANNEL", "meetup:notices"),
		Workers: getEnvInt("MEETUP_NOTICE_WORKERS", 4),
		Buffer:  getEnvInt("MEETUP_NOTICE_BUFFER", 256),
		Timeout: getEnvDuration("MEETUP_NOTICE_TIMEOUT", 5*time.Second),
	}
}

func loadJobsConfig() JobsConfig {
	return JobsConfig{
		TokenCleanupSchedule: getEnv("MEETUP_JOB_TOKEN_CLEANUP", "@hourly"),
		JoinReminderSchedule: getEnv("MEETUP_JOB_JOIN_REMINDER", "0 9 * * *"),
		JoinReminderAge:      getEnvDuration("MEETUP_JOIN_REMINDER_AGE", 72*time.Hour),
		AuditCleanupSchedule: getEnv("MEETUP_JOB_AUDIT_CLEANUP", "@daily"),
		AuditRetention:       getEnvDuration("MEETUP_AUDIT_RETENTION", 365*24*time.Hour),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("MEETUP_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("MEETUP_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("MEETUP_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("MEETUP_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("MEETUP_OTEL_SERVICE_NAME", "meetupd"),
		OTelServiceVersion: getEnv("MEETUP_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("MEETUP_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.RBAC.CacheSize < 0 {
		return fmt.Errorf("guard cache size must not be negative")
	}
	if c.RBAC.CacheSize > 0 && c.RBAC.CacheTTL <= 0 {
		return fmt.Errorf("guard cache TTL must be positive when the cache is enabled")
	}

	if c.Notifications.Workers <= 0 {
		return fmt.Errorf("notice workers must be positive")
	}

	if c.Jobs.JoinReminderSchedule != "" && c.Jobs.JoinReminderAge <= 0 {
		return fmt.Errorf("join reminder age must be positive")
	}
	if c.Jobs.AuditCleanupSchedule != "" && c.Jobs.AuditRetention <= 0 {
		return fmt.Errorf("audit retention must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated environment variable, nil when unset
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

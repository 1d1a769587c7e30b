// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	MEETUP_HOST="0.0.0.0"
//	MEETUP_PORT="8080"
//	MEETUP_HEALTH_PORT="9090"
//	MEETUP_READ_TIMEOUT="15s"
//	MEETUP_CORS_ORIGINS="https://systers.org,https://portal.systers.org"
//	MEETUP_RATE_LIMIT_ENABLED="true"
//
// Database settings:
//
//	MEETUP_DB_DRIVER="postgres"  # postgres, sqlite3
//	MEETUP_DB_DSN="postgres://localhost:5432/meetup?sslmode=disable"
//	MEETUP_DB_MAX_OPEN_CONNS="20"
//
// Redis (notices, shared rate limits):
//
//	MEETUP_REDIS_URL="redis://localhost:6379/0"
//	MEETUP_NOTICE_QUEUE="meetup:notices"
//	MEETUP_NOTICE_CHANNEL="meetup:notices"
//	MEETUP_NOTICE_WORKERS="4"
//
// Guards:
//
//	MEETUP_PERMISSION_TABLE="/etc/meetup/permissions.yaml"
//	MEETUP_GUARD_CACHE_SIZE="4096"  # 0 disables the cache
//	MEETUP_GUARD_CACHE_TTL="30s"  # the cache is only used with Redis
//	MEETUP_GUARD_INVALIDATION_CHANNEL="meetup:guard-invalidations"
//
// Jobs (cron specs, empty disables):
//
//	MEETUP_JOB_TOKEN_CLEANUP="@hourly"
//	MEETUP_JOB_JOIN_REMINDER="0 9 * * *"
//	MEETUP_JOIN_REMINDER_AGE="72h"
//	MEETUP_JOB_AUDIT_CLEANUP="@daily"
//	MEETUP_AUDIT_RETENTION="8760h"
//
// Observability settings:
//
//	MEETUP_LOG_LEVEL="info"  # debug, info, warn, error
//	MEETUP_METRICS_ENABLED="true"
//	MEETUP_OTEL_ENABLED="true"
//	MEETUP_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	db, err := storage.Open(cfg.Database)
package config

// Package storage opens the relational store and Redis for the meetup service.
//
// # Overview
//
// Two SQL drivers are supported: PostgreSQL (lib/pq) for deployments and
// SQLite (mattn/go-sqlite3) for local development and tests. The schema is
// embedded in the binary and applied with golang-migrate; each driver has its
// own migration directory because the two dialects differ in identity columns
// and timestamp types.
//
//	db, err := storage.Open(storage.Config{Driver: storage.DriverSQLite, DSN: ":memory:?_foreign_keys=on"})
//	if err != nil {
//		return err
//	}
//	if _, err := storage.Migrate(db, storage.DriverSQLite); err != nil {
//		return err
//	}
//
// # Query conventions
//
// Queries across the service are written once for both dialects:
//
//   - placeholders are $1..$N, numbered in order of first appearance
//   - timestamps are passed as parameters instead of NOW()
//   - idempotent inserts use ON CONFLICT DO NOTHING
//   - generated ids come back through RETURNING id
//
// SQLite in-memory databases live on a single connection, so code must never
// use the *sql.DB while holding a transaction on it.
//
// # Redis
//
// NewRedisClient parses a redis:// URL and verifies connectivity. Redis is
// optional; the notice publisher and health checks use it when configured.
package storage

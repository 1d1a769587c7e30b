// Package storagetest provides migrated in-memory databases for package tests.
package storagetest

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/meetup/pkg/storage"
)

// NewDB opens a private in-memory SQLite database with the full schema applied
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := storage.Open(storage.Config{
		Driver: storage.DriverSQLite,
		DSN:    ":memory:?_foreign_keys=on",
	})
	require.NoError(t, err)

	_, err = storage.Migrate(db, storage.DriverSQLite)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// CreateUser inserts an active user and returns its id
func CreateUser(t *testing.T, db *sql.DB, username string, superuser bool) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO users (username, email, full_name, is_superuser, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, username, username+"@example.com", "", superuser, true, now, now).Scan(&id)
	require.NoError(t, err)

	return id
}

// CreateLocation inserts a bare meetup location row without provisioning its
// groups and returns its id
func CreateLocation(t *testing.T, db *sql.DB, name, slug string) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRow(`
		INSERT INTO meetup_locations (name, slug, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, name, slug, now, now).Scan(&id)
	require.NoError(t, err)

	return id
}

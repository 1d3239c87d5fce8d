// Package repository provides the PostgreSQL backend of the client state
// store. Each row is one key of one profile; deletes are soft and purged
// later by db.PurgeDeletedState.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStateRepository stores client state keys in the client_state table.
type PostgresStateRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
	// Profile separates the state of several clients sharing one database.
	Profile string
}

// NewPostgresStateRepository creates a repository scoped to profile.
func NewPostgresStateRepository(db *sql.DB, profile string) *PostgresStateRepository {
	if profile == "" {
		profile = "default"
	}
	return &PostgresStateRepository{DB: db, Profile: profile}
}

// Get returns the value stored under key. ok is false when the key is
// absent or soft-deleted.
func (r *PostgresStateRepository) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	err = r.DB.QueryRowContext(
		ctx,
		`SELECT value FROM client_state WHERE profile = $1 AND key = $2 AND deleted = FALSE`,
		r.Profile, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key, reviving it if it was soft-deleted.
func (r *PostgresStateRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`INSERT INTO client_state (profile, key, value, updated_at, deleted)
		 VALUES ($1, $2, $3, now(), FALSE)
		 ON CONFLICT (profile, key) DO UPDATE
		 SET value = EXCLUDED.value, updated_at = now(), deleted = FALSE`,
		r.Profile, key, value,
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete soft-deletes key. Deleting a missing key is not an error.
func (r *PostgresStateRepository) Delete(ctx context.Context, key string) error {
	_, err := r.DB.ExecContext(
		ctx,
		`UPDATE client_state SET deleted = TRUE, updated_at = now()
		 WHERE profile = $1 AND key = $2 AND deleted = FALSE`,
		r.Profile, key,
	)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Package migrations creates the relational catalog schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is the subset of *sql.DB (and *sqlx.DB) Apply needs.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type migration struct {
	name string
	stmt string
}

// statements run in order; each is idempotent.
var statements = []migration{
	{"states", `
		CREATE TABLE IF NOT EXISTS states (
			id         VARCHAR(60) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			name       VARCHAR(128) NOT NULL
		)`},
	{"cities", `
		CREATE TABLE IF NOT EXISTS cities (
			id         VARCHAR(60) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			state_id   VARCHAR(60) NOT NULL REFERENCES states(id) ON DELETE CASCADE,
			name       VARCHAR(128) NOT NULL
		)`},
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id         VARCHAR(60) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			email      VARCHAR(128) NOT NULL UNIQUE,
			password   VARCHAR(128) NOT NULL,
			first_name VARCHAR(128) NOT NULL DEFAULT '',
			last_name  VARCHAR(128) NOT NULL DEFAULT ''
		)`},
	{"places", `
		CREATE TABLE IF NOT EXISTS places (
			id               VARCHAR(60) PRIMARY KEY,
			created_at       TIMESTAMPTZ NOT NULL,
			updated_at       TIMESTAMPTZ NOT NULL,
			city_id          VARCHAR(60) NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
			user_id          VARCHAR(60) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name             VARCHAR(128) NOT NULL,
			description      VARCHAR(1024) NOT NULL DEFAULT '',
			number_rooms     INTEGER NOT NULL DEFAULT 0,
			number_bathrooms INTEGER NOT NULL DEFAULT 0,
			max_guest        INTEGER NOT NULL DEFAULT 0,
			price_by_night   INTEGER NOT NULL DEFAULT 0,
			latitude         DOUBLE PRECISION NOT NULL DEFAULT 0,
			longitude        DOUBLE PRECISION NOT NULL DEFAULT 0
		)`},
	{"reviews", `
		CREATE TABLE IF NOT EXISTS reviews (
			id         VARCHAR(60) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			place_id   VARCHAR(60) NOT NULL REFERENCES places(id) ON DELETE CASCADE,
			user_id    VARCHAR(60) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text       VARCHAR(1024) NOT NULL
		)`},
	{"amenities", `
		CREATE TABLE IF NOT EXISTS amenities (
			id         VARCHAR(60) PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			name       VARCHAR(128) NOT NULL
		)`},
	{"place_amenity", `
		CREATE TABLE IF NOT EXISTS place_amenity (
			place_id   VARCHAR(60) NOT NULL REFERENCES places(id) ON DELETE CASCADE,
			amenity_id VARCHAR(60) NOT NULL REFERENCES amenities(id) ON DELETE CASCADE,
			PRIMARY KEY (place_id, amenity_id)
		)`},
	{"cities_state_idx", `CREATE INDEX IF NOT EXISTS cities_state_id_idx ON cities (state_id)`},
	{"places_city_idx", `CREATE INDEX IF NOT EXISTS places_city_id_idx ON places (city_id)`},
	{"places_user_idx", `CREATE INDEX IF NOT EXISTS places_user_id_idx ON places (user_id)`},
	{"reviews_place_idx", `CREATE INDEX IF NOT EXISTS reviews_place_id_idx ON reviews (place_id)`},
	{"reviews_user_idx", `CREATE INDEX IF NOT EXISTS reviews_user_id_idx ON reviews (user_id)`},
}

// Count returns the number of statements Apply executes.
func Count() int {
	return len(statements)
}

// Apply creates every table and index that does not exist yet.
func Apply(ctx context.Context, db Execer) error {
	for _, m := range statements {
		if _, err := db.ExecContext(ctx, m.stmt); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
	}
	return nil
}

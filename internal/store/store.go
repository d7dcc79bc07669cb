// Package store implements the persistence collaborators consumed by the
// pipeline: rule/segment catalogs, the profile store, and the diagnostics
// sink. Backed by sqlx over SQLite or PostgreSQL with named queries loaded
// through dotsql; transport failures wrap types.ErrStoreUnavailable so the
// orchestrator can classify them.
package store

import (
	"time"

	"github.com/jmoiron/sqlx"
)

// Store bundles the per-entity stores sharing one connection pool and one
// named-query set.
type Store struct {
	Rules       *Rules
	Segments    *Segments
	Profiles    *Profiles
	Diagnostics *Diagnostics
}

// New loads the embedded named queries and wires the entity stores.
func New(db *sqlx.DB) (*Store, error) {
	q, err := loadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{
		Rules:       &Rules{q: q},
		Segments:    &Segments{q: q},
		Profiles:    &Profiles{q: q},
		Diagnostics: &Diagnostics{q: q},
	}, nil
}

// timestamps are persisted as RFC3339 text for backend portability.
func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

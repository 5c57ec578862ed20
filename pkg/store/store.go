// Package store implements the repositories over PostgreSQL.
//
// Every mutating query is conditional: the expected state (and owner, where
// relevant) sits in the WHERE clause, so racing replicas get a definitive
// zero-rows answer instead of clobbering each other. State transitions append
// their TicketEvent row and fire their bus notifications inside the same
// transaction as the update.
package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories sharing one connection pool.
type Store struct {
	Tickets  *TicketStore
	Events   *EventStore
	Projects *ProjectStore
	Sessions *SessionStore

	pool *pgxpool.Pool
}

// New creates the repository set over the shared pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		Tickets:  &TicketStore{pool: pool},
		Events:   &EventStore{pool: pool},
		Projects: &ProjectStore{pool: pool},
		Sessions: &SessionStore{pool: pool},
		pool:     pool,
	}
}

// Pool exposes the underlying pool for health checks.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

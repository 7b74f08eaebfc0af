// Package session tracks per-conversation history keyed by an opaque
// identifier. The default store is an in-process map with idle expiry;
// a redis-backed store can be substituted so history survives restarts.
package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/empire-labs/chad/internal/domain"
)

// Store is the session persistence contract. Implementations never
// fail on an unknown session id: clients legitimately present stale
// ids after a server restart, and the answer is a fresh session.
type Store interface {
	// GetOrCreate resolves id to its session. An empty or unknown id
	// yields a new session with a generated identifier and no history.
	GetOrCreate(ctx context.Context, id string) (*domain.Session, error)

	// Append records turns at the end of the session's history,
	// creating the session if needed, and trims to the history window.
	Append(ctx context.Context, id string, turns ...domain.Turn) error

	// EvictExpired drops sessions idle longer than the TTL and
	// reports how many were removed.
	EvictExpired(ctx context.Context) (int, error)

	Close() error
}

func newSessionID() string {
	return uuid.NewString()
}

package jobs

import (
	"context"
	"log"
)

// SessionEvicter removes idle sessions and reports how many went.
type SessionEvicter interface {
	EvictExpired(ctx context.Context) (int, error)
}

// SessionSweeper is the JobProcessor that reclaims expired sessions.
// Backends with native expiry (redis) make this a cheap no-op.
type SessionSweeper struct {
	sessions SessionEvicter
}

func NewSessionSweeper(sessions SessionEvicter) *SessionSweeper {
	return &SessionSweeper{sessions: sessions}
}

func (s *SessionSweeper) ProcessJobs(ctx context.Context) error {
	evicted, err := s.sessions.EvictExpired(ctx)
	if err != nil {
		return err
	}
	if evicted > 0 {
		log.Printf("session sweep: evicted %d idle sessions", evicted)
	}
	return nil
}

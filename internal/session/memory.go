package session

import (
	"context"
	"sync"
	"time"

	"github.com/empire-labs/chad/internal/domain"
)

// MemoryStore keeps sessions in a process-local map. State starts
// empty at boot and is discarded on shutdown; durability is explicitly
// not promised for this backend.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session

	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(maxTurns int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		maxTurns: maxTurns,
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *MemoryStore) GetOrCreate(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if sess, ok := s.sessions[id]; ok && !s.expired(sess) {
			return s.snapshot(sess), nil
		}
	}

	return &domain.Session{ID: newSessionID(), LastActive: s.now()}, nil
}

func (s *MemoryStore) Append(ctx context.Context, id string, turns ...domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		sess = &domain.Session{ID: id}
		s.sessions[id] = sess
	}

	sess.Turns = append(sess.Turns, turns...)
	sess.Trim(s.maxTurns)
	sess.LastActive = s.now()
	return nil
}

func (s *MemoryStore) EvictExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.sessions = make(map[string]*domain.Session)
	s.mu.Unlock()
	return nil
}

// Len reports how many sessions are resident, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *MemoryStore) expired(sess *domain.Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastActive) > s.ttl
}

// snapshot copies the session so callers can read it without holding
// the store lock while another request appends.
func (s *MemoryStore) snapshot(sess *domain.Session) *domain.Session {
	out := &domain.Session{
		ID:         sess.ID,
		Turns:      make([]domain.Turn, len(sess.Turns)),
		LastActive: sess.LastActive,
	}
	copy(out.Turns, sess.Turns)
	return out
}

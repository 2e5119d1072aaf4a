// Package session keeps per-upload forecast sessions in memory.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"salesforecast/internal/dataset"
	"salesforecast/internal/frame"
	"salesforecast/pkg/contracts/domain"
)

// Session is one uploaded history and its latest forecast. A stored Session
// is never modified; updates replace it with a new value.
type Session struct {
	ID         string
	Filename   string
	History    *frame.Frame
	Dimensions *dataset.Dimensions
	Features   []string
	Horizon    int
	Result     *frame.Frame
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WithForecast returns a copy of s holding a new forecast
func (s *Session) WithForecast(horizon int, result *frame.Frame) *Session {
	cp := *s
	cp.Horizon = horizon
	cp.Result = result
	return &cp
}

type entry struct {
	session   *Session
	expiresAt time.Time
}

// Store is a size-bounded LRU of sessions with idle expiry. Reading a session
// extends its lifetime by the TTL.
type Store struct {
	cache *lru.Cache[string, *entry]
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex

	hits    atomic.Uint64
	misses  atomic.Uint64
	evicted atomic.Uint64
}

// Stats returns store statistics for observability
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Evicted uint64 `json:"evicted"`
	Size    int    `json:"size"`
}

// NewStore creates a store holding at most capacity sessions. A zero ttl
// disables expiry.
func NewStore(capacity int, ttl time.Duration) (*Store, error) {
	cache, err := lru.New[string, *entry](capacity)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &Store{cache: cache, ttl: ttl, now: time.Now}, nil
}

func (s *Store) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *Store) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// Create assigns a new id and timestamps to sess and stores it
func (s *Store) Create(sess *Session) *Session {
	cp := *sess
	cp.ID = uuid.NewString()
	cp.CreatedAt = s.now().UTC()
	cp.UpdatedAt = cp.CreatedAt

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache.Add(cp.ID, &entry{session: &cp, expiresAt: s.expiry()}) {
		s.evicted.Add(1)
	}
	return &cp
}

// Get returns the live session with the given id
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Get(id)
	if !ok {
		s.misses.Add(1)
		return nil, domain.ErrSessionNotFound
	}
	if s.expired(e) {
		s.cache.Remove(id)
		s.misses.Add(1)
		return nil, domain.ErrSessionNotFound
	}
	e.expiresAt = s.expiry()
	s.hits.Add(1)
	return e.session, nil
}

// Replace swaps in a new value for an existing session
func (s *Store) Replace(sess *Session) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.cache.Peek(sess.ID)
	if !ok || s.expired(e) {
		return nil, domain.ErrSessionNotFound
	}
	cp := *sess
	cp.CreatedAt = e.session.CreatedAt
	cp.UpdatedAt = s.now().UTC()
	s.cache.Add(cp.ID, &entry{session: &cp, expiresAt: s.expiry()})
	return &cp, nil
}

// Delete removes a session
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cache.Contains(id) {
		return domain.ErrSessionNotFound
	}
	s.cache.Remove(id)
	return nil
}

// Len returns the number of stored sessions, expired ones included
func (s *Store) Len() int {
	return s.cache.Len()
}

// Stats returns current store statistics
func (s *Store) Stats() Stats {
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Evicted: s.evicted.Load(),
		Size:    s.cache.Len(),
	}
}

// CleanupExpired removes all expired sessions and returns how many were
// removed
func (s *Store) CleanupExpired() int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, id := range s.cache.Keys() {
		if e, ok := s.cache.Peek(id); ok && s.expired(e) {
			s.cache.Remove(id)
			removed++
		}
	}
	return removed
}

// RunJanitor calls CleanupExpired every interval until ctx is done
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupExpired()
		}
	}
}

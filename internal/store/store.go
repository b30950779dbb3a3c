package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pairmatch/pairmatch/internal/engine"
)

// Entry is a run together with the time it was stored.
type Entry struct {
	Run      *engine.Run
	StoredAt time.Time
}

// Store is a thread-safe run history keyed by run ID.
type Store struct {
	mu     sync.RWMutex
	data   map[string]*Entry
	latest string
	ttl    time.Duration
	now    func() time.Time // injectable for deterministic tests
}

// New creates a Store with the given TTL.
func New(ttl time.Duration) *Store {
	return &Store{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores run and makes it the latest.
// Callers must not modify run after calling Put.
func (s *Store) Put(run *engine.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[run.ID] = &Entry{Run: run, StoredAt: s.now()}
	s.latest = run.ID
}

// Get returns the run with the given ID.
func (s *Store) Get(id string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	return e, ok
}

// Latest returns the most recently stored run.
func (s *Store) Latest() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[s.latest]
	return e, ok
}

// List returns the runs still within the TTL, newest first.
func (s *Store) List() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]*Entry, 0, len(s.data))
	for id, e := range s.data {
		if id == s.latest || e.StoredAt.After(cutoff) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StoredAt.Equal(out[j].StoredAt) {
			return out[i].StoredAt.After(out[j].StoredAt)
		}
		return out[i].Run.ID < out[j].Run.ID
	})
	return out
}

// Count returns the number of runs held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes runs stored before now minus TTL and returns how many were
// removed. The latest run is kept.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if id != s.latest && !e.StoredAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the eviction loop, ticking at half the TTL (at least one
// second). It blocks until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted runs", "count", n)
			}
		}
	}
}

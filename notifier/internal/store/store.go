package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zonewatch/zonewatch/pkg/types"
)

// Store is a bounded, TTL-evicted history of notifications in arrival order.
type Store struct {
	mu      sync.RWMutex
	entries []types.Notification // oldest first
	size    int
	ttl     time.Duration
	now     func() time.Time // injectable for deterministic tests
}

// New creates a Store that keeps at most size notifications for ttl.
func New(size int, ttl time.Duration) *Store {
	if size <= 0 {
		size = 1
	}
	return &Store{
		entries: make([]types.Notification, 0, size),
		size:    size,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put records n, dropping the oldest entry when the store is full.
func (s *Store) Put(n types.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) == s.size {
		copy(s.entries, s.entries[1:])
		s.entries = s.entries[:len(s.entries)-1]
	}
	s.entries = append(s.entries, n)
}

// List returns up to limit live notifications, newest first.
// A limit <= 0 returns every live entry.
func (s *Store) List(limit int) []types.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]types.Notification, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		n := s.entries[i]
		if !n.ReceivedAt.After(cutoff) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Count returns the total number of entries currently held, including stale ones.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Resize changes the capacity, dropping the oldest entries if needed.
func (s *Store) Resize(size int) {
	if size <= 0 {
		size = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	if over := len(s.entries) - size; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
}

// Evict removes entries whose ReceivedAt is older than now minus TTL.
// It returns the number of entries removed.
func (s *Store) Evict(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	kept := s.entries[:0]
	for _, n := range s.entries {
		if n.ReceivedAt.After(cutoff) {
			kept = append(kept, n)
		}
	}
	removed := len(s.entries) - len(kept)
	s.entries = kept
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// interval (minimum 1 second). Run blocks until ctx is cancelled.
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
				slog.Debug("store: evicted stale notifications", "count", n)
			}
		}
	}
}

package session

import (
	"log/slog"
	"testing"
	"time"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s := NewStore(ttl, slog.New(slog.DiscardHandler))
	t.Cleanup(s.Close)
	return s
}

func insert(s *Store, id string, lastSeen time.Time) {
	s.mu.Lock()
	s.sessions[id] = &Session{ID: id, CreatedAt: lastSeen, lastSeen: lastSeen}
	s.mu.Unlock()
}

func TestLookupRefreshesIdleTimer(t *testing.T) {
	s := newTestStore(t, time.Hour)
	stale := time.Now().Add(-2 * time.Hour)
	insert(s, "abc123", stale)

	sess, ok := s.Lookup("abc123")
	if !ok {
		t.Fatal("session not found")
	}
	if !sess.lastSeen.After(stale) {
		t.Error("lookup did not refresh the idle timer")
	}

	s.evictIdle()
	if _, ok := s.Lookup("abc123"); !ok {
		t.Error("refreshed session was evicted")
	}
}

func TestEvictIdle(t *testing.T) {
	s := newTestStore(t, time.Minute)
	insert(s, "old", time.Now().Add(-time.Hour))
	insert(s, "new", time.Now())

	s.evictIdle()

	if _, ok := s.Lookup("old"); ok {
		t.Error("idle session survived the sweep")
	}
	if _, ok := s.Lookup("new"); !ok {
		t.Error("fresh session was evicted")
	}
}

func TestEvictUnknownIsNoop(t *testing.T) {
	s := newTestStore(t, time.Minute)
	s.Evict("nope")
	if s.Len() != 0 {
		t.Errorf("Len = %d", s.Len())
	}
}

func TestCloseEvictsEverything(t *testing.T) {
	s := NewStore(time.Minute, slog.New(slog.DiscardHandler))
	insert(s, "a", time.Now())
	insert(s, "b", time.Now())

	s.Close()

	if s.Len() != 0 {
		t.Errorf("Len after Close = %d", s.Len())
	}
}

// Package session tracks live automation sessions for the HTTP surface.
// Each session owns one Chrome instance and one page; the store evicts
// idle sessions so abandoned browsers do not pile up.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/middleman/browser"
	"github.com/hazyhaar/middleman/idgen"
)

const (
	defaultTTL   = 10 * time.Minute
	sweepPeriod  = time.Minute
	sessionIDLen = 6
)

var newID = idgen.NanoID(sessionIDLen)

// Session is one externally driven automation run: a target URL, the
// Chrome instance holding its profile, and the open page being polled.
type Session struct {
	ID       string
	Location string
	Hostname string
	Browser  *browser.Instance
	Page     *browser.Page

	CreatedAt time.Time
	lastSeen  time.Time
}

// Store holds live sessions keyed by their short ID.
type Store struct {
	ttl time.Duration
	log *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	done     chan struct{}
	once     sync.Once
}

// NewStore creates a session store and starts the eviction sweep.
// A non-positive ttl takes the default.
func NewStore(ttl time.Duration, log *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		ttl:      ttl,
		log:      log,
		sessions: make(map[string]*Session),
		done:     make(chan struct{}),
	}
	go s.sweep()
	return s
}

// Create launches a browser for location, opens the page, and registers
// the session under a fresh short ID.
func (s *Store) Create(ctx context.Context, mgr *browser.Manager, location, hostname string) (*Session, error) {
	id := newID()

	inst, err := mgr.Launch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("session: launch: %w", err)
	}
	page, err := inst.Open(ctx, location)
	if err != nil {
		inst.Close()
		return nil, fmt.Errorf("session: open %s: %w", location, err)
	}

	now := time.Now()
	sess := &Session{
		ID:        id,
		Location:  location,
		Hostname:  hostname,
		Browser:   inst,
		Page:      page,
		CreatedAt: now,
		lastSeen:  now,
	}

	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()

	s.log.Info("session: created", "id", id, "location", location)
	return sess, nil
}

// Lookup returns the session for id and refreshes its idle timer.
func (s *Store) Lookup(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = time.Now()
	}
	return sess, ok
}

// Evict removes the session and shuts down its browser.
func (s *Store) Evict(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if !ok {
		return
	}
	if sess.Browser != nil {
		sess.Browser.Close()
	}
	s.log.Info("session: evicted", "id", id, "age", time.Since(sess.CreatedAt))
}

// Len reports how many sessions are live.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Close stops the sweep and evicts every session.
func (s *Store) Close() {
	s.once.Do(func() { close(s.done) })

	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Evict(id)
	}
}

func (s *Store) sweep() {
	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

func (s *Store) evictIdle() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var stale []string
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		s.log.Info("session: idle timeout", "id", id)
		s.Evict(id)
	}
}

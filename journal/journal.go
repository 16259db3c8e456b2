// Package journal persists per-tick automation events to SQLite for
// after-the-fact debugging: which template matched, when a session
// stalled, what terminated it.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Schema for the automation_events table. Call Store.Init() or apply
// manually.
const Schema = `
CREATE TABLE IF NOT EXISTS automation_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	tick INTEGER NOT NULL,
	event TEXT NOT NULL,
	template TEXT,
	detail TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_automation_events_ts ON automation_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_automation_events_sid ON automation_events(session_id) WHERE session_id != '';
`

// Entry is one automation event.
type Entry struct {
	SessionID string
	Tick      int
	Event     string
	Template  string
	Detail    string
	Timestamp int64
}

// Store persists automation events asynchronously. Writes never block
// the polling loop: a full buffer drops the event.
type Store struct {
	db   *sql.DB
	ch   chan *Entry
	done chan struct{}
	once sync.Once
}

// Open opens (or creates) the SQLite journal at path, creating parent
// directories, and initialises its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	s := NewStore(db)
	if err := s.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init: %w", err)
	}
	return s, nil
}

// NewStore creates a journal store backed by the given database
// connection.
func NewStore(db *sql.DB) *Store {
	s := &Store{
		db:   db,
		ch:   make(chan *Entry, 1024),
		done: make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// Init creates the automation_events table if it doesn't exist.
func (s *Store) Init() error {
	_, err := s.db.Exec(Schema)
	return err
}

// RecordEvent queues an event for async persistence. It satisfies the
// loop's Recorder interface.
func (s *Store) RecordEvent(sessionID string, tick int, event, template, detail string) {
	s.RecordAsync(&Entry{
		SessionID: sessionID,
		Tick:      tick,
		Event:     event,
		Template:  template,
		Detail:    detail,
		Timestamp: time.Now().UnixMilli(),
	})
}

// RecordAsync queues an entry. Non-blocking; drops if the buffer is full.
func (s *Store) RecordAsync(e *Entry) {
	select {
	case s.ch <- e:
	default:
	}
}

// Recent returns up to limit events for a session, newest first. An
// empty sessionID returns events across all sessions.
func (s *Store) Recent(sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT session_id, tick, event, COALESCE(template, ''), COALESCE(detail, ''), timestamp
		FROM automation_events`
	args := []any{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.SessionID, &e.Tick, &e.Event, &e.Template, &e.Detail, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains the buffer, stops the flush goroutine, and closes the
// database.
func (s *Store) Close() error {
	s.once.Do(func() {
		close(s.ch)
		<-s.done
	})
	return s.db.Close()
}

func (s *Store) flushLoop() {
	defer close(s.done)

	batch := make([]*Entry, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-s.ch:
			if !ok {
				s.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (s *Store) flushBatch(batch []*Entry) {
	if len(batch) == 0 {
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		slog.Error("journal: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO automation_events (session_id, tick, event, template, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		slog.Error("journal: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		if _, err := stmt.Exec(e.SessionID, e.Tick, e.Event, e.Template, e.Detail, e.Timestamp); err != nil {
			slog.Error("journal: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("journal: commit", "error", err)
	}
}

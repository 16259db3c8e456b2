package journal

import (
	"path/filepath"
	"testing"
)

func TestRecordAndRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.RecordEvent("abc123", 1, "match", "login.html", "")
	s.RecordEvent("abc123", 2, "unchanged", "login.html", "")
	s.RecordEvent("zzz999", 1, "no_match", "", "")
	// Close drains the async buffer.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Recent("abc123", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	// Newest first.
	if got[0].Event != "unchanged" || got[0].Tick != 2 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].Event != "match" || got[1].Template != "login.html" {
		t.Errorf("second = %+v", got[1])
	}

	all, err := s.Recent("", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("all sessions: got %d events, want 3", len(all))
	}
}

func TestRecentLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		s.RecordEvent("s", i, "match", "t.html", "")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.Recent("s", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d, want 2", len(got))
	}
	if got[0].Tick != 5 {
		t.Errorf("newest tick = %d, want 5", got[0].Tick)
	}
}

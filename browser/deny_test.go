package browser

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDenylist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "denylist.txt")
	content := "# trackers\nanalytics.example.com\n\n  ads.example.net  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadDenylist(path, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"analytics.example.com", "ads.example.net"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("fragment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestLoadDenylist_MissingFileIsEmpty(t *testing.T) {
	got, err := LoadDenylist(filepath.Join(t.TempDir(), "absent.txt"), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestNormalizeType(t *testing.T) {
	tests := map[string]string{
		"Images":      "image",
		"fonts":       "font",
		"stylesheets": "stylesheet",
		"media":       "media",
		"Font":        "font",
	}
	for in, want := range tests {
		if got := normalizeType(in); got != want {
			t.Errorf("normalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestContainsFold(t *testing.T) {
	if !containsFold("https://ADS.example.net/pixel", "ads.example.net") {
		t.Error("case-insensitive match failed")
	}
	if containsFold("https://example.com", "ads") {
		t.Error("unexpected match")
	}
}

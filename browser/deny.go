package browser

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// LoadDenylist reads URL fragments from path, one per line. Blank lines
// and #-comments are skipped. A missing file is not an error: blocking
// is an optimisation, and a fresh deployment starts without one.
func LoadDenylist(path string, log *slog.Logger) ([]string, error) {
	if log == nil {
		log = slog.Default()
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		log.Warn("browser: no denylist file", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("browser: open denylist: %w", err)
	}
	defer f.Close()

	var fragments []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fragments = append(fragments, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("browser: read denylist: %w", err)
	}

	log.Info("browser: denylist loaded", "path", path, "fragments", len(fragments))
	return fragments, nil
}

// normalizeType maps config spellings onto Chrome resource type names.
func normalizeType(t string) string {
	switch lower := strings.ToLower(t); lower {
	case "images":
		return "image"
	case "fonts":
		return "font"
	case "stylesheets":
		return "stylesheet"
	default:
		return lower
	}
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

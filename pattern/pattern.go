// Package pattern loads and serves the library of declarative page
// templates. A template is an HTML document annotated with gg-* attributes
// describing how to recognise one page shape and what to harvest from it.
//
// Templates are immutable after load. Matching always works on a Clone; the
// registry never hands out its parsed documents.
package pattern

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Marker attributes recognised on template elements.
const (
	AttrMatch     = "gg-match"      // required text target; selector in its value
	AttrMatchHTML = "gg-match-html" // required markup target
	AttrOptional  = "gg-optional"   // demotes a mandatory miss to a skip
	AttrAutoclick = "gg-autoclick"  // queued for the autoclick engine
	AttrStop      = "gg-stop"       // presence triggers termination
	AttrPriority  = "gg-priority"   // root: explicit ranking, lower wins
	AttrDomain    = "gg-domain"     // root: case-insensitive hostname substring gate
)

// DefaultPriority is assumed when a template declares none. It sorts before
// any non-negative explicit priority, so undeclared templates win unless
// another template explicitly claims a lower number.
const DefaultPriority = -1

// Template is one loaded page template. Identity is the load path.
type Template struct {
	Name     string
	Priority int
	Domain   string

	raw []byte
}

// Parse reads a template document. Root attributes gg-priority and
// gg-domain are extracted eagerly; marker attributes are read from clones
// at match time.
func Parse(name string, r io.Reader) (*Template, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pattern: read %s: %w", name, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("pattern: parse %s: %w", name, err)
	}

	t := &Template{Name: name, Priority: DefaultPriority, raw: raw}

	root := doc.Find("html").First()
	if v, ok := root.Attr(AttrPriority); ok {
		// Tolerate "= N" noise from hand-edited templates.
		if p, err := strconv.Atoi(strings.TrimLeft(v, "= ")); err == nil {
			t.Priority = p
		}
	}
	t.Domain = root.AttrOr(AttrDomain, "")

	return t, nil
}

// Load walks a directory tree and parses every .html file into a Template.
// Files are visited in lexical order so discovery order is deterministic;
// that order breaks priority ties downstream.
func Load(dir string) ([]*Template, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		// A missing library directory means an empty library.
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("pattern: walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	templates := make([]*Template, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("pattern: open %s: %w", path, err)
		}
		t, perr := Parse(path, f)
		f.Close()
		if perr != nil {
			return nil, perr
		}
		templates = append(templates, t)
	}
	return templates, nil
}

// Clone parses a fresh working copy of the template document. The working
// copy is what distillation writes extracted content into; the Template
// itself never mutates.
func (t *Template) Clone() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(t.raw))
	if err != nil {
		return nil, fmt.Errorf("pattern: clone %s: %w", t.Name, err)
	}
	return doc, nil
}

// Serialize renders a working document back to markup. Output is stable
// for an unchanged document, so callers can compare serialized snapshots
// byte for byte.
func Serialize(doc *goquery.Document) (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, doc.Get(0)); err != nil {
		return "", fmt.Errorf("pattern: serialize: %w", err)
	}
	return sb.String(), nil
}

// Package selector resolves the compound selector syntax used in pattern
// templates: an optional iframe scope followed by the selector evaluated
// inside that frame.
package selector

import (
	"regexp"
	"strings"
)

// frameRe matches a leading iframe token, optionally carrying a bracketed
// attribute qualifier, followed by whitespace and the in-frame remainder.
var frameRe = regexp.MustCompile(`^(iframe(?:[^\s]*\[[^\]]+\]|[^\s]+))\s+(.+)$`)

// Expr is a resolved selector expression. Query is evaluated inside the
// frame located by Frame when Frame is non-empty, otherwise against the
// top-level document.
type Expr struct {
	Frame string
	Query string
}

// Split parses a raw attribute value into an Expr. Empty input yields an
// empty Expr, which callers treat as "no rule". A string that does not
// start with an iframe scope is a plain document-level selector; malformed
// input degrades to that case rather than erroring.
func Split(raw string) Expr {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Expr{}
	}
	if m := frameRe.FindStringSubmatch(raw); m != nil {
		return Expr{Frame: m[1], Query: m[2]}
	}
	return Expr{Query: raw}
}

// Empty reports whether the expression carries no selector at all.
func (e Expr) Empty() bool { return e.Query == "" }

// IsXPath reports whether the inner query is an XPath expression.
func (e Expr) IsXPath() bool { return strings.HasPrefix(e.Query, "//") }

// String returns the raw compound form of the expression.
func (e Expr) String() string {
	if e.Frame == "" {
		return e.Query
	}
	return e.Frame + " " + e.Query
}

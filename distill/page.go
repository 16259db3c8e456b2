// Package distill matches a live page against the template library and
// materialises a populated snapshot of the best match. It also hosts the
// pure readers over a distilled snapshot: termination detection and
// record conversion.
//
// The live page is reached only through the Page interface; the browser
// package provides the Rod-backed implementation, tests provide fakes.
package distill

import (
	"context"
	"errors"

	"github.com/hazyhaar/middleman/selector"
)

// ErrNotFound is returned by page lookups when no matching element is
// present and visible. Not an error condition for callers: optional
// targets skip it, mandatory targets disqualify one candidate.
var ErrNotFound = errors.New("distill: element not found")

// ErrNoMatch is returned by Distill when no template produced a candidate.
var ErrNoMatch = errors.New("distill: no pattern matched")

// Page is the live-document boundary: the subset of browser operations the
// engine needs. Implementations resolve frame scopes, evaluate visibility
// element by element in document order, and skip invisible matches.
type Page interface {
	// QueryVisible returns the first visible element matching the
	// expression, in document order. ErrNotFound when nothing matches.
	QueryVisible(ctx context.Context, expr selector.Expr) (Element, error)

	// QueryAllVisible returns every visible element matching the
	// expression, in document order. ErrNotFound when nothing matches.
	QueryAllVisible(ctx context.Context, expr selector.Expr) ([]Element, error)
}

// Element is one live element handle.
type Element interface {
	// Tag returns the lower-case tag name.
	Tag(ctx context.Context) (string, error)

	// Text returns the rendered text content.
	Text(ctx context.Context) (string, error)

	// HTML returns the inner markup.
	HTML(ctx context.Context) (string, error)

	// Value returns the current value for input, textarea and select
	// elements; empty for everything else.
	Value(ctx context.Context) (string, error)

	// Input clears the element and types text into it.
	Input(ctx context.Context, text string) error

	// Click clicks the element.
	Click(ctx context.Context) error
}

package browser

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/selector"
)

// Page adapts a Rod page to the query surface the distiller needs.
// Lookups are instantaneous: Elements and ElementsX never wait, so a
// selector that matches nothing right now reports not-found and the
// polling loop decides whether to try again.
type Page struct {
	page *rod.Page
	log  *slog.Logger
}

// Rod returns the underlying page for operations outside the query
// surface (navigation, screenshots).
func (p *Page) Rod() *rod.Page { return p.page }

// Close closes the underlying page.
func (p *Page) Close() error { return p.page.Close() }

// QueryVisible returns the first visible element matching expr.
func (p *Page) QueryVisible(ctx context.Context, expr selector.Expr) (distill.Element, error) {
	els, err := p.QueryAllVisible(ctx, expr)
	if err != nil {
		return nil, err
	}
	return els[0], nil
}

// QueryAllVisible returns every visible element matching expr, in
// document order. No match is distill.ErrNotFound, never a hard error.
func (p *Page) QueryAllVisible(ctx context.Context, expr selector.Expr) ([]distill.Element, error) {
	scope, err := p.scope(ctx, expr)
	if err != nil {
		return nil, err
	}

	var els rod.Elements
	if expr.IsXPath() {
		els, err = scope.Context(ctx).ElementsX(expr.Query)
	} else {
		els, err = scope.Context(ctx).Elements(expr.Query)
	}
	if err != nil {
		return nil, fmt.Errorf("browser: query %q: %w", expr, err)
	}

	var visible []distill.Element
	for _, el := range els {
		ok, err := el.Context(ctx).Visible()
		if err != nil {
			p.log.Debug("browser: visibility check failed", "selector", expr.String(), "error", err)
			continue
		}
		if ok {
			visible = append(visible, &element{el: el})
		}
	}
	if len(visible) == 0 {
		return nil, distill.ErrNotFound
	}
	return visible, nil
}

// scope resolves the frame part of expr: the remaining query runs inside
// the iframe's document rather than the top page.
func (p *Page) scope(ctx context.Context, expr selector.Expr) (*rod.Page, error) {
	if expr.Frame == "" {
		return p.page, nil
	}
	frames, err := p.page.Context(ctx).Elements(expr.Frame)
	if err != nil {
		return nil, fmt.Errorf("browser: frame %q: %w", expr.Frame, err)
	}
	if len(frames) == 0 {
		return nil, distill.ErrNotFound
	}
	fp, err := frames.First().Frame()
	if err != nil {
		return nil, fmt.Errorf("browser: enter frame %q: %w", expr.Frame, err)
	}
	return fp, nil
}

// element adapts one live Rod element.
type element struct {
	el *rod.Element
}

func (e *element) Tag(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return "", fmt.Errorf("browser: tag: %w", err)
	}
	return res.Value.Str(), nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", fmt.Errorf("browser: text: %w", err)
	}
	return text, nil
}

func (e *element) HTML(ctx context.Context) (string, error) {
	res, err := e.el.Context(ctx).Eval(`() => this.innerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: inner html: %w", err)
	}
	return res.Value.Str(), nil
}

func (e *element) Value(ctx context.Context) (string, error) {
	v, err := e.el.Context(ctx).Property("value")
	if err != nil {
		return "", fmt.Errorf("browser: value: %w", err)
	}
	return v.Str(), nil
}

// Input clears the element and types text one rune at a time with short
// randomised pauses. Instant value injection is what bot detectors look
// for first.
func (e *element) Input(ctx context.Context, text string) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("browser: select text: %w", err)
	}
	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("browser: type: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10*time.Millisecond + rand.N(40*time.Millisecond)):
		}
	}
	return nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("browser: click: %w", err)
	}
	return nil
}

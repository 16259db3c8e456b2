package automate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/selector"
)

const (
	defaultClickBudget  = 5 * time.Second
	defaultClickQuantum = time.Second
)

// ClickSecondary selects auto-click markers handled before form
// submission; ClickSubmit selects the submission controls themselves.
const (
	ClickSecondary = "[" + pattern.AttrAutoclick + "]:not(button)"
	ClickSubmit    = "button[" + pattern.AttrAutoclick + "], button[type=submit]"
)

// Autoclicker clicks the live counterparts of auto-click markers.
type Autoclicker struct {
	Logger *slog.Logger

	// Budget is the total time allowed per marker; Quantum is subtracted
	// from the remaining budget after each timed-out attempt. Zero values
	// take the defaults.
	Budget  time.Duration
	Quantum time.Duration
}

func (a *Autoclicker) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Autoclicker) budget() time.Duration {
	if a.Budget > 0 {
		return a.Budget
	}
	return defaultClickBudget
}

func (a *Autoclicker) quantum() time.Duration {
	if a.Quantum > 0 {
		return a.Quantum
	}
	return defaultClickQuantum
}

// Run clicks every marker in the snapshot matching filter, in document
// order. Exhausting a marker's retry budget is fatal and propagates;
// a marker whose live element never appears is only a warning.
func (a *Autoclicker) Run(ctx context.Context, page distill.Page, doc *goquery.Document, filter string) error {
	var exprs []selector.Expr
	doc.Find(filter).Each(func(_ int, s *goquery.Selection) {
		expr := selector.Split(s.AttrOr(pattern.AttrMatch, ""))
		if !expr.Empty() {
			exprs = append(exprs, expr)
		}
	})

	for _, expr := range exprs {
		if err := a.clickOne(ctx, page, expr); err != nil {
			return err
		}
	}
	return nil
}

// clickOne clicks the first visible element for expr. An explicit bounded
// loop holds the remaining budget: timed-out attempts shrink it by one
// quantum and retry the whole lookup; non-timeout failures skip to the
// next element in the same locator set.
func (a *Autoclicker) clickOne(ctx context.Context, page distill.Page, expr selector.Expr) error {
	log := a.logger()
	remaining := a.budget()
	skip := 0

	for {
		els, err := page.QueryAllVisible(ctx, expr)
		if errors.Is(err, distill.ErrNotFound) {
			log.Warn("autoclick: no visible element", "selector", expr.String())
			return nil
		}
		if err != nil {
			return fmt.Errorf("autoclick: query %q: %w", expr, err)
		}
		if skip >= len(els) {
			log.Warn("autoclick: every candidate failed", "selector", expr.String())
			return nil
		}

		attemptCtx, cancel := context.WithTimeout(ctx, a.quantum())
		err = els[skip].Click(attemptCtx)
		cancel()

		if err == nil {
			log.Info("autoclick: clicked", "selector", expr.String())
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			remaining -= a.quantum()
			if remaining <= 0 {
				return fmt.Errorf("autoclick: %s: budget exhausted: %w", expr, err)
			}
			log.Debug("autoclick: timed out, retrying",
				"selector", expr.String(), "remaining", remaining)
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		log.Warn("autoclick: click failed, trying next candidate",
			"selector", expr.String(), "error", err)
		skip++
	}
}

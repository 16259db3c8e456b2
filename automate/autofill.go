package automate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/selector"
)

// settleDelay lets the page react between consecutive fills.
const settleDelay = 250 * time.Millisecond

// Autofiller walks a snapshot's input descriptors and writes values into
// the live page and back into the snapshot.
type Autofiller struct {
	Source FieldSource
	Logger *slog.Logger

	// Getenv resolves configuration values; defaults to os.Getenv.
	Getenv func(string) string
	// Delay overrides settleDelay; zero keeps the default.
	Delay time.Duration
}

func (a *Autofiller) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func (a *Autofiller) getenv(key string) string {
	if a.Getenv != nil {
		return a.Getenv(key)
	}
	return os.Getenv(key)
}

func (a *Autofiller) delay() time.Duration {
	if a.Delay > 0 {
		return a.Delay
	}
	return settleDelay
}

// Run fills every typed input in the snapshot, in document order, and
// returns the mutated snapshot serialized so downstream steps see a
// consistent view. Configuration errors on individual fields are warnings;
// only source failures and live-page errors abort the pass.
func (a *Autofiller) Run(ctx context.Context, page distill.Page, doc *goquery.Document) (string, error) {
	log := a.logger()
	domain := doc.Find("html").First().AttrOr(pattern.AttrDomain, "")

	var inputs []*goquery.Selection
	doc.Find("input[type]").Each(func(_ int, s *goquery.Selection) {
		inputs = append(inputs, s)
	})

	processed := make(map[string]bool) // radio groups handled this pass

	for _, s := range inputs {
		typ := s.AttrOr("type", "")
		name := s.AttrOr("name", "")

		if name == "" {
			log.Warn("autofill: input without a name", "type", typ)
		}

		expr := selector.Split(s.AttrOr(pattern.AttrMatch, ""))
		if expr.Empty() {
			log.Warn("autofill: input without a selector", "type", typ, "name", name)
			continue
		}

		switch typ {
		case "email", "tel", "text", "password":
			if err := a.fillText(ctx, page, s, expr, domain, typ, name); err != nil {
				return "", err
			}
		case "radio":
			if name == "" {
				log.Warn("autofill: radio button without a name", "id", s.AttrOr("id", ""))
				continue
			}
			if processed[name] {
				continue
			}
			processed[name] = true
			if err := a.chooseRadio(ctx, page, doc, name); err != nil {
				return "", err
			}
		case "checkbox":
			// Checkboxes are never auto-filled; they are only toggled via
			// the autoclick path or satisfied from form data.
			log.Debug("autofill: checkbox deferred", "name", name)
		}
	}

	return pattern.Serialize(doc)
}

func (a *Autofiller) fillText(ctx context.Context, page distill.Page, s *goquery.Selection, expr selector.Expr, domain, typ, name string) error {
	log := a.logger()

	f := Field{
		Type:        typ,
		Name:        name,
		Placeholder: s.AttrOr("placeholder", ""),
		Domain:      domain,
		Masked:      typ == "password",
	}

	value := a.getenv(f.ConfigKey())
	if value != "" {
		log.Info("autofill: using configured value", "key", f.ConfigKey(), "field", f.Key())
	} else {
		v, ok, err := a.Source.Value(ctx, f)
		if err != nil {
			return fmt.Errorf("autofill: resolve %s: %w", f.Key(), err)
		}
		if !ok {
			log.Warn("autofill: no value for field", "field", f.Key())
			return nil
		}
		value = v
	}

	el, err := page.QueryVisible(ctx, expr)
	if errors.Is(err, distill.ErrNotFound) {
		log.Warn("autofill: live element not found", "selector", expr.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("autofill: query %q: %w", expr, err)
	}
	if err := el.Input(ctx, value); err != nil {
		return fmt.Errorf("autofill: fill %s: %w", f.Key(), err)
	}
	s.SetAttr("value", value)

	return sleep(ctx, a.delay())
}

func (a *Autofiller) chooseRadio(ctx context.Context, page distill.Page, doc *goquery.Document, name string) error {
	log := a.logger()

	group := Group{Name: name}
	doc.Find("input[type=radio]").Each(func(_ int, b *goquery.Selection) {
		if b.AttrOr("name", "") != name {
			return
		}
		id := b.AttrOr("id", "")
		label := id
		if id != "" {
			if l := strings.TrimSpace(doc.Find(`label[for="` + id + `"]`).First().Text()); l != "" {
				label = l
			}
		}
		group.Options = append(group.Options, Option{ID: id, Label: label})
	})
	if len(group.Options) == 0 {
		return nil
	}

	idx, ok, err := a.Source.Choice(ctx, group)
	if err != nil {
		return fmt.Errorf("autofill: choose %s: %w", name, err)
	}
	if !ok {
		log.Warn("autofill: no choice for radio group", "name", name)
		return nil
	}
	chosen := group.Options[idx]
	log.Info("autofill: choosing", "group", name, "label", chosen.Label)

	radio := doc.Find(`input[type=radio][id="` + chosen.ID + `"]`).First()
	if radio.Length() == 0 {
		log.Warn("autofill: chosen radio not in snapshot", "id", chosen.ID)
		return nil
	}
	expr := selector.Split(radio.AttrOr(pattern.AttrMatch, ""))
	if expr.Empty() {
		log.Warn("autofill: chosen radio has no selector", "id", chosen.ID)
		return nil
	}

	el, err := page.QueryVisible(ctx, expr)
	if errors.Is(err, distill.ErrNotFound) {
		log.Warn("autofill: live radio not found", "selector", expr.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("autofill: query %q: %w", expr, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("autofill: check %s: %w", chosen.ID, err)
	}
	radio.SetAttr("checked", "checked")

	return sleep(ctx, a.delay())
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package distill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/selector"
)

// Match is the winning candidate of one distillation pass. Doc is a clone
// of the template with every resolved target's content substituted from
// the live page; HTML is its serialized form, used downstream for
// change detection. Produced fresh each tick, never persisted.
type Match struct {
	Name     string
	Priority int
	Doc      *goquery.Document
	HTML     string
	Elements []Element
}

// Distiller evaluates the template library against a live page.
type Distiller struct {
	logger *slog.Logger
}

// New creates a Distiller.
func New(logger *slog.Logger) *Distiller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distiller{logger: logger}
}

// Distill evaluates every template against the live page and returns the
// best candidate: all required targets resolved, at least one target
// matched, lowest declared priority. Ties keep discovery order (the sort
// is stable). ErrNoMatch when no template qualifies.
func (d *Distiller) Distill(ctx context.Context, hostname string, page Page, templates []*pattern.Template) (*Match, error) {
	var candidates []*Match

	for _, t := range templates {
		if !domainAllowed(hostname, t.Domain) {
			d.logger.Debug("distill: skipping template, domain mismatch",
				"template", t.Name, "domain", t.Domain, "hostname", hostname)
			continue
		}

		m, err := d.evaluate(ctx, page, t)
		if err != nil {
			return nil, err
		}
		if m != nil {
			candidates = append(candidates, m)
		}
	}

	if len(candidates) == 0 {
		return nil, ErrNoMatch
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	best := candidates[0]
	d.logger.Info("distill: best match", "template", best.Name,
		"priority", best.Priority, "candidates", len(candidates))
	return best, nil
}

// evaluate runs one template's targets against the page. Returns nil when
// the template is not a candidate.
func (d *Distiller) evaluate(ctx context.Context, page Page, t *pattern.Template) (*Match, error) {
	doc, err := t.Clone()
	if err != nil {
		return nil, err
	}

	found := true
	matchCount := 0
	var elements []Element
	var evalErr error

	targets := doc.Find("[" + pattern.AttrMatch + "], [" + pattern.AttrMatchHTML + "]")
	targets.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		htmlRaw, wantHTML := s.Attr(pattern.AttrMatchHTML)
		raw := htmlRaw
		if !wantHTML {
			raw = s.AttrOr(pattern.AttrMatch, "")
		}
		expr := selector.Split(raw)
		if expr.Empty() {
			return true // no rule, skip silently
		}

		el, err := page.QueryVisible(ctx, expr)
		if err != nil {
			if ctx.Err() != nil {
				evalErr = ctx.Err()
				return false
			}
			// A hard query failure (a selector typo in one template, an
			// evaluation error) is a miss for this target only; the other
			// templates still get their chance.
			if !errors.Is(err, ErrNotFound) {
				d.logger.Warn("distill: query failed, treating as miss",
					"template", t.Name, "selector", expr.String(), "error", err)
			}
			if _, optional := s.Attr(pattern.AttrOptional); !optional {
				found = false
			}
			return true
		}

		if err := d.copyTarget(ctx, s, el, wantHTML); err != nil {
			evalErr = fmt.Errorf("distill: %s: copy %q: %w", t.Name, expr, err)
			return false
		}
		elements = append(elements, el)
		matchCount++
		return true
	})
	if evalErr != nil {
		return nil, evalErr
	}

	if !found || matchCount == 0 {
		return nil, nil
	}

	serialized, err := pattern.Serialize(doc)
	if err != nil {
		return nil, err
	}

	return &Match{
		Name:     t.Name,
		Priority: t.Priority,
		Doc:      doc,
		HTML:     serialized,
		Elements: elements,
	}, nil
}

// copyTarget writes the live element's content into the snapshot target:
// inner markup for HTML targets, trimmed text otherwise. Form elements
// additionally get their current value copied back.
func (d *Distiller) copyTarget(ctx context.Context, s *goquery.Selection, el Element, wantHTML bool) error {
	if wantHTML {
		inner, err := el.HTML(ctx)
		if err != nil {
			return err
		}
		s.SetHtml(inner)
		return nil
	}

	text, err := el.Text(ctx)
	if err != nil {
		return err
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		s.SetText(trimmed)
	}

	tag, err := el.Tag(ctx)
	if err != nil {
		return err
	}
	switch tag {
	case "input", "textarea", "select":
		v, err := el.Value(ctx)
		if err != nil {
			return err
		}
		s.SetAttr("value", v)
	}
	return nil
}

// domainAllowed applies the template's domain gate. Loopback and
// development hosts bypass the gate so templates can be exercised locally.
func domainAllowed(hostname, domain string) bool {
	if domain == "" || hostname == "" {
		return true
	}
	if strings.Contains(hostname, "localhost") || strings.Contains(hostname, "127.0.0.1") {
		return true
	}
	return strings.Contains(strings.ToLower(hostname), strings.ToLower(domain))
}

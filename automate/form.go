package automate

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"

	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/pattern"
	"github.com/hazyhaar/middleman/selector"
)

// FormResult is the outcome of one form-driven round. Exactly one of the
// terminal fields is meaningful: Done (termination reached), NeedsInput
// (render Doc back to the operator), or TimedOut.
type FormResult struct {
	Done       bool
	NeedsInput bool
	TimedOut   bool
	Template   string
	Doc        *goquery.Document
	Records    []distill.Record
}

// RunForm drives the multi-session server path: like Run, but field
// values come exclusively from submitted form data and the round pauses
// instead of blocking whenever required input is missing. A missing
// value is "not yet satisfied"; the caller re-renders the form and waits
// for another externally driven attempt.
func (r *Runner) RunForm(ctx context.Context, hostname string, page distill.Page, fields FormValues) (*FormResult, error) {
	log := r.logger()
	last := ""

	maxTicks := r.maxTicks()
	for tick := 1; tick <= maxTicks; tick++ {
		log.Info("loop: form tick", "tick", tick, "of", maxTicks)
		if err := sleep(ctx, r.interval()); err != nil {
			return nil, err
		}

		m, err := r.Distiller.Distill(ctx, hostname, page, r.Templates)
		if errors.Is(err, distill.ErrNoMatch) {
			log.Info("loop: no matched template")
			r.record(tick, "no_match", "", "")
			continue
		}
		if err != nil {
			return nil, err
		}
		if m.HTML == last {
			log.Info("loop: unchanged", "template", m.Name)
			continue
		}
		last = m.HTML
		r.record(tick, "match", m.Name, "form")

		if distill.Terminated(m.Doc) {
			log.Info("loop: terminated", "template", m.Name, "tick", tick)
			r.record(tick, "terminate", m.Name, "form")
			return &FormResult{
				Done:     true,
				Template: m.Name,
				Doc:      m.Doc,
				Records:  distill.Convert(m.Doc, log),
			}, nil
		}

		satisfied, total, err := r.fillFromForm(ctx, page, m.Doc, fields)
		if err != nil {
			return nil, err
		}

		if err := r.Autoclick.Run(ctx, page, m.Doc, ClickSecondary); err != nil {
			return nil, err
		}

		if m.Doc.Find(ClickSubmit).Length() > 0 {
			if total > 0 && satisfied == total {
				log.Info("loop: submitting form, all fields filled",
					"template", m.Name, "fields", total)
				if err := r.Autoclick.Run(ctx, page, m.Doc, ClickSubmit); err != nil {
					return nil, err
				}
				continue
			}
			log.Info("loop: form incomplete, waiting for input",
				"template", m.Name, "satisfied", satisfied, "total", total)
			return &FormResult{NeedsInput: true, Template: m.Name, Doc: m.Doc}, nil
		}
	}

	r.record(r.maxTicks(), "exhausted", "", "form")
	return &FormResult{TimedOut: true}, nil
}

// fillFromForm satisfies the snapshot's inputs from form data only.
// Returns how many inputs were satisfied out of how many exist; the
// caller gates submission on the two being equal.
func (r *Runner) fillFromForm(ctx context.Context, page distill.Page, doc *goquery.Document, fields FormValues) (satisfied, total int, err error) {
	log := r.logger()

	var inputs []*goquery.Selection
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		inputs = append(inputs, s)
	})
	total = len(inputs)

	clickedRadio := make(map[string]bool) // groups already resolved this pass

	for _, s := range inputs {
		name := s.AttrOr("name", "")
		expr := selector.Split(s.AttrOr(pattern.AttrMatch, ""))
		if expr.Empty() {
			log.Warn("loop: input without a selector", "name", name)
			continue
		}

		el, qerr := page.QueryVisible(ctx, expr)
		if errors.Is(qerr, distill.ErrNotFound) {
			log.Warn("loop: live input not found", "selector", expr.String())
			continue
		}
		if qerr != nil {
			return 0, 0, qerr
		}

		switch s.AttrOr("type", "") {
		case "checkbox":
			if name == "" {
				log.Warn("loop: checkbox without a name", "selector", expr.String())
				continue
			}
			// Presence of any value means checked.
			checked := fields[name] != ""
			satisfied++
			log.Info("loop: checkbox state", "name", name, "checked", checked)
			if checked {
				if err := el.Click(ctx); err != nil {
					return 0, 0, err
				}
				s.SetAttr("checked", "checked")
			}
		case "radio":
			value := fields[name]
			if value == "" {
				log.Warn("loop: no form data for radio group", "name", name)
				continue
			}
			if clickedRadio[name] {
				satisfied++
				continue
			}
			clickedRadio[name] = true
			radio := doc.Find(`input[type=radio][id="` + value + `"]`).First()
			if radio.Length() == 0 {
				log.Warn("loop: no radio button with submitted id", "id", value)
				continue
			}
			rexpr := selector.Split(radio.AttrOr(pattern.AttrMatch, ""))
			if rexpr.Empty() {
				continue
			}
			rel, qerr := page.QueryVisible(ctx, rexpr)
			if errors.Is(qerr, distill.ErrNotFound) {
				log.Warn("loop: live radio not found", "selector", rexpr.String())
				continue
			}
			if qerr != nil {
				return 0, 0, qerr
			}
			if err := rel.Click(ctx); err != nil {
				return 0, 0, err
			}
			radio.SetAttr("checked", "checked")
			satisfied++
			if err := sleep(ctx, r.Autofill.delay()); err != nil {
				return 0, 0, err
			}
		default:
			if name == "" {
				continue
			}
			value := fields[name]
			if value == "" {
				log.Warn("loop: no form data for field", "name", name)
				continue
			}
			log.Info("loop: using form data", "name", name)
			if err := el.Input(ctx, value); err != nil {
				return 0, 0, err
			}
			s.SetAttr("value", value)
			satisfied++
			delete(fields, name)
			if err := sleep(ctx, r.Autofill.delay()); err != nil {
				return 0, 0, err
			}
		}
	}
	return satisfied, total, nil
}

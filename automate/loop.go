package automate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hazyhaar/middleman/distill"
	"github.com/hazyhaar/middleman/pattern"
)

const (
	defaultTick     = time.Second
	defaultMaxTicks = 15
)

// Recorder receives per-tick automation events; the journal store
// implements it. Best effort: implementations must never block the loop.
type Recorder interface {
	RecordEvent(sessionID string, tick int, event, template, detail string)
}

// Outcome summarises one automation run.
type Outcome struct {
	// Finished is true when a termination marker ended the run before the
	// iteration cap. Reaching the cap is not an error; the caller decides
	// what an unfinished session means.
	Finished bool
	Template string
	Snapshot string
	Records  []distill.Record
	Ticks    int
}

// Runner drives the bounded polling loop: distill, autofill, autoclick,
// terminate, convert. All page operations on one session run in
// sequence, never concurrently.
type Runner struct {
	Distiller *distill.Distiller
	Autofill  *Autofiller
	Autoclick *Autoclicker
	Templates []*pattern.Template
	Logger    *slog.Logger

	// SessionID labels journal events; empty disables attribution only.
	SessionID string
	Journal   Recorder

	Interval time.Duration
	MaxTicks int
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) interval() time.Duration {
	if r.Interval > 0 {
		return r.Interval
	}
	return defaultTick
}

func (r *Runner) maxTicks() int {
	if r.MaxTicks > 0 {
		return r.MaxTicks
	}
	return defaultMaxTicks
}

func (r *Runner) record(tick int, event, template, detail string) {
	if r.Journal != nil {
		r.Journal.RecordEvent(r.SessionID, tick, event, template, detail)
	}
}

// Run polls the page until a termination marker appears or the iteration
// cap is reached. A tick whose snapshot is byte-identical to the previous
// one does no work beyond the distillation itself.
func (r *Runner) Run(ctx context.Context, hostname string, page distill.Page) (*Outcome, error) {
	log := r.logger()
	out := &Outcome{}
	last := ""

	maxTicks := r.maxTicks()
	for tick := 1; tick <= maxTicks; tick++ {
		out.Ticks = tick
		log.Info("loop: tick", "tick", tick, "of", maxTicks)
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
			r.record(tick, "unchanged", m.Name, "")
			continue
		}
		last = m.HTML
		out.Template = m.Name
		out.Snapshot = m.HTML
		r.record(tick, "match", m.Name, "")

		filled, err := r.Autofill.Run(ctx, page, m.Doc)
		if err != nil {
			return nil, err
		}
		out.Snapshot = filled
		r.record(tick, "autofill", m.Name, "")

		if err := r.Autoclick.Run(ctx, page, m.Doc, ClickSecondary); err != nil {
			return nil, err
		}
		if err := r.Autoclick.Run(ctx, page, m.Doc, ClickSubmit); err != nil {
			return nil, err
		}

		if distill.Terminated(m.Doc) {
			log.Info("loop: terminated", "template", m.Name, "tick", tick)
			out.Finished = true
			out.Records = distill.Convert(m.Doc, log)
			r.record(tick, "terminate", m.Name, "")
			return out, nil
		}
	}

	log.Info("loop: iteration cap reached without termination", "ticks", out.Ticks)
	r.record(out.Ticks, "exhausted", out.Template, "")
	return out, nil
}

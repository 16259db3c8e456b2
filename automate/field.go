// Package automate sequences the automation sub-engines over a matched
// snapshot: autofill, autoclick, termination, conversion, and the polling
// loop that drives them.
package automate

import (
	"context"
	"strings"
)

// Field describes one input awaiting a value, derived from a snapshot
// element during an autofill pass. Not stored anywhere.
type Field struct {
	Type        string
	Name        string
	Placeholder string
	Domain      string
	Masked      bool
}

// Label is the prompt shown when a field has no placeholder.
func (f Field) Label() string {
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return "Please enter " + f.Key()
}

// Key is the field's lookup name: the declared name, falling back to the
// input type.
func (f Field) Key() string {
	if f.Name != "" {
		return f.Name
	}
	return f.Type
}

// ConfigKey is the environment key holding this field's value:
// upper-case {DOMAIN}_{FIELD} when the template declares a domain,
// upper-case {FIELD} otherwise.
func (f Field) ConfigKey() string {
	if f.Domain != "" {
		return strings.ToUpper(f.Domain + "_" + f.Key())
	}
	return strings.ToUpper(f.Key())
}

// Option is one radio button in a group.
type Option struct {
	ID    string
	Label string
}

// Group is a radio group presented for a single choice.
type Group struct {
	Name    string
	Options []Option
}

// FieldSource resolves missing field values. Interactive prompting and
// HTTP form data are two implementations of the same capability; the
// engines never branch on execution mode.
//
// A false second return means "not yet satisfied": the caller skips the
// field without error and a later pass may try again.
type FieldSource interface {
	Value(ctx context.Context, f Field) (string, bool, error)
	Choice(ctx context.Context, g Group) (int, bool, error)
}

// FormValues satisfies fields from externally supplied form data, the
// multi-session server path. Absent values are unsatisfied, never errors.
type FormValues map[string]string

// Value looks the field up by name, falling back to type.
func (fv FormValues) Value(_ context.Context, f Field) (string, bool, error) {
	v := fv[f.Key()]
	return v, v != "", nil
}

// Choice matches the submitted value against an option ID.
func (fv FormValues) Choice(_ context.Context, g Group) (int, bool, error) {
	v := fv[g.Name]
	if v == "" {
		return 0, false, nil
	}
	for i, opt := range g.Options {
		if opt.ID == v {
			return i, true, nil
		}
	}
	return 0, false, nil
}

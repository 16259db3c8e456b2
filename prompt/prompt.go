// Package prompt collects field values from an operator at the terminal.
// It is the interactive counterpart of form-submitted values: the CLI run
// command wires it into the automation loop as its field source.
package prompt

import (
	"context"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"

	"github.com/hazyhaar/middleman/automate"
)

// Interactive asks the operator for every field the page needs. Masked
// fields (passwords) echo asterisks.
type Interactive struct{}

var _ automate.FieldSource = Interactive{}

// Value prompts for a single text field. Aborting the prompt (Ctrl-C)
// counts as "no value" rather than an error so the loop can move on.
func (Interactive) Value(ctx context.Context, f automate.Field) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	p := promptui.Prompt{Label: f.Label()}
	if f.Masked {
		p.Mask = '*'
	}

	v, err := p.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("prompt: %s: %w", f.Key(), err)
	}
	return v, true, nil
}

// Choice presents a radio group as a select menu and returns the index
// of the chosen option.
func (Interactive) Choice(ctx context.Context, g automate.Group) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}

	labels := make([]string, len(g.Options))
	for i, opt := range g.Options {
		labels[i] = opt.Label
	}

	s := promptui.Select{
		Label: "Please choose " + g.Name,
		Items: labels,
	}
	idx, _, err := s.Run()
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrAbort) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("prompt: %s: %w", g.Name, err)
	}
	return idx, true, nil
}

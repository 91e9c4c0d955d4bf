// Package rank maps accumulated XP to a rank on an epoch-dependent curve.
package rank

import (
	"fmt"
	"sort"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Step is one rung of a curve. RewardFactor scales activity credits for
// members holding the rank; zero means 1.0.
type Step struct {
	Threshold    int64   `json:"threshold"`
	Name         string  `json:"name"`
	Icon         string  `json:"icon,omitempty"`
	RewardFactor float64 `json:"rewardFactor,omitempty"`
}

// Factor returns the effective reward factor for the step.
func (s Step) Factor() float64 {
	if s.RewardFactor <= 0 {
		return 1.0
	}
	return s.RewardFactor
}

// Curve is an ordered ladder of steps. Thresholds are strictly increasing
// and start at zero, so every non-negative XP value maps to exactly one step.
type Curve struct {
	epoch model.Epoch
	steps []Step
}

// NewCurve validates the step list and builds a curve.
func NewCurve(epoch model.Epoch, steps []Step) (Curve, error) {
	if epoch == "" {
		return Curve{}, fmt.Errorf("curve epoch is empty")
	}
	if len(steps) == 0 {
		return Curve{}, fmt.Errorf("curve %q has no steps", epoch)
	}
	if steps[0].Threshold != 0 {
		return Curve{}, fmt.Errorf("curve %q must start at threshold 0, got %d", epoch, steps[0].Threshold)
	}
	for i, s := range steps {
		if s.Name == "" {
			return Curve{}, fmt.Errorf("curve %q step %d has no name", epoch, i)
		}
		if s.RewardFactor < 0 {
			return Curve{}, fmt.Errorf("curve %q step %q has negative reward factor", epoch, s.Name)
		}
		if i > 0 && s.Threshold <= steps[i-1].Threshold {
			return Curve{}, fmt.Errorf("curve %q thresholds not strictly increasing at %q", epoch, s.Name)
		}
	}
	cp := make([]Step, len(steps))
	copy(cp, steps)
	return Curve{epoch: epoch, steps: cp}, nil
}

// Epoch returns the curve's epoch tag.
func (c Curve) Epoch() model.Epoch { return c.epoch }

// Steps returns a copy of the ladder.
func (c Curve) Steps() []Step {
	cp := make([]Step, len(c.steps))
	copy(cp, c.steps)
	return cp
}

// At returns the step of the highest threshold not exceeding xp. An exact
// threshold match resolves to that step, not the one below. Callers reject
// negative xp before calling.
func (c Curve) At(xp int64) Step {
	i := sort.Search(len(c.steps), func(i int) bool { return c.steps[i].Threshold > xp })
	return c.steps[i-1]
}

// Next returns the step above the one xp currently maps to, or false at the
// top of the ladder.
func (c Curve) Next(xp int64) (Step, bool) {
	i := sort.Search(len(c.steps), func(i int) bool { return c.steps[i].Threshold > xp })
	if i >= len(c.steps) {
		return Step{}, false
	}
	return c.steps[i], true
}

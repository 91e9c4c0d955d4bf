package rank

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Set holds every known curve plus the legacy cutover. A member's epoch is
// decided once, when their record is created, and stored on the record.
type Set struct {
	curves  map[model.Epoch]Curve
	cutover time.Time
}

// NewSet builds a set from validated curves. The standard epoch must be
// present; it is the fallback for records tagged with an epoch the current
// configuration no longer defines.
func NewSet(cutover time.Time, curves ...Curve) (*Set, error) {
	m := make(map[model.Epoch]Curve, len(curves))
	for _, c := range curves {
		if _, dup := m[c.epoch]; dup {
			return nil, fmt.Errorf("duplicate curve epoch %q", c.epoch)
		}
		m[c.epoch] = c
	}
	if _, ok := m[model.EpochStandard]; !ok {
		return nil, fmt.Errorf("curve set is missing the %q epoch", model.EpochStandard)
	}
	return &Set{curves: m, cutover: cutover}, nil
}

// LoadSet reads curve definitions from a JSON file keyed by epoch name.
func LoadSet(path string, cutover time.Time) (*Set, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curves file: %w", err)
	}
	var byEpoch map[model.Epoch][]Step
	if err := json.Unmarshal(raw, &byEpoch); err != nil {
		return nil, fmt.Errorf("parse curves file %s: %w", path, err)
	}
	curves := make([]Curve, 0, len(byEpoch))
	for epoch, steps := range byEpoch {
		c, err := NewCurve(epoch, steps)
		if err != nil {
			return nil, err
		}
		curves = append(curves, c)
	}
	return NewSet(cutover, curves...)
}

// EpochFor picks the curve epoch for a record created at the given time.
func (s *Set) EpochFor(createdAt time.Time) model.Epoch {
	if createdAt.Before(s.cutover) {
		return model.EpochLegacy
	}
	return model.EpochStandard
}

// Curve returns the ladder for an epoch, falling back to the standard curve
// for unknown tags.
func (s *Set) Curve(epoch model.Epoch) Curve {
	if c, ok := s.curves[epoch]; ok {
		return c
	}
	return s.curves[model.EpochStandard]
}

// For returns the step a member with the given epoch and XP holds.
func (s *Set) For(epoch model.Epoch, xp int64) Step {
	return s.Curve(epoch).At(xp)
}

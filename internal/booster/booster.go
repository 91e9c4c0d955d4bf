// Package booster manages temporary reward multipliers on a member record.
// At most one booster per class may be active; stacking was an exploit in an
// earlier iteration of the economy and is rejected outright.
package booster

import (
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Identity is the multiplier applied when no booster of a class is active.
const Identity = 1.0

// Effective returns the magnitude of the active booster for a class, or
// Identity when none is active or it has expired. Expired entries are
// ignored, not removed; reads stay free of side effects and cleanup happens
// on the next mutation via Prune.
func Effective(set map[model.BoosterClass]model.Booster, class model.BoosterClass, now time.Time) float64 {
	b, ok := set[class]
	if !ok || b.Expired(now) {
		return Identity
	}
	return b.Magnitude
}

// Active reports whether an unexpired booster of the class exists.
func Active(set map[model.BoosterClass]model.Booster, class model.BoosterClass, now time.Time) bool {
	b, ok := set[class]
	return ok && !b.Expired(now)
}

// Activate installs a booster. It fails (ok=false) when an unexpired booster
// of the same class is present; an expired leftover is replaced. The
// returned map is the caller's map, extended in place, allocating only when
// the set was nil.
func Activate(set map[model.BoosterClass]model.Booster, b model.Booster) (map[model.BoosterClass]model.Booster, bool) {
	if Active(set, b.Class, b.ActivatedAt) {
		return set, false
	}
	if set == nil {
		set = make(map[model.BoosterClass]model.Booster, 1)
	}
	set[b.Class] = b
	return set, true
}

// Prune drops expired boosters from the set and reports how many were
// removed. Safe to call repeatedly; a second pass removes nothing.
func Prune(set map[model.BoosterClass]model.Booster, now time.Time) int {
	removed := 0
	for class, b := range set {
		if b.Expired(now) {
			delete(set, class)
			removed++
		}
	}
	return removed
}

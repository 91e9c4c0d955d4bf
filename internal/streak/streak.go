// Package streak computes daily-claim streak transitions. It is pure: the
// current date is always injected by the caller, never read from a clock.
package streak

import (
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Result is the outcome of advancing a streak by one claim attempt.
type Result struct {
	// Valid is false when the member already claimed on the given date; the
	// caller must reject the claim and leave the record untouched.
	Valid  bool
	Length int
}

// Advance applies the claim rules for "today" (a UTC calendar date in
// model.DateLayout form) against the previous claim date and streak length.
// An empty or unreadable previous date counts as a first claim. A previous
// date in the future is rejected; it can only come from clock trouble and
// accepting it would allow repeat claims.
func Advance(prevDate string, prevLen int, today string) Result {
	prev, ok := model.ParseDate(prevDate)
	if !ok {
		return Result{Valid: true, Length: 1}
	}
	now, ok := model.ParseDate(today)
	if !ok {
		return Result{Valid: false, Length: prevLen}
	}

	switch days := daysBetween(prev, now); {
	case days == 0:
		return Result{Valid: false, Length: prevLen}
	case days == 1:
		return Result{Valid: true, Length: prevLen + 1}
	case days > 1:
		return Result{Valid: true, Length: 1}
	default:
		return Result{Valid: false, Length: prevLen}
	}
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// Tier is a streak milestone band. The tracker only classifies; the bonus
// magnitude each tier carries is applied by the reward calculation.
type Tier int

const (
	TierBaseline Tier = iota
	Tier1
	Tier2
	Tier3
)

// TierOf classifies a streak length.
func TierOf(length int) Tier {
	switch {
	case length >= 100:
		return Tier3
	case length >= 30:
		return Tier2
	case length >= 7:
		return Tier1
	default:
		return TierBaseline
	}
}

// Index returns the tier as a bonus-table index.
func (t Tier) Index() int { return int(t) }

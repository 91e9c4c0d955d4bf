package rank

import (
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Production ladders. The legacy ladder predates the progression rework and
// still applies to members enrolled before the cutover; the standard ladder
// carries per-rank reward factors.
var (
	legacySteps = []Step{
		{Threshold: 0, Name: "Rookie", Icon: "🔰"},
		{Threshold: 100, Name: "Private", Icon: "⭐"},
		{Threshold: 200, Name: "Specialist", Icon: "⭐"},
		{Threshold: 350, Name: "Corporal", Icon: "⭐⭐"},
		{Threshold: 500, Name: "Sergeant", Icon: "⭐⭐⭐"},
		{Threshold: 750, Name: "Lieutenant", Icon: "🥉"},
		{Threshold: 1000, Name: "Captain", Icon: "🥈"},
		{Threshold: 1500, Name: "Major", Icon: "🥇"},
		{Threshold: 2500, Name: "Colonel", Icon: "💎"},
		{Threshold: 4000, Name: "FOXHOUND", Icon: "🦊"},
	}

	standardSteps = []Step{
		{Threshold: 0, Name: "New Lifeform", Icon: "🥚", RewardFactor: 1.0},
		{Threshold: 50, Name: "Grass Kisser", Icon: "🌱", RewardFactor: 1.0},
		{Threshold: 100, Name: "Busy Bee", Icon: "🐝", RewardFactor: 1.1},
		{Threshold: 500, Name: "Active Af", Icon: "⚡", RewardFactor: 1.2},
		{Threshold: 1500, Name: "Computer Cuddler", Icon: "💻", RewardFactor: 1.3},
		{Threshold: 2500, Name: "Discord Dweller", Icon: "📡", RewardFactor: 1.4},
		{Threshold: 5000, Name: "Keyboard Philosopher", Icon: "⌨️", RewardFactor: 1.5},
		{Threshold: 8000, Name: "Server Resident", Icon: "🏠", RewardFactor: 1.6},
		{Threshold: 12000, Name: "Discord Degenerate", Icon: "🔥", RewardFactor: 1.7},
		{Threshold: 20000, Name: "Anti-Grass Toucher", Icon: "🧠", RewardFactor: 2.0},
	}
)

// DefaultSet returns the compiled-in curves.
func DefaultSet(cutover time.Time) *Set {
	legacy, err := NewCurve(model.EpochLegacy, legacySteps)
	if err != nil {
		panic(err)
	}
	standard, err := NewCurve(model.EpochStandard, standardSteps)
	if err != nil {
		panic(err)
	}
	s, err := NewSet(cutover, legacy, standard)
	if err != nil {
		panic(err)
	}
	return s
}

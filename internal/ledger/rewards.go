package ledger

// Activity kinds accepted by CreditActivity. The listener maps platform
// events onto these.
const (
	ActivityMessage          = "message"
	ActivityVoiceMinute      = "voice_minute"
	ActivityReaction         = "reaction"
	ActivityReactionReceived = "reaction_received"
	ActivityTacticalWord     = "tactical_word"
)

// Reward is the base grant for one unit of a tracked activity, before rank
// and booster multipliers.
type Reward struct {
	XP  int64
	GMP int64
}

// DefaultRewards returns the stock per-activity reward table. Deployments
// override it through Options.Rewards.
func DefaultRewards() map[string]Reward {
	return map[string]Reward{
		ActivityMessage:          {XP: 3, GMP: 15},
		ActivityVoiceMinute:      {XP: 2, GMP: 8},
		ActivityReaction:         {XP: 1, GMP: 3},
		ActivityReactionReceived: {XP: 2, GMP: 8},
		ActivityTacticalWord:     {XP: 8, GMP: 25},
	}
}

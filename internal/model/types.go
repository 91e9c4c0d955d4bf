package model

import "time"

// Key identifies one member's record within one community.
type Key struct {
	CommunityID string `json:"communityId"`
	MemberID    string `json:"memberId"`
}

func (k Key) String() string { return k.CommunityID + "/" + k.MemberID }

// Epoch names the rank curve a record was created under. It is frozen at
// record creation and never re-evaluated when curves change.
type Epoch string

const (
	EpochLegacy   Epoch = "legacy"
	EpochStandard Epoch = "standard"
)

// BoosterClass scopes a temporary multiplier. Classes are mutually
// independent: a booster of one class never alters rewards of another.
type BoosterClass string

const (
	BoosterXP    BoosterClass = "xp"
	BoosterGMP   BoosterClass = "gmp"
	BoosterDaily BoosterClass = "daily"
)

// Booster is an active multiplier on a member record.
type Booster struct {
	Class       BoosterClass `json:"class"`
	Magnitude   float64      `json:"magnitude"`
	ActivatedAt time.Time    `json:"activatedAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	SourceItem  string       `json:"sourceItem,omitempty"`
}

// Expired reports whether the booster has lapsed at the given instant.
func (b Booster) Expired(now time.Time) bool { return !now.Before(b.ExpiresAt) }

// EntryStatus is the lifecycle state of an owned item instance.
type EntryStatus string

const (
	EntryHeld    EntryStatus = "held"
	EntryActive  EntryStatus = "active"
	EntryExpired EntryStatus = "expired"
)

// InventoryEntry is one owned instance of a catalog item. Entries are never
// deleted; expiry only flips the status.
type InventoryEntry struct {
	ID          string      `json:"id"`
	ItemID      string      `json:"itemId"`
	Status      EntryStatus `json:"status"`
	AcquiredAt  time.Time   `json:"acquiredAt"`
	ActivatedAt *time.Time  `json:"activatedAt,omitempty"`
	ExpiresAt   *time.Time  `json:"expiresAt,omitempty"`
}

// MemberRecord is the authoritative progression state for one member in one
// community. It is mutated only through the ledger's operations.
type MemberRecord struct {
	MemberID    string `json:"memberId"`
	CommunityID string `json:"communityId"`

	XP         int64  `json:"xp"`
	GMP        int64  `json:"gmp"`
	Rank       string `json:"rank"`
	CurveEpoch Epoch  `json:"curveEpoch"`

	// LastDaily is a UTC calendar date (YYYY-MM-DD); empty means no claim
	// has ever succeeded.
	LastDaily     string `json:"lastDaily,omitempty"`
	DailyStreak   int    `json:"dailyStreak"`
	LongestStreak int    `json:"longestStreak"`

	MessagesSent      int64 `json:"messagesSent"`
	VoiceMinutes      int64 `json:"voiceMinutes"`
	ReactionsGiven    int64 `json:"reactionsGiven"`
	ReactionsReceived int64 `json:"reactionsReceived"`
	TacticalWords     int64 `json:"tacticalWords"`

	Verified bool   `json:"verified"`
	Bio      string `json:"bio,omitempty"`

	Inventory []InventoryEntry          `json:"inventory,omitempty"`
	Boosters  map[BoosterClass]Booster  `json:"boosters,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Key returns the record's identity pair.
func (r *MemberRecord) Key() Key {
	return Key{CommunityID: r.CommunityID, MemberID: r.MemberID}
}

// Clone returns a deep copy safe to hand to callers or mutate before commit.
func (r *MemberRecord) Clone() *MemberRecord {
	cp := *r
	if r.Inventory != nil {
		cp.Inventory = make([]InventoryEntry, len(r.Inventory))
		copy(cp.Inventory, r.Inventory)
	}
	if r.Boosters != nil {
		cp.Boosters = make(map[BoosterClass]Booster, len(r.Boosters))
		for c, b := range r.Boosters {
			cp.Boosters[c] = b
		}
	}
	return &cp
}

// ItemCategory classifies catalog entries.
type ItemCategory string

const (
	CategoryBooster      ItemCategory = "booster"
	CategoryCosmetic     ItemCategory = "cosmetic"
	CategoryRole         ItemCategory = "role"
	CategoryCurrencyPack ItemCategory = "currency-pack"
)

// ItemEffect describes what activating an item does.
type ItemEffect struct {
	// Kind is one of "booster", "grant_gmp", "cosmetic", "role".
	Kind      string       `json:"kind"`
	Class     BoosterClass `json:"class,omitempty"`
	Magnitude float64      `json:"magnitude,omitempty"`
	Amount    int64        `json:"amount,omitempty"`
}

const (
	EffectBooster  = "booster"
	EffectGrantGMP = "grant_gmp"
	EffectCosmetic = "cosmetic"
	EffectRole     = "role"
)

// ItemDefinition is one catalog entry. Definitions are immutable once the
// catalog is loaded; changes ship under a new id.
type ItemDefinition struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Category    ItemCategory `json:"category"`
	Price       int64        `json:"price"`
	// DurationHours is the active lifetime after activation; 0 means the
	// effect is instantaneous (currency packs) or permanent (cosmetics,
	// roles).
	DurationHours int        `json:"durationHours"`
	Effect        ItemEffect `json:"effect"`
}

// TTL returns the activation lifetime as a duration.
func (d ItemDefinition) TTL() time.Duration { return time.Duration(d.DurationHours) * time.Hour }

// TransactionKind classifies audit entries.
type TransactionKind string

const (
	TxTransfer TransactionKind = "transfer"
	TxPurchase TransactionKind = "purchase"
	TxReward   TransactionKind = "reward"
	TxAdmin    TransactionKind = "admin"
)

// TransactionRecord is a write-once audit entry. From is empty for system
// grants such as daily rewards.
type TransactionRecord struct {
	ID          string          `json:"id"`
	CommunityID string          `json:"communityId"`
	From        string          `json:"from,omitempty"`
	To          string          `json:"to"`
	Amount      int64           `json:"amount"`
	Fee         int64           `json:"fee,omitempty"`
	Kind        TransactionKind `json:"kind"`
	Note        string          `json:"note,omitempty"`
	At          time.Time       `json:"at"`
}

// RankChange reports the outcome of a credit for the rank-change hook. One
// change is reported per operation regardless of how many thresholds were
// crossed.
type RankChange struct {
	Old     string `json:"oldRank"`
	New     string `json:"newRank"`
	Changed bool   `json:"changed"`
}

// Metric selects a leaderboard ordering.
type Metric string

const (
	MetricXP       Metric = "xp"
	MetricGMP      Metric = "gmp"
	MetricMessages Metric = "messages"
	MetricTactical Metric = "tactical"
)

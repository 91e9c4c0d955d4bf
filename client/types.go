package client

import "time"

// Wire types for the ledger REST API. Field names and JSON tags follow the
// server responses exactly; timestamps are RFC 3339.

// Member is one member's progression record within a community.
type Member struct {
	MemberID    string `json:"memberId"`
	CommunityID string `json:"communityId"`

	XP         int64  `json:"xp"`
	GMP        int64  `json:"gmp"`
	Rank       string `json:"rank"`
	CurveEpoch string `json:"curveEpoch"`

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

	Inventory []InventoryEntry   `json:"inventory,omitempty"`
	Boosters  map[string]Booster `json:"boosters,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Booster is an active reward multiplier. Class is "xp", "gmp" or "daily".
type Booster struct {
	Class       string    `json:"class"`
	Magnitude   float64   `json:"magnitude"`
	ActivatedAt time.Time `json:"activatedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	SourceItem  string    `json:"sourceItem,omitempty"`
}

// InventoryEntry is one owned instance of a shop item. Status is "held",
// "active" or "expired".
type InventoryEntry struct {
	ID          string     `json:"id"`
	ItemID      string     `json:"itemId"`
	Status      string     `json:"status"`
	AcquiredAt  time.Time  `json:"acquiredAt"`
	ActivatedAt *time.Time `json:"activatedAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
}

// OwnedItem is an inventory entry joined with its catalog definition, as
// returned by the inventory endpoint.
type OwnedItem struct {
	InventoryEntry
	Item Item `json:"item"`
}

// ItemEffect describes what activating an item does.
type ItemEffect struct {
	Kind      string  `json:"kind"`
	Class     string  `json:"class,omitempty"`
	Magnitude float64 `json:"magnitude,omitempty"`
	Amount    int64   `json:"amount,omitempty"`
}

// Item is one shop catalog entry.
type Item struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	Category      string     `json:"category"`
	Price         int64      `json:"price"`
	DurationHours int        `json:"durationHours"`
	Effect        ItemEffect `json:"effect"`
}

// Listing pairs an item with whether the viewing member can afford it.
type Listing struct {
	Item      Item `json:"item"`
	CanAfford bool `json:"canAfford"`
}

// ShopView is the catalog priced against one member's balance.
type ShopView struct {
	Balance int64     `json:"balance"`
	Items   []Listing `json:"items"`
}

// Transaction is a write-once currency audit entry. From is empty for
// system grants such as daily rewards.
type Transaction struct {
	ID          string    `json:"id"`
	CommunityID string    `json:"communityId"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to"`
	Amount      int64     `json:"amount"`
	Fee         int64     `json:"fee,omitempty"`
	Kind        string    `json:"kind"`
	Note        string    `json:"note,omitempty"`
	At          time.Time `json:"at"`
}

// RankChange reports how a mutation moved the member's rank.
type RankChange struct {
	Old     string `json:"oldRank"`
	New     string `json:"newRank"`
	Changed bool   `json:"changed"`
}

// MutationResult is the response of crediting operations: the updated record
// plus the rank outcome.
type MutationResult struct {
	Member *Member    `json:"member"`
	Rank   RankChange `json:"rank"`
}

// DailyReward is what a successful daily claim paid out.
type DailyReward struct {
	XP     int64      `json:"xp"`
	GMP    int64      `json:"gmp"`
	Streak int        `json:"streak"`
	Tier   int        `json:"tier"`
	Rank   RankChange `json:"rank"`
}

// ClaimResult is the response of a daily claim.
type ClaimResult struct {
	Member *Member     `json:"member"`
	Reward DailyReward `json:"reward"`
}

// InventoryResult is the response of purchases and activations.
type InventoryResult struct {
	Member *Member         `json:"member"`
	Entry  *InventoryEntry `json:"entry"`
}

// BackupEntry is one row of the mirror's replication history.
type BackupEntry struct {
	ID          int64     `json:"id"`
	At          time.Time `json:"at"`
	Members     int       `json:"members"`
	Communities int       `json:"communities"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
}

// SyncStatus reports the replication backlog and recent push outcomes.
type SyncStatus struct {
	Pending     int64     `json:"pending"`
	InFlight    int       `json:"inFlight"`
	LastPush    time.Time `json:"lastPush"`
	LastFull    time.Time `json:"lastFull"`
	LastError   string    `json:"lastError,omitempty"`
	FullRunning bool      `json:"fullRunning"`
}

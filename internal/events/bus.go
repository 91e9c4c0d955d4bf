// Package events carries in-process notifications from the ledger to
// collaborators such as the role-assignment listener.
package events

import (
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// RankChange is published once per crediting operation that moved a member
// across one or more rank thresholds. OldRank and NewRank are the endpoints;
// intermediate ranks crossed in the same credit are not reported separately.
type RankChange struct {
	Key     model.Key
	OldRank string
	NewRank string
	XP      int64
	At      time.Time
}

// Bus is a lightweight in-process pub-sub backed by a buffered channel. A
// bus is constructed by the owning process and injected where needed; there
// is no package-level instance.
type Bus struct {
	ch chan RankChange
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	return &Bus{ch: make(chan RankChange, buffer)}
}

// Publish attempts to enqueue the event without blocking so a slow consumer
// can never stall a ledger commit. Returns false if the buffer is full and
// the event was dropped.
func (b *Bus) Publish(evt RankChange) bool {
	select {
	case b.ch <- evt:
		return true
	default:
		return false
	}
}

// Subscribe returns the consumer channel.
func (b *Bus) Subscribe() <-chan RankChange {
	return b.ch
}

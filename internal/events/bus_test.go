package events

import (
	"testing"
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(2)
	evt := RankChange{
		Key:     model.Key{CommunityID: "c1", MemberID: "m1"},
		OldRank: "Rookie",
		NewRank: "Private",
		XP:      120,
		At:      time.Now(),
	}
	if !bus.Publish(evt) {
		t.Fatalf("publish into empty buffer failed")
	}
	got := <-bus.Subscribe()
	if got.NewRank != "Private" || got.Key.MemberID != "m1" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus(1)
	if !bus.Publish(RankChange{NewRank: "a"}) {
		t.Fatalf("first publish failed")
	}
	if bus.Publish(RankChange{NewRank: "b"}) {
		t.Fatalf("publish into full buffer should report a drop")
	}
}

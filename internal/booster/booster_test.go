package booster

import (
	"testing"
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func mk(class model.BoosterClass, mag float64, from time.Time, ttl time.Duration) model.Booster {
	return model.Booster{Class: class, Magnitude: mag, ActivatedAt: from, ExpiresAt: from.Add(ttl)}
}

func TestEffectiveIdentityWhenEmpty(t *testing.T) {
	if got := Effective(nil, model.BoosterXP, t0); got != Identity {
		t.Fatalf("empty set effective = %v", got)
	}
}

func TestActivateAndEffective(t *testing.T) {
	set, ok := Activate(nil, mk(model.BoosterXP, 2.0, t0, 2*time.Hour))
	if !ok {
		t.Fatalf("first activation rejected")
	}
	if got := Effective(set, model.BoosterXP, t0.Add(time.Hour)); got != 2.0 {
		t.Fatalf("effective = %v, want 2.0", got)
	}
	// other classes are untouched
	if got := Effective(set, model.BoosterGMP, t0.Add(time.Hour)); got != Identity {
		t.Fatalf("gmp class leaked xp booster: %v", got)
	}
}

func TestActivateRejectsStacking(t *testing.T) {
	set, _ := Activate(nil, mk(model.BoosterXP, 2.0, t0, 2*time.Hour))
	set, ok := Activate(set, mk(model.BoosterXP, 3.0, t0.Add(time.Minute), time.Hour))
	if ok {
		t.Fatalf("stacked activation accepted")
	}
	if got := Effective(set, model.BoosterXP, t0.Add(time.Minute)); got != 2.0 {
		t.Fatalf("effective changed after rejected stack: %v", got)
	}
}

func TestActivateReplacesExpired(t *testing.T) {
	set, _ := Activate(nil, mk(model.BoosterXP, 2.0, t0, time.Hour))
	set, ok := Activate(set, mk(model.BoosterXP, 1.5, t0.Add(2*time.Hour), time.Hour))
	if !ok {
		t.Fatalf("activation over expired booster rejected")
	}
	if got := Effective(set, model.BoosterXP, t0.Add(2*time.Hour)); got != 1.5 {
		t.Fatalf("effective = %v, want 1.5", got)
	}
}

func TestEffectiveIgnoresExpired(t *testing.T) {
	set, _ := Activate(nil, mk(model.BoosterDaily, 2.0, t0, time.Hour))
	if got := Effective(set, model.BoosterDaily, t0.Add(time.Hour)); got != Identity {
		t.Fatalf("expired booster still effective: %v", got)
	}
	if len(set) != 1 {
		t.Fatalf("read evicted the entry; Prune owns cleanup")
	}
}

func TestPruneIdempotent(t *testing.T) {
	set, _ := Activate(nil, mk(model.BoosterXP, 2.0, t0, time.Hour))
	set, _ = Activate(set, mk(model.BoosterGMP, 2.0, t0, 3*time.Hour))

	at := t0.Add(2 * time.Hour)
	if removed := Prune(set, at); removed != 1 {
		t.Fatalf("first prune removed %d, want 1", removed)
	}
	if removed := Prune(set, at); removed != 0 {
		t.Fatalf("second prune removed %d, want 0", removed)
	}
	if !Active(set, model.BoosterGMP, at) {
		t.Fatalf("prune dropped a live booster")
	}
}

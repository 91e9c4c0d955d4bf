package rank

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/r-ddle/exile-ledger/internal/model"
)

func testSet(t *testing.T) *Set {
	t.Helper()
	return DefaultSet(time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
}

func TestCurveAt(t *testing.T) {
	s := testSet(t)

	cases := []struct {
		epoch model.Epoch
		xp    int64
		want  string
	}{
		{model.EpochLegacy, 0, "Rookie"},
		{model.EpochLegacy, 99, "Rookie"},
		{model.EpochLegacy, 100, "Private"}, // exact threshold resolves up
		{model.EpochLegacy, 120, "Private"},
		{model.EpochLegacy, 4000, "FOXHOUND"},
		{model.EpochLegacy, 999999, "FOXHOUND"},
		{model.EpochStandard, 0, "New Lifeform"},
		{model.EpochStandard, 49, "New Lifeform"},
		{model.EpochStandard, 50, "Grass Kisser"},
		{model.EpochStandard, 120, "Busy Bee"},
		{model.EpochStandard, 20000, "Anti-Grass Toucher"},
	}
	for _, tc := range cases {
		got := s.For(tc.epoch, tc.xp)
		if got.Name != tc.want {
			t.Fatalf("For(%s, %d) = %q, want %q", tc.epoch, tc.xp, got.Name, tc.want)
		}
	}
}

func TestCurveMonotonic(t *testing.T) {
	s := testSet(t)
	for _, epoch := range []model.Epoch{model.EpochLegacy, model.EpochStandard} {
		c := s.Curve(epoch)
		prev := int64(-1)
		for xp := int64(0); xp <= 21000; xp += 7 {
			step := c.At(xp)
			if step.Threshold < prev {
				t.Fatalf("curve %s not monotonic at xp=%d", epoch, xp)
			}
			prev = step.Threshold
		}
	}
}

func TestCurveRewardFactor(t *testing.T) {
	s := testSet(t)
	if f := s.For(model.EpochStandard, 20000).Factor(); f != 2.0 {
		t.Fatalf("top standard rank factor = %v, want 2.0", f)
	}
	if f := s.For(model.EpochLegacy, 4000).Factor(); f != 1.0 {
		t.Fatalf("legacy rank factor = %v, want 1.0", f)
	}
}

func TestCurveNext(t *testing.T) {
	c := testSet(t).Curve(model.EpochLegacy)
	next, ok := c.Next(120)
	if !ok || next.Name != "Specialist" {
		t.Fatalf("Next(120) = %v %v, want Specialist", next.Name, ok)
	}
	if _, ok := c.Next(4000); ok {
		t.Fatalf("Next at top of ladder should report false")
	}
}

func TestNewCurveValidation(t *testing.T) {
	bad := [][]Step{
		nil,
		{{Threshold: 10, Name: "starts late"}},
		{{Threshold: 0, Name: ""}},
		{{Threshold: 0, Name: "a"}, {Threshold: 0, Name: "b"}},
		{{Threshold: 0, Name: "a"}, {Threshold: 5, Name: "b", RewardFactor: -1}},
	}
	for i, steps := range bad {
		if _, err := NewCurve(model.EpochStandard, steps); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestEpochFor(t *testing.T) {
	s := testSet(t)
	before := time.Date(2025, 9, 30, 23, 59, 0, 0, time.UTC)
	after := time.Date(2025, 10, 1, 0, 0, 1, 0, time.UTC)
	if e := s.EpochFor(before); e != model.EpochLegacy {
		t.Fatalf("pre-cutover epoch = %s", e)
	}
	if e := s.EpochFor(after); e != model.EpochStandard {
		t.Fatalf("post-cutover epoch = %s", e)
	}
}

func TestCurveFallbackForUnknownEpoch(t *testing.T) {
	s := testSet(t)
	got := s.For(model.Epoch("retired"), 60)
	if got.Name != "Grass Kisser" {
		t.Fatalf("unknown epoch should fall back to standard, got %q", got.Name)
	}
}

func TestLoadSet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curves.json")
	data := `{
	  "standard": [
	    {"threshold": 0, "name": "Egg"},
	    {"threshold": 10, "name": "Chick", "rewardFactor": 1.5}
	  ],
	  "legacy": [
	    {"threshold": 0, "name": "Old Egg"}
	  ]
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write curves: %v", err)
	}

	s, err := LoadSet(path, time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("load set: %v", err)
	}
	if got := s.For(model.EpochStandard, 12).Name; got != "Chick" {
		t.Fatalf("loaded curve lookup = %q", got)
	}
	if got := s.For(model.EpochLegacy, 12).Name; got != "Old Egg" {
		t.Fatalf("loaded legacy lookup = %q", got)
	}
}

func TestLoadSetRequiresStandard(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "curves.json")
	if err := os.WriteFile(path, []byte(`{"legacy":[{"threshold":0,"name":"Old"}]}`), 0o600); err != nil {
		t.Fatalf("write curves: %v", err)
	}
	if _, err := LoadSet(path, time.Now()); err == nil {
		t.Fatalf("expected error for set without standard epoch")
	}
}

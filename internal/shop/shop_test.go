package shop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/rank"
)

type memJournal struct{ seq int64 }

func (j *memJournal) Append(context.Context, []*model.MemberRecord, *model.TransactionRecord) (int64, error) {
	j.seq++
	return j.seq, nil
}

func testShop(t *testing.T, items []model.ItemDefinition) (*Shop, *ledger.Ledger) {
	t.Helper()
	catalog, err := NewCatalog(items)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	cutover := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	l, err := ledger.New(&memJournal{}, catalog, nil, ledger.Options{
		Curves: rank.DefaultSet(cutover),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return New(catalog, l, zerolog.Nop()), l
}

func key(member string) model.Key {
	return model.Key{CommunityID: "guild-1", MemberID: member}
}

func TestDefaultCatalog(t *testing.T) {
	c, err := NewCatalog(DefaultItems())
	if err != nil {
		t.Fatalf("stock catalog invalid: %v", err)
	}
	if c.Len() != 4 {
		t.Fatalf("stock catalog has %d items", c.Len())
	}
	item, ok := c.Item("xp-booster-2h")
	if !ok || item.Price != 1000 || item.Effect.Class != model.BoosterXP {
		t.Fatalf("xp booster = %+v", item)
	}
	if item.TTL() != 2*time.Hour {
		t.Fatalf("xp booster ttl = %v", item.TTL())
	}
	role, ok := c.Item("custom-role")
	if !ok || role.Price != 15000 || role.DurationHours != 0 {
		t.Fatalf("custom role = %+v", role)
	}
}

func TestCatalogValidation(t *testing.T) {
	booster := func(mut func(*model.ItemDefinition)) []model.ItemDefinition {
		item := DefaultItems()[0]
		mut(&item)
		return []model.ItemDefinition{item}
	}

	cases := map[string][]model.ItemDefinition{
		"empty id":         booster(func(i *model.ItemDefinition) { i.ID = "" }),
		"missing name":     booster(func(i *model.ItemDefinition) { i.Name = "" }),
		"zero price":       booster(func(i *model.ItemDefinition) { i.Price = 0 }),
		"no duration":      booster(func(i *model.ItemDefinition) { i.DurationHours = 0 }),
		"zero magnitude":   booster(func(i *model.ItemDefinition) { i.Effect.Magnitude = 0 }),
		"bad class":        booster(func(i *model.ItemDefinition) { i.Effect.Class = "luck" }),
		"category mismatch": booster(func(i *model.ItemDefinition) {
			i.Category = model.CategoryCosmetic
		}),
		"unknown category": booster(func(i *model.ItemDefinition) { i.Category = "mystery" }),
		"duplicate id":     append(DefaultItems(), DefaultItems()[0]),
		"pack without amount": {{
			ID: "crate", Name: "CRATE", Category: model.CategoryCurrencyPack, Price: 100,
			Effect: model.ItemEffect{Kind: model.EffectGrantGMP},
		}},
		"pack with duration": {{
			ID: "crate", Name: "CRATE", Category: model.CategoryCurrencyPack, Price: 100,
			DurationHours: 2,
			Effect:        model.ItemEffect{Kind: model.EffectGrantGMP, Amount: 500},
		}},
	}
	for name, items := range cases {
		if _, err := NewCatalog(items); err == nil {
			t.Errorf("%s: validation passed, want error", name)
		}
	}
}

func TestLoadCatalogFile(t *testing.T) {
	dir := t.TempDir()

	items := []model.ItemDefinition{
		DefaultItems()[1],
		{
			ID: "gmp-crate", Name: "GMP CRATE", Category: model.CategoryCurrencyPack,
			Price:  300,
			Effect: model.ItemEffect{Kind: model.EffectGrantGMP, Amount: 500},
		},
	}
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "catalog.json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := c.Items()
	if len(got) != 2 || got[0].ID != "gmp-booster-2h" || got[1].ID != "gmp-crate" {
		t.Fatalf("items out of order: %+v", got)
	}

	// Empty path means the stock catalog.
	c, err = Load("")
	if err != nil || c.Len() != 4 {
		t.Fatalf("default load = %d items (%v)", c.Len(), err)
	}

	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("missing file must error")
	}
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(empty); err == nil {
		t.Fatal("empty catalog must error")
	}
}

func TestViewForNewMember(t *testing.T) {
	s, _ := testShop(t, DefaultItems())

	view, err := s.ViewFor(key("newcomer"))
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Balance != 1000 {
		t.Fatalf("balance = %d, want the starting grant", view.Balance)
	}
	afford := map[string]bool{}
	for _, listing := range view.Items {
		afford[listing.Item.ID] = listing.CanAfford
	}
	if !afford["xp-booster-2h"] || !afford["gmp-booster-2h"] {
		t.Fatalf("1000 GMP should afford the cheap boosters: %v", afford)
	}
	if afford["extra-supply-drop"] || afford["custom-role"] {
		t.Fatalf("1000 GMP cannot afford the expensive items: %v", afford)
	}
}

func TestViewTracksBalance(t *testing.T) {
	ctx := context.Background()
	s, l := testShop(t, DefaultItems())
	k := key("ada")

	if _, _, err := l.AdminAdjust(ctx, k, 0, 14000, "test seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	view, err := s.ViewFor(k)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Balance != 15000 {
		t.Fatalf("balance = %d, want 15000", view.Balance)
	}
	for _, listing := range view.Items {
		if !listing.CanAfford {
			t.Fatalf("15000 GMP must afford %s", listing.Item.ID)
		}
	}

	if _, _, err := s.Purchase(ctx, k, "custom-role"); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	view, _ = s.ViewFor(k)
	if view.Balance != 0 {
		t.Fatalf("balance after purchase = %d", view.Balance)
	}
}

func TestPurchaseAndInventory(t *testing.T) {
	ctx := context.Background()
	s, _ := testShop(t, DefaultItems())
	k := key("ada")

	if _, _, err := s.Purchase(ctx, k, "xp-booster-2h"); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	if _, _, err := s.Purchase(ctx, k, "gmp-booster-2h"); err == nil {
		t.Fatal("second 1000 GMP purchase must fail on a 0 balance")
	}

	owned, err := s.Inventory(k)
	if err != nil {
		t.Fatalf("inventory: %v", err)
	}
	if len(owned) != 1 {
		t.Fatalf("owned %d items", len(owned))
	}
	if owned[0].Item.Name != "2H XP BOOSTER" || owned[0].Status != model.EntryHeld {
		t.Fatalf("owned[0] = %+v", owned[0])
	}
}

func TestInventoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	s, l := testShop(t, DefaultItems())
	k := key("ada")

	if _, _, err := l.AdminAdjust(ctx, k, 0, 10000, "test seed"); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"xp-booster-2h", "gmp-booster-2h", "extra-supply-drop"} {
		if _, _, err := s.Purchase(ctx, k, id); err != nil {
			t.Fatalf("purchase %s: %v", id, err)
		}
	}
	owned, err := s.Inventory(k)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 3 || owned[0].ItemID != "extra-supply-drop" || owned[2].ItemID != "xp-booster-2h" {
		ids := make([]string, len(owned))
		for i, o := range owned {
			ids[i] = o.ItemID
		}
		t.Fatalf("inventory order = %v, want newest first", ids)
	}
}

func TestActivateThroughShop(t *testing.T) {
	ctx := context.Background()
	s, l := testShop(t, DefaultItems())
	k := key("ada")

	_, entry, err := s.Purchase(ctx, k, "xp-booster-2h")
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	rec, activated, err := s.Activate(ctx, k, entry.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != model.EntryActive || activated.ExpiresAt == nil {
		t.Fatalf("entry after activation = %+v", activated)
	}
	if _, ok := rec.Boosters[model.BoosterXP]; !ok {
		t.Fatalf("xp booster not registered: %+v", rec.Boosters)
	}

	// The entry is spent; a second activation has nothing to activate.
	if _, _, err := s.Activate(ctx, k, entry.ID); !ledger.IsNotFoundError(err) {
		t.Fatalf("second activation = %v, want not found", err)
	}

	got, err := l.GetRecord(k)
	if err != nil || got.Boosters[model.BoosterXP].Magnitude != 2.0 {
		t.Fatalf("record booster = %+v (%v)", got.Boosters, err)
	}
}

func TestInventorySurvivesCatalogRemoval(t *testing.T) {
	ctx := context.Background()
	s, l := testShop(t, DefaultItems())
	k := key("ada")

	if _, _, err := s.Purchase(ctx, k, "xp-booster-2h"); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	// A later deploy ships a catalog without the item; owned entries keep a
	// bare definition instead of disappearing.
	trimmed, err := NewCatalog(DefaultItems()[1:])
	if err != nil {
		t.Fatal(err)
	}
	later := New(trimmed, l, zerolog.Nop())
	owned, err := later.Inventory(k)
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 1 || owned[0].Item.ID != "xp-booster-2h" || owned[0].Item.Price != 0 {
		t.Fatalf("owned = %+v, want bare definition", owned)
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	s, _ := testShop(t, DefaultItems())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.RunSweeper(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sweeper returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

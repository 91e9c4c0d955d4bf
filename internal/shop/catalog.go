// Package shop is the thin commerce layer over the ledger: the item
// catalog, per-member affordability views, and the expiry sweeper. All
// balance changes still go through the ledger's atomic operations.
package shop

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Catalog is the immutable set of purchasable items, in display order.
// Definitions never change under a running service; edits ship under a new
// item id so owned instances keep their original terms.
type Catalog struct {
	items []model.ItemDefinition
	byID  map[string]model.ItemDefinition
}

// DefaultItems returns the stock catalog.
func DefaultItems() []model.ItemDefinition {
	return []model.ItemDefinition{
		{
			ID:            "xp-booster-2h",
			Name:          "2H XP BOOSTER",
			Description:   "Double XP from activity for two hours",
			Category:      model.CategoryBooster,
			Price:         1000,
			DurationHours: 2,
			Effect: model.ItemEffect{
				Kind:      model.EffectBooster,
				Class:     model.BoosterXP,
				Magnitude: 2.0,
			},
		},
		{
			ID:            "gmp-booster-2h",
			Name:          "2H GMP BOOSTER",
			Description:   "Double GMP from activity for two hours",
			Category:      model.CategoryBooster,
			Price:         1000,
			DurationHours: 2,
			Effect: model.ItemEffect{
				Kind:      model.EffectBooster,
				Class:     model.BoosterGMP,
				Magnitude: 2.0,
			},
		},
		{
			ID:            "extra-supply-drop",
			Name:          "EXTRA SUPPLY DROP",
			Description:   "Double your daily supply drops for a day",
			Category:      model.CategoryBooster,
			Price:         5000,
			DurationHours: 24,
			Effect: model.ItemEffect{
				Kind:      model.EffectBooster,
				Class:     model.BoosterDaily,
				Magnitude: 2.0,
			},
		},
		{
			ID:          "custom-role",
			Name:        "CUSTOM ROLE",
			Description: "Customize your color and role name",
			Category:    model.CategoryCosmetic,
			Price:       15000,
			Effect: model.ItemEffect{
				Kind: model.EffectCosmetic,
			},
		},
	}
}

// NewCatalog validates the definitions and builds the lookup index. Invalid
// catalog data fails startup rather than being silently dropped.
func NewCatalog(items []model.ItemDefinition) (*Catalog, error) {
	c := &Catalog{
		items: make([]model.ItemDefinition, 0, len(items)),
		byID:  make(map[string]model.ItemDefinition, len(items)),
	}
	for _, item := range items {
		if err := validateItem(item); err != nil {
			return nil, err
		}
		if _, dup := c.byID[item.ID]; dup {
			return nil, errors.Errorf("shop: duplicate item id %q", item.ID)
		}
		c.items = append(c.items, item)
		c.byID[item.ID] = item
	}
	return c, nil
}

// Load reads a catalog from a JSON file: an array of item definitions in
// display order. An empty path yields the stock catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(DefaultItems())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "shop: read catalog")
	}
	var items []model.ItemDefinition
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrap(err, "shop: parse catalog")
	}
	if len(items) == 0 {
		return nil, errors.New("shop: catalog file lists no items")
	}
	return NewCatalog(items)
}

// Item looks up a definition by id.
func (c *Catalog) Item(id string) (model.ItemDefinition, bool) {
	item, ok := c.byID[id]
	return item, ok
}

// Items returns the definitions in display order. The slice is a copy.
func (c *Catalog) Items() []model.ItemDefinition {
	out := make([]model.ItemDefinition, len(c.items))
	copy(out, c.items)
	return out
}

// Len reports the number of items.
func (c *Catalog) Len() int { return len(c.items) }

func validateItem(item model.ItemDefinition) error {
	if item.ID == "" {
		return errors.New("shop: item with empty id")
	}
	if item.Name == "" {
		return errors.Errorf("shop: item %q: name is required", item.ID)
	}
	if item.Price <= 0 {
		return errors.Errorf("shop: item %q: price must be positive", item.ID)
	}
	if item.DurationHours < 0 {
		return errors.Errorf("shop: item %q: negative duration", item.ID)
	}

	switch item.Category {
	case model.CategoryBooster:
		if item.Effect.Kind != model.EffectBooster {
			return errors.Errorf("shop: item %q: booster category needs a booster effect", item.ID)
		}
		if item.DurationHours < 1 {
			return errors.Errorf("shop: item %q: boosters need a duration of at least one hour", item.ID)
		}
		if item.Effect.Magnitude <= 0 {
			return errors.Errorf("shop: item %q: booster magnitude must be positive", item.ID)
		}
		switch item.Effect.Class {
		case model.BoosterXP, model.BoosterGMP, model.BoosterDaily:
		default:
			return errors.Errorf("shop: item %q: unknown booster class %q", item.ID, item.Effect.Class)
		}
	case model.CategoryCurrencyPack:
		if item.Effect.Kind != model.EffectGrantGMP {
			return errors.Errorf("shop: item %q: currency packs need a grant effect", item.ID)
		}
		if item.Effect.Amount <= 0 {
			return errors.Errorf("shop: item %q: grant amount must be positive", item.ID)
		}
		if item.DurationHours != 0 {
			return errors.Errorf("shop: item %q: currency packs are instantaneous", item.ID)
		}
	case model.CategoryCosmetic:
		if item.Effect.Kind != model.EffectCosmetic {
			return errors.Errorf("shop: item %q: cosmetic category needs a cosmetic effect", item.ID)
		}
	case model.CategoryRole:
		if item.Effect.Kind != model.EffectRole {
			return errors.Errorf("shop: item %q: role category needs a role effect", item.ID)
		}
	default:
		return errors.Errorf("shop: item %q: unknown category %q", item.ID, item.Category)
	}
	return nil
}

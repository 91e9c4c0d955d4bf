package shop

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/model"
)

// Shop serves catalog views and routes purchases and activations into the
// ledger, which re-verifies every balance under its own locks.
type Shop struct {
	catalog *Catalog
	ledger  *ledger.Ledger
	log     zerolog.Logger
}

// New wires the shop over an already-constructed ledger. The ledger must
// have been built with the same catalog so activation effects resolve.
func New(catalog *Catalog, l *ledger.Ledger, log zerolog.Logger) *Shop {
	return &Shop{catalog: catalog, ledger: l, log: log}
}

// Catalog returns the item definitions in display order.
func (s *Shop) Catalog() []model.ItemDefinition { return s.catalog.Items() }

// Listing is one catalog item viewed by one member.
type Listing struct {
	Item      model.ItemDefinition `json:"item"`
	CanAfford bool                 `json:"canAfford"`
}

// View is a member's look at the shop. Affordability is advisory only:
// balances move between the look and the purchase, and Purchase re-checks
// under the member's lock.
type View struct {
	Balance int64     `json:"balance"`
	Items   []Listing `json:"items"`
}

// ViewFor builds the shop view for a member. Members with no record yet see
// the starting balance their first mutation will seed.
func (s *Shop) ViewFor(key model.Key) (View, error) {
	balance := s.ledger.StartingBalance()
	rec, err := s.ledger.GetRecord(key)
	switch {
	case err == nil:
		balance = rec.GMP
	case ledger.IsNotFoundError(err):
		// First purchase will materialize the record.
	default:
		return View{}, err
	}

	view := View{Balance: balance, Items: make([]Listing, 0, s.catalog.Len())}
	for _, item := range s.catalog.Items() {
		view.Items = append(view.Items, Listing{
			Item:      item,
			CanAfford: balance >= item.Price,
		})
	}
	return view, nil
}

// Purchase buys one item for the member.
func (s *Shop) Purchase(ctx context.Context, key model.Key, itemID string) (*model.MemberRecord, *model.InventoryEntry, error) {
	return s.ledger.Purchase(ctx, key, itemID, time.Now().UTC())
}

// Activate puts an owned inventory entry into effect.
func (s *Shop) Activate(ctx context.Context, key model.Key, entryID string) (*model.MemberRecord, *model.InventoryEntry, error) {
	return s.ledger.ActivateItem(ctx, key, entryID, time.Now().UTC())
}

// OwnedItem is an inventory entry joined with its catalog definition.
type OwnedItem struct {
	model.InventoryEntry
	Item model.ItemDefinition `json:"item"`
}

// Inventory lists a member's owned items with their definitions, newest
// acquisition first. Entries whose item left the catalog are kept with a
// bare definition so history stays visible.
func (s *Shop) Inventory(key model.Key) ([]OwnedItem, error) {
	rec, err := s.ledger.GetRecord(key)
	if err != nil {
		return nil, err
	}
	out := make([]OwnedItem, 0, len(rec.Inventory))
	for i := len(rec.Inventory) - 1; i >= 0; i-- {
		entry := rec.Inventory[i]
		owned := OwnedItem{InventoryEntry: entry}
		if item, ok := s.catalog.Item(entry.ItemID); ok {
			owned.Item = item
		} else {
			owned.Item = model.ItemDefinition{ID: entry.ItemID, Name: entry.ItemID}
		}
		out = append(out, owned)
	}
	return out, nil
}

// RunSweeper expires lapsed boosters and inventory entries on a fixed
// cadence until ctx is canceled. The sweep is idempotent and safe to run
// alongside purchases.
func (s *Shop) RunSweeper(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.ledger.SweepExpired(ctx, time.Now().UTC())
			if err != nil {
				s.log.Warn().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.log.Debug().Int("members", n).Msg("expired lapsed items")
			}
		}
	}
}

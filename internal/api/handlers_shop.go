package api

import (
	"net/http"

	respond "github.com/r-ddle/exile-ledger/internal/api/respond"
	"github.com/r-ddle/exile-ledger/internal/shop"
)

// ShopHandler serves the read side of the shop: the catalog, a member's
// affordability view, and owned inventory.
type ShopHandler struct {
	shop *shop.Shop
}

func NewShopHandler(s *shop.Shop) *ShopHandler { return &ShopHandler{shop: s} }

// ListItems GET /v0/shop/items
func (h *ShopHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := h.shop.Catalog()
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": items, "count": len(items)})
}

// MemberView GET /v0/communities/{communityId}/members/{memberId}/shop
func (h *ShopHandler) MemberView(w http.ResponseWriter, r *http.Request) {
	view, err := h.shop.ViewFor(memberKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, view)
}

// Inventory GET /v0/communities/{communityId}/members/{memberId}/inventory
func (h *ShopHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	owned, err := h.shop.Inventory(memberKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"inventory": owned, "count": len(owned)})
}

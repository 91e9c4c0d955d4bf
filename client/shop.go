package client

import (
	"context"
	"fmt"
	"net/http"
)

type itemsResponse struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

// ShopItems returns the full catalog.
func (c *Client) ShopItems(ctx context.Context) ([]Item, error) {
	var ir itemsResponse
	if err := c.get(ctx, "/v0/shop/items", &ir); err != nil {
		return nil, err
	}
	return ir.Items, nil
}

// ShopView returns the catalog priced against the member's balance.
// Affordability is advisory; Purchase re-checks on the server.
func (c *Client) ShopView(ctx context.Context, communityID, memberID string) (*ShopView, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/shop", communityID, memberID)
	var view ShopView
	if err := c.get(ctx, path, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

type inventoryResponse struct {
	Inventory []OwnedItem `json:"inventory"`
	Count     int         `json:"count"`
}

// Inventory lists the member's owned item instances with their catalog
// definitions, newest acquisition first.
func (c *Client) Inventory(ctx context.Context, communityID, memberID string) ([]OwnedItem, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/inventory", communityID, memberID)
	var ir inventoryResponse
	if err := c.get(ctx, path, &ir); err != nil {
		return nil, err
	}
	return ir.Inventory, nil
}

// Purchase buys a catalog item. The entry starts held; Activate turns it on.
// Returns an error for which IsInsufficientFunds is true when the balance
// cannot cover the price.
func (c *Client) Purchase(ctx context.Context, communityID, memberID, itemID string) (*InventoryResult, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/purchases", communityID, memberID)
	var res InventoryResult
	if err := c.postJSON(ctx, path, map[string]interface{}{"itemId": itemID}, http.StatusCreated, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Activate turns a held inventory entry on. Activating a booster while one
// of the same class runs returns an error for which IsConflict is true.
func (c *Client) Activate(ctx context.Context, communityID, memberID, entryID string) (*InventoryResult, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/inventory/%s/activate", communityID, memberID, entryID)
	var res InventoryResult
	if err := c.postJSON(ctx, path, struct{}{}, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

package client

import (
	"context"
	"fmt"
	"net/http"
)

// GetMember retrieves one member's progression record.
func (c *Client) GetMember(ctx context.Context, communityID, memberID string) (*Member, error) {
	var m Member
	path := fmt.Sprintf("/v0/communities/%s/members/%s", communityID, memberID)
	if err := c.get(ctx, path, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

type leaderboardResponse struct {
	Metric  string    `json:"metric"`
	Entries []*Member `json:"entries"`
	Count   int       `json:"count"`
}

// Leaderboard returns the community's top members for a metric ("xp", "gmp",
// "messages", "tactical"). A non-positive limit uses the server default.
func (c *Client) Leaderboard(ctx context.Context, communityID, metric string, limit int) ([]*Member, error) {
	path := fmt.Sprintf("/v0/communities/%s/leaderboard", communityID)
	sep := "?"
	if metric != "" {
		path += sep + "metric=" + metric
		sep = "&"
	}
	if limit > 0 {
		path += sep + fmt.Sprintf("limit=%d", limit)
	}
	var lr leaderboardResponse
	if err := c.get(ctx, path, &lr); err != nil {
		return nil, err
	}
	return lr.Entries, nil
}

type transactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
}

// Transactions returns the member's most recent currency audit entries,
// newest first. A non-positive limit uses the server default.
func (c *Client) Transactions(ctx context.Context, communityID, memberID string, limit int) ([]Transaction, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/transactions", communityID, memberID)
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var tr transactionsResponse
	if err := c.get(ctx, path, &tr); err != nil {
		return nil, err
	}
	return tr.Transactions, nil
}

// Adjust applies a moderation XP/GMP override. Deltas may be negative and
// skip every multiplier; the reason lands in the audit log.
func (c *Client) Adjust(ctx context.Context, communityID, memberID string, xpDelta, gmpDelta int64, reason string) (*MutationResult, error) {
	payload := map[string]interface{}{"xpDelta": xpDelta, "gmpDelta": gmpDelta, "reason": reason}
	path := fmt.Sprintf("/v0/communities/%s/members/%s/adjust", communityID, memberID)
	var res MutationResult
	if err := c.postJSON(ctx, path, payload, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetVerified grants or revokes the member's verified flag.
func (c *Client) SetVerified(ctx context.Context, communityID, memberID string, verified bool) (*Member, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/verify", communityID, memberID)
	var m Member
	if err := c.postJSON(ctx, path, map[string]interface{}{"verified": verified}, http.StatusOK, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// SetBio replaces the member's profile bio.
func (c *Client) SetBio(ctx context.Context, communityID, memberID, bio string) (*Member, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/bio", communityID, memberID)
	var m Member
	if err := c.postJSON(ctx, path, map[string]interface{}{"bio": bio}, http.StatusOK, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

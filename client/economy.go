package client

import (
	"context"
	"fmt"
	"net/http"
)

// RecordEvent credits a member for community activity. Kind is one of the
// server's reward table entries (message, voice_minute, reaction,
// reaction_received, tactical_word); count defaults to 1 on the server when
// zero.
func (c *Client) RecordEvent(ctx context.Context, communityID, memberID, kind string, count int64) (*MutationResult, error) {
	payload := map[string]interface{}{
		"communityId": communityID,
		"memberId":    memberID,
		"kind":        kind,
		"count":       count,
	}
	var res MutationResult
	if err := c.postJSON(ctx, "/v0/events", payload, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ClaimDaily claims the member's daily reward. A same-day repeat claim
// returns an error for which IsConflict is true.
func (c *Client) ClaimDaily(ctx context.Context, communityID, memberID string) (*ClaimResult, error) {
	path := fmt.Sprintf("/v0/communities/%s/members/%s/daily", communityID, memberID)
	var res ClaimResult
	if err := c.postJSON(ctx, path, struct{}{}, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Transfer moves GMP from one member to another in the same community. The
// sender pays the amount plus the fee; the returned transaction records
// both.
func (c *Client) Transfer(ctx context.Context, communityID, fromID, toID string, amount int64, note string) (*Transaction, error) {
	payload := map[string]interface{}{"to": toID, "amount": amount}
	if note != "" {
		payload["note"] = note
	}
	path := fmt.Sprintf("/v0/communities/%s/members/%s/transfers", communityID, fromID)
	var txn Transaction
	if err := c.postJSON(ctx, path, payload, http.StatusCreated, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

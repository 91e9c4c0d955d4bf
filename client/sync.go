package client

import (
	"context"
	"fmt"
	"net/http"
)

// FullResync pushes every live record to the remote mirror, recomputing
// ranks on the way. Runs synchronously; an overlapping resync returns an
// error for which IsConflict is true.
func (c *Client) FullResync(ctx context.Context) (*BackupEntry, error) {
	var entry BackupEntry
	if err := c.postJSON(ctx, "/v0/sync/full", struct{}{}, http.StatusOK, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

type historyResponse struct {
	Backups []BackupEntry `json:"backups"`
	Count   int           `json:"count"`
}

// SyncHistory returns recent mirror backup entries, newest first. A
// non-positive limit uses the server default.
func (c *Client) SyncHistory(ctx context.Context, limit int) ([]BackupEntry, error) {
	path := "/v0/sync/history"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	var hr historyResponse
	if err := c.get(ctx, path, &hr); err != nil {
		return nil, err
	}
	return hr.Backups, nil
}

// SyncStatus reports the replication backlog and recent push outcomes.
func (c *Client) SyncStatus(ctx context.Context) (*SyncStatus, error) {
	var status SyncStatus
	if err := c.get(ctx, "/v0/sync/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

package api

import (
	"net/http"
	"strconv"

	respond "github.com/r-ddle/exile-ledger/internal/api/respond"
	"github.com/r-ddle/exile-ledger/internal/mirror"
)

// SyncHandler exposes the mirror replication controls. The syncer is nil
// when the service runs without a remote mirror; every endpoint then
// answers 503.
type SyncHandler struct {
	syncer *mirror.Syncer
}

func NewSyncHandler(s *mirror.Syncer) *SyncHandler { return &SyncHandler{syncer: s} }

func (h *SyncHandler) disabled(w http.ResponseWriter) bool {
	if h.syncer != nil {
		return false
	}
	respond.WriteError(w, http.StatusServiceUnavailable, "remote mirror is not configured")
	return true
}

// FullResync POST /v0/sync/full
//
// Runs synchronously and can take a while on a large ledger; the client is
// expected to wait. Overlapping requests get 409.
func (h *SyncHandler) FullResync(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	entry, err := h.syncer.FullResync(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, entry)
}

// History GET /v0/sync/history?limit=20
func (h *SyncHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.syncer.History(r.Context(), limit)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"backups": entries, "count": len(entries)})
}

// Status GET /v0/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.disabled(w) {
		return
	}
	respond.WriteJSON(w, http.StatusOK, h.syncer.Status(r.Context()))
}

package api

import (
	"net/http"
	"time"

	respond "github.com/r-ddle/exile-ledger/internal/api/respond"
	"github.com/r-ddle/exile-ledger/internal/mirror"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	syncer *mirror.Syncer
}

func NewHealthHandler(syncer *mirror.Syncer) *HealthHandler {
	return &HealthHandler{syncer: syncer}
}

// CheckHealth handles GET /v0/health.
// Always returns 200 while the process serves; the mirror block reports
// replication health when a mirror is configured.
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if h.syncer != nil {
		response["mirror"] = h.syncer.Status(r.Context())
	}
	respond.WriteJSON(w, http.StatusOK, response)
}

package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	respond "github.com/r-ddle/exile-ledger/internal/api/respond"
	"github.com/r-ddle/exile-ledger/internal/journal"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/model"
)

// MemberHandler serves record reads and the moderation write paths.
type MemberHandler struct {
	ledger  *ledger.Ledger
	journal *journal.Journal
}

func NewMemberHandler(l *ledger.Ledger, j *journal.Journal) *MemberHandler {
	return &MemberHandler{ledger: l, journal: j}
}

func memberKey(r *http.Request) model.Key {
	vars := mux.Vars(r)
	return model.Key{CommunityID: vars["communityId"], MemberID: vars["memberId"]}
}

// GetMember GET /v0/communities/{communityId}/members/{memberId}
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	rec, err := h.ledger.GetRecord(memberKey(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rec)
}

// Leaderboard GET /v0/communities/{communityId}/leaderboard?metric=xp&limit=10
func (h *MemberHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	community := mux.Vars(r)["communityId"]

	metric := model.MetricXP
	if m := r.URL.Query().Get("metric"); m != "" {
		metric = model.Metric(m)
	}
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rows, err := h.ledger.Leaderboard(community, metric, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"metric":  metric,
		"entries": rows,
		"count":   len(rows),
	})
}

// Transactions GET /v0/communities/{communityId}/members/{memberId}/transactions?limit=20
func (h *MemberHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respond.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}
	txns, err := h.journal.RecentTransactions(r.Context(), memberKey(r), limit)
	if err != nil {
		respond.WriteInternalError(w, err.Error())
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txns,
		"count":        len(txns),
	})
}

// Adjust POST /v0/communities/{communityId}/members/{memberId}/adjust
//
// Moderation override: deltas may be negative and skip every multiplier.
func (h *MemberHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		XPDelta  int64  `json:"xpDelta"`
		GMPDelta int64  `json:"gmpDelta"`
		Reason   string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	rec, change, err := h.ledger.AdminAdjust(r.Context(), memberKey(r), req.XPDelta, req.GMPDelta, req.Reason)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"member": rec, "rank": change})
}

// Verify POST /v0/communities/{communityId}/members/{memberId}/verify
func (h *MemberHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Verified bool `json:"verified"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	rec, err := h.ledger.MarkVerified(r.Context(), memberKey(r), req.Verified)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rec)
}

// SetBio POST /v0/communities/{communityId}/members/{memberId}/bio
func (h *MemberHandler) SetBio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Bio string `json:"bio"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	rec, err := h.ledger.SetBio(r.Context(), memberKey(r), req.Bio)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, rec)
}

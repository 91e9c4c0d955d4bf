package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	respond "github.com/r-ddle/exile-ledger/internal/api/respond"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/shop"
)

// EconomyHandler serves the mutation paths that move XP or GMP: activity
// events, daily claims, transfers and shop traffic.
type EconomyHandler struct {
	ledger *ledger.Ledger
	shop   *shop.Shop
}

func NewEconomyHandler(l *ledger.Ledger, s *shop.Shop) *EconomyHandler {
	return &EconomyHandler{ledger: l, shop: s}
}

// Event POST /v0/events
//
// The chat-platform listener posts one event per batch of observed activity.
// count defaults to 1 when omitted.
func (h *EconomyHandler) Event(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CommunityID string `json:"communityId"`
		MemberID    string `json:"memberId"`
		Kind        string `json:"kind"`
		Count       int64  `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if req.Count == 0 {
		req.Count = 1
	}
	key := model.Key{CommunityID: req.CommunityID, MemberID: req.MemberID}
	rec, change, err := h.ledger.CreditActivity(r.Context(), key, req.Kind, req.Count, time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"member": rec, "rank": change})
}

// ClaimDaily POST /v0/communities/{communityId}/members/{memberId}/daily
func (h *EconomyHandler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	rec, res, err := h.ledger.ClaimDaily(r.Context(), memberKey(r), time.Now().UTC())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"member": rec, "reward": res})
}

// Transfer POST /v0/communities/{communityId}/members/{memberId}/transfers
//
// The path member is the sender and pays the amount plus the fee.
func (h *EconomyHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		To     string `json:"to"`
		Amount int64  `json:"amount"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	from := memberKey(r)
	to := model.Key{CommunityID: from.CommunityID, MemberID: req.To}
	txn, err := h.ledger.Transfer(r.Context(), from, to, req.Amount, req.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, txn)
}

// Purchase POST /v0/communities/{communityId}/members/{memberId}/purchases
func (h *EconomyHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID string `json:"itemId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	rec, entry, err := h.shop.Purchase(r.Context(), memberKey(r), req.ItemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, map[string]interface{}{"member": rec, "entry": entry})
}

// Activate POST /v0/communities/{communityId}/members/{memberId}/inventory/{entryId}/activate
func (h *EconomyHandler) Activate(w http.ResponseWriter, r *http.Request) {
	entryID := mux.Vars(r)["entryId"]
	rec, entry, err := h.shop.Activate(r.Context(), memberKey(r), entryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"member": rec, "entry": entry})
}

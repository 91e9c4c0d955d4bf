package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r-ddle/exile-ledger/internal/api/recovery"
	"github.com/r-ddle/exile-ledger/internal/journal"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/mirror"
	"github.com/r-ddle/exile-ledger/internal/shop"
)

// NewRouter creates the HTTP router with all ledger routes. syncer may be
// nil when the service runs without a remote mirror.
func NewRouter(l *ledger.Ledger, s *shop.Shop, j *journal.Journal, syncer *mirror.Syncer) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	// Create handlers
	healthHandler := NewHealthHandler(syncer)
	memberHandler := NewMemberHandler(l, j)
	economyHandler := NewEconomyHandler(l, s)
	shopHandler := NewShopHandler(s)
	syncHandler := NewSyncHandler(syncer)

	// Health and metrics
	router.HandleFunc("/v0/health", healthHandler.CheckHealth).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Activity events
	router.HandleFunc("/v0/events", economyHandler.Event).Methods("POST")

	// Member record endpoints
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}", memberHandler.GetMember).Methods("GET")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/transactions", memberHandler.Transactions).Methods("GET")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/adjust", memberHandler.Adjust).Methods("POST")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/verify", memberHandler.Verify).Methods("POST")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/bio", memberHandler.SetBio).Methods("POST")
	router.HandleFunc("/v0/communities/{communityId}/leaderboard", memberHandler.Leaderboard).Methods("GET")

	// Economy endpoints
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/daily", economyHandler.ClaimDaily).Methods("POST")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/transfers", economyHandler.Transfer).Methods("POST")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/purchases", economyHandler.Purchase).Methods("POST")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/inventory/{entryId}/activate", economyHandler.Activate).Methods("POST")

	// Shop endpoints
	router.HandleFunc("/v0/shop/items", shopHandler.ListItems).Methods("GET")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/shop", shopHandler.MemberView).Methods("GET")
	router.HandleFunc("/v0/communities/{communityId}/members/{memberId}/inventory", shopHandler.Inventory).Methods("GET")

	// Mirror sync endpoints
	router.HandleFunc("/v0/sync/full", syncHandler.FullResync).Methods("POST")
	router.HandleFunc("/v0/sync/history", syncHandler.History).Methods("GET")
	router.HandleFunc("/v0/sync/status", syncHandler.Status).Methods("GET")

	return router
}

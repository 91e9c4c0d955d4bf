package client_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r-ddle/exile-ledger/client"
	"github.com/r-ddle/exile-ledger/internal/api"
	"github.com/r-ddle/exile-ledger/internal/journal"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/rank"
	"github.com/r-ddle/exile-ledger/internal/shop"
)

// newTestClient boots the real router over an in-memory ledger and returns
// an SDK client pointed at it.
func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	j, err := journal.Open(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	catalog, err := shop.NewCatalog(shop.DefaultItems())
	require.NoError(t, err)

	cutover := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	l, err := ledger.New(j, catalog, nil, ledger.Options{
		Curves:             rank.DefaultSet(cutover),
		TransferFeePercent: 5,
	}, zerolog.Nop())
	require.NoError(t, err)

	sh := shop.New(catalog, l, zerolog.Nop())
	ts := httptest.NewServer(api.NewRouter(l, sh, j, nil))
	t.Cleanup(ts.Close)

	return client.New(ts.URL)
}

func TestClientMemberFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	res, err := c.RecordEvent(ctx, "guild-1", "ada", "message", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(15), res.Member.XP)
	assert.Equal(t, int64(1075), res.Member.GMP)
	assert.Equal(t, int64(5), res.Member.MessagesSent)
	assert.Equal(t, "New Lifeform", res.Member.Rank)
	assert.False(t, res.Rank.Changed)

	m, err := c.GetMember(ctx, "guild-1", "ada")
	require.NoError(t, err)
	assert.Equal(t, int64(15), m.XP)
	assert.Equal(t, "standard", m.CurveEpoch)

	_, err = c.GetMember(ctx, "guild-1", "nobody")
	require.Error(t, err)
	assert.True(t, client.IsNotFound(err))

	adj, err := c.Adjust(ctx, "guild-1", "ada", 100, -50, "cleanup")
	require.NoError(t, err)
	assert.Equal(t, int64(115), adj.Member.XP)
	assert.Equal(t, int64(1025), adj.Member.GMP)
	assert.Equal(t, "Busy Bee", adj.Rank.New)
	assert.True(t, adj.Rank.Changed)

	verified, err := c.SetVerified(ctx, "guild-1", "ada", true)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	withBio, err := c.SetBio(ctx, "guild-1", "ada", "grass toucher in training")
	require.NoError(t, err)
	assert.Equal(t, "grass toucher in training", withBio.Bio)

	board, err := c.Leaderboard(ctx, "guild-1", "xp", 5)
	require.NoError(t, err)
	require.Len(t, board, 1)
	assert.Equal(t, "ada", board[0].MemberID)
}

func TestClientDailyAndTransfer(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	claim, err := c.ClaimDaily(ctx, "guild-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(50), claim.Reward.XP)
	assert.Equal(t, int64(200), claim.Reward.GMP)
	assert.Equal(t, 1, claim.Reward.Streak)
	assert.Equal(t, int64(1200), claim.Member.GMP)

	_, err = c.ClaimDaily(ctx, "guild-1", "bob")
	require.Error(t, err)
	assert.True(t, client.IsConflict(err))

	txn, err := c.Transfer(ctx, "guild-1", "bob", "cyn", 250, "rent")
	require.NoError(t, err)
	assert.Equal(t, int64(250), txn.Amount)
	assert.Equal(t, int64(12), txn.Fee)
	assert.Equal(t, "bob", txn.From)
	assert.Equal(t, "cyn", txn.To)

	sender, err := c.GetMember(ctx, "guild-1", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(938), sender.GMP)

	_, err = c.Transfer(ctx, "guild-1", "bob", "cyn", 999999, "")
	require.Error(t, err)
	assert.True(t, client.IsInsufficientFunds(err))

	_, err = c.Transfer(ctx, "guild-1", "bob", "cyn", 5, "")
	require.Error(t, err)
	assert.True(t, client.IsInvalidRequest(err))

	log, err := c.Transactions(ctx, "guild-1", "bob", 0)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "transfer", log[0].Kind)
	assert.Equal(t, "reward", log[1].Kind)
}

func TestClientShopFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	items, err := c.ShopItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 4)

	view, err := c.ShopView(ctx, "guild-1", "eve")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), view.Balance)

	bought, err := c.Purchase(ctx, "guild-1", "eve", "xp-booster-2h")
	require.NoError(t, err)
	assert.Equal(t, int64(0), bought.Member.GMP)
	assert.Equal(t, "held", bought.Entry.Status)

	_, err = c.Purchase(ctx, "guild-1", "eve", "gmp-booster-2h")
	require.Error(t, err)
	assert.True(t, client.IsInsufficientFunds(err))

	active, err := c.Activate(ctx, "guild-1", "eve", bought.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "active", active.Entry.Status)
	require.Contains(t, active.Member.Boosters, "xp")
	assert.Equal(t, 2.0, active.Member.Boosters["xp"].Magnitude)

	owned, err := c.Inventory(ctx, "guild-1", "eve")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "xp-booster-2h", owned[0].ItemID)
	assert.Equal(t, "2H XP BOOSTER", owned[0].Item.Name)
}

func TestClientSyncWithoutMirror(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.FullResync(ctx)
	require.Error(t, err)
	assert.True(t, client.IsSyncUnavailable(err))

	_, err = c.SyncHistory(ctx, 5)
	require.Error(t, err)
	assert.True(t, client.IsSyncUnavailable(err))

	_, err = c.SyncStatus(ctx)
	require.Error(t, err)
	assert.True(t, client.IsSyncUnavailable(err))
}

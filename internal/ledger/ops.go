package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/r-ddle/exile-ledger/internal/booster"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/streak"
)

// CreditActivity rewards count units of a tracked activity kind, scaling by
// the member's rank reward factor and any matching booster, and bumps the
// activity counter. Returns the committed record and the rank transition.
func (l *Ledger) CreditActivity(ctx context.Context, key model.Key, kind string, count int64, at time.Time) (*model.MemberRecord, model.RankChange, error) {
	var change model.RankChange
	rec, err := l.mutate(ctx, "credit_activity", key, at, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		reward, ok := l.opts.Rewards[kind]
		if !ok {
			return nil, NewValidationError("kind", "unknown activity kind '"+kind+"'")
		}
		if count < 1 {
			return nil, NewInvalidAmountError(count, "activity count must be at least 1")
		}
		bumpCounter(work, kind, count)
		change = l.applyCredit(work, reward.XP*count, reward.GMP*count, at)
		return nil, nil
	})
	if err != nil {
		return nil, model.RankChange{}, err
	}
	l.publishRankChange(key, change, rec.XP, at)
	l.log.Debug().Str("member", key.String()).Str("kind", kind).Int64("count", count).
		Int64("xp", rec.XP).Int64("gmp", rec.GMP).Msg("activity credited")
	return rec.Clone(), change, nil
}

// Credit grants raw experience and currency deltas, still subject to rank
// and booster multipliers. source is recorded in the log only.
func (l *Ledger) Credit(ctx context.Context, key model.Key, xpDelta, gmpDelta int64, source string, at time.Time) (*model.MemberRecord, model.RankChange, error) {
	var change model.RankChange
	rec, err := l.mutate(ctx, "credit", key, at, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		if xpDelta < 0 {
			return nil, NewInvalidAmountError(xpDelta, "experience credits must not be negative")
		}
		if gmpDelta < 0 {
			return nil, NewInvalidAmountError(gmpDelta, "currency credits must not be negative")
		}
		if xpDelta == 0 && gmpDelta == 0 {
			return nil, NewInvalidAmountError(0, "credit must move at least one balance")
		}
		change = l.applyCredit(work, xpDelta, gmpDelta, at)
		return nil, nil
	})
	if err != nil {
		return nil, model.RankChange{}, err
	}
	l.publishRankChange(key, change, rec.XP, at)
	l.log.Debug().Str("member", key.String()).Str("source", source).
		Int64("xpDelta", xpDelta).Int64("gmpDelta", gmpDelta).Msg("credit applied")
	return rec.Clone(), change, nil
}

// DailyResult reports what a successful daily claim granted.
type DailyResult struct {
	XP     int64            `json:"xp"`
	GMP    int64            `json:"gmp"`
	Streak int              `json:"streak"`
	Tier   streak.Tier      `json:"tier"`
	Rank   model.RankChange `json:"rank"`
}

// ClaimDaily runs the streak rules for the member and, when the claim is
// valid, credits the base daily reward scaled by the streak tier bonus and
// any active daily booster. The rank reward factor does not apply here.
func (l *Ledger) ClaimDaily(ctx context.Context, key model.Key, now time.Time) (*model.MemberRecord, DailyResult, error) {
	var res DailyResult
	rec, err := l.mutate(ctx, "claim_daily", key, now, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		today := model.DateUTC(now)
		adv := streak.Advance(work.LastDaily, work.DailyStreak, today)
		if !adv.Valid {
			return nil, NewAlreadyClaimedError(today)
		}
		work.DailyStreak = adv.Length
		if adv.Length > work.LongestStreak {
			work.LongestStreak = adv.Length
		}
		work.LastDaily = today

		tier := streak.TierOf(adv.Length)
		bonus := l.opts.StreakTierBonuses[tier.Index()]
		mult := booster.Effective(work.Boosters, model.BoosterDaily, now)
		xp := int64(float64(l.opts.DailyXP) * bonus * mult)
		gmp := int64(float64(l.opts.DailyGMP) * bonus * mult)
		work.XP += xp
		work.GMP += gmp
		change := l.reRank(work)

		res = DailyResult{XP: xp, GMP: gmp, Streak: adv.Length, Tier: tier, Rank: change}
		return &model.TransactionRecord{
			ID:          uuid.NewString(),
			CommunityID: key.CommunityID,
			To:          key.MemberID,
			Amount:      gmp,
			Kind:        model.TxReward,
			Note:        "daily supply drop",
			At:          now.UTC(),
		}, nil
	})
	if err != nil {
		return nil, DailyResult{}, err
	}
	l.publishRankChange(key, res.Rank, rec.XP, now)
	l.log.Info().Str("member", key.String()).Int("streak", res.Streak).
		Int64("xp", res.XP).Int64("gmp", res.GMP).Msg("daily claimed")
	return rec.Clone(), res, nil
}

// Transfer moves amount from one member to another within a community. The
// sender additionally pays the percentage fee, rounded down, and both
// records plus the audit entry commit as one unit.
func (l *Ledger) Transfer(ctx context.Context, from, to model.Key, amount int64, note string) (*model.TransactionRecord, error) {
	const op = "transfer"
	fail := func(err error) (*model.TransactionRecord, error) {
		opErrorsTotal.WithLabelValues(op).Inc()
		return nil, err
	}
	if err := validateKey(from); err != nil {
		return fail(err)
	}
	if err := validateKey(to); err != nil {
		return fail(err)
	}
	if from.CommunityID != to.CommunityID {
		return fail(NewValidationError("communityId", "transfers must stay within one community"))
	}
	if from == to {
		return fail(NewValidationError("memberId", "cannot transfer to yourself"))
	}
	if amount < l.opts.TransferMinimum {
		return fail(NewInvalidAmountError(amount, fmt.Sprintf("transfers start at %d", l.opts.TransferMinimum)))
	}

	now := l.opts.Now().UTC()
	unlock := l.lockPair(from, to)
	defer unlock()

	sender, createdFrom := l.workingCopy(from, now)
	receiver, createdTo := l.workingCopy(to, now)
	booster.Prune(sender.Boosters, now)
	booster.Prune(receiver.Boosters, now)
	expireInventory(sender, now)
	expireInventory(receiver, now)

	fee := amount * l.opts.TransferFeePercent / 100
	total := amount + fee
	if sender.GMP < total {
		return fail(NewInsufficientFundsError(total, sender.GMP))
	}
	sender.GMP -= total
	receiver.GMP += amount
	sender.UpdatedAt = now
	receiver.UpdatedAt = now

	txn := &model.TransactionRecord{
		ID:          uuid.NewString(),
		CommunityID: from.CommunityID,
		From:        from.MemberID,
		To:          to.MemberID,
		Amount:      amount,
		Fee:         fee,
		Kind:        model.TxTransfer,
		Note:        note,
		At:          now,
	}
	seq, err := l.journal.Append(ctx, []*model.MemberRecord{sender, receiver}, txn)
	if err != nil {
		return fail(NewPersistenceError(op, err))
	}
	l.install(sender, receiver)
	l.finishCommit(op, seq, createdFrom || createdTo)
	l.log.Info().Str("from", from.String()).Str("to", to.String()).
		Int64("amount", amount).Int64("fee", fee).Msg("transfer committed")
	return txn, nil
}

// Purchase debits the item's price and appends a held inventory entry, both
// in one commit. The affordability check happens under the key lock, so
// concurrent purchases cannot both spend the same balance.
func (l *Ledger) Purchase(ctx context.Context, key model.Key, itemID string, at time.Time) (*model.MemberRecord, *model.InventoryEntry, error) {
	var entry model.InventoryEntry
	rec, err := l.mutate(ctx, "purchase", key, at, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		if l.catalog == nil {
			return nil, NewNotFoundError("item", itemID)
		}
		item, ok := l.catalog.Item(itemID)
		if !ok {
			return nil, NewNotFoundError("item", itemID)
		}
		if work.GMP < item.Price {
			return nil, NewInsufficientFundsError(item.Price, work.GMP)
		}
		work.GMP -= item.Price
		entry = model.InventoryEntry{
			ID:         uuid.NewString(),
			ItemID:     item.ID,
			Status:     model.EntryHeld,
			AcquiredAt: at.UTC(),
		}
		work.Inventory = append(work.Inventory, entry)
		return &model.TransactionRecord{
			ID:          uuid.NewString(),
			CommunityID: key.CommunityID,
			From:        key.MemberID,
			To:          key.MemberID,
			Amount:      item.Price,
			Kind:        model.TxPurchase,
			Note:        item.ID,
			At:          at.UTC(),
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	l.log.Info().Str("member", key.String()).Str("item", itemID).Msg("purchase committed")
	return rec.Clone(), &entry, nil
}

// ActivateItem turns a held inventory entry on. Booster items go through
// the no-stacking activation; currency packs credit immediately and are
// consumed; cosmetics and roles stay active without expiry.
func (l *Ledger) ActivateItem(ctx context.Context, key model.Key, entryID string, now time.Time) (*model.MemberRecord, *model.InventoryEntry, error) {
	var activated model.InventoryEntry
	rec, err := l.mutate(ctx, "activate_item", key, now, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		idx := -1
		for i := range work.Inventory {
			if work.Inventory[i].ID == entryID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, NewNotFoundError("inventory entry", entryID)
		}
		e := &work.Inventory[idx]
		if e.Status != model.EntryHeld {
			return nil, NewNotFoundError("inventory entry", entryID)
		}
		if l.catalog == nil {
			return nil, NewNotFoundError("item", e.ItemID)
		}
		item, ok := l.catalog.Item(e.ItemID)
		if !ok {
			return nil, NewNotFoundError("item", e.ItemID)
		}

		ts := now.UTC()
		var txn *model.TransactionRecord
		switch item.Effect.Kind {
		case model.EffectBooster:
			exp := ts.Add(item.TTL())
			next, ok := booster.Activate(work.Boosters, model.Booster{
				Class:       item.Effect.Class,
				Magnitude:   item.Effect.Magnitude,
				ActivatedAt: ts,
				ExpiresAt:   exp,
				SourceItem:  item.ID,
			})
			if !ok {
				return nil, NewConflictError("booster", "a "+string(item.Effect.Class)+" booster is already running")
			}
			work.Boosters = next
			e.Status = model.EntryActive
			e.ActivatedAt = &ts
			e.ExpiresAt = &exp
		case model.EffectGrantGMP:
			// Currency packs are consumed on use.
			work.GMP += item.Effect.Amount
			e.Status = model.EntryExpired
			e.ActivatedAt = &ts
			txn = &model.TransactionRecord{
				ID:          uuid.NewString(),
				CommunityID: key.CommunityID,
				To:          key.MemberID,
				Amount:      item.Effect.Amount,
				Kind:        model.TxReward,
				Note:        "redeemed " + item.ID,
				At:          ts,
			}
		case model.EffectCosmetic, model.EffectRole:
			e.Status = model.EntryActive
			e.ActivatedAt = &ts
		default:
			return nil, NewValidationError("effect", "item '"+item.ID+"' has no usable effect")
		}
		activated = *e
		return txn, nil
	})
	if err != nil {
		return nil, nil, err
	}
	l.log.Info().Str("member", key.String()).Str("entry", entryID).Msg("inventory entry activated")
	return rec.Clone(), &activated, nil
}

// AdminAdjust applies signed corrective deltas with no multipliers or
// streak logic. Deltas that would drive a balance negative are rejected.
// Every use is logged with its reason.
func (l *Ledger) AdminAdjust(ctx context.Context, key model.Key, xpDelta, gmpDelta int64, reason string) (*model.MemberRecord, model.RankChange, error) {
	now := l.opts.Now().UTC()
	var change model.RankChange
	rec, err := l.mutate(ctx, "admin_adjust", key, now, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		if strings.TrimSpace(reason) == "" {
			return nil, NewValidationError("reason", "admin adjustments require a reason")
		}
		if work.XP+xpDelta < 0 {
			return nil, NewInvalidAmountError(xpDelta, "adjustment would make experience negative")
		}
		if work.GMP+gmpDelta < 0 {
			return nil, NewInvalidAmountError(gmpDelta, "adjustment would make balance negative")
		}
		work.XP += xpDelta
		work.GMP += gmpDelta
		change = l.reRank(work)
		return &model.TransactionRecord{
			ID:          uuid.NewString(),
			CommunityID: key.CommunityID,
			To:          key.MemberID,
			Amount:      gmpDelta,
			Kind:        model.TxAdmin,
			Note:        reason,
			At:          now,
		}, nil
	})
	if err != nil {
		return nil, model.RankChange{}, err
	}
	l.publishRankChange(key, change, rec.XP, now)
	l.log.Info().Str("member", key.String()).Int64("xpDelta", xpDelta).
		Int64("gmpDelta", gmpDelta).Str("reason", reason).Msg("admin adjustment applied")
	return rec.Clone(), change, nil
}

// MarkVerified flips the member's verification flag.
func (l *Ledger) MarkVerified(ctx context.Context, key model.Key, verified bool) (*model.MemberRecord, error) {
	now := l.opts.Now().UTC()
	rec, err := l.mutate(ctx, "mark_verified", key, now, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		work.Verified = verified
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// SetBio replaces the member's profile bio.
func (l *Ledger) SetBio(ctx context.Context, key model.Key, bio string) (*model.MemberRecord, error) {
	now := l.opts.Now().UTC()
	rec, err := l.mutate(ctx, "set_bio", key, now, func(work *model.MemberRecord) (*model.TransactionRecord, error) {
		if len([]rune(bio)) > l.opts.MaxBioLength {
			return nil, NewValidationError("bio", fmt.Sprintf("bio exceeds %d characters", l.opts.MaxBioLength))
		}
		work.Bio = bio
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// SweepExpired walks every record and commits booster evictions and
// inventory expirations whose time has passed. Idempotent and safe to run
// alongside live mutations; records with nothing to clean are not touched.
func (l *Ledger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	swept := 0
	for _, key := range l.allKeys() {
		changed, err := l.sweepOne(ctx, key, now)
		if err != nil {
			return swept, err
		}
		if changed {
			swept++
		}
	}
	return swept, nil
}

func (l *Ledger) sweepOne(ctx context.Context, key model.Key, now time.Time) (bool, error) {
	const op = "sweep_expired"
	lk := l.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	cur, ok := l.current(key)
	if !ok {
		return false, nil
	}
	work := cur.Clone()
	cleaned := booster.Prune(work.Boosters, now) + expireInventory(work, now)
	if cleaned == 0 {
		return false, nil
	}
	work.UpdatedAt = now.UTC()
	seq, err := l.journal.Append(ctx, []*model.MemberRecord{work}, nil)
	if err != nil {
		opErrorsTotal.WithLabelValues(op).Inc()
		return false, NewPersistenceError(op, err)
	}
	l.install(work)
	l.finishCommit(op, seq, false)
	return true, nil
}

// RepairRanks recomputes every member's cached rank from their experience
// and epoch, committing only the drifted ones. Full resyncs and startup
// migrations use it so curve corrections propagate. Repairs are silent: no
// rank-change events fire.
func (l *Ledger) RepairRanks(ctx context.Context) (int, error) {
	const op = "repair_ranks"
	fixed := 0
	for _, key := range l.allKeys() {
		lk := l.keyLock(key)
		lk.Lock()
		cur, ok := l.current(key)
		if !ok {
			lk.Unlock()
			continue
		}
		want := l.opts.Curves.For(cur.CurveEpoch, cur.XP).Name
		if cur.Rank == want {
			lk.Unlock()
			continue
		}
		work := cur.Clone()
		work.Rank = want
		work.UpdatedAt = l.opts.Now().UTC()
		seq, err := l.journal.Append(ctx, []*model.MemberRecord{work}, nil)
		if err != nil {
			lk.Unlock()
			opErrorsTotal.WithLabelValues(op).Inc()
			return fixed, NewPersistenceError(op, err)
		}
		l.install(work)
		l.finishCommit(op, seq, false)
		lk.Unlock()
		l.log.Info().Str("member", key.String()).Str("from", cur.Rank).Str("to", want).Msg("rank repaired")
		fixed++
	}
	return fixed, nil
}

func (l *Ledger) allKeys() []model.Key {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]model.Key, 0, l.countLocked())
	for community, members := range l.communities {
		for id := range members {
			keys = append(keys, model.Key{CommunityID: community, MemberID: id})
		}
	}
	return keys
}

func bumpCounter(rec *model.MemberRecord, kind string, count int64) {
	switch kind {
	case ActivityMessage:
		rec.MessagesSent += count
	case ActivityVoiceMinute:
		rec.VoiceMinutes += count
	case ActivityReaction:
		rec.ReactionsGiven += count
	case ActivityReactionReceived:
		rec.ReactionsReceived += count
	case ActivityTacticalWord:
		rec.TacticalWords += count
	}
}

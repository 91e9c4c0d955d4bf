// Package ledger is the transactional core of the progression service: the
// in-memory member record store and its single mutation primitive. Every
// mutation clones the current record, applies a pure computation, lands the
// result in the durable journal, and only then swaps it into the live map.
// Installed records are immutable; readers share pointers safely and copies
// are taken at the API boundary.
package ledger

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/booster"
	"github.com/r-ddle/exile-ledger/internal/events"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/rank"
)

// Journal is the durable commit log every mutation must land in before it
// becomes visible. internal/journal satisfies it.
type Journal interface {
	Append(ctx context.Context, recs []*model.MemberRecord, txn *model.TransactionRecord) (int64, error)
}

// Catalog resolves shop item definitions by identifier. internal/shop
// satisfies it; a nil catalog disables purchases and activations.
type Catalog interface {
	Item(id string) (model.ItemDefinition, bool)
}

// Options carries the tunables for a Ledger. Zero values fall back to the
// stock numbers.
type Options struct {
	// Curves is required: rank lookups per epoch.
	Curves *rank.Set

	// Rewards is the per-activity base grant table. Nil means DefaultRewards.
	Rewards map[string]Reward

	// StartingGMP seeds new records so fresh members can use the shop.
	StartingGMP int64

	// DailyXP and DailyGMP are the base daily claim grants before streak
	// and booster scaling.
	DailyXP  int64
	DailyGMP int64

	// StreakTierBonuses maps streak tiers (baseline, 7+, 30+, 100+) to the
	// multiplier applied to daily grants.
	StreakTierBonuses [4]float64

	// TransferMinimum is the smallest accepted transfer amount.
	TransferMinimum int64

	// TransferFeePercent is charged to the sender on top of the amount,
	// rounded down.
	TransferFeePercent int64

	// MaxBioLength caps SetBio input.
	MaxBioLength int

	// Now supplies the clock for operations that do not take a caller
	// timestamp. Tests inject a fixed one.
	Now func() time.Time
}

func (o *Options) resolve() error {
	if o.Curves == nil {
		return errors.New("ledger: rank curves are required")
	}
	if o.Rewards == nil {
		o.Rewards = DefaultRewards()
	}
	if o.StartingGMP == 0 {
		o.StartingGMP = 1000
	}
	if o.DailyXP == 0 {
		o.DailyXP = 50
	}
	if o.DailyGMP == 0 {
		o.DailyGMP = 200
	}
	if o.StreakTierBonuses == [4]float64{} {
		o.StreakTierBonuses = [4]float64{1.0, 1.25, 1.5, 2.0}
	}
	if o.TransferMinimum == 0 {
		o.TransferMinimum = 10
	}
	if o.TransferFeePercent < 0 || o.TransferFeePercent >= 100 {
		return errors.New("ledger: transfer fee percent must be in [0, 100)")
	}
	if o.MaxBioLength == 0 {
		o.MaxBioLength = 150
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return nil
}

// Ledger owns every member record and serializes mutations per key.
// Operations against different keys run in parallel.
type Ledger struct {
	journal Journal
	catalog Catalog
	bus     *events.Bus
	opts    Options
	log     zerolog.Logger

	mu          sync.RWMutex
	communities map[string]map[string]*model.MemberRecord

	locks   sync.Map // model.Key -> *sync.Mutex
	lastSeq atomic.Int64
	commits atomic.Int64
}

// New builds a Ledger around a journal. catalog and bus may be nil when the
// shop or the rank-change pipeline are not wired.
func New(j Journal, catalog Catalog, bus *events.Bus, opts Options, log zerolog.Logger) (*Ledger, error) {
	if j == nil {
		return nil, errors.New("ledger: journal is required")
	}
	if err := opts.resolve(); err != nil {
		return nil, err
	}
	return &Ledger{
		journal:     j,
		catalog:     catalog,
		bus:         bus,
		opts:        opts,
		log:         log,
		communities: make(map[string]map[string]*model.MemberRecord),
	}, nil
}

// Restore installs a previously persisted state. Meant for startup, before
// the ledger is exposed to traffic; seq is the journal sequence the state
// reflects.
func (l *Ledger) Restore(state map[string]map[string]*model.MemberRecord, seq int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for community, members := range state {
		comm := l.communities[community]
		if comm == nil {
			comm = make(map[string]*model.MemberRecord, len(members))
			l.communities[community] = comm
		}
		for id, rec := range members {
			comm[id] = rec.Clone()
		}
		total += len(members)
	}
	if seq > l.lastSeq.Load() {
		l.lastSeq.Store(seq)
	}
	membersTracked.Set(float64(l.countLocked()))
	l.log.Info().Int("members", total).Int64("seq", seq).Msg("ledger state restored")
}

// Snapshot returns a deep copy of the full state together with the journal
// sequence it reflects. The copy is safe to serialize without further
// locking.
func (l *Ledger) Snapshot() (map[string]map[string]*model.MemberRecord, int64) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]map[string]*model.MemberRecord, len(l.communities))
	for community, members := range l.communities {
		comm := make(map[string]*model.MemberRecord, len(members))
		for id, rec := range members {
			comm[id] = rec.Clone()
		}
		out[community] = comm
	}
	return out, l.lastSeq.Load()
}

// Commits reports the number of mutations committed since construction.
// The snapshot loop uses it as its dirty counter.
func (l *Ledger) Commits() int64 { return l.commits.Load() }

// LastSeq reports the journal sequence of the newest committed mutation.
func (l *Ledger) LastSeq() int64 { return l.lastSeq.Load() }

// StartingBalance is the GMP a member is seeded with on first contact.
// Affordability views use it for members who have no record yet.
func (l *Ledger) StartingBalance() int64 { return l.opts.StartingGMP }

// GetRecord returns a copy of the member's record.
func (l *Ledger) GetRecord(key model.Key) (*model.MemberRecord, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	rec, ok := l.current(key)
	if !ok {
		return nil, NewNotFoundError("member", key.String())
	}
	return rec.Clone(), nil
}

// Leaderboard returns the community's records ordered by the given metric,
// highest first. Ties resolve to the earlier-created record. limit <= 0
// means no limit.
func (l *Ledger) Leaderboard(community string, metric model.Metric, limit int) ([]*model.MemberRecord, error) {
	if strings.TrimSpace(community) == "" {
		return nil, NewValidationError("communityId", "must not be empty")
	}
	value, err := metricValue(metric)
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	members := l.communities[community]
	out := make([]*model.MemberRecord, 0, len(members))
	for _, rec := range members {
		out = append(out, rec)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		vi, vj := value(out[i]), value(out[j])
		if vi != vj {
			return vi > vj
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	copies := make([]*model.MemberRecord, len(out))
	for i, rec := range out {
		copies[i] = rec.Clone()
	}
	return copies, nil
}

func metricValue(metric model.Metric) (func(*model.MemberRecord) int64, error) {
	switch metric {
	case model.MetricXP:
		return func(r *model.MemberRecord) int64 { return r.XP }, nil
	case model.MetricGMP:
		return func(r *model.MemberRecord) int64 { return r.GMP }, nil
	case model.MetricMessages:
		return func(r *model.MemberRecord) int64 { return r.MessagesSent }, nil
	case model.MetricTactical:
		return func(r *model.MemberRecord) int64 { return r.TacticalWords }, nil
	default:
		return nil, NewValidationError("metric", "unknown leaderboard metric '"+string(metric)+"'")
	}
}

// mutate is the single mutation primitive. It serializes on the member's
// key, hands fn a clone of the current record (creating a fresh one on
// first contact), journals the result, and installs it. fn returning an
// error leaves the ledger untouched.
func (l *Ledger) mutate(ctx context.Context, op string, key model.Key, at time.Time, fn func(rec *model.MemberRecord) (*model.TransactionRecord, error)) (*model.MemberRecord, error) {
	if err := validateKey(key); err != nil {
		opErrorsTotal.WithLabelValues(op).Inc()
		return nil, err
	}

	lk := l.keyLock(key)
	lk.Lock()
	defer lk.Unlock()

	work, created := l.workingCopy(key, at)
	booster.Prune(work.Boosters, at)
	expireInventory(work, at)

	txn, err := fn(work)
	if err != nil {
		opErrorsTotal.WithLabelValues(op).Inc()
		return nil, err
	}
	work.UpdatedAt = at.UTC()

	seq, err := l.journal.Append(ctx, []*model.MemberRecord{work}, txn)
	if err != nil {
		opErrorsTotal.WithLabelValues(op).Inc()
		return nil, NewPersistenceError(op, err)
	}
	l.install(work)
	l.finishCommit(op, seq, created)
	return work, nil
}

// workingCopy returns a mutable copy of the current record, or a fresh
// record on first contact. The new record freezes its curve epoch from the
// contact time; that choice never re-evaluates.
func (l *Ledger) workingCopy(key model.Key, at time.Time) (*model.MemberRecord, bool) {
	if cur, ok := l.current(key); ok {
		return cur.Clone(), false
	}
	epoch := l.opts.Curves.EpochFor(at)
	return &model.MemberRecord{
		MemberID:    key.MemberID,
		CommunityID: key.CommunityID,
		GMP:         l.opts.StartingGMP,
		Rank:        l.opts.Curves.For(epoch, 0).Name,
		CurveEpoch:  epoch,
		CreatedAt:   at.UTC(),
		UpdatedAt:   at.UTC(),
	}, true
}

func (l *Ledger) current(key model.Key) (*model.MemberRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.communities[key.CommunityID][key.MemberID]
	return rec, ok
}

func (l *Ledger) install(recs ...*model.MemberRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, rec := range recs {
		comm := l.communities[rec.CommunityID]
		if comm == nil {
			comm = make(map[string]*model.MemberRecord)
			l.communities[rec.CommunityID] = comm
		}
		comm[rec.MemberID] = rec
	}
}

func (l *Ledger) finishCommit(op string, seq int64, created bool) {
	l.lastSeq.Store(seq)
	l.commits.Add(1)
	opsTotal.WithLabelValues(op).Inc()
	if created {
		l.mu.RLock()
		membersTracked.Set(float64(l.countLocked()))
		l.mu.RUnlock()
	}
}

func (l *Ledger) countLocked() int {
	n := 0
	for _, members := range l.communities {
		n += len(members)
	}
	return n
}

func (l *Ledger) keyLock(key model.Key) *sync.Mutex {
	m, _ := l.locks.LoadOrStore(key, &sync.Mutex{})
	return m.(*sync.Mutex)
}

// lockPair acquires both key locks in a stable order so concurrent
// transfers cannot deadlock.
func (l *Ledger) lockPair(a, b model.Key) func() {
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}
	fl, sl := l.keyLock(first), l.keyLock(second)
	fl.Lock()
	sl.Lock()
	return func() {
		sl.Unlock()
		fl.Unlock()
	}
}

func validateKey(key model.Key) error {
	if strings.TrimSpace(key.CommunityID) == "" {
		return NewValidationError("communityId", "must not be empty")
	}
	if strings.TrimSpace(key.MemberID) == "" {
		return NewValidationError("memberId", "must not be empty")
	}
	return nil
}

// reRank recomputes the cached rank after an experience change.
func (l *Ledger) reRank(rec *model.MemberRecord) model.RankChange {
	old := rec.Rank
	rec.Rank = l.opts.Curves.For(rec.CurveEpoch, rec.XP).Name
	return model.RankChange{Old: old, New: rec.Rank, Changed: old != rec.Rank}
}

// applyCredit scales the deltas by the member's reward factor at their
// current rank and the matching booster class, truncating fractions, then
// credits and recomputes rank.
func (l *Ledger) applyCredit(rec *model.MemberRecord, xpDelta, gmpDelta int64, at time.Time) model.RankChange {
	factor := l.opts.Curves.For(rec.CurveEpoch, rec.XP).Factor()
	xpMult := booster.Effective(rec.Boosters, model.BoosterXP, at)
	gmpMult := booster.Effective(rec.Boosters, model.BoosterGMP, at)

	rec.XP += int64(float64(xpDelta) * factor * xpMult)
	rec.GMP += int64(float64(gmpDelta) * factor * gmpMult)
	return l.reRank(rec)
}

func (l *Ledger) publishRankChange(key model.Key, change model.RankChange, xp int64, at time.Time) {
	if l.bus == nil || !change.Changed {
		return
	}
	rankChangesTotal.Inc()
	ev := events.RankChange{Key: key, OldRank: change.Old, NewRank: change.New, XP: xp, At: at.UTC()}
	if !l.bus.Publish(ev) {
		l.log.Warn().Str("member", key.String()).Msg("rank change dropped, subscriber lagging")
	}
}

// expireInventory flips active entries past their expiry to expired.
// Idempotent.
func expireInventory(rec *model.MemberRecord, now time.Time) int {
	n := 0
	for i := range rec.Inventory {
		e := &rec.Inventory[i]
		if e.Status == model.EntryActive && e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
			e.Status = model.EntryExpired
			n++
		}
	}
	return n
}

package mirror

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/journal"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/shardqueue"
)

// Config tunes the syncer. Zero values fall back to the defaults below.
type Config struct {
	// Poll is how often the backlog is checked.
	Poll time.Duration
	// Interval is the longest the syncer will sit on a non-empty backlog
	// before pushing it.
	Interval time.Duration
	// Threshold is the backlog size that triggers a push ahead of Interval.
	Threshold int64
	// BatchSize caps how many oplog rows one push cycle leases.
	BatchSize int
	// WriteTimeout bounds each individual remote write.
	WriteTimeout time.Duration
	// FullInterval schedules periodic full resyncs; 0 disables them.
	FullInterval time.Duration
	// Shards is the push parallelism across distinct members.
	Shards int
}

func (c Config) withDefaults() Config {
	if c.Poll <= 0 {
		c.Poll = 5 * time.Second
	}
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Threshold <= 0 {
		c.Threshold = 500
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.Shards <= 0 {
		c.Shards = 4
	}
	return c
}

// State is the slice of the ledger the syncer needs: a consistent snapshot
// to replicate and a rank repair pass to run before full resyncs.
type State interface {
	Snapshot() (map[string]map[string]*model.MemberRecord, int64)
	RepairRanks(ctx context.Context) (int, error)
}

// Syncer drains the journal outbox into the mirror. Pushes for the same
// member stay ordered through the shard executor; pushes for different
// members run in parallel. All failures are contained here: a dead mirror
// grows the backlog and nothing else.
type Syncer struct {
	journal *journal.Journal
	mirror  Mirror
	state   State
	cfg     Config
	log     zerolog.Logger
	exec    *shardqueue.ShardExecutor

	mu        sync.Mutex
	inflight  map[int64]struct{}
	lastCycle time.Time
	lastPush  time.Time
	lastFull  time.Time
	lastError string

	fullRunning atomic.Bool
}

// New builds a syncer over an opened journal and mirror. Run starts it.
func New(j *journal.Journal, m Mirror, st State, cfg Config, log zerolog.Logger) *Syncer {
	cfg = cfg.withDefaults()
	s := &Syncer{
		journal:   j,
		mirror:    m,
		state:     st,
		cfg:       cfg,
		log:       log,
		inflight:  make(map[int64]struct{}),
		lastCycle: time.Now(),
	}
	s.exec = shardqueue.NewShardExecutor(shardqueue.Config{
		Shards:       cfg.Shards,
		QueueSize:    cfg.BatchSize,
		Permanent:    IsPermanent,
		ErrorHandler: s.onPushError,
		Logger:       log,
	})
	return s
}

// Run polls the backlog until ctx is canceled, pushing when the threshold
// or interval is hit and running scheduled full resyncs. It always returns
// nil after a graceful drain.
func (s *Syncer) Run(ctx context.Context) error {
	s.log.Info().
		Dur("poll", s.cfg.Poll).
		Dur("interval", s.cfg.Interval).
		Int64("threshold", s.cfg.Threshold).
		Dur("full_interval", s.cfg.FullInterval).
		Msg("mirror syncer started")

	poll := time.NewTicker(s.cfg.Poll)
	defer poll.Stop()

	var fullC <-chan time.Time
	if s.cfg.FullInterval > 0 {
		full := time.NewTicker(s.cfg.FullInterval)
		defer full.Stop()
		fullC = full.C
	}

	for {
		select {
		case <-ctx.Done():
			s.exec.Stop()
			s.log.Info().Msg("mirror syncer stopped")
			return nil
		case <-poll.C:
			s.maybePush(ctx)
		case <-fullC:
			if _, err := s.FullResync(ctx); err != nil {
				s.log.Warn().Err(err).Msg("scheduled full resync failed")
			}
		}
	}
}

func (s *Syncer) maybePush(ctx context.Context) {
	pending, err := s.journal.PendingCount(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not read journal backlog")
		return
	}
	backlogRows.Set(float64(pending))
	if pending == 0 {
		return
	}
	if pending < s.cfg.Threshold && time.Since(s.lastCycleTime()) < s.cfg.Interval {
		return
	}
	if _, err := s.Push(ctx); err != nil {
		s.log.Warn().Err(err).Msg("incremental push failed")
	}
}

// pushGroup is one member's slice of a push cycle: every leased oplog row
// for the key, coalesced to the newest record plus all transactions.
type pushGroup struct {
	key  model.Key
	seqs []int64
	rec  *model.MemberRecord
	txns []*model.TransactionRecord
}

// cycleStats follows one push cycle to completion. outstanding starts at
// one for the submitter; the last release records the history entry.
type cycleStats struct {
	outstanding atomic.Int64
	landed      atomic.Int64
	failed      atomic.Int64
}

// Push leases ready oplog rows, coalesces them per member, and queues the
// groups for replication. It returns the number of groups queued. Only the
// run loop (or a caller that owns it) may invoke Push; cycles must not
// overlap from multiple goroutines.
func (s *Syncer) Push(ctx context.Context) (int, error) {
	s.setLastCycle(time.Now())

	rows, err := s.journal.LeaseReady(ctx, s.cfg.BatchSize)
	if err != nil {
		s.noteError(err)
		return 0, err
	}
	groups := s.freshGroups(rows)
	if len(groups) == 0 {
		return 0, nil
	}

	st := &cycleStats{}
	st.outstanding.Store(1)
	defer s.releaseCycle(st)

	queued := 0
	for _, g := range groups {
		s.track(g.seqs)
		st.outstanding.Add(1)
		if err := s.exec.Submit(ctx, g.key.String(), s.pushJob(g, st)); err != nil {
			s.untrack(g.seqs)
			st.outstanding.Add(-1)
			if errors.Is(err, shardqueue.ErrQueueFull) {
				s.log.Debug().Int("queued", queued).Msg("push queue full, deferring rest of batch")
				break
			}
			return queued, errors.Wrap(err, "mirror: queue push")
		}
		queued++
	}
	return queued, nil
}

// freshGroups orders leased rows into per-member groups, skipping rows a
// previous cycle still has in flight. Rows arrive in sequence order, so the
// last record seen per key is the newest.
func (s *Syncer) freshGroups(rows []journal.PendingRow) []*pushGroup {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := make(map[model.Key]*pushGroup)
	var order []*pushGroup
	for _, row := range rows {
		if _, busy := s.inflight[row.Seq]; busy {
			continue
		}
		g := byKey[row.Key]
		if g == nil {
			g = &pushGroup{key: row.Key}
			byKey[row.Key] = g
			order = append(order, g)
		}
		g.seqs = append(g.seqs, row.Seq)
		g.rec = row.Record
		if row.Txn != nil {
			g.txns = append(g.txns, row.Txn)
		}
	}
	return order
}

func (s *Syncer) pushJob(g *pushGroup, st *cycleStats) shardqueue.Job {
	marked := false
	return shardqueue.JobFunc(func(ctx context.Context) error {
		err := s.pushOne(ctx, g)
		if err == nil {
			// Bookkeeping is local and must not be lost to a canceled
			// push context once the remote write has landed.
			if mdErr := s.journal.MarkDone(context.Background(), g.seqs...); mdErr != nil {
				s.log.Warn().Err(mdErr).Msg("pushed rows could not be marked done")
			}
			pushesTotal.WithLabelValues(outcomeOK).Add(float64(len(g.seqs)))
			s.untrack(g.seqs)
			s.groupLanded(st)
			return nil
		}
		if IsPermanent(err) {
			pushesTotal.WithLabelValues(outcomePermanent).Add(float64(len(g.seqs)))
			s.log.Error().Str("member", g.key.String()).Err(err).
				Msg("mirror rejected rows, backing off")
			s.markFailed(g.seqs)
			s.untrack(g.seqs)
			s.groupFailed(st, err)
			return nil
		}
		pushesTotal.WithLabelValues(outcomeRetry).Add(float64(len(g.seqs)))
		if !marked {
			marked = true
			s.markFailed(g.seqs)
		}
		return &pushError{group: g, stats: st, err: err}
	})
}

// pushOne replicates one group: the coalesced record first, then its
// transactions. Each remote write gets its own timeout; no transaction is
// held across the network.
func (s *Syncer) pushOne(ctx context.Context, g *pushGroup) error {
	if err := s.write(ctx, func(wctx context.Context) error {
		return s.mirror.UpsertRecord(wctx, g.rec)
	}); err != nil {
		return err
	}
	for _, txn := range g.txns {
		txn := txn
		if err := s.write(ctx, func(wctx context.Context) error {
			return s.mirror.UpsertTransaction(wctx, txn)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) write(ctx context.Context, fn func(context.Context) error) error {
	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, s.cfg.WriteTimeout)
	defer cancel()
	err := fn(wctx)
	pushDuration.Observe(time.Since(start).Seconds())
	return err
}

// onPushError fires when the executor gives up on a job. The rows stay
// pending with a bumped backoff and are re-leased on a later cycle.
func (s *Syncer) onPushError(err error) {
	var pe *pushError
	if errors.As(err, &pe) {
		s.untrack(pe.group.seqs)
		s.groupFailed(pe.stats, pe.err)
		s.log.Warn().Str("member", pe.group.key.String()).Err(pe.err).
			Msg("mirror push exhausted retries, rows stay pending")
		return
	}
	s.noteError(err)
	s.log.Warn().Err(err).Msg("mirror push failed")
}

// FullResync repairs every cached rank, snapshots the whole ledger, and
// replaces the remote copy of every record. On a clean pass the journal
// backlog up to the snapshot sequence is superseded and marked done.
func (s *Syncer) FullResync(ctx context.Context) (BackupEntry, error) {
	if !s.fullRunning.CompareAndSwap(false, true) {
		return BackupEntry{}, ledger.NewConflictError("sync", "a full resync is already running")
	}
	defer s.fullRunning.Store(false)

	fixed, err := s.state.RepairRanks(ctx)
	if err != nil {
		return BackupEntry{}, err
	}
	snap, seq := s.state.Snapshot()

	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	members := 0
	for _, community := range snap {
		for _, rec := range community {
			rec := rec
			members++
			wg.Add(1)
			job := shardqueue.JobFunc(func(jctx context.Context) error {
				defer wg.Done()
				if err := s.write(jctx, func(wctx context.Context) error {
					return s.mirror.UpsertRecord(wctx, rec)
				}); err != nil {
					failed.Add(1)
					s.log.Warn().Str("member", rec.Key().String()).Err(err).
						Msg("full resync upsert failed")
				}
				return nil
			})
			if err := s.submitWait(ctx, rec.Key().String(), job); err != nil {
				wg.Done()
				failed.Add(1)
				s.log.Warn().Str("member", rec.Key().String()).Err(err).
					Msg("full resync could not queue upsert")
			}
		}
	}
	wg.Wait()

	entry := BackupEntry{
		At:          time.Now().UTC(),
		Members:     members,
		Communities: len(snap),
		Kind:        BackupFull,
		Status:      BackupSuccess,
	}
	if fixed > 0 {
		entry.Kind = BackupFullRankFix
	}
	if failed.Load() > 0 {
		entry.Status = BackupPartial
	} else if err := s.journal.MarkDoneThrough(ctx, seq); err != nil {
		s.log.Warn().Err(err).Msg("could not supersede journal backlog after full resync")
	}

	if err := s.mirror.RecordBackup(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("could not record full resync history")
	}
	fullResyncsTotal.Inc()
	s.setLastFull(entry.At)
	s.log.Info().
		Int("members", members).
		Int("communities", len(snap)).
		Int("rank_fixes", fixed).
		Int64("failed", failed.Load()).
		Str("status", entry.Status).
		Msg("full resync finished")
	return entry, nil
}

// submitWait submits a job, waiting out transient queue-full rejections so
// a bulk resync cannot drop records on backpressure.
func (s *Syncer) submitWait(ctx context.Context, key string, job shardqueue.Job) error {
	for {
		err := s.exec.Submit(ctx, key, job)
		if err == nil || !errors.Is(err, shardqueue.ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// SyncStatus is a point-in-time view of replication health.
type SyncStatus struct {
	Pending     int64     `json:"pending"`
	InFlight    int       `json:"inFlight"`
	LastPush    time.Time `json:"lastPush"`
	LastFull    time.Time `json:"lastFull"`
	LastError   string    `json:"lastError,omitempty"`
	FullRunning bool      `json:"fullRunning"`
}

// Status reports the backlog and the outcome of recent pushes.
func (s *Syncer) Status(ctx context.Context) SyncStatus {
	pending, err := s.journal.PendingCount(ctx)
	if err != nil {
		pending = -1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return SyncStatus{
		Pending:     pending,
		InFlight:    len(s.inflight),
		LastPush:    s.lastPush,
		LastFull:    s.lastFull,
		LastError:   s.lastError,
		FullRunning: s.fullRunning.Load(),
	}
}

// History returns the most recent backup ledger entries from the mirror.
func (s *Syncer) History(ctx context.Context, limit int) ([]BackupEntry, error) {
	return s.mirror.BackupHistory(ctx, limit)
}

func (s *Syncer) releaseCycle(st *cycleStats) {
	if st.outstanding.Add(-1) == 0 {
		s.recordIncremental(st)
	}
}

func (s *Syncer) groupLanded(st *cycleStats) {
	st.landed.Add(1)
	s.mu.Lock()
	s.lastPush = time.Now()
	s.lastError = ""
	s.mu.Unlock()
	s.releaseCycle(st)
}

func (s *Syncer) groupFailed(st *cycleStats, err error) {
	st.failed.Add(1)
	s.noteError(err)
	s.releaseCycle(st)
}

// recordIncremental writes the history row for a finished push cycle. It
// runs on whichever goroutine releases the cycle last.
func (s *Syncer) recordIncremental(st *cycleStats) {
	landed, failed := st.landed.Load(), st.failed.Load()
	if landed+failed == 0 {
		return
	}
	status := BackupSuccess
	if failed > 0 {
		status = BackupPartial
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	entry := BackupEntry{
		At:      time.Now().UTC(),
		Members: int(landed),
		Kind:    BackupIncremental,
		Status:  status,
	}
	if err := s.mirror.RecordBackup(ctx, entry); err != nil {
		s.log.Warn().Err(err).Msg("could not record incremental history")
	}
	s.log.Debug().Int64("landed", landed).Int64("failed", failed).Msg("push cycle finished")
}

func (s *Syncer) markFailed(seqs []int64) {
	for _, seq := range seqs {
		if err := s.journal.MarkFailed(context.Background(), seq); err != nil {
			s.log.Warn().Int64("seq", seq).Err(err).Msg("could not bump row backoff")
		}
	}
}

func (s *Syncer) track(seqs []int64) {
	s.mu.Lock()
	for _, seq := range seqs {
		s.inflight[seq] = struct{}{}
	}
	s.mu.Unlock()
}

func (s *Syncer) untrack(seqs []int64) {
	s.mu.Lock()
	for _, seq := range seqs {
		delete(s.inflight, seq)
	}
	s.mu.Unlock()
}

func (s *Syncer) setLastCycle(t time.Time) {
	s.mu.Lock()
	s.lastCycle = t
	s.mu.Unlock()
}

func (s *Syncer) lastCycleTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycle
}

func (s *Syncer) setLastFull(t time.Time) {
	s.mu.Lock()
	s.lastFull = t
	s.mu.Unlock()
}

func (s *Syncer) noteError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

type pushError struct {
	group *pushGroup
	stats *cycleStats
	err   error
}

func (e *pushError) Error() string {
	return fmt.Sprintf("push %s (rows %v): %v", e.group.key, e.group.seqs, e.err)
}

func (e *pushError) Unwrap() error { return e.err }

// Package ledgerservice wires the progression ledger into a runnable
// service: config, durable state recovery, the mirror syncer, background
// sweeps and the HTTP server, with a drain order that never loses a
// committed mutation.
package ledgerservice

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/api"
	"github.com/r-ddle/exile-ledger/internal/config"
	"github.com/r-ddle/exile-ledger/internal/events"
	"github.com/r-ddle/exile-ledger/internal/journal"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/logger"
	"github.com/r-ddle/exile-ledger/internal/mirror"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/rank"
	"github.com/r-ddle/exile-ledger/internal/shop"
	"github.com/r-ddle/exile-ledger/internal/snapshot"
)

// Run starts the ledger service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("ledger-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Int("http_port", cfg.HTTPPort).
		Str("data_dir", cfg.DataDir).
		Bool("mirror_enabled", cfg.MirrorEnabled()).
		Msg("Ledger service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	d, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}

	// Background loops: rank announcements, expiry sweep, snapshot writer,
	// mirror syncer. Each signals completion so shutdown can drain in order.
	announceDone := startRankAnnouncer(ctx, d.bus, log)
	sweepDone := startLoop(func() { _ = d.shop.RunSweeper(ctx, cfg.SweepInterval) })
	snapDone := startLoop(func() { runSnapshotLoop(ctx, cfg, d, log) })
	syncDone := make(chan struct{})
	if d.syncer != nil {
		go func() {
			defer close(syncDone)
			_ = d.syncer.Run(ctx)
		}()
	} else {
		close(syncDone)
	}

	router := api.NewRouter(d.ledger, d.shop, d.journal, d.syncer)
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			runErr = err
		}
		cancel()
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		stop()
		runErr = err
	}

	// Drain order: traffic is stopped, so persist the final state, then stop
	// the syncer, then close the mirror and finally the journal.
	<-sweepDone
	<-snapDone
	d.writeSnapshot(context.Background(), log)
	<-syncDone
	<-announceDone
	if d.remote != nil {
		if err := d.remote.Close(); err != nil {
			log.Warn().Err(err).Msg("mirror close failed")
		}
	}
	if err := d.journal.Close(); err != nil {
		log.Warn().Err(err).Msg("journal close failed")
	}
	log.Info().Msg("Server exited")
	return runErr
}

// deps bundles everything Run wires together.
type deps struct {
	cfg     *config.Config
	journal *journal.Journal
	snaps   *snapshot.Store
	ledger  *ledger.Ledger
	shop    *shop.Shop
	bus     *events.Bus
	remote  mirror.Mirror  // nil without a configured, reachable mirror
	syncer  *mirror.Syncer // nil when remote is nil

	lastSnapCommits int64
	lastSnapAt      time.Time
}

// initDependencies constructs the stack bottom-up and restores state. On
// error everything opened so far is closed again.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*deps, error) {
	curves, err := loadCurves(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Rank curves unusable")
		return nil, err
	}
	catalog, err := shop.Load(cfg.CatalogPath)
	if err != nil {
		log.Error().Err(err).Msg("Shop catalog unusable")
		return nil, err
	}

	j, err := journal.Open(cfg.DataDir, log)
	if err != nil {
		log.Error().Err(err).Msg("Journal unavailable")
		return nil, err
	}
	snaps, err := snapshot.New(cfg.DataDir, log)
	if err != nil {
		_ = j.Close()
		log.Error().Err(err).Msg("Snapshot store unavailable")
		return nil, err
	}

	bus := events.NewBus(64)
	l, err := ledger.New(j, catalog, bus, ledgerOptions(cfg, curves), log)
	if err != nil {
		_ = j.Close()
		return nil, err
	}

	d := &deps{
		cfg:     cfg,
		journal: j,
		snaps:   snaps,
		ledger:  l,
		shop:    shop.New(catalog, l, log),
		bus:     bus,
	}

	// The mirror opens before restore so the degraded rebuild path can use
	// it. An unreachable mirror disables replication for this run; local
	// operation continues regardless.
	if cfg.MirrorEnabled() {
		pm, err := mirror.Open(ctx, cfg.MirrorDSN, log)
		if err != nil {
			log.Error().Err(err).Msg("Mirror unreachable, replication disabled for this run")
		} else {
			d.remote = pm
			d.syncer = mirror.New(j, pm, l, syncConfig(cfg), log)
		}
	}

	if err := restoreState(ctx, d, log); err != nil {
		if d.remote != nil {
			_ = d.remote.Close()
		}
		_ = j.Close()
		return nil, err
	}

	// Curves may have changed between runs; recompute cached ranks before
	// serving.
	fixed, err := l.RepairRanks(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("startup rank repair incomplete")
	} else if fixed > 0 {
		log.Info().Int("fixed", fixed).Msg("stale ranks repaired at startup")
	}

	d.lastSnapCommits = l.Commits()
	d.lastSnapAt = time.Now()
	return d, nil
}

func loadCurves(cfg *config.Config) (*rank.Set, error) {
	if cfg.CurvesPath == "" {
		return rank.DefaultSet(cfg.CutoverDate()), nil
	}
	return rank.LoadSet(cfg.CurvesPath, cfg.CutoverDate())
}

func ledgerOptions(cfg *config.Config, curves *rank.Set) ledger.Options {
	var bonuses [4]float64
	copy(bonuses[:], cfg.StreakTierBonuses)
	return ledger.Options{
		Curves:             curves,
		DailyXP:            cfg.DailyXP,
		DailyGMP:           cfg.DailyGMP,
		StreakTierBonuses:  bonuses,
		TransferMinimum:    cfg.TransferMinimum,
		TransferFeePercent: cfg.TransferFeePercent,
	}
}

func syncConfig(cfg *config.Config) mirror.Config {
	return mirror.Config{
		Interval:     cfg.SyncInterval,
		Threshold:    int64(cfg.SyncThreshold),
		BatchSize:    cfg.SyncBatchSize,
		WriteTimeout: cfg.SyncTimeout,
		FullInterval: cfg.FullSyncInterval,
	}
}

// restoreState fills the ledger from the best available source. Normal path:
// snapshot plus journal rows past its checkpoint. Degraded paths, in order:
// remote mirror overlaid with the full journal, then the journal alone. A
// corrupt snapshot with nothing else to fall back on refuses to start rather
// than silently serving an empty ledger.
func restoreState(ctx context.Context, d *deps, log zerolog.Logger) error {
	snap, snapErr := d.snaps.Load()
	if snapErr == nil {
		state := make(map[string]map[string]*model.MemberRecord)
		var since int64
		if snap != nil {
			state = snap.Communities
			since = snap.Sequence
			log.Info().Str("snapshot", snap.Describe()).Msg("snapshot loaded")
		}
		replayed, maxSeq, err := d.journal.Replay(ctx, since)
		if err != nil {
			return errors.Wrap(err, "replay journal")
		}
		overlay(state, replayed)
		d.ledger.Restore(state, maxSeq)
		if len(replayed) > 0 {
			log.Info().Int("records", len(replayed)).Int64("through", maxSeq).
				Msg("journal replayed past checkpoint")
		}
		return nil
	}

	log.Error().Err(snapErr).Msg("snapshot and backup unreadable, entering degraded recovery")
	replayed, maxSeq, replayErr := d.journal.Replay(ctx, 0)

	if d.remote != nil {
		state, err := d.remote.LoadAll(ctx)
		if err == nil {
			// Journal rows are newer than anything the mirror holds.
			if replayErr == nil {
				overlay(state, replayed)
			}
			if maxSeq == 0 {
				maxSeq, _ = d.journal.MaxSeq(ctx)
			}
			d.ledger.Restore(state, maxSeq)
			log.Warn().Int("members", countMembers(state)).
				Msg("state rebuilt from the remote mirror")
			return nil
		}
		log.Error().Err(err).Msg("mirror rebuild failed")
	}

	if replayErr == nil && len(replayed) > 0 {
		state := make(map[string]map[string]*model.MemberRecord)
		overlay(state, replayed)
		d.ledger.Restore(state, maxSeq)
		log.Warn().Int("records", len(replayed)).
			Msg("recovered from the journal alone; records before the last checkpoint are missing")
		return nil
	}
	if replayErr != nil {
		return errors.Wrap(replayErr, "no recoverable state: snapshot, journal and mirror all unusable")
	}
	return errors.Errorf("snapshot is unreadable and no other state source exists; restore or remove %s", d.snaps.Path())
}

func overlay(dst map[string]map[string]*model.MemberRecord, replayed map[model.Key]*model.MemberRecord) {
	for key, rec := range replayed {
		members := dst[key.CommunityID]
		if members == nil {
			members = make(map[string]*model.MemberRecord)
			dst[key.CommunityID] = members
		}
		members[key.MemberID] = rec
	}
}

func countMembers(state map[string]map[string]*model.MemberRecord) int {
	n := 0
	for _, members := range state {
		n += len(members)
	}
	return n
}

// runSnapshotLoop persists the state whenever enough mutations accumulate or
// the snapshot interval elapses with anything new. The poll is cheap: two
// atomic loads.
func runSnapshotLoop(ctx context.Context, cfg *config.Config, d *deps, log zerolog.Logger) {
	poll := time.Second
	if cfg.SnapshotInterval < poll {
		poll = cfg.SnapshotInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			commits := d.ledger.Commits()
			if commits == d.lastSnapCommits {
				continue
			}
			if commits-d.lastSnapCommits < int64(cfg.SnapshotThreshold) &&
				time.Since(d.lastSnapAt) < cfg.SnapshotInterval {
				continue
			}
			d.writeSnapshot(ctx, log)
		}
	}
}

// writeSnapshot persists the current state and checkpoints the journal.
// Called from the snapshot loop and once more during shutdown.
func (d *deps) writeSnapshot(ctx context.Context, log zerolog.Logger) {
	commits := d.ledger.Commits()
	if commits == d.lastSnapCommits {
		return
	}
	state, seq := d.ledger.Snapshot()
	if err := d.snaps.Write(state, seq); err != nil {
		log.Error().Err(err).Msg("snapshot write failed, journal retains everything")
		return
	}
	if err := d.journal.Checkpoint(ctx, seq); err != nil {
		log.Warn().Err(err).Msg("journal checkpoint failed")
	}
	d.lastSnapCommits = commits
	d.lastSnapAt = time.Now()
	log.Debug().Int64("seq", seq).Int("members", countMembers(state)).Msg("snapshot written")
}

// startRankAnnouncer logs rank transitions from the event bus. The role
// assignment collaborator subscribes the same way.
func startRankAnnouncer(ctx context.Context, bus *events.Bus, log zerolog.Logger) <-chan struct{} {
	done := make(chan struct{})
	changes := bus.Subscribe()
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-changes:
				log.Info().
					Str("member", evt.Key.String()).
					Str("from", evt.OldRank).
					Str("to", evt.NewRank).
					Int64("xp", evt.XP).
					Msg("rank changed")
			}
		}
	}()
	return done
}

func startLoop(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

package ledgerservice

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/journal"
	"github.com/r-ddle/exile-ledger/internal/ledger"
	"github.com/r-ddle/exile-ledger/internal/mirror"
	"github.com/r-ddle/exile-ledger/internal/model"
	"github.com/r-ddle/exile-ledger/internal/rank"
	"github.com/r-ddle/exile-ledger/internal/snapshot"
)

// readMirror is a Mirror that only serves LoadAll, for recovery tests.
type readMirror struct {
	state map[string]map[string]*model.MemberRecord
}

var _ mirror.Mirror = (*readMirror)(nil)

func (m *readMirror) LoadAll(context.Context) (map[string]map[string]*model.MemberRecord, error) {
	out := make(map[string]map[string]*model.MemberRecord)
	for community, members := range m.state {
		cp := make(map[string]*model.MemberRecord, len(members))
		for id, rec := range members {
			cp[id] = rec.Clone()
		}
		out[community] = cp
	}
	return out, nil
}

func (m *readMirror) UpsertRecord(context.Context, *model.MemberRecord) error { return nil }
func (m *readMirror) UpsertTransaction(context.Context, *model.TransactionRecord) error {
	return nil
}
func (m *readMirror) RecordBackup(context.Context, mirror.BackupEntry) error { return nil }
func (m *readMirror) BackupHistory(context.Context, int) ([]mirror.BackupEntry, error) {
	return nil, nil
}
func (m *readMirror) Ping(context.Context) error { return nil }
func (m *readMirror) Close() error               { return nil }

func restoreRec(member string, xp int64) *model.MemberRecord {
	now := time.Now().UTC()
	return &model.MemberRecord{
		MemberID:    member,
		CommunityID: "guild-1",
		XP:          xp,
		GMP:         1000,
		Rank:        "New Lifeform",
		CurveEpoch:  model.EpochStandard,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// testDeps builds the recovery fixture: a journal and snapshot store over one
// temp dir and a ledger to restore into.
func testDeps(t *testing.T, remote mirror.Mirror) (*deps, string) {
	t.Helper()
	dir := t.TempDir()
	j, err := journal.Open(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	snaps, err := snapshot.New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("snapshot store: %v", err)
	}
	cutover := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	l, err := ledger.New(j, nil, nil, ledger.Options{Curves: rank.DefaultSet(cutover)}, zerolog.Nop())
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return &deps{journal: j, snaps: snaps, ledger: l, remote: remote}, dir
}

func corruptSnapshot(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "ledger.json"), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}
}

func restored(t *testing.T, d *deps, community, member string) *model.MemberRecord {
	t.Helper()
	state, _ := d.ledger.Snapshot()
	rec := state[community][member]
	if rec == nil {
		t.Fatalf("member %s/%s missing after restore", community, member)
	}
	return rec
}

func TestRestoreFreshInstall(t *testing.T) {
	d, _ := testDeps(t, nil)

	if err := restoreState(context.Background(), d, zerolog.Nop()); err != nil {
		t.Fatalf("restore on empty dir: %v", err)
	}
	state, seq := d.ledger.Snapshot()
	if len(state) != 0 || seq != 0 {
		t.Fatalf("fresh install restored %d communities at seq %d", len(state), seq)
	}
}

func TestRestoreSnapshotPlusJournalOverlay(t *testing.T) {
	ctx := context.Background()
	d, _ := testDeps(t, nil)

	// Snapshot covers the first write; a later journal row supersedes it.
	seq1, err := d.journal.Append(ctx, []*model.MemberRecord{restoreRec("ada", 10)}, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	snapState := map[string]map[string]*model.MemberRecord{
		"guild-1": {"ada": restoreRec("ada", 10), "bob": restoreRec("bob", 5)},
	}
	if err := d.snaps.Write(snapState, seq1); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}
	seq2, err := d.journal.Append(ctx, []*model.MemberRecord{restoreRec("ada", 30)}, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := restoreState(ctx, d, zerolog.Nop()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored(t, d, "guild-1", "ada"); got.XP != 30 {
		t.Fatalf("ada XP = %d, want the journaled 30 over the snapshot 10", got.XP)
	}
	if got := restored(t, d, "guild-1", "bob"); got.XP != 5 {
		t.Fatalf("bob XP = %d, want the snapshot value", got.XP)
	}
	if d.ledger.LastSeq() != seq2 {
		t.Fatalf("restored seq = %d, want %d", d.ledger.LastSeq(), seq2)
	}
}

func TestRestoreRebuildsFromMirror(t *testing.T) {
	ctx := context.Background()
	remote := &readMirror{state: map[string]map[string]*model.MemberRecord{
		"guild-1": {"ada": restoreRec("ada", 10), "bob": restoreRec("bob", 99)},
	}}
	d, dir := testDeps(t, remote)

	// Local journal rows are newer than the mirror and must win the overlay.
	if _, err := d.journal.Append(ctx, []*model.MemberRecord{restoreRec("ada", 44)}, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	corruptSnapshot(t, dir)

	if err := restoreState(ctx, d, zerolog.Nop()); err != nil {
		t.Fatalf("degraded restore: %v", err)
	}
	if got := restored(t, d, "guild-1", "ada"); got.XP != 44 {
		t.Fatalf("ada XP = %d, want the local journal row over the mirror", got.XP)
	}
	if got := restored(t, d, "guild-1", "bob"); got.XP != 99 {
		t.Fatalf("bob XP = %d, want the mirrored value", got.XP)
	}
}

func TestRestoreJournalAloneWithoutMirror(t *testing.T) {
	ctx := context.Background()
	d, dir := testDeps(t, nil)

	seq, err := d.journal.Append(ctx, []*model.MemberRecord{restoreRec("ada", 7)}, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	corruptSnapshot(t, dir)

	if err := restoreState(ctx, d, zerolog.Nop()); err != nil {
		t.Fatalf("journal-only restore: %v", err)
	}
	if got := restored(t, d, "guild-1", "ada"); got.XP != 7 {
		t.Fatalf("ada XP = %d", got.XP)
	}
	if d.ledger.LastSeq() != seq {
		t.Fatalf("restored seq = %d, want %d", d.ledger.LastSeq(), seq)
	}
}

func TestRestoreRefusesWithoutAnySource(t *testing.T) {
	d, dir := testDeps(t, nil)
	corruptSnapshot(t, dir)

	err := restoreState(context.Background(), d, zerolog.Nop())
	if err == nil {
		t.Fatal("restore must refuse to start a ledger it cannot recover")
	}
	if !strings.Contains(err.Error(), d.snaps.Path()) {
		t.Fatalf("error should name the snapshot file, got %v", err)
	}
}

func TestOverlayCounts(t *testing.T) {
	state := map[string]map[string]*model.MemberRecord{}
	overlay(state, map[model.Key]*model.MemberRecord{
		{CommunityID: "g1", MemberID: "a"}: restoreRec("a", 1),
		{CommunityID: "g1", MemberID: "b"}: restoreRec("b", 2),
		{CommunityID: "g2", MemberID: "c"}: restoreRec("c", 3),
	})
	if len(state) != 2 || countMembers(state) != 3 {
		t.Fatalf("overlay built %d communities, %d members", len(state), countMembers(state))
	}
}

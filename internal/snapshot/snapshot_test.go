package snapshot

import (
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func state(xp int64) map[string]map[string]*model.MemberRecord {
	return map[string]map[string]*model.MemberRecord{
		"c1": {
			"m1": {CommunityID: "c1", MemberID: "m1", XP: xp, Rank: "Rookie", CurveEpoch: model.EpochLegacy},
		},
	}
}

func TestWriteLoadRoundtrip(t *testing.T) {
	s := newStore(t)

	if err := s.Write(state(42), 7); err != nil {
		t.Fatalf("write: %v", err)
	}
	f, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f == nil || f.Version != Version || f.Sequence != 7 {
		t.Fatalf("unexpected snapshot header: %+v", f)
	}
	rec := f.Communities["c1"]["m1"]
	if rec == nil || rec.XP != 42 || rec.CurveEpoch != model.EpochLegacy {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestLoadMissingIsFreshStart(t *testing.T) {
	s := newStore(t)
	f, err := s.Load()
	if err != nil {
		t.Fatalf("load on empty dir: %v", err)
	}
	if f != nil {
		t.Fatalf("expected nil snapshot for fresh start, got %+v", f)
	}
}

func TestCorruptFallsBackToBackup(t *testing.T) {
	s := newStore(t)

	if err := s.Write(state(1), 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	// second write moves the first snapshot to .backup
	if err := s.Write(state(2), 2); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(s.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}

	f, err := s.Load()
	if err != nil {
		t.Fatalf("load with backup: %v", err)
	}
	if f.Sequence != 1 || f.Communities["c1"]["m1"].XP != 1 {
		t.Fatalf("backup content wrong: %+v", f)
	}
}

func TestCorruptWithoutBackupErrors(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(s.Path(), []byte("{broken"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatalf("expected error for corrupt snapshot without backup")
	}
}

func TestRejectsFutureVersion(t *testing.T) {
	s := newStore(t)
	if err := os.WriteFile(s.Path(), []byte(`{"version":99,"communities":{}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := s.Load(); err == nil {
		t.Fatalf("expected error for future snapshot version")
	}
}

func TestNoTempFileLeftBehind(t *testing.T) {
	s := newStore(t)
	if err := s.Write(state(1), 1); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(s.Path() + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

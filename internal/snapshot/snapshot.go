// Package snapshot persists the whole member state as one versioned JSON
// file, written atomically so a crash can never leave a half-written
// snapshot in place.
package snapshot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/r-ddle/exile-ledger/internal/model"
)

// Version is the current snapshot format. Readers reject anything newer.
const Version = 1

const (
	filename  = "ledger.json"
	backupExt = ".backup"
	tempExt   = ".tmp"
	fileMode  = 0o644
)

// File is the on-disk snapshot layout: every record of every community,
// plus the journal sequence the state includes.
type File struct {
	Version     int                                       `json:"version"`
	SavedAt     time.Time                                 `json:"savedAt"`
	Sequence    int64                                     `json:"sequence"`
	Communities map[string]map[string]*model.MemberRecord `json:"communities"`
}

// Store reads and writes snapshots under one directory.
type Store struct {
	path string
	log  zerolog.Logger
}

// New creates the data directory if needed and returns a store for it.
func New(dir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "snapshot: create data dir")
	}
	return &Store{path: filepath.Join(dir, filename), log: log}, nil
}

// Path returns the snapshot file location.
func (s *Store) Path() string { return s.path }

// Write persists the state: the previous snapshot is first copied aside as
// .backup, then the new one is written to a temp file and renamed over the
// old. Sequence records the journal position the snapshot covers.
func (s *Store) Write(state map[string]map[string]*model.MemberRecord, seq int64) error {
	if _, err := os.Stat(s.path); err == nil {
		if err := copyFile(s.path, s.path+backupExt); err != nil {
			// Losing the backup copy is survivable; losing the write is not.
			s.log.Warn().Err(err).Msg("could not refresh snapshot backup")
		}
	}

	f := File{
		Version:     Version,
		SavedAt:     time.Now().UTC(),
		Sequence:    seq,
		Communities: state,
	}
	data, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return errors.Wrap(err, "snapshot: marshal")
	}

	tmp := s.path + tempExt
	if err := writeAndSync(tmp, data); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "snapshot: write temp")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "snapshot: replace")
	}
	return nil
}

// Load reads the current snapshot, falling back to the .backup copy when the
// primary is missing or unreadable. A fresh install (no snapshot, no backup)
// returns (nil, nil); an unreadable pair returns the primary's error so the
// caller can decide on degraded recovery.
func (s *Store) Load() (*File, error) {
	f, primaryErr := s.read(s.path)
	if primaryErr == nil {
		return f, nil
	}
	if f, backupErr := s.read(s.path + backupExt); backupErr == nil {
		s.log.Warn().Err(primaryErr).Msg("snapshot unreadable, loaded backup copy")
		return f, nil
	}
	if os.IsNotExist(errors.Cause(primaryErr)) {
		return nil, nil
	}
	return nil, primaryErr
}

func (s *Store) read(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot: read")
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errors.Wrap(err, "snapshot: parse")
	}
	if f.Version > Version {
		return nil, errors.Errorf("snapshot: unsupported version %d", f.Version)
	}
	if f.Communities == nil {
		f.Communities = make(map[string]map[string]*model.MemberRecord)
	}
	return &f, nil
}

func writeAndSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, fileMode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// Describe summarizes a snapshot for logs.
func (f *File) Describe() string {
	members := 0
	for _, c := range f.Communities {
		members += len(c)
	}
	return fmt.Sprintf("v%d seq=%d communities=%d members=%d", f.Version, f.Sequence, len(f.Communities), members)
}

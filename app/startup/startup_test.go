package startup

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

type recordingSchema struct {
	name  string
	calls *[]string
	err   error
}

func (r recordingSchema) EnsureSchema(context.Context) error {
	*r.calls = append(*r.calls, r.name)
	return r.err
}

func TestBackupDataFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "database.db")
	if err := os.WriteFile(src, []byte("sqlite bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	mtime := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 10, 19, 14, 3, 9, 0, time.Local)
	backupDir := filepath.Join(dir, "backups")
	got, err := BackupDataFile(src, backupDir, now)
	if err != nil {
		t.Fatalf("BackupDataFile: %v", err)
	}

	want := filepath.Join(backupDir, "database_backup_20261019_140309.db")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	data, err := os.ReadFile(got)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "sqlite bytes" {
		t.Errorf("content = %q", data)
	}
	info, err := os.Stat(got)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
}

func TestBackupDataFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	got, err := BackupDataFile(filepath.Join(dir, "absent.db"), filepath.Join(dir, "backups"), time.Now())
	if err != nil {
		t.Fatalf("BackupDataFile: %v", err)
	}
	if got != "" {
		t.Errorf("path = %q, want empty", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "backups")); !errors.Is(err, os.ErrNotExist) {
		t.Error("backup dir created without a data file")
	}
}

func TestSequencerRunsInOrder(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "database.db")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls []string
	s := NewSequencer(src, filepath.Join(dir, "backups"), log.New(io.Discard))
	err := s.Run(context.Background(), Schemas(
		recordingSchema{name: "todos", calls: &calls},
		recordingSchema{name: "logs", calls: &calls},
	))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(calls) != 2 || calls[0] != "todos" || calls[1] != "logs" {
		t.Errorf("calls = %v", calls)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d backups, want 1", len(entries))
	}
}

func TestSequencerBacksUpBeforeOpening(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "database.db")
	backups := filepath.Join(dir, "backups")
	if err := os.WriteFile(src, []byte("before"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewSequencer(src, backups, log.New(io.Discard))
	err := s.Run(context.Background(), func(context.Context) ([]SchemaEnsurer, error) {
		// Opening rewrites the file; the backup must hold the old bytes.
		return nil, os.WriteFile(src, []byte("after opening"), 0o644)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	entries, err := os.ReadDir(backups)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d backups, want 1", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(backups, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "before" {
		t.Errorf("backup = %q, want the bytes from before opening", data)
	}
}

func TestSequencerFirstRunMakesNoBackup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "database.db")
	backups := filepath.Join(dir, "backups")

	s := NewSequencer(src, backups, log.New(io.Discard))
	err := s.Run(context.Background(), func(context.Context) ([]SchemaEnsurer, error) {
		return nil, os.WriteFile(src, nil, 0o644)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(backups); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("backup dir exists after the first run: %v", err)
	}
}

func TestSequencerStopsOnError(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	s := NewSequencer("", "", log.New(io.Discard))
	err := s.Run(context.Background(), Schemas(
		recordingSchema{name: "first", calls: &calls, err: boom},
		recordingSchema{name: "second", calls: &calls},
	))
	if !errors.Is(err, boom) {
		t.Fatalf("Run = %v, want boom", err)
	}
	if len(calls) != 1 {
		t.Errorf("calls = %v, want only the first", calls)
	}
}

func TestSequencerOpenFailureAborts(t *testing.T) {
	var calls []string
	refused := errors.New("connection refused")
	s := NewSequencer("", "", log.New(io.Discard))
	err := s.Run(context.Background(), func(context.Context) ([]SchemaEnsurer, error) {
		return []SchemaEnsurer{recordingSchema{name: "todos", calls: &calls}}, refused
	})
	if !errors.Is(err, refused) {
		t.Fatalf("Run = %v, want the open error", err)
	}
	if len(calls) != 0 {
		t.Errorf("schema ensured after failed open: %v", calls)
	}
}

func TestSequencerBackupFailureAborts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "database.db")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A regular file where the backup directory should be.
	blocker := filepath.Join(dir, "backups")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	opened := false
	s := NewSequencer(src, blocker, log.New(io.Discard))
	err := s.Run(context.Background(), func(context.Context) ([]SchemaEnsurer, error) {
		opened = true
		return nil, nil
	})
	if err == nil {
		t.Fatal("Run succeeded with an unusable backup dir")
	}
	if opened {
		t.Error("store opened after failed backup")
	}
}

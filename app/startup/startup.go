// Package startup prepares the store before the server accepts requests.
package startup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// BackupTimeFormat is the timestamp layout used in backup file names.
const BackupTimeFormat = "20060102_150405"

// SchemaEnsurer creates whatever tables or constraints a store needs.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// Opener connects the store and returns the parts that need a schema.
// It runs after the backup, so opening may create or recover the data file.
type Opener func(ctx context.Context) ([]SchemaEnsurer, error)

// Schemas returns an Opener for stores that are already connected.
func Schemas(schemas ...SchemaEnsurer) Opener {
	return func(context.Context) ([]SchemaEnsurer, error) { return schemas, nil }
}

// Sequencer runs the one-time startup steps in order.
type Sequencer struct {
	// DataFile is copied before the store is opened. Empty skips the backup.
	DataFile  string
	BackupDir string
	Logger    *log.Logger

	now func() time.Time
}

// NewSequencer creates a Sequencer for the given data file.
func NewSequencer(dataFile, backupDir string, logger *log.Logger) *Sequencer {
	return &Sequencer{
		DataFile:  dataFile,
		BackupDir: backupDir,
		Logger:    logger,
		now:       time.Now,
	}
}

// Run backs up the data file, opens the store, then ensures every schema.
// The first error aborts.
func (s *Sequencer) Run(ctx context.Context, open Opener) error {
	if s.DataFile != "" {
		path, err := BackupDataFile(s.DataFile, s.BackupDir, s.now())
		if err != nil {
			return err
		}
		if path != "" {
			s.Logger.Info("database backup created", "path", path)
		} else {
			s.Logger.Debug("no data file to back up", "path", s.DataFile)
		}
	}
	schemas, err := open(ctx)
	if err != nil {
		return err
	}
	for _, schema := range schemas {
		if err := schema.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// BackupDataFile copies src to dir/<stem>_backup_<timestamp><ext>, keeping its
// mode and modification time. It returns "" when src does not exist.
func BackupDataFile(src, dir string, now time.Time) (string, error) {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat data file: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base := filepath.Base(src)
	ext := filepath.Ext(base)
	name := fmt.Sprintf("%s_backup_%s%s", strings.TrimSuffix(base, ext), now.Format(BackupTimeFormat), ext)
	dst := filepath.Join(dir, name)

	if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("backup %s: %w", src, err)
	}
	if err := os.Chtimes(dst, info.ModTime(), info.ModTime()); err != nil {
		return "", fmt.Errorf("backup %s: %w", src, err)
	}
	return dst, nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile applies the umask, so set the mode explicitly.
	return os.Chmod(dst, perm)
}

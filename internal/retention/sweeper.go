// Package retention deletes or archives ingestion CSVs past their retention
// period.
package retention

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/vvka-141/csvingest/internal/files"
	"github.com/vvka-141/csvingest/pkg/csvingest"
)

// DefaultPatterns are the file names a sweep considers.
var DefaultPatterns = []string{"*.csv", "*.csv.gz"}

// Options control one sweep.
type Options struct {
	// MaxAge is how old a file's modification time must be to expire.
	MaxAge time.Duration

	// ArchiveRoot, when set, receives expired files under their path
	// relative to the swept root. Otherwise expired files are deleted.
	ArchiveRoot string

	// DryRun reports expired files without touching them.
	DryRun bool

	// Patterns match base names. Empty means DefaultPatterns.
	Patterns []string
}

// Action is what happened to an expired file.
type Action string

const (
	ActionReported Action = "reported"
	ActionArchived Action = "archived"
	ActionDeleted  Action = "deleted"
	ActionFailed   Action = "failed"
)

// Entry is one expired file.
type Entry struct {
	Path   string
	Dest   string
	Action Action
	Err    error
}

// Report lists what a sweep found and did.
type Report struct {
	Scanned int
	Entries []Entry
}

// Count returns the number of entries with action a.
func (r Report) Count(a Action) int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == a {
			n++
		}
	}
	return n
}

// Sweeper applies retention to a directory tree.
type Sweeper struct {
	clock  clockwork.Clock
	logger csvingest.Logger
}

// NewSweeper creates a Sweeper.
// Panics if clock or logger is nil.
func NewSweeper(clock clockwork.Clock, logger csvingest.Logger) *Sweeper {
	if clock == nil {
		panic("clock cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &Sweeper{clock: clock, logger: logger}
}

// Sweep walks root and handles every matching regular file whose modification
// time is before now minus opts.MaxAge. Failures on single files are logged
// and recorded; the sweep goes on. A missing root yields an empty report.
func (s *Sweeper) Sweep(root string, opts Options) (Report, error) {
	var report Report
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("retention root does not exist", "path", root)
		return report, nil
	}

	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	cutoff := s.clock.Now().Add(-opts.MaxAge)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("cannot read path during sweep", "path", path, "error", err)
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !matchesAny(d.Name(), patterns) {
			return nil
		}
		report.Scanned++

		info, err := d.Info()
		if err != nil {
			report.Entries = append(report.Entries, Entry{Path: path, Action: ActionFailed, Err: err})
			s.logger.Warn("cannot stat file", "path", path, "error", err)
			return nil
		}
		if !info.ModTime().Before(cutoff) {
			return nil
		}

		report.Entries = append(report.Entries, s.expire(root, path, opts))
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("sweep %s: %w", root, err)
	}

	s.logger.Info("retention sweep finished", "path", root, "scanned", report.Scanned,
		"expired", len(report.Entries), "dry_run", opts.DryRun, "failed", report.Count(ActionFailed))
	return report, nil
}

func (s *Sweeper) expire(root, path string, opts Options) Entry {
	entry := Entry{Path: path}

	if opts.ArchiveRoot != "" {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			entry.Action, entry.Err = ActionFailed, err
			return entry
		}
		entry.Dest = filepath.Join(opts.ArchiveRoot, rel)
	}

	if opts.DryRun {
		entry.Action = ActionReported
		s.logger.Info("expired file", "path", path, "dest", entry.Dest, "dry_run", true)
		return entry
	}

	if entry.Dest != "" {
		if err := files.MoveFile(path, entry.Dest); err != nil {
			entry.Action, entry.Err = ActionFailed, err
			s.logger.Warn("archive failed", "path", path, "dest", entry.Dest, "error", err)
			return entry
		}
		entry.Action = ActionArchived
		s.logger.Info("archived file", "path", path, "dest", entry.Dest)
		return entry
	}

	if err := os.Remove(path); err != nil {
		entry.Action, entry.Err = ActionFailed, err
		s.logger.Warn("delete failed", "path", path, "error", err)
		return entry
	}
	entry.Action = ActionDeleted
	s.logger.Info("deleted file", "path", path)
	return entry
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

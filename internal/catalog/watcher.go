package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// DefaultDebounce collapses bursts of editor writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads a catalog file when it changes on disk and hands valid catalogs to onChange.
// Invalid edits are logged and ignored.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(*Catalog)
	logger   logger.Logger
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string, debounce time.Duration, onChange func(*Catalog), log logger.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{path: path, debounce: debounce, onChange: onChange, logger: log}
}

// Run blocks until ctx is done. The parent directory is watched so that atomic
// rename-style saves are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	abs, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("resolve catalog path: %w", err)
	}
	if err = fw.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}
	w.logger.Info("Watching catalog", logger.String("path", abs))

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Catalog watcher error", logger.Error(err))
		case <-fire:
			fire = nil
			w.reload(abs)
		}
	}
}

func (w *Watcher) reload(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("Catalog unreadable", logger.String("path", path), logger.Error(err))
		return
	}
	c, err := Parse(data)
	if err != nil {
		w.logger.Warn("Catalog reload rejected", logger.String("path", path), logger.Error(err))
		return
	}
	w.logger.Info("Catalog reloaded",
		logger.Int("datasets", len(c.Datasets)),
		logger.Int("apis", len(c.APIs)),
		logger.Int("websites", len(c.Websites)),
		logger.Int("portals", len(c.Portals)),
	)
	w.onChange(c)
}

package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// OrphanSweeper removes abandoned "<store>.tmp.*" files left behind by a
// writer that crashed between AtomicReplace's write and its rename (see
// spec §5, "Cancellation"). It is best-effort and optional: Store never
// depends on it for correctness, since readers only ever open the canonical
// path and a leftover tmp file is simply inert disk usage.
type OrphanSweeper struct {
	storePath string
	logger    *slog.Logger
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// NewOrphanSweeper creates a sweeper for storePath's directory. Call Start
// to begin watching, Stop to tear it down.
func NewOrphanSweeper(storePath string, logger *slog.Logger) *OrphanSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrphanSweeper{storePath: storePath, logger: logger}
}

// Start begins watching the store's directory for changes and sweeps
// orphaned tmp files whenever the directory is touched, as well as once
// immediately on startup. It is idempotent; calling Start twice is a no-op.
func (o *OrphanSweeper) Start() error {
	if o.watcher != nil {
		return nil
	}

	dir := filepath.Dir(o.storePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return err
	}

	o.watcher = w
	o.done = make(chan struct{})

	o.sweep()
	go o.loop()
	return nil
}

// Stop closes the watcher and waits for the sweep loop to exit.
func (o *OrphanSweeper) Stop() {
	if o.watcher == nil {
		return
	}
	o.watcher.Close()
	<-o.done
}

func (o *OrphanSweeper) loop() {
	defer close(o.done)
	for {
		select {
		case _, ok := <-o.watcher.Events:
			if !ok {
				return
			}
			o.sweep()
		case err, ok := <-o.watcher.Errors:
			if !ok {
				return
			}
			o.logger.Warn("orphan sweeper watch error", slog.String("error", err.Error()))
		}
	}
}

func (o *OrphanSweeper) sweep() {
	dir := filepath.Dir(o.storePath)
	base := filepath.Base(o.storePath)
	prefix := base + ".tmp."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-StaleTimeout)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err == nil {
			o.logger.Info("removed orphan tmp file", slog.String("path", path))
		}
	}
}

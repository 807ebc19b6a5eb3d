// Package engine implements the mutation and search operations that back
// the tool surface: create/delete entities and relations, observation
// edits, and the scored context search described in spec §4.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
	"github.com/mironmax/mcp-memory-server-concurrent/pkg/store"
)

// SearchConfig holds the tunables from spec §6.3's configuration table.
type SearchConfig struct {
	TopPerToken      int
	MinRelativeScore float64
	MaxPathLength    int
	MaxTotalNodes    int
}

// DefaultSearchConfig returns the defaults named in spec §4.6-§4.9 and §6.3.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		TopPerToken:      1,
		MinRelativeScore: 0.3,
		MaxPathLength:    5,
		MaxTotalNodes:    50,
	}
}

// Engine composes the Store, Lock, and search configuration into the full
// set of operations the tool surface calls. It holds no graph state of its
// own between calls — every operation loads fresh from the Store, per
// spec §4.1's "no in-process caching of file contents".
type Engine struct {
	store   *store.Store
	lock    *store.Lock
	cfg     SearchConfig
	sweeper *store.OrphanSweeper
	logger  *slog.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithSearchConfig overrides the default search tunables.
func WithSearchConfig(cfg SearchConfig) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithLogger sets the structured logger used for mutation/search/lock
// events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithOrphanSweep enables the best-effort background orphan-tmp-file
// cleaner described in spec §5. It is off by default.
func WithOrphanSweep() Option {
	return func(e *Engine) {
		e.sweeper = store.NewOrphanSweeper(e.store.Path(), e.logger)
	}
}

// New returns an Engine backed by a single store file at path.
func New(path string, opts ...Option) *Engine {
	e := &Engine{
		store:  store.New(path),
		lock:   store.NewLock(path),
		cfg:    DefaultSearchConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sweeper != nil {
		if err := e.sweeper.Start(); err != nil {
			e.logger.Warn("orphan sweeper failed to start", slog.String("error", err.Error()))
			e.sweeper = nil
		}
	}
	return e
}

// Close stops any background work started by the Engine (currently, just
// the orphan sweeper). It does not touch the store file.
func (e *Engine) Close(_ context.Context) error {
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	return nil
}

// withLock runs fn under the store's lock and translates the lock layer's
// sentinel errors into the engine's own, per spec §7's taxonomy.
func (e *Engine) withLock(ctx context.Context, fn func() error) error {
	if err := e.lock.Acquire(ctx); err != nil {
		if errors.Is(err, store.ErrLockAcquisitionFailed) {
			return ErrLockAcquisitionFailed
		}
		return fmt.Errorf("%w: %v", ErrLockAcquisitionFailed, err)
	}
	defer func() {
		if relErr := e.lock.Release(); relErr != nil {
			e.logger.Warn("lock release failed", slog.String("error", relErr.Error()))
		}
	}()
	return fn()
}

// load wraps Store.Load, translating its sentinel errors.
func (e *Engine) load() (*graph.State, error) {
	st, err := e.store.Load()
	if err != nil {
		if errors.Is(err, store.ErrMalformedRecord) {
			return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	return st, nil
}

// persist serializes st and atomically replaces the store file, then
// rebuilds st's indexes in place so callers that keep using st (none
// currently do, but future callers might) observe consistent state.
func (e *Engine) persist(st *graph.State) error {
	content := store.Serialize(st)
	if err := e.store.AtomicReplace(content); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIO, err)
	}
	st.Rebuild()
	return nil
}

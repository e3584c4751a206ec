package ext

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/sphinkydoc/internal/pysource"
	"git.home.luguber.info/inful/sphinkydoc/internal/templating"
)

// LocalHost is an in-process Host used by the generate command and tests.
type LocalHost struct {
	sourceDir string
	env       *templating.Environment
	resolver  *pysource.Resolver
	logger    *slog.Logger

	mu        sync.RWMutex
	values    map[string]any
	callbacks map[string][]Callback
}

var _ Host = (*LocalHost)(nil)

// NewLocalHost returns a host writing into sourceDir.
func NewLocalHost(sourceDir string, env *templating.Environment, resolver *pysource.Resolver, logger *slog.Logger) *LocalHost {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalHost{
		sourceDir: sourceDir,
		env:       env,
		resolver:  resolver,
		logger:    logger,
		values:    make(map[string]any),
		callbacks: make(map[string][]Callback),
	}
}

// Set assigns a user value. Values set before Setup win over defaults.
func (h *LocalHost) Set(name string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.values[name] = value
}

func (h *LocalHost) AddConfigValue(name string, def any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.values[name]; !ok {
		h.values[name] = def
	}
}

func (h *LocalHost) Connect(event string, cb Callback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.callbacks[event] = append(h.callbacks[event], cb)
}

func (h *LocalHost) ConfigValue(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	v, ok := h.values[name]
	return v, ok
}

func (h *LocalHost) SourceDir() string                    { return h.sourceDir }
func (h *LocalHost) Environment() *templating.Environment { return h.env }
func (h *LocalHost) Resolver() *pysource.Resolver         { return h.resolver }
func (h *LocalHost) Logger() *slog.Logger                 { return h.logger }

// Emit runs the callbacks connected to event in registration order and
// stops at the first error.
func (h *LocalHost) Emit(ctx context.Context, event string) error {
	h.mu.RLock()
	cbs := append([]Callback(nil), h.callbacks[event]...)
	h.mu.RUnlock()

	for i, cb := range cbs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cb(ctx, h); err != nil {
			return fmt.Errorf("%s callback %d: %w", event, i, err)
		}
	}
	return nil
}

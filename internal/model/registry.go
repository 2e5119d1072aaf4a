package model

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Loader builds a model from an artifact path
type Loader func(path string) (Model, error)

// Registry holds the process-wide model. It is safe for concurrent use.
type Registry struct {
	path   string
	load   Loader
	logger *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	model Model
}

// NewRegistry creates a registry that loads artifacts with LoadArtifact
func NewRegistry(path string, logger *slog.Logger) *Registry {
	return NewRegistryWithLoader(path, LoadArtifact, logger)
}

// NewRegistryWithLoader creates a registry with a custom loader
func NewRegistryWithLoader(path string, load Loader, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		path:   path,
		load:   load,
		logger: logger.With(slog.String("component", "model_registry")),
	}
}

// Path returns the artifact path
func (r *Registry) Path() string { return r.path }

// Loaded reports whether a model is held
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.model != nil
}

// Get returns the shared model, loading it on first use. Concurrent callers of
// a pending load wait for the same result. Errors are not cached.
func (r *Registry) Get(ctx context.Context) (Model, error) {
	r.mu.RLock()
	m := r.model
	r.mu.RUnlock()
	if m != nil {
		return m, nil
	}

	ch := r.group.DoChan(r.path, func() (interface{}, error) {
		r.mu.RLock()
		cached := r.model
		r.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		start := time.Now()
		loaded, err := r.load(r.path)
		if err != nil {
			r.logger.Error("model load failed",
				slog.String("path", r.path),
				slog.String("error", err.Error()))
			return nil, err
		}

		r.mu.Lock()
		r.model = loaded
		r.mu.Unlock()

		info := Describe(loaded)
		r.logger.Info("model loaded",
			slog.String("path", r.path),
			slog.String("kind", info.Kind),
			slog.Int("features", len(info.Features)),
			slog.Duration("duration", time.Since(start)))
		return loaded, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Model), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Reset drops the held model so the next Get reloads the artifact
func (r *Registry) Reset() {
	r.mu.Lock()
	r.model = nil
	r.mu.Unlock()
}

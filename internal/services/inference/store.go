package inference

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"PriceSight/internal/domain/models"
	domsvc "PriceSight/internal/domain/service"
	applogger "PriceSight/pkg/logger"
)

// Loader produces a ready model.
type Loader interface {
	Load(ctx context.Context) (domsvc.Model, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context) (domsvc.Model, error)

func (f LoaderFunc) Load(ctx context.Context) (domsvc.Model, error) { return f(ctx) }

// FileLoader loads a JSON artifact from disk.
type FileLoader struct {
	Path string
}

func (f FileLoader) Load(_ context.Context) (domsvc.Model, error) {
	return LoadFile(f.Path)
}

// ServingLoader returns the remote model once the server reports it available.
type ServingLoader struct {
	Model *ServingModel
}

func (s ServingLoader) Load(ctx context.Context) (domsvc.Model, error) {
	if err := s.Model.Ping(ctx); err != nil {
		return nil, err
	}
	return s.Model, nil
}

// Store loads the model once and shares it. Concurrent first calls wait on a
// single load. A failed load is returned to every waiter and retried by the
// next call.
type Store struct {
	loader Loader
	group  singleflight.Group
	l      *applogger.Logger

	mu    sync.RWMutex
	model domsvc.Model
}

func NewStore(loader Loader) *Store {
	return &Store{loader: loader}
}

// SetLogger injects a structured logger.
func (s *Store) SetLogger(l *applogger.Logger) { s.l = l }

// Loaded reports whether a model is cached.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil
}

// Model implements service.ModelProvider.
func (s *Store) Model(ctx context.Context) (domsvc.Model, error) {
	if m := s.cached(); m != nil {
		return m, nil
	}
	// The load outlives a single caller's cancellation since other waiters share it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do("model", func() (interface{}, error) {
		if m := s.cached(); m != nil {
			return m, nil
		}
		start := time.Now()
		m, err := s.loader.Load(loadCtx)
		if err != nil {
			if s.l != nil {
				s.l.Error("model load failed", applogger.Error(err))
			}
			if _, ok := models.KindOf(err); ok {
				return nil, err
			}
			return nil, models.NewError(models.KindModelLoad, "load model", err)
		}
		s.mu.Lock()
		s.model = m
		s.mu.Unlock()
		if s.l != nil {
			w, f := m.InputShape()
			s.l.Info("model loaded",
				applogger.Int("window", w),
				applogger.Int("features", f),
				applogger.Duration("duration_ms", time.Since(start)),
			)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(domsvc.Model), nil
}

func (s *Store) cached() domsvc.Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

var _ domsvc.ModelProvider = (*Store)(nil)

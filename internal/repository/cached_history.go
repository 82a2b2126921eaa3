package repository

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	"PriceSight/pkg/cache"
	applogger "PriceSight/pkg/logger"
	"PriceSight/pkg/util"
)

const (
	historyKeyPrefix    = "history"
	defaultFetchTimeout = 30 * time.Second
)

// CachedHistory decorates a HistorySource with a read-through cache. Only
// prices are cached. Concurrent misses on the same key share one fetch.
type CachedHistory struct {
	next    domrepo.HistorySource
	cache   cache.Service
	ttl     time.Duration
	metrics domrepo.Metrics
	group   singleflight.Group
	timeout time.Duration
	l       *applogger.Logger
}

// NewCachedHistory wraps next. metrics may be nil.
func NewCachedHistory(next domrepo.HistorySource, c cache.Service, ttl time.Duration, metrics domrepo.Metrics) *CachedHistory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CachedHistory{next: next, cache: c, ttl: ttl, metrics: metrics, timeout: defaultFetchTimeout, l: applogger.Nop()}
}

// SetFetchTimeout bounds a shared fetch, which no longer follows any single
// caller's context.
func (h *CachedHistory) SetFetchTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// SetLogger injects a structured logger.
func (h *CachedHistory) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.l = l
	}
}

// HistoryKey is the cache key for a symbol and period.
func HistoryKey(symbol string, period domrepo.Period) string {
	return cache.GenerateKeyWithParams(historyKeyPrefix, util.NormalizeTicker(symbol), string(period))
}

// Fetch serves from cache, falling back to the wrapped source on a miss.
// Empty results and errors are never cached. A caller that gives up returns
// its own ctx error; the shared fetch keeps running for the other waiters.
func (h *CachedHistory) Fetch(ctx context.Context, symbol string, period domrepo.Period) (models.PriceSeries, error) {
	key := HistoryKey(symbol, period)

	var series models.PriceSeries
	err := h.cache.Get(ctx, key, &series)
	switch {
	case err == nil:
		h.record("hit")
		return series, nil
	case errors.Is(err, cache.ErrCacheMiss):
		h.record("miss")
	default:
		h.record("error")
		h.l.Warn("history cache read failed", applogger.String("key", key), applogger.Error(err))
	}

	ch := h.group.DoChan(key, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()

		s, err := h.next.Fetch(fctx, symbol, period)
		if err != nil {
			return models.PriceSeries{}, err
		}
		if s.Len() > 0 {
			if err := h.cache.Set(fctx, key, s, h.ttl); err != nil {
				h.l.Warn("history cache write failed", applogger.String("key", key), applogger.Error(err))
			}
		}
		return s, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return models.PriceSeries{}, res.Err
		}
		return res.Val.(models.PriceSeries), nil
	case <-ctx.Done():
		return models.PriceSeries{}, ctx.Err()
	}
}

// Invalidate drops every cached period of symbol.
func (h *CachedHistory) Invalidate(ctx context.Context, symbol string) error {
	return h.cache.DeleteByPattern(ctx, cache.BuildPattern(cache.GenerateKeyWithParams(historyKeyPrefix, util.NormalizeTicker(symbol))+":"))
}

func (h *CachedHistory) record(result string) {
	if h.metrics != nil {
		h.metrics.RecordCache(result)
	}
}

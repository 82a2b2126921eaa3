package repository

import (
	"context"
	"time"

	"PriceSight/internal/domain/models"
)

// HistorySource returns the daily close history of a symbol.
type HistorySource interface {
	Fetch(ctx context.Context, symbol string, period Period) (models.PriceSeries, error)
}

// HistoryStore is a HistorySource that can also be written to.
type HistoryStore interface {
	HistorySource
	StoreBatch(ctx context.Context, symbol string, points []models.PricePoint) error
	Health(ctx context.Context) error
}

// Metrics records pipeline and infrastructure measurements.
type Metrics interface {
	RecordStage(stage string, seconds float64)
	RecordError(kind string)
	RecordCache(result string)
	RecordIngested(symbol string, n int)
}

// BarPublisher pushes daily closes onto the ingest stream.
type BarPublisher interface {
	PublishBars(ctx context.Context, symbol string, points []models.PricePoint) error
}

// CacheInvalidator drops cached history of a symbol.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, symbol string) error
}

// Locker is a best-effort distributed lock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

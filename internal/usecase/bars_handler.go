package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	pkgkafka "PriceSight/pkg/kafka"
	"PriceSight/pkg/util"
)

// KafkaBarsHandler consumes daily bars and writes them to the history store.
type KafkaBarsHandler struct {
	topic       string
	store       domrepo.HistoryStore
	metrics     domrepo.Metrics
	invalidator domrepo.CacheInvalidator
}

func NewKafkaBarsHandler(topic string, store domrepo.HistoryStore, metrics domrepo.Metrics) *KafkaBarsHandler {
	return &KafkaBarsHandler{topic: topic, store: store, metrics: metrics}
}

// SetInvalidator drops cached history of a symbol after each stored bar.
func (h *KafkaBarsHandler) SetInvalidator(inv domrepo.CacheInvalidator) { h.invalidator = inv }

func (h *KafkaBarsHandler) Topic() string { return h.topic }

// incoming message schema: {symbol, t, c}, t in unix seconds or millis
func (h *KafkaBarsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Symbol string  `json:"symbol"`
		T      int64   `json:"t"`
		C      float64 `json:"c"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.recordError("consumer_unmarshal")
		return fmt.Errorf("decode bar: %w", err)
	}
	symbol := util.NormalizeTicker(m.Symbol)
	if symbol == "" || m.T <= 0 || m.C <= 0 {
		h.recordError("consumer_invalid")
		return fmt.Errorf("invalid bar: symbol=%q t=%d c=%v", m.Symbol, m.T, m.C)
	}
	if m.T > 1e11 { // ms
		m.T = m.T / 1000
	}

	point := models.PricePoint{Date: util.TradingDay(m.T, 0), Close: m.C}
	if err := h.store.StoreBatch(ctx, symbol, []models.PricePoint{point}); err != nil {
		h.recordError("consumer_store")
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordIngested(symbol, 1)
	}
	if h.invalidator != nil {
		// stale cache only delays freshness; the bar is already stored
		_ = h.invalidator.Invalidate(ctx, symbol)
	}
	return nil
}

// Hook counts bars that still failed after the consumer's retries.
func (h *KafkaBarsHandler) Hook() pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{Err: func(context.Context, string, kafka.Message, int, error) {
		h.recordError("consumer_exhausted")
	}}
}

func (h *KafkaBarsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*KafkaBarsHandler)(nil)

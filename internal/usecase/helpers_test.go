package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	domsvc "PriceSight/internal/domain/service"
)

type stubSource struct {
	calls  atomic.Int32
	series map[string][]float64
	errs   map[string]error
}

func (s *stubSource) Fetch(_ context.Context, symbol string, _ domrepo.Period) (models.PriceSeries, error) {
	s.calls.Add(1)
	if err := s.errs[symbol]; err != nil {
		return models.PriceSeries{}, err
	}
	day := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	out := models.PriceSeries{Symbol: symbol}
	for i, c := range s.series[symbol] {
		out.Points = append(out.Points, models.PricePoint{Date: day.AddDate(0, 0, i), Close: c})
	}
	return out, nil
}

// lastValueModel predicts the final input of every window.
type lastValueModel struct{ window int }

func (m lastValueModel) InputShape() (int, int) { return m.window, 1 }

func (m lastValueModel) Predict(_ context.Context, x [][][]float64) ([][]float64, error) {
	out := make([][]float64, len(x))
	for i, sample := range x {
		out[i] = []float64{sample[len(sample)-1][0]}
	}
	return out, nil
}

type countingProvider struct {
	calls atomic.Int32
	m     domsvc.Model
	err   error
}

func (p *countingProvider) Model(context.Context) (domsvc.Model, error) {
	p.calls.Add(1)
	return p.m, p.err
}

type recordingMetrics struct {
	mu       sync.Mutex
	errors   map[string]int
	ingested map[string]int
}

func (r *recordingMetrics) RecordStage(string, float64) {}
func (r *recordingMetrics) RecordCache(string)          {}

func (r *recordingMetrics) RecordError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errors == nil {
		r.errors = map[string]int{}
	}
	r.errors[kind]++
}

func (r *recordingMetrics) RecordIngested(symbol string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ingested == nil {
		r.ingested = map[string]int{}
	}
	r.ingested[symbol] += n
}

func (r *recordingMetrics) errorCount(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errors[kind]
}

func linear(n int, start float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

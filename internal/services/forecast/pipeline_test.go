package forecast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	domsvc "PriceSight/internal/domain/service"
)

type stubSource struct {
	calls  atomic.Int32
	series map[string][]float64
	err    error
	delay  time.Duration
}

func (s *stubSource) Fetch(ctx context.Context, symbol string, _ domrepo.Period) (models.PriceSeries, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return models.PriceSeries{}, ctx.Err()
		}
	}
	if s.err != nil {
		return models.PriceSeries{}, s.err
	}
	closes := s.series[symbol]
	day := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	out := models.PriceSeries{Symbol: symbol}
	for i, c := range closes {
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

type staticProvider struct {
	m   domsvc.Model
	err error
}

func (p staticProvider) Model(context.Context) (domsvc.Model, error) { return p.m, p.err }

type stageCounter struct {
	mu     sync.Mutex
	stages map[string]int
}

func (c *stageCounter) RecordStage(stage string, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stages == nil {
		c.stages = map[string]int{}
	}
	c.stages[stage]++
}
func (c *stageCounter) RecordError(string) {}
func (c *stageCounter) RecordCache(string) {}
func (c *stageCounter) RecordIngested(string, int) {}

func newTestPipeline(src *stubSource) (*Pipeline, *stageCounter) {
	m := &stageCounter{}
	p := NewPipeline(src, staticProvider{m: lastValueModel{window: 60}}, m, Config{FetchTimeout: time.Second})
	return p, m
}

func TestPrepareFitsOnTrainOnly(t *testing.T) {
	prep, err := Prepare(linear(500, 100), 60, 0.7, nil)
	require.NoError(t, err)

	assert.Equal(t, 350, prep.Split.Index)
	assert.Equal(t, 100.0, prep.Scaler.Min)
	assert.Equal(t, 449.0, prep.Scaler.Max)
	assert.Len(t, prep.Split.Test, 210)
	assert.Equal(t, 290, prep.Train.Len())
	assert.Equal(t, 150, prep.Test.Len())

	for i, v := range prep.ScaledTrain {
		assert.InDelta(t, float64(i)/349, v, 1e-12)
	}
	// Test values past the train maximum scale above 1.
	assert.Greater(t, prep.ScaledTest[len(prep.ScaledTest)-1], 1.0)
}

func TestRunLinearSeries(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"AAPL": linear(500, 100)}}
	p, metrics := newTestPipeline(src)

	var stages []models.Stage
	f, err := p.Run(context.Background(), "AAPL", WithObserver(func(s models.Stage, err error) {
		assert.NoError(t, err)
		stages = append(stages, s)
	}))
	require.NoError(t, err)

	require.Len(t, f.Original, 30)
	require.Len(t, f.Predicted, 30)
	assert.Equal(t, 150, f.TestWindows)
	for i := 0; i < 30; i++ {
		assert.InDelta(t, 570+float64(i), f.Original[i], 1e-9)
		assert.InDelta(t, 569+float64(i), f.Predicted[i], 1e-9)
	}
	assert.InDelta(t, 599.0, f.NextDay, 1e-9)

	assert.Equal(t, []models.Stage{
		models.StageFetching, models.StageSplitting, models.StageFitting,
		models.StageWindowTrain, models.StageWindowTest, models.StagePredictTest,
		models.StagePredictNext, models.StageDenormalize, models.StageDone,
	}, stages)
	assert.Equal(t, 1, metrics.stages[string(models.StageDenormalize)])
}

func TestRunFewerTestWindowsThanCompare(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"X": linear(95, 10)}}
	p, _ := newTestPipeline(src)

	f, err := p.Run(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 29, f.TestWindows)
	assert.Len(t, f.Original, 29)
	assert.Len(t, f.Predicted, 29)
}

func TestRunEmptyTickerSkipsFetch(t *testing.T) {
	src := &stubSource{}
	p, _ := newTestPipeline(src)

	var failed error
	_, err := p.Run(context.Background(), "   ", WithObserver(func(s models.Stage, err error) {
		if s == models.StageFailed {
			failed = err
		}
	}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidInput))
	assert.Equal(t, "Ticker is required", err.Error())
	assert.Equal(t, int32(0), src.calls.Load())
	assert.Equal(t, err, failed)
}

func TestRunFailures(t *testing.T) {
	cases := []struct {
		name  string
		src   *stubSource
		kind  error
		stage models.Stage
	}{
		{
			name:  "empty series",
			src:   &stubSource{series: map[string][]float64{}},
			kind:  models.ErrDataUnavailable,
			stage: models.StageFetching,
		},
		{
			name:  "source error",
			src:   &stubSource{err: errors.New("upstream 502")},
			kind:  models.ErrDataUnavailable,
			stage: models.StageFetching,
		},
		{
			name:  "constant series",
			src:   &stubSource{series: map[string][]float64{"T": make([]float64, 200)}},
			kind:  models.ErrDegenerateRange,
			stage: models.StageFitting,
		},
		{
			name:  "insufficient history",
			src:   &stubSource{series: map[string][]float64{"T": linear(80, 1)}},
			kind:  models.ErrInsufficientHistory,
			stage: models.StageSplitting,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := newTestPipeline(tc.src)
			_, err := p.Run(context.Background(), "T")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)

			var fe *models.ForecastError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.stage, fe.Stage)
		})
	}
}

func TestRunFetchTimeout(t *testing.T) {
	src := &stubSource{delay: time.Second}
	p := NewPipeline(src, staticProvider{m: lastValueModel{window: 60}}, nil, Config{FetchTimeout: 20 * time.Millisecond})

	_, err := p.Run(context.Background(), "SLOW")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunModelLoadFailure(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"T": linear(200, 1)}}
	p := NewPipeline(src, staticProvider{err: errors.New("no such file")}, nil, Config{})

	_, err := p.Run(context.Background(), "T")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrModelLoad))
}

func TestRunShapeMismatch(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"T": linear(200, 1)}}
	p := NewPipeline(src, staticProvider{m: lastValueModel{window: 30}}, nil, Config{})

	_, err := p.Run(context.Background(), "T")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInference))
}

func TestRunConcurrent(t *testing.T) {
	series := map[string][]float64{}
	for i := 0; i < 8; i++ {
		series[fmt.Sprintf("T%d", i)] = linear(300, float64(100*(i+1)))
	}
	p, _ := newTestPipeline(&stubSource{series: series})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f, err := p.Run(context.Background(), fmt.Sprintf("T%d", i))
			if !assert.NoError(t, err) {
				return
			}
			assert.InDelta(t, float64(100*(i+1)+299), f.NextDay, 1e-9)
		}(i)
	}
	wg.Wait()
}

func TestSplitSeries(t *testing.T) {
	s, err := SplitSeries(linear(88, 0), 60, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 61, s.Index)
	assert.Len(t, s.Test, 87)

	_, err = SplitSeries(linear(87, 0), 60, 0.7)
	assert.True(t, errors.Is(err, models.ErrInsufficientHistory))
}

func TestRunSharedModelErrorNotMutated(t *testing.T) {
	shared := models.NewError(models.KindModelLoad, "load model", errors.New("no such file"))
	series := map[string][]float64{}
	for i := 0; i < 8; i++ {
		series[fmt.Sprintf("T%d", i)] = linear(200, float64(i+1))
	}
	p := NewPipeline(&stubSource{series: series}, staticProvider{err: shared}, nil, Config{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := p.Run(context.Background(), fmt.Sprintf("T%d", i))
			var fe *models.ForecastError
			if assert.True(t, errors.As(err, &fe)) {
				assert.Equal(t, models.StagePredictTest, fe.Stage)
				assert.NotSame(t, shared, fe)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, shared.Stage)
}

func TestStageErrKeepsExistingStage(t *testing.T) {
	staged := models.NewError(models.KindDataUnavailable, "gone", nil).WithStage(models.StageFetching)
	assert.Same(t, staged, stageErr(staged, models.StageFitting))

	plain := errors.New("boom")
	assert.Same(t, plain, stageErr(plain, models.StageFitting))
}

package usecase

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PriceSight/internal/domain/models"
	svcmetrics "PriceSight/internal/service/metrics"
	"PriceSight/internal/services/forecast"
	applogger "PriceSight/pkg/logger"
)

func newForecastUseCase(src *stubSource) (*ForecastUseCase, *recordingMetrics, *bytes.Buffer) {
	m := &recordingMetrics{}
	p := forecast.NewPipeline(src, &countingProvider{m: lastValueModel{window: 60}}, m, forecast.Config{FetchTimeout: time.Second})
	uc := NewForecastUseCase(p, forecast.NewAssembler(3), m, 5*time.Second)
	var buf bytes.Buffer
	uc.SetLogger(applogger.NewWithWriter(&buf, zerolog.DebugLevel))
	return uc, m, &buf
}

func TestForecastSuccess(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"aapl": linear(300, 100)}}
	uc, _, logs := newForecastUseCase(src)
	before := testutil.ToFloat64(svcmetrics.ForecastRequests.WithLabelValues("http", "ok"))

	res, err := uc.Forecast(context.Background(), ForecastParams{Ticker: " aapl "})
	require.NoError(t, err)

	assert.Equal(t, "AAPL", res.Ticker)
	assert.Len(t, res.OriginalPrices, 30)
	assert.Len(t, res.PredictedPrices, 30)
	assert.Equal(t, 399.0, res.NextDayPrediction)
	assert.InDelta(t, 370.0, res.OriginalPrices[0], 1e-9)
	assert.InDelta(t, 369.0, res.PredictedPrices[0], 1e-9)

	assert.Equal(t, before+1, testutil.ToFloat64(svcmetrics.ForecastRequests.WithLabelValues("http", "ok")))
	assert.Contains(t, logs.String(), "forecast served")
}

func TestForecastEmptyTickerSkipsFetch(t *testing.T) {
	src := &stubSource{}
	uc, m, logs := newForecastUseCase(src)

	_, err := uc.Forecast(context.Background(), ForecastParams{Ticker: "   ", Transport: "ws"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Equal(t, "Ticker is required", err.Error())
	assert.Zero(t, src.calls.Load())
	assert.Equal(t, 1, m.errorCount(string(models.KindInvalidInput)))
	assert.Contains(t, logs.String(), "forecast rejected")
}

func TestForecastBadPeriod(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"AAPL": linear(300, 100)}}
	uc, _, _ := newForecastUseCase(src)

	var stages []models.Stage
	_, err := uc.Forecast(context.Background(), ForecastParams{
		Ticker:   "AAPL",
		Period:   "7d",
		Observer: func(s models.Stage, _ error) { stages = append(stages, s) },
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Zero(t, src.calls.Load())
	assert.Equal(t, []models.Stage{models.StageFailed}, stages)
}

func TestForecastDataUnavailable(t *testing.T) {
	src := &stubSource{series: map[string][]float64{}}
	uc, m, logs := newForecastUseCase(src)

	_, err := uc.Forecast(context.Background(), ForecastParams{Ticker: "ZZZZ"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	f := forecast.Classify(err)
	assert.Equal(t, 500, f.Status)
	assert.Equal(t, models.StageFetching, f.Stage)
	assert.Equal(t, 1, m.errorCount(string(models.KindDataUnavailable)))
	assert.Contains(t, logs.String(), "forecast failed")
}

func TestForecastObserverSeesStages(t *testing.T) {
	src := &stubSource{series: map[string][]float64{"MSFT": linear(200, 50)}}
	uc, _, _ := newForecastUseCase(src)

	var stages []models.Stage
	_, err := uc.Forecast(context.Background(), ForecastParams{
		Ticker:   "MSFT",
		Period:   "5y",
		Observer: func(s models.Stage, _ error) { stages = append(stages, s) },
	})
	require.NoError(t, err)
	require.NotEmpty(t, stages)
	assert.Equal(t, models.StageFetching, stages[0])
	assert.Equal(t, models.StageDone, stages[len(stages)-1])
}

func TestForecastReady(t *testing.T) {
	uc, _, _ := newForecastUseCase(&stubSource{})
	assert.NoError(t, uc.Ready(context.Background()))
}

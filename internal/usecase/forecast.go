package usecase

import (
	"context"
	"fmt"
	"time"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	svcmetrics "PriceSight/internal/service/metrics"
	"PriceSight/internal/services/forecast"
	applogger "PriceSight/pkg/logger"
)

// ForecastUseCase runs the forecast pipeline for one ticker per call and
// shapes the result for clients.
type ForecastUseCase struct {
	pipeline  *forecast.Pipeline
	assembler forecast.Assembler
	metrics   domrepo.Metrics
	timeout   time.Duration
	l         *applogger.Logger
}

func NewForecastUseCase(p *forecast.Pipeline, a forecast.Assembler, metrics domrepo.Metrics, timeout time.Duration) *ForecastUseCase {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ForecastUseCase{pipeline: p, assembler: a, metrics: metrics, timeout: timeout, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (uc *ForecastUseCase) SetLogger(l *applogger.Logger) {
	if l != nil {
		uc.l = l
	}
}

type ForecastParams struct {
	Ticker    string
	Period    string
	Transport string
	Observer  forecast.Observer
}

// Forecast validates params, runs the pipeline under the request timeout and
// assembles the result. Failures are logged and counted here, once.
func (uc *ForecastUseCase) Forecast(ctx context.Context, p ForecastParams) (models.ForecastResult, error) {
	start := time.Now()
	if p.Transport == "" {
		p.Transport = "http"
	}

	res, err := uc.forecast(ctx, p)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if kind, ok := models.KindOf(err); ok {
			outcome = string(kind)
		}
		uc.logFailure(p, err, time.Since(start))
		if uc.metrics != nil {
			uc.metrics.RecordError(outcome)
		}
	} else {
		uc.l.Info("forecast served",
			applogger.String("ticker", res.Ticker),
			applogger.String("transport", p.Transport),
			applogger.Int("compared", len(res.OriginalPrices)),
			applogger.Float64("next_day", res.NextDayPrediction),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	svcmetrics.ForecastLatency.WithLabelValues(p.Transport).Observe(time.Since(start).Seconds())
	svcmetrics.ForecastRequests.WithLabelValues(p.Transport, outcome).Inc()
	return res, err
}

func (uc *ForecastUseCase) forecast(ctx context.Context, p ForecastParams) (models.ForecastResult, error) {
	period := uc.pipeline.Config().Period
	if p.Period != "" {
		parsed, err := domrepo.ParsePeriod(p.Period)
		if err != nil {
			err = models.NewError(models.KindInvalidInput, fmt.Sprintf("unsupported period %q", p.Period), nil)
			if p.Observer != nil {
				p.Observer(models.StageFailed, err)
			}
			return models.ForecastResult{}, err
		}
		period = parsed
	}

	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	opts := []forecast.RunOption{forecast.WithPeriod(period)}
	if p.Observer != nil {
		opts = append(opts, forecast.WithObserver(p.Observer))
	}
	f, err := uc.pipeline.Run(ctx, p.Ticker, opts...)
	if err != nil {
		return models.ForecastResult{}, err
	}
	return uc.assembler.Assemble(p.Ticker, f), nil
}

func (uc *ForecastUseCase) logFailure(p ForecastParams, err error, d time.Duration) {
	f := forecast.Classify(err)
	fields := []applogger.Field{
		applogger.String("ticker", p.Ticker),
		applogger.String("transport", p.Transport),
		applogger.String("kind", string(f.Kind)),
		applogger.String("stage", string(f.Stage)),
		applogger.Int("status", f.Status),
		applogger.Duration("duration_ms", d),
		applogger.Error(err),
	}
	if f.Status < 500 {
		uc.l.Warn("forecast rejected", fields...)
		return
	}
	uc.l.Error("forecast failed", fields...)
}

// Ready reports whether the model can be served, loading it if needed.
func (uc *ForecastUseCase) Ready(ctx context.Context) error {
	return uc.pipeline.Ready(ctx)
}

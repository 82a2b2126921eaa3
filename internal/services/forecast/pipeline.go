package forecast

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"PriceSight/internal/domain/models"
	domrepo "PriceSight/internal/domain/repository"
	domsvc "PriceSight/internal/domain/service"
	"PriceSight/internal/services/inference"
)

// Config holds the pipeline constants.
type Config struct {
	WindowLen    int
	TrainRatio   float64
	CompareLast  int
	Period       domrepo.Period
	FetchTimeout time.Duration
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		WindowLen:    60,
		TrainRatio:   0.7,
		CompareLast:  30,
		Period:       domrepo.Period10y,
		FetchTimeout: 15 * time.Second,
	}
}

// Split is the train/test partition of a close series.
// Test starts WindowLen points before Index so the first test window is complete.
type Split struct {
	Index int
	Train []float64
	Test  []float64
}

// SplitSeries partitions closes at floor(ratio * n). Both the train segment
// and the test super-segment must hold at least windowLen+1 points.
func SplitSeries(closes []float64, windowLen int, ratio float64) (Split, error) {
	n := len(closes)
	k := int(math.Floor(ratio * float64(n)))
	if k < windowLen+1 {
		return Split{}, models.NewError(models.KindInsufficientHistory,
			fmt.Sprintf("need at least %d training points, have %d of %d", windowLen+1, k, n), nil)
	}
	if n-k < 1 {
		return Split{}, models.NewError(models.KindInsufficientHistory,
			fmt.Sprintf("no points left for testing after split at %d of %d", k, n), nil)
	}
	return Split{
		Index: k,
		Train: closes[:k],
		Test:  closes[k-windowLen:],
	}, nil
}

// Prepared is the model-free part of a run.
type Prepared struct {
	Split       Split
	Scaler      MinMax
	ScaledTrain []float64
	ScaledTest  []float64
	Train       Windows
	Test        Windows
}

// Prepare splits, fits the scaler on the train segment only, scales both
// segments and builds the windows. step, when non-nil, is called on entry to
// every stage.
func Prepare(closes []float64, windowLen int, ratio float64, step func(models.Stage)) (*Prepared, error) {
	if step == nil {
		step = func(models.Stage) {}
	}

	step(models.StageSplitting)
	split, err := SplitSeries(closes, windowLen, ratio)
	if err != nil {
		return nil, stageErr(err, models.StageSplitting)
	}

	step(models.StageFitting)
	scaler, err := Fit(split.Train)
	if err != nil {
		return nil, stageErr(err, models.StageFitting)
	}
	p := &Prepared{
		Split:       split,
		Scaler:      scaler,
		ScaledTrain: scaler.Transform(split.Train),
		ScaledTest:  scaler.Transform(split.Test),
	}

	step(models.StageWindowTrain)
	p.Train = MakeWindows(p.ScaledTrain, windowLen)
	if p.Train.Len() == 0 {
		return nil, stageErr(models.NewError(models.KindInsufficientHistory, "train segment yields no windows", nil), models.StageWindowTrain)
	}

	step(models.StageWindowTest)
	p.Test = MakeWindows(p.ScaledTest, windowLen)
	if p.Test.Len() == 0 {
		return nil, stageErr(models.NewError(models.KindInsufficientHistory, "test segment yields no windows", nil), models.StageWindowTest)
	}
	return p, nil
}

// Observer is notified of every stage transition. err is non-nil only for StageFailed.
type Observer func(stage models.Stage, err error)

type runOptions struct {
	observer Observer
	period   domrepo.Period
}

// RunOption customizes a single Run.
type RunOption func(*runOptions)

// WithObserver registers a stage observer.
func WithObserver(o Observer) RunOption {
	return func(r *runOptions) { r.observer = o }
}

// WithPeriod overrides the lookback period.
func WithPeriod(p domrepo.Period) RunOption {
	return func(r *runOptions) {
		if p != "" {
			r.period = p
		}
	}
}

// Pipeline turns a ticker into a denormalized forecast. It holds no per-request
// state and may be shared by concurrent requests.
type Pipeline struct {
	source  domrepo.HistorySource
	models  domsvc.ModelProvider
	metrics domrepo.Metrics
	cfg     Config
}

func NewPipeline(source domrepo.HistorySource, provider domsvc.ModelProvider, metrics domrepo.Metrics, cfg Config) *Pipeline {
	def := DefaultConfig()
	if cfg.WindowLen <= 0 {
		cfg.WindowLen = def.WindowLen
	}
	if cfg.TrainRatio <= 0 || cfg.TrainRatio >= 1 {
		cfg.TrainRatio = def.TrainRatio
	}
	if cfg.CompareLast <= 0 {
		cfg.CompareLast = def.CompareLast
	}
	if cfg.Period == "" {
		cfg.Period = def.Period
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &Pipeline{source: source, models: provider, metrics: metrics, cfg: cfg}
}

// Config returns the effective constants.
func (p *Pipeline) Config() Config { return p.cfg }

// Ready loads the model if needed and reports whether it can serve.
func (p *Pipeline) Ready(ctx context.Context) error {
	_, err := p.models.Model(ctx)
	return err
}

// Run executes Fetching through Denormalizing. Any failure aborts the run;
// partial results are never returned.
func (p *Pipeline) Run(ctx context.Context, ticker string, opts ...RunOption) (models.Forecast, error) {
	ro := runOptions{period: p.cfg.Period}
	for _, opt := range opts {
		opt(&ro)
	}
	t := &tracker{observer: ro.observer, metrics: p.metrics}

	f, err := p.run(ctx, strings.TrimSpace(ticker), ro.period, t)
	if err != nil {
		t.fail(err)
		return models.Forecast{}, err
	}
	t.enter(models.StageDone)
	return f, nil
}

func (p *Pipeline) run(ctx context.Context, ticker string, period domrepo.Period, t *tracker) (models.Forecast, error) {
	if ticker == "" {
		return models.Forecast{}, models.NewError(models.KindInvalidInput, "Ticker is required", nil)
	}

	t.enter(models.StageFetching)
	series, err := p.fetch(ctx, ticker, period)
	if err != nil {
		return models.Forecast{}, err
	}

	prep, err := Prepare(series.Closes(), p.cfg.WindowLen, p.cfg.TrainRatio, t.enter)
	if err != nil {
		return models.Forecast{}, err
	}

	t.enter(models.StagePredictTest)
	model, err := p.models.Model(ctx)
	if err != nil {
		return models.Forecast{}, stageErr(asKind(err, models.KindModelLoad, "load model"), models.StagePredictTest)
	}
	preds, err := inference.Predict(ctx, model, prep.Test.Inputs)
	if err != nil {
		return models.Forecast{}, stageErr(err, models.StagePredictTest)
	}
	count := prep.Test.Len()
	n := p.cfg.CompareLast
	if count < n {
		n = count
	}
	trueScaled := prep.Test.Labels[count-n:]
	predScaled := preds[count-n:]

	t.enter(models.StagePredictNext)
	last, ok := TrailingWindow(prep.ScaledTest, p.cfg.WindowLen)
	if !ok {
		return models.Forecast{}, stageErr(models.NewError(models.KindInsufficientHistory, "no trailing window for next-period forecast", nil), models.StagePredictNext)
	}
	next, err := inference.Predict(ctx, model, [][]float64{last})
	if err != nil {
		return models.Forecast{}, stageErr(err, models.StagePredictNext)
	}

	t.enter(models.StageDenormalize)
	return models.Forecast{
		Symbol:      ticker,
		Original:    prep.Scaler.Inverse(trueScaled),
		Predicted:   prep.Scaler.Inverse(predScaled),
		NextDay:     prep.Scaler.InverseOne(next[0]),
		TestWindows: count,
		LastDate:    series.LastDate(),
	}, nil
}

func (p *Pipeline) fetch(ctx context.Context, ticker string, period domrepo.Period) (models.PriceSeries, error) {
	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	series, err := p.source.Fetch(fctx, ticker, period)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			return models.PriceSeries{}, stageErr(err, models.StageFetching)
		}
		msg := "error fetching data"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fctx.Err(), context.DeadlineExceeded) {
			msg = "timed out fetching data"
		}
		return models.PriceSeries{}, stageErr(models.NewError(models.KindDataUnavailable, msg, err), models.StageFetching)
	}
	if series.Len() == 0 {
		return models.PriceSeries{}, stageErr(models.NewError(models.KindDataUnavailable,
			fmt.Sprintf("error fetching data: no data returned for %s", strings.ToUpper(ticker)), nil), models.StageFetching)
	}
	if err := series.Validate(); err != nil {
		return models.PriceSeries{}, stageErr(models.NewError(models.KindDataUnavailable, "malformed price history", err), models.StageFetching)
	}
	return series, nil
}

// asKind keeps an already classified error and classifies anything else as kind.
func asKind(err error, kind models.ErrorKind, msg string) error {
	if _, ok := models.KindOf(err); ok {
		return err
	}
	return models.NewError(kind, msg, err)
}

// stageErr tags the classified error in err with stage. Already staged errors
// pass through untouched.
func stageErr(err error, stage models.Stage) error {
	var fe *models.ForecastError
	if !errors.As(err, &fe) || fe.Stage != "" {
		return err
	}
	return fe.WithStage(stage)
}

// tracker times stages and forwards transitions to the observer.
type tracker struct {
	observer Observer
	metrics  domrepo.Metrics
	current  models.Stage
	started  time.Time
}

func (t *tracker) enter(s models.Stage) {
	t.close()
	t.current = s
	t.started = time.Now()
	if t.observer != nil {
		t.observer(s, nil)
	}
}

func (t *tracker) fail(err error) {
	t.close()
	t.current = models.StageFailed
	if t.observer != nil {
		t.observer(models.StageFailed, err)
	}
}

func (t *tracker) close() {
	if t.current == "" || t.current == models.StageDone || t.current == models.StageFailed {
		return
	}
	if t.metrics != nil {
		t.metrics.RecordStage(string(t.current), time.Since(t.started).Seconds())
	}
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	domrepo "PriceSight/internal/domain/repository"
	domsvc "PriceSight/internal/domain/service"
	applogger "PriceSight/pkg/logger"
	"PriceSight/pkg/util"
)

const warmupLockKey = "lock:warmup"

// Warmer refreshes cached history for a fixed symbol list on a cron schedule
// and keeps the model loaded. Only one replica runs a given tick when the
// locker is shared.
type Warmer struct {
	source    domrepo.HistorySource
	models    domsvc.ModelProvider
	locker    domrepo.Locker
	publisher domrepo.BarPublisher
	symbols   []string
	period    domrepo.Period
	spec      string
	timeout   time.Duration
	lockTTL   time.Duration
	l         *applogger.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// WarmupReport summarises one run.
type WarmupReport struct {
	Skipped bool
	Symbols int
	Failed  map[string]error
}

func NewWarmer(source domrepo.HistorySource, models domsvc.ModelProvider, symbols []string, period domrepo.Period, spec string) *Warmer {
	norm := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = util.NormalizeTicker(s); s != "" {
			norm = append(norm, s)
		}
	}
	return &Warmer{
		source:  source,
		models:  models,
		symbols: norm,
		period:  period,
		spec:    spec,
		timeout: 5 * time.Minute,
		lockTTL: 10 * time.Minute,
		l:       applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (w *Warmer) SetLogger(l *applogger.Logger) {
	if l != nil {
		w.l = l
	}
}

// SetLocker installs the cross-replica lock.
func (w *Warmer) SetLocker(lk domrepo.Locker) { w.locker = lk }

// SetPublisher republishes fetched bars onto the ingest topic.
func (w *Warmer) SetPublisher(p domrepo.BarPublisher) { w.publisher = p }

// Start schedules the job. It is a no-op without symbols.
func (w *Warmer) Start() error {
	if len(w.symbols) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(w.spec, w.tick); err != nil {
		return fmt.Errorf("warmup schedule %q: %w", w.spec, err)
	}
	c.Start()
	w.cron = c
	w.l.Info("warmup scheduled", applogger.String("cron", w.spec), applogger.Strings("symbols", w.symbols))
	return nil
}

// Stop unschedules the job and waits for a running tick.
func (w *Warmer) Stop(ctx context.Context) error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Warmer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.Run(ctx); err != nil {
		w.l.Error("warmup run failed", applogger.Error(err))
	}
}

// Run refreshes every symbol once. Per-symbol failures are logged and
// reported; they do not stop the run.
func (w *Warmer) Run(ctx context.Context) (WarmupReport, error) {
	rep := WarmupReport{Failed: map[string]error{}}

	if w.locker != nil {
		ok, err := w.locker.TryLock(ctx, warmupLockKey, w.lockTTL)
		if err != nil {
			return rep, fmt.Errorf("warmup lock: %w", err)
		}
		if !ok {
			w.l.Info("warmup skipped, lock held elsewhere")
			rep.Skipped = true
			return rep, nil
		}
		defer func() { _ = w.locker.Unlock(context.WithoutCancel(ctx), warmupLockKey) }()
	}

	start := time.Now()
	if w.models != nil {
		if _, err := w.models.Model(ctx); err != nil {
			w.l.Error("warmup model load failed", applogger.Error(err))
		}
	}

	inv, _ := w.source.(domrepo.CacheInvalidator)
	for _, sym := range w.symbols {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if err := w.refresh(ctx, sym, inv); err != nil {
			rep.Failed[sym] = err
			w.l.Error("warmup symbol failed", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		rep.Symbols++
	}

	w.l.Info("warmup done",
		applogger.Int("symbols", rep.Symbols),
		applogger.Int("failed", len(rep.Failed)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return rep, nil
}

func (w *Warmer) refresh(ctx context.Context, symbol string, inv domrepo.CacheInvalidator) error {
	if inv != nil {
		if err := inv.Invalidate(ctx, symbol); err != nil {
			w.l.Warn("warmup invalidate failed", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	series, err := w.source.Fetch(ctx, symbol, w.period)
	if err != nil {
		return err
	}
	if series.Len() == 0 {
		return fmt.Errorf("no data returned for %s", symbol)
	}
	if w.publisher != nil {
		if err := w.publisher.PublishBars(ctx, symbol, series.Points); err != nil {
			return fmt.Errorf("publish bars: %w", err)
		}
	}
	return nil
}

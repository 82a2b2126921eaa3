package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PriceSight/internal/services/inference"
	"PriceSight/internal/usecase"
	"PriceSight/pkg/config"
	xhttp "PriceSight/pkg/http"
	pkgkafka "PriceSight/pkg/kafka"
	applogger "PriceSight/pkg/logger"
)

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	models     *inference.Store
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	warmer     *usecase.Warmer
	closers    []closer
}

// New creates a new App instance with its required dependencies.
func New(cfg *config.Config, l *applogger.Logger, srv *xhttp.Server, models *inference.Store) *App {
	return &App{cfg: cfg, l: l, httpServer: srv, models: models}
}

// SetConsumer attaches the ingest consumer and its handler.
func (a *App) SetConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) {
	a.consumer = c
	a.kh = h
}

// SetWarmer attaches the scheduled warm-up job.
func (a *App) SetWarmer(w *usecase.Warmer) { a.warmer = w }

// AddCloser registers a resource released at shutdown, in registration order.
func (a *App) AddCloser(name string, fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, closer{name: name, fn: fn})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return errors.Join(err, a.Shutdown(context.Background()))
	}

	<-ctx.Done()
	a.l.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches background workers and the HTTP server without blocking.
func (a *App) Start(ctx context.Context) error {
	if a.cfg.Model.Preload && a.models != nil {
		go func() {
			// Failures are logged by the store; requests retry the load.
			_, _ = a.models.Model(ctx)
		}()
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.warmer != nil {
		if err := a.warmer.Start(); err != nil {
			a.l.Error("warmup schedule error", applogger.Error(err))
			return err
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("pricesight started",
		applogger.String("model_backend", a.cfg.Model.Backend),
		applogger.String("history_source", a.cfg.History.Source),
		applogger.Bool("ingest", a.consumer != nil),
		applogger.Bool("warmup", a.warmer != nil),
	)
	return nil
}

// Shutdown gracefully stops all services. Later steps run even if earlier
// ones fail; the errors are joined.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down...")
	start := time.Now()
	var errs []error

	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.warmer != nil {
		if err := a.warmer.Stop(ctx); err != nil {
			a.l.Warn("warmup stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	// flush aggregated errors while the producer is still open
	a.l.RemoveCollector()

	for _, c := range a.closers {
		if err := c.fn(); err != nil {
			a.l.Warn(c.name+" close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete", applogger.Duration("duration_ms", time.Since(start)))
	return errors.Join(errs...)
}

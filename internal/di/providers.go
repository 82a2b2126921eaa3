package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"PriceSight/internal/domain/repository"
	"PriceSight/internal/handler/api"
	internalrepo "PriceSight/internal/repository"
	svcmetrics "PriceSight/internal/service/metrics"
	"PriceSight/internal/service/ratelimit"
	"PriceSight/internal/service/yahoo"
	"PriceSight/internal/services/forecast"
	"PriceSight/internal/services/inference"
	"PriceSight/internal/usecase"
	"PriceSight/pkg/cache"
	pkgch "PriceSight/pkg/clickhouse"
	"PriceSight/pkg/config"
	xhttp "PriceSight/pkg/http"
	pkgkafka "PriceSight/pkg/kafka"
	applogger "PriceSight/pkg/logger"
	"PriceSight/pkg/metrics"
	"PriceSight/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	out := cfg.Logging.Output
	if out == "file" {
		out = cfg.Logging.File
	}
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: out,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates the Prometheus recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	svcmetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisCache connects to Redis. Returns nil when Redis is disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return rc, nil
}

// ProvideCache builds the layered cache, memory-only without Redis.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) *cache.LayeredCache {
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.History.Cache.MemorySize),
		cache.WithLayeredMemoryTTL(cfg.History.Cache.MemoryTTL),
	)
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the history
// table exists. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.HistorySchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close() // no logger in DI; propagate
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideClickHouseHistory creates the ClickHouse history store, or nil.
func ProvideClickHouseHistory(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) *internalrepo.ClickHouseHistory {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewClickHouseHistory(ch, ch.Database()+"."+cfg.ClickHouse.Table)
	store.SetLogger(l)
	return store
}

// ProvideYahooClient creates the Yahoo chart client.
func ProvideYahooClient(cfg *config.Config) (*yahoo.Client, error) {
	return yahoo.New(
		yahoo.WithBaseURL(cfg.History.Yahoo.BaseURL),
		yahoo.WithProxy(cfg.History.Yahoo.Proxy),
		yahoo.WithUserAgent(cfg.History.Yahoo.UserAgent),
		yahoo.WithTimeout(cfg.History.Yahoo.Timeout),
	)
}

// ProvideCachedHistory wraps the configured source with the cache, or
// returns nil when caching is disabled.
func ProvideCachedHistory(
	cfg *config.Config,
	y *yahoo.Client,
	chHist *internalrepo.ClickHouseHistory,
	c *cache.LayeredCache,
	rec *metrics.Recorder,
	l *applogger.Logger,
) *internalrepo.CachedHistory {
	if !cfg.History.Cache.Enabled {
		return nil
	}
	ch := internalrepo.NewCachedHistory(baseSource(cfg, y, chHist), c, cfg.History.Cache.TTL, rec)
	ch.SetLogger(l)
	ch.SetFetchTimeout(cfg.Forecast.FetchTimeout)
	return ch
}

// ProvideHistorySource picks the source the pipeline reads from.
func ProvideHistorySource(
	cfg *config.Config,
	y *yahoo.Client,
	chHist *internalrepo.ClickHouseHistory,
	cached *internalrepo.CachedHistory,
) repository.HistorySource {
	if cached != nil {
		return cached
	}
	return baseSource(cfg, y, chHist)
}

func baseSource(cfg *config.Config, y *yahoo.Client, chHist *internalrepo.ClickHouseHistory) repository.HistorySource {
	if cfg.History.Source == "clickhouse" && chHist != nil {
		return chHist
	}
	return y
}

// ProvideModelStore creates the lazily loaded model store.
func ProvideModelStore(cfg *config.Config, l *applogger.Logger) *inference.Store {
	var loader inference.Loader = inference.FileLoader{Path: cfg.Model.Path}
	if cfg.Model.Backend == "serving" {
		m := inference.NewServingModel(cfg.Model.Serving.URL, cfg.Model.Serving.Name, cfg.Forecast.WindowLen, cfg.Model.Serving.Timeout)
		loader = inference.ServingLoader{Model: m}
	}
	store := inference.NewStore(loader)
	store.SetLogger(l)
	return store
}

// ProvidePipeline creates the forecast pipeline.
func ProvidePipeline(cfg *config.Config, source repository.HistorySource, store *inference.Store, rec *metrics.Recorder) *forecast.Pipeline {
	return forecast.NewPipeline(source, store, rec, forecast.Config{
		WindowLen:    cfg.Forecast.WindowLen,
		TrainRatio:   cfg.Forecast.TrainRatio,
		CompareLast:  cfg.Forecast.CompareLast,
		Period:       repository.Period(cfg.Forecast.Period),
		FetchTimeout: cfg.Forecast.FetchTimeout,
	})
}

// ProvideForecastUseCase creates the forecast use case.
func ProvideForecastUseCase(cfg *config.Config, p *forecast.Pipeline, rec *metrics.Recorder, l *applogger.Logger) *usecase.ForecastUseCase {
	uc := usecase.NewForecastUseCase(p, forecast.NewAssembler(cfg.Forecast.RoundDigits), rec, cfg.Forecast.RequestTimeout)
	uc.SetLogger(l)
	return uc
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the ingest consumer. It is nil unless both
// Kafka and ClickHouse are enabled, since ingested bars need a store.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	return consumer, nil
}

// ProvideKafkaBarsHandler creates the ingest handler, or nil without a store.
func ProvideKafkaBarsHandler(
	cfg *config.Config,
	chHist *internalrepo.ClickHouseHistory,
	cached *internalrepo.CachedHistory,
	rec *metrics.Recorder,
) *usecase.KafkaBarsHandler {
	if chHist == nil {
		return nil
	}
	h := usecase.NewKafkaBarsHandler(cfg.Kafka.IngestTopic, chHist, rec)
	if cached != nil && cfg.History.Source == "clickhouse" {
		h.SetInvalidator(cached)
	}
	return h
}

// ProvideWarmer creates the scheduled warm-up job, or nil when disabled.
// Bars fetched from Yahoo are republished to the ingest topic when the
// ClickHouse pipeline is running.
func ProvideWarmer(
	cfg *config.Config,
	source repository.HistorySource,
	store *inference.Store,
	c *cache.LayeredCache,
	producer *pkgkafka.Producer,
	chHist *internalrepo.ClickHouseHistory,
	l *applogger.Logger,
) *usecase.Warmer {
	if !cfg.Warmup.Enabled {
		return nil
	}
	w := usecase.NewWarmer(source, store, cfg.Warmup.Symbols, repository.Period(cfg.Forecast.Period), cfg.Warmup.Cron)
	w.SetLogger(l)
	w.SetLocker(c)
	if producer != nil && chHist != nil && cfg.History.Source == "yahoo" {
		w.SetPublisher(internalrepo.NewKafkaBarPublisher(producer, cfg.Kafka.IngestTopic))
	}
	return w
}

// ProvideHTTPServer creates the Echo server with every route registered.
func ProvideHTTPServer(
	cfg *config.Config,
	uc *usecase.ForecastUseCase,
	rc *cache.RedisCache,
	ch *pkgch.Client,
	l *applogger.Logger,
) *xhttp.Server {
	health := api.NewHealthHandler(l, uc)
	if rc != nil {
		health.AddCheck("redis", rc.Ping)
	}
	if ch != nil {
		health.AddCheck("clickhouse", ch.Health)
	}

	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true, cfg.Server.CORSOrigins...),
		xhttp.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(l),
	}
	if cfg.RateLimit.Enabled {
		opts = append(opts, xhttp.WithRateLimiter(ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))
	}

	return xhttp.NewServer(xhttp.Handlers{api.NewForecastHandler(l, uc), health}, opts...)
}

// ProvideApp assembles the application and attaches the error-log collector.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	store *inference.Store,
	consumer *pkgkafka.Consumer,
	bars *usecase.KafkaBarsHandler,
	warmer *usecase.Warmer,
	producer *pkgkafka.Producer,
	c *cache.LayeredCache,
	ch *pkgch.Client,
) *server.App {
	if cfg.Logging.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			Service:        "pricesight",
			TimeInterval:   cfg.Logging.CollectInterval,
			CountThreshold: cfg.Logging.CollectThreshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}

	app := server.New(cfg, l, srv, store)
	if consumer != nil && bars != nil {
		consumer.SetHook(bars.Hook())
		app.SetConsumer(consumer, bars)
	}
	if warmer != nil {
		app.SetWarmer(warmer)
	}
	if producer != nil {
		app.AddCloser("kafka producer", producer.Close)
	}
	app.AddCloser("cache", c.Close)
	if ch != nil {
		app.AddCloser("clickhouse", ch.Close)
	}
	return app
}

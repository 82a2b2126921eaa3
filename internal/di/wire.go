//go:build wireinject
// +build wireinject

package di

import (
	"PriceSight/pkg/config"
	"PriceSight/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideClickHouseHistory,
		ProvideYahooClient,
		ProvideCachedHistory,
		ProvideHistorySource,
		ProvideModelStore,

		// Use cases
		ProvidePipeline,
		ProvideForecastUseCase,
		ProvideKafkaBarsHandler,
		ProvideWarmer,

		// Application server
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}

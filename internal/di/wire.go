//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RegimeLab/internal/usecase"
	"RegimeLab/pkg/config"
	"RegimeLab/pkg/server"
)

var infraSet = wire.NewSet(
	ProvideKafkaProducer,
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideReportCache,
)

var pipelineSet = wire.NewSet(
	ProvidePriceSource,
	ProvideClassifier,
	ProvideResultSink,
	ProvideAlertPublisher,
	ProvideExhaustionUseCase,
)

// InitializeApp wires the HTTP server, the batch queue and the pipeline.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		pipelineSet,
		ProvideQueue,
		ProvideCandles,
		ProvideRateLimiter,
		ProvideHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeRunner wires only the pipeline, for one-shot CLI runs.
func InitializeRunner(cfg *config.Config) (*usecase.ExhaustionUseCase, func(), error) {
	wire.Build(infraSet, pipelineSet)
	return nil, nil, nil
}

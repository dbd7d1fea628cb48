package di

import (
	"context"
	"fmt"
	"time"

	"RegimeLab/internal/domain/repository"
	"RegimeLab/internal/handler/api"
	internalrepo "RegimeLab/internal/repository"
	"RegimeLab/internal/service/alpaca"
	"RegimeLab/internal/service/ratelimit"
	"RegimeLab/internal/services/analytics"
	"RegimeLab/internal/usecase"
	"RegimeLab/pkg/cache"
	pkgch "RegimeLab/pkg/clickhouse"
	"RegimeLab/pkg/config"
	xhttp "RegimeLab/pkg/http"
	pkgkafka "RegimeLab/pkg/kafka"
	applogger "RegimeLab/pkg/logger"
	"RegimeLab/pkg/metrics"
	"RegimeLab/pkg/queue"
	"RegimeLab/pkg/server"
)

const initTimeout = 10 * time.Second

// Optional infrastructure providers return nil when disabled in config.
// Optional interfaces are returned as untyped nil so consumers can compare
// against nil.

// ProvideKafkaProducer creates a Kafka producer when kafka.enabled is set.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the application logger. With log.digest.enabled and a
// producer, repeated warnings and errors are also shipped as digests.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))
	if !cfg.Log.Digest.Enabled || producer == nil {
		return l, func() {}, nil
	}

	d := applogger.NewDigest(applogger.DigestConfig{
		FlushInterval:  cfg.Log.Digest.FlushInterval,
		CountThreshold: cfg.Log.Digest.CountThreshold,
		Topic:          cfg.Log.Digest.Topic,
		Publisher:      producer,
	})
	l.AttachDigest(d)
	return l, func() {
		l.DetachDigest()
		d.Close()
	}, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config) repository.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func needsClickHouse(cfg *config.Config) bool {
	if cfg.Source.Type == "clickhouse" {
		return true
	}
	for _, s := range cfg.Sink.Types {
		if s == "clickhouse" {
			return true
		}
	}
	return false
}

// ProvideClickHouseClient connects to ClickHouse and creates the schema when
// the source or a sink uses it.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !needsClickHouse(cfg) {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database, cfg.ClickHouse.PriceTable)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready",
		applogger.String("host", cfg.ClickHouse.Host),
		applogger.String("database", cfg.ClickHouse.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideRedisCache connects to Redis when redis.enabled is set.
func ProvideRedisCache(cfg *config.Config, l *applogger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisEndpoint(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	l.Info("redis ready", applogger.String("addr", cfg.Redis.Addr))
	return rc, func() { _ = rc.Close() }, nil
}

// ProvideReportCache picks Redis when connected, else the in-process cache
// when redis.memory_fallback is set.
func ProvideReportCache(cfg *config.Config, rc *cache.RedisCache) (cache.Service, func()) {
	if rc != nil {
		return rc, func() {}
	}
	if !cfg.Redis.MemoryFallback {
		return nil, func() {}
	}
	mc := cache.NewMemoryCache(
		cache.WithMemoryMaxSize(cfg.Redis.MemoryMaxSize),
		cache.WithMemoryDefaultTTL(cfg.Redis.TTL),
	)
	return mc, func() { _ = mc.Close() }
}

// ProvidePriceSource selects the close series source by source.type.
func ProvidePriceSource(cfg *config.Config, l *applogger.Logger, ch *pkgch.Client) (repository.PriceSource, error) {
	switch cfg.Source.Type {
	case "csv":
		src := internalrepo.NewCSVPriceSource(cfg.Source.CSVDir)
		src.SetLogger(l)
		return src, nil
	case "clickhouse":
		store := internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.PriceTable)
		store.SetLogger(l)
		return store, nil
	case "alpaca":
		return alpaca.New(
			cfg.Alpaca.APIKey,
			cfg.Alpaca.APISecret,
			cfg.Alpaca.BaseURL,
			cfg.Alpaca.Timeout,
			alpaca.WithRateLimit(cfg.Alpaca.RateLimit, cfg.Alpaca.Burst),
			alpaca.WithFeed(cfg.Alpaca.Feed),
			alpaca.WithLogger(l),
		), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

// ProvideCandles serves stored bars; only available with ClickHouse.
func ProvideCandles(cfg *config.Config, l *applogger.Logger, ch *pkgch.Client) *usecase.CandlesUseCase {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.PriceTable)
	store.SetLogger(l)
	return usecase.NewCandlesUseCase(store)
}

// ProvideResultSink fans a run out to every sink in sink.types.
func ProvideResultSink(cfg *config.Config, l *applogger.Logger, ch *pkgch.Client) (repository.ResultSink, func(), error) {
	var sinks []internalrepo.NamedSink
	for _, typ := range cfg.Sink.Types {
		switch typ {
		case "csv":
			s, err := internalrepo.NewCSVResultStore(cfg.Sink.CSVDir)
			if err != nil {
				return nil, nil, fmt.Errorf("csv sink: %w", err)
			}
			s.SetLogger(l)
			sinks = append(sinks, internalrepo.NamedSink{Name: typ, Sink: s})
		case "clickhouse":
			s := internalrepo.NewCHResultStore(ch, cfg.ClickHouse.BatchSize)
			s.SetLogger(l)
			sinks = append(sinks, internalrepo.NamedSink{Name: typ, Sink: s})
		case "postgres":
			ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
			db, err := internalrepo.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxOpenConns)
			if err != nil {
				cancel()
				closeSinks(sinks)
				return nil, nil, fmt.Errorf("postgres sink: %w", err)
			}
			s := internalrepo.NewPGResultStore(db, cfg.Postgres.Timeout)
			s.SetLogger(l)
			err = s.InitSchema(ctx)
			cancel()
			if err != nil {
				_ = s.Close()
				closeSinks(sinks)
				return nil, nil, fmt.Errorf("postgres schema: %w", err)
			}
			sinks = append(sinks, internalrepo.NamedSink{Name: typ, Sink: s})
		default:
			closeSinks(sinks)
			return nil, nil, fmt.Errorf("unknown sink type %q", typ)
		}
	}
	if len(sinks) == 0 {
		return nil, func() {}, nil
	}

	ms := internalrepo.NewMultiSink(sinks...)
	return ms, func() {
		if err := ms.Close(); err != nil {
			l.Warn("sink close error", applogger.Error(err))
		}
	}, nil
}

func closeSinks(sinks []internalrepo.NamedSink) {
	for _, s := range sinks {
		_ = s.Sink.Close()
	}
}

// ProvideAlertPublisher publishes alerts to Kafka. The producer cleanup owns
// the connection.
func ProvideAlertPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.AlertPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaAlertPublisher(producer, cfg.Kafka.Topic)
}

// ProvideClassifier creates the external regime classifier client.
func ProvideClassifier(cfg *config.Config, l *applogger.Logger) repository.RegimeEventSource {
	if !cfg.Classifier.Enabled {
		return nil
	}
	base := analytics.NewHTTPServiceBase(cfg.Classifier.URL, cfg.Classifier.Timeout, analytics.BreakerConfig{
		Name:             "regime-classifier",
		FailureThreshold: cfg.Classifier.FailureThreshold,
		OpenTimeout:      cfg.Classifier.OpenTimeout,
	}, l)
	return analytics.NewHTTPRegimeClassifier(base)
}

// ProvideExhaustionUseCase creates the pipeline use case.
func ProvideExhaustionUseCase(
	cfg *config.Config,
	source repository.PriceSource,
	classifier repository.RegimeEventSource,
	sink repository.ResultSink,
	alerts repository.AlertPublisher,
	c cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ExhaustionUseCase {
	return usecase.NewExhaustionUseCase(source, classifier, sink, alerts, c, cfg.Redis.TTL, m, cfg.Analysis, l)
}

// ProvideQueue creates the batch-run queue and registers the analysis job.
// It shares the Redis connection of the report cache.
func ProvideQueue(cfg *config.Config, l *applogger.Logger, rc *cache.RedisCache, uc *usecase.ExhaustionUseCase) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, queue.Config{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.RegisterJobs(usecase.NewAnalysisJob(uc, l))
	return q
}

// ProvideRateLimiter limits /api requests per client; nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateBurst)
}

// ProvideHandler builds the API handler with whatever optional features are
// configured.
func ProvideHandler(
	uc *usecase.ExhaustionUseCase,
	l *applogger.Logger,
	q *queue.RedisQueue,
	candles *usecase.CandlesUseCase,
	limiter *ratelimit.Limiter,
) *api.ExhaustionHandler {
	var opts []api.Option
	if q != nil {
		opts = append(opts, api.WithQueue(q))
	}
	if candles != nil {
		opts = append(opts, api.WithCandles(candles))
	}
	if limiter != nil {
		opts = append(opts, api.WithRateLimiter(limiter))
	}
	return api.NewExhaustionHandler(uc, l, opts...)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, h *api.ExhaustionHandler, l *applogger.Logger) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
	}
	if !cfg.Metrics.Enabled {
		// no scrape endpoint
		opts = append(opts, xhttp.WithMetrics("", nil, nil))
	} else {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, nil, nil))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, srv *xhttp.Server, q *queue.RedisQueue, l *applogger.Logger) *server.App {
	var workers []server.Worker
	if q != nil {
		workers = append(workers, q)
	}
	return server.New(srv, l, cfg.Server.ShutdownTimeout, workers...)
}

package main

import (
	"context"
	"fmt"

	"PriceLens/internal/cache"
	"PriceLens/internal/collector"
	"PriceLens/internal/config"
	"PriceLens/internal/metrics"
	"PriceLens/internal/pipeline"
	"PriceLens/internal/recorder"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app holds the wired components shared by every command.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	registry   *prometheus.Registry
	metrics    *metrics.Metrics
	recorder   recorder.Recorder
	store      cache.Store
	controller *pipeline.Controller
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func createLogger(level, encoding string) (*zap.Logger, error) {
	// Parse log level
	var zapLevel zap.AtomicLevel
	switch level {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config := zap.Config{
		Level:            zapLevel,
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	// Init source
	var source collector.Source
	switch cfg.DataSource.Provider {
	case "mock":
		source = &collector.MockSource{}
	default:
		source = collector.NewYahooSource(collector.YahooConfig{
			BaseURL:    cfg.DataSource.BaseURL,
			Proxy:      cfg.DataSource.Proxy,
			Timeout:    cfg.DataSource.Timeout,
			MaxRetries: *cfg.DataSource.MaxRetries,
			RatePerSec: cfg.DataSource.RatePerSec,
			Burst:      cfg.DataSource.Burst,
		}, logger.Named("yahoo"))
	}
	logger.Info("data source", zap.String("provider", source.Name()))

	// Init cache
	switch cfg.Cache.Backend {
	case "memory":
		a.store = cache.NewMemoryStore()
	case "redis":
		rs, err := cache.NewRedisStore(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("init redis cache: %w", err)
		}
		a.store = rs
	}
	if a.store != nil {
		source = collector.NewCachingSource(source, a.store, collector.CacheOptions{
			TTL:    cfg.Cache.TTL,
			Prefix: cfg.Cache.Prefix,
		}, a.metrics, logger.Named("cache"))
		logger.Info("bar cache enabled", zap.String("backend", cfg.Cache.Backend), zap.Duration("ttl", cfg.Cache.TTL))
	}

	// Init recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger.Named("recorder"))
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			a.recorder = recorder.NewNoopRecorder()
		} else {
			a.recorder = sr
		}
	} else {
		a.recorder = recorder.NewNoopRecorder()
	}

	a.controller = pipeline.NewController(pipeline.Config{
		Source:       source,
		Logger:       logger.Named("pipeline"),
		Metrics:      a.metrics,
		Recorder:     a.recorder,
		FetchTimeout: cfg.Pipeline.FetchTimeout,
	})
	return a, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		a.logger.Warn("close recorder", zap.Error(err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close cache", zap.Error(err))
		}
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	apihttp "github.com/couchcryptid/pet-microclimate/internal/adapter/http"
	"github.com/couchcryptid/pet-microclimate/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/pet-microclimate/internal/adapter/kafka"
	"github.com/couchcryptid/pet-microclimate/internal/adapter/openweather"
	"github.com/couchcryptid/pet-microclimate/internal/adapter/sqlite"
	"github.com/couchcryptid/pet-microclimate/internal/config"
	"github.com/couchcryptid/pet-microclimate/internal/dataset"
	"github.com/couchcryptid/pet-microclimate/internal/domain"
	"github.com/couchcryptid/pet-microclimate/internal/interaction"
	"github.com/couchcryptid/pet-microclimate/internal/model"
	"github.com/couchcryptid/pet-microclimate/internal/observability"
	"github.com/couchcryptid/pet-microclimate/internal/predictlog"
	"github.com/couchcryptid/pet-microclimate/internal/trend"
	"github.com/jonboulle/clockwork"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		slog.Error("petmap exited with error", "error", err)
		os.Exit(1)
	}
}

// run wires the service and blocks until ctx is cancelled or a server fails.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	// The reference dataset is loaded eagerly; the service refuses to start without it.
	source := dataset.NewCache(cfg.DatasetPath, cfg.DatasetSheet, logger)
	rows, err := source.Rows(ctx)
	if err != nil {
		return fmt.Errorf("load reference dataset %s: %w", cfg.DatasetPath, err)
	}

	predictor, err := newPredictor(cfg, logger)
	if err != nil {
		return fmt.Errorf("load PET model: %w", err)
	}

	metrics := observability.NewMetrics()
	missing := dataset.CountMissingCoords(rows)
	metrics.DatasetRows.WithLabelValues("valid").Set(float64(len(rows) - missing))
	metrics.DatasetRows.WithLabelValues("missing").Set(float64(missing))

	// Initialize weather (feature-flagged via OPENWEATHER_ENABLED / OPENWEATHER_API_KEY).
	var weather domain.WeatherProvider
	if cfg.OpenWeatherEnabled {
		client := openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherTimeout, cfg.OpenWeatherRetryCount, metrics, logger)
		weather = openweather.NewCachedProvider(client, cfg.OpenWeatherCacheTTL, metrics)
		logger.Info("openweather enabled", "timeout", cfg.OpenWeatherTimeout, "cache_ttl", cfg.OpenWeatherCacheTTL)
	} else {
		logger.Info("openweather disabled, predictions use dataset conditions")
	}

	predictionLog, closeLog, err := newPredictionLog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s prediction log: %w", cfg.LogBackend, err)
	}
	defer closeLog()
	logger.Info("prediction log ready", "backend", cfg.LogBackend)

	var publisher domain.EventPublisher
	if cfg.KafkaEnabled() {
		p := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := p.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = p
		logger.Info("kafka fan-out enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	handler := interaction.New(interaction.Options{
		Source:    source,
		Weather:   weather,
		Predictor: predictor,
		Log:       predictionLog,
		Publisher: publisher,
		Renderer:  trend.NewRenderer(),
		Clock:     clockwork.NewRealClock(),
		Logger:    logger,
		Metrics:   metrics,
		Tolerance: cfg.TrendTolerance,
	})

	api := apihttp.NewServer(cfg.HTTPAddr, handler, apihttp.MapSettings{
		CenterLat: cfg.MapCenterLat,
		CenterLon: cfg.MapCenterLon,
		Zoom:      cfg.MapZoom,
	}, cfg.BearerToken, logger)
	api.SetShutdownTimeout(cfg.ShutdownTimeout)
	ops := httpadapter.NewServer(cfg.OpsAddr, handler, metrics, logger)
	metrics.Ready.Set(1)

	errCh := make(chan error, 2)
	go func() { errCh <- api.Run(ctx) }()
	go func() { errCh <- ops.Run(ctx, cfg.ShutdownTimeout) }()

	running := 2
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		running--
		stop()
	}

	// Wait for the remaining servers to drain.
	for range running {
		if err := <-errCh; err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}
	if serveErr != nil {
		return fmt.Errorf("server: %w", serveErr)
	}
	logger.Info("shutdown complete")
	return nil
}

func newPredictor(cfg *config.Config, logger *slog.Logger) (domain.Predictor, error) {
	if cfg.ModelURL != "" {
		logger.Info("using remote PET model", "url", cfg.ModelURL)
		return model.NewRemote(cfg.ModelURL, cfg.ModelTimeout), nil
	}
	f, err := model.LoadForest(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	logger.Info("PET model loaded", "path", cfg.ModelPath, "trees", len(f.Trees))
	return f, nil
}

func newPredictionLog(ctx context.Context, cfg *config.Config) (domain.PredictionLog, func(), error) {
	if cfg.LogBackend == config.BackendSQLite {
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	l, err := predictlog.NewCSVLog(cfg.PredictionLogPath)
	if err != nil {
		return nil, nil, err
	}
	return l, func() {}, nil
}

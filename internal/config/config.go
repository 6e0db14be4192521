package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Log backends.
const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	OpsAddr         string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	BearerToken     string

	// Reference dataset.
	DatasetPath  string
	DatasetSheet string

	// PET model: a local artifact, or a remote inference endpoint when ModelURL is set.
	ModelPath    string
	ModelURL     string
	ModelTimeout time.Duration

	// Prediction log.
	LogBackend        string
	PredictionLogPath string
	SQLitePath        string

	// OpenWeather configuration.
	OpenWeatherAPIKey     string
	OpenWeatherEnabled    bool
	OpenWeatherTimeout    time.Duration
	OpenWeatherRetryCount int
	OpenWeatherCacheTTL   time.Duration

	// Optional Kafka fan-out of prediction events.
	KafkaBrokers []string
	KafkaTopic   string

	TrendTolerance float64

	MapCenterLat float64
	MapCenterLon float64
	MapZoom      int
}

// Load reads configuration from environment variables (optionally .env),
// applying defaults where unset.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	owTimeout, err := parsePositiveDuration("OPENWEATHER_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	owCacheTTL, err := parsePositiveDuration("OPENWEATHER_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}
	modelTimeout, err := parsePositiveDuration("MODEL_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	retryCount, err := strconv.Atoi(sharedcfg.EnvOrDefault("OPENWEATHER_RETRY_COUNT", "0"))
	if err != nil || retryCount < 0 || retryCount > 10 {
		return nil, errors.New("invalid OPENWEATHER_RETRY_COUNT: must be 0-10")
	}

	tolerance, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("TREND_TOLERANCE", "0.0001"), 64)
	if err != nil || tolerance <= 0 {
		return nil, errors.New("invalid TREND_TOLERANCE: must be a positive number of degrees")
	}

	centerLat, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAP_CENTER_LAT", "35.2321"), 64)
	if err != nil || centerLat < -90 || centerLat > 90 {
		return nil, errors.New("invalid MAP_CENTER_LAT")
	}
	centerLon, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MAP_CENTER_LON", "129.0790"), 64)
	if err != nil || centerLon < -180 || centerLon > 180 {
		return nil, errors.New("invalid MAP_CENTER_LON")
	}
	zoom, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAP_ZOOM", "17"))
	if err != nil || zoom < 0 || zoom > 22 {
		return nil, errors.New("invalid MAP_ZOOM: must be 0-22")
	}

	apiKey := os.Getenv("OPENWEATHER_API_KEY")
	owEnabled := apiKey != ""
	if v := os.Getenv("OPENWEATHER_ENABLED"); v != "" {
		owEnabled = v == "true"
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		OpsAddr:         sharedcfg.EnvOrDefault("OPS_ADDR", ":8081"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		BearerToken:     os.Getenv("API_BEARER_TOKEN"),

		DatasetPath:  sharedcfg.EnvOrDefault("DATASET_PATH", "total_svf_gvi_bvi_250618.xlsx"),
		DatasetSheet: sharedcfg.EnvOrDefault("DATASET_SHEET", "gps 포함"),

		ModelPath:    sharedcfg.EnvOrDefault("MODEL_PATH", "pet_rf_model.json"),
		ModelURL:     os.Getenv("MODEL_URL"),
		ModelTimeout: modelTimeout,

		LogBackend:        strings.ToLower(sharedcfg.EnvOrDefault("LOG_BACKEND", BackendCSV)),
		PredictionLogPath: sharedcfg.EnvOrDefault("PREDICTION_LOG_PATH", "pet_prediction_log.csv"),
		SQLitePath:        sharedcfg.EnvOrDefault("SQLITE_PATH", "pet_prediction_log.db"),

		OpenWeatherAPIKey:     apiKey,
		OpenWeatherEnabled:    owEnabled,
		OpenWeatherTimeout:    owTimeout,
		OpenWeatherRetryCount: retryCount,
		OpenWeatherCacheTTL:   owCacheTTL,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "pet-predictions"),

		TrendTolerance: tolerance,

		MapCenterLat: centerLat,
		MapCenterLon: centerLon,
		MapZoom:      zoom,
	}

	if cfg.DatasetPath == "" {
		return nil, errors.New("DATASET_PATH is required")
	}
	if cfg.ModelPath == "" && cfg.ModelURL == "" {
		return nil, errors.New("MODEL_PATH or MODEL_URL is required")
	}
	if cfg.LogBackend != BackendCSV && cfg.LogBackend != BackendSQLite {
		return nil, fmt.Errorf("invalid LOG_BACKEND %q: must be csv or sqlite", cfg.LogBackend)
	}
	if cfg.OpenWeatherEnabled && cfg.OpenWeatherAPIKey == "" {
		return nil, errors.New("OPENWEATHER_ENABLED is true but OPENWEATHER_API_KEY is not set")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// KafkaEnabled reports whether prediction events are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

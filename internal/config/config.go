package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // FORECAST_TIMEZONE must resolve in minimal images

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Forecast engine configuration.
	Timezone     *time.Location
	StableDigest domain.Digest

	// Imagery catalog configuration.
	ImageryToken        string
	ImageryEnabled      bool
	ImageryURL          string
	ImageryCollection   string
	ImageryTimeout      time.Duration
	ImageryLookbackDays int

	// Nominatim geocoding configuration.
	GeocoderEnabled   bool
	GeocoderURL       string
	GeocoderTimeout   time.Duration
	GeocoderCacheSize int
	GeocoderUserAgent string

	// Batch pipeline configuration.
	PipelineEnabled    bool
	KafkaBrokers       []string
	KafkaSourceTopic   string
	KafkaSinkTopic     string
	KafkaGroupID       string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is applied first; it never overrides
// variables already present in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	tzName := sharedcfg.EnvOrDefault("FORECAST_TIMEZONE", "UTC")
	tz, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid FORECAST_TIMEZONE %q: %w", tzName, err)
	}

	digest, err := domain.ParseDigest(sharedcfg.EnvOrDefault("STABLE_DIGEST", "md5"))
	if err != nil {
		return nil, fmt.Errorf("invalid STABLE_DIGEST: %w", err)
	}

	imageryTimeout, err := parsePositiveDuration("IMAGERY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	lookbackDays, err := parsePositiveInt("IMAGERY_LOOKBACK_DAYS", 14)
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parsePositiveDuration("GEOCODER_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geocoderCacheSize := parseGeocoderCacheSize()

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}
	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	imageryToken := os.Getenv("IMAGERY_TOKEN")
	imageryEnabled := imageryToken != ""
	if v := os.Getenv("IMAGERY_ENABLED"); v != "" {
		imageryEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		Timezone:     tz,
		StableDigest: digest,

		ImageryToken:        imageryToken,
		ImageryEnabled:      imageryEnabled,
		ImageryURL:          sharedcfg.EnvOrDefault("IMAGERY_URL", "https://catalogue.dataspace.copernicus.eu/stac"),
		ImageryCollection:   sharedcfg.EnvOrDefault("IMAGERY_COLLECTION", "sentinel-1-grd"),
		ImageryTimeout:      imageryTimeout,
		ImageryLookbackDays: lookbackDays,

		GeocoderEnabled:   os.Getenv("GEOCODER_ENABLED") == "true",
		GeocoderURL:       sharedcfg.EnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderTimeout:   geocoderTimeout,
		GeocoderCacheSize: geocoderCacheSize,
		GeocoderUserAgent: sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "flood-risk-service"),

		PipelineEnabled:    os.Getenv("PIPELINE_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "forecast-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "flood-forecasts"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "flood-forecast"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.ImageryEnabled && cfg.ImageryToken == "" {
		return nil, errors.New("IMAGERY_ENABLED is true but IMAGERY_TOKEN is not set")
	}
	if cfg.GeocoderEnabled && cfg.GeocoderUserAgent == "" {
		return nil, errors.New("GEOCODER_USER_AGENT is required when GEOCODER_ENABLED is true")
	}
	if cfg.PipelineEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaSourceTopic == "" {
			return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
		}
		if cfg.KafkaSinkTopic == "" {
			return nil, errors.New("KAFKA_SINK_TOPIC is required")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseGeocoderCacheSize() int {
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}

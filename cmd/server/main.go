package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/flood-risk-service/internal/adapter/http"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/imagery"
	kafkaadapter "github.com/couchcryptid/flood-risk-service/internal/adapter/kafka"
	"github.com/couchcryptid/flood-risk-service/internal/adapter/nominatim"
	"github.com/couchcryptid/flood-risk-service/internal/config"
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/forecast"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// readinessGroup is ready when every member is.
type readinessGroup []sharedobs.ReadinessChecker

func (g readinessGroup) CheckReadiness(ctx context.Context) error {
	for _, c := range g {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Imagery is checked once at startup; an unavailable catalog puts the
	// engine in offline mode for the life of the process.
	var source domain.ImagerySource
	status := domain.SourceStatus{Reason: "imagery disabled"}
	if cfg.ImageryEnabled {
		client := imagery.NewClient(imagery.Options{
			BaseURL:      cfg.ImageryURL,
			Collection:   cfg.ImageryCollection,
			Token:        cfg.ImageryToken,
			Timeout:      cfg.ImageryTimeout,
			LookbackDays: cfg.ImageryLookbackDays,
			Clock:        clock,
			Location:     cfg.Timezone,
		}, logger, metrics)
		connectCtx, cancel := context.WithTimeout(ctx, cfg.ImageryTimeout)
		status = client.Connect(connectCtx)
		cancel()
		source = client
	} else {
		logger.Info("imagery catalog disabled, forecasts use offline observations")
	}

	// Geocoding is feature-flagged via GEOCODER_ENABLED.
	var geocoder domain.Geocoder
	if cfg.GeocoderEnabled {
		client := nominatim.NewClient(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocoderTimeout, logger, metrics)
		geocoder = nominatim.NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)
		logger.Info("nominatim geocoding enabled", "cache_size", cfg.GeocoderCacheSize, "timeout", cfg.GeocoderTimeout)
	} else {
		logger.Info("nominatim geocoding disabled")
	}

	opts := []forecast.Option{
		forecast.WithClock(clock),
		forecast.WithLocation(cfg.Timezone),
		forecast.WithDigest(cfg.StableDigest),
	}
	if geocoder != nil {
		opts = append(opts, forecast.WithGeocoder(geocoder))
	}
	engine := forecast.NewEngine(source, status, logger, metrics, opts...)
	logger.Info("forecast engine ready",
		"generator", cfg.StableDigest.Version(),
		"timezone", cfg.Timezone.String(),
		"imagery_available", status.Available,
	)

	ready := readinessGroup{engine}

	var (
		reader *kafkaadapter.Reader
		writer *kafkaadapter.Writer
		p      *pipeline.Pipeline
	)
	if cfg.PipelineEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		transformer := pipeline.NewTransformer(engine, clock, logger)
		p = pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize)
		ready = append(ready, p)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, geocoder, ready, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if p != nil {
		g.Go(func() error {
			return p.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		if reader != nil {
			if err := reader.Close(); err != nil {
				logger.Error("kafka reader close error", "error", err)
			}
		}
		if writer != nil {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// gzipMinSize is low enough that a three-day forecast is compressed.
const gzipMinSize = 256

// Forecaster produces forecasts and reports the state of its imagery source.
type Forecaster interface {
	Produce(ctx context.Context, lat, lon float64) (domain.ForecastResult, error)
	Status() domain.SourceStatus
	Digest() domain.Digest
}

// Server exposes the forecast API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	forecaster Forecaster
	geocoder   domain.Geocoder
	validate   *validator.Validate
	logger     *slog.Logger
}

// NewServer creates the HTTP server. Pass a nil geocoder to disable place search.
func NewServer(addr string, forecaster Forecaster, geocoder domain.Geocoder, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		forecaster: forecaster,
		geocoder:   geocoder,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Use(requestLogger(logger))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/api/predict", s.handlePredict)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/forecast", s.handleForecast)
		r.Get("/geocode", s.handleGeocode)
		r.Get("/status", s.handleStatus)
	})

	gzip, err := gzhttp.NewWrapper(gzhttp.MinSize(gzipMinSize))
	if err != nil {
		// Only reachable with an invalid static option.
		panic(err)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      gzip(r),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 45 * time.Second, // covers IMAGERY_TIMEOUT plus geocoding
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

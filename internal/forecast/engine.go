// Package forecast turns a coordinate into a classified multi-day flood-risk
// forecast. The Engine performs at most one imagery lookup per request and
// otherwise computes everything from the stable value generator, so repeated
// calls for the same point on the same day return identical numbers.
package forecast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidCoordinate is returned for non-finite or out-of-range coordinates.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Engine produces forecasts. It holds no mutable state and is safe for
// concurrent use when its ImagerySource and Geocoder are.
type Engine struct {
	source   domain.ImagerySource
	status   domain.SourceStatus
	geocoder domain.Geocoder
	digest   domain.Digest
	clock    clockwork.Clock
	location *time.Location
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock that defines "today".
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLocation sets the time zone in which calendar days are counted.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.location = loc }
}

// WithDigest selects the stable value generator version.
func WithDigest(d domain.Digest) Option {
	return func(e *Engine) { e.digest = d }
}

// WithGeocoder enables place-name enrichment of forecast metadata.
func WithGeocoder(g domain.Geocoder) Option {
	return func(e *Engine) { e.geocoder = g }
}

// NewEngine creates an Engine. status is the outcome of the imagery source's
// one-time initialization; when it is unavailable the source is never called.
// source may be nil when imagery is disabled.
func NewEngine(source domain.ImagerySource, status domain.SourceStatus, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Engine {
	e := &Engine{
		source:   source,
		status:   status,
		digest:   domain.DigestMD5,
		clock:    clockwork.NewRealClock(),
		location: time.UTC,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.source == nil && (e.status.Available || e.status.Reason == "") {
		e.status = domain.SourceStatus{Reason: "no imagery source configured"}
	}
	return e
}

// Status returns the imagery source status the engine was built with.
func (e *Engine) Status() domain.SourceStatus {
	return e.status
}

// Digest returns the active stable value generator version.
func (e *Engine) Digest() domain.Digest {
	return e.digest
}

// CheckReadiness implements the readiness check. The engine can always answer,
// so it is ready as soon as it exists.
func (e *Engine) CheckReadiness(_ context.Context) error {
	return nil
}

// Produce builds the forecast window for a coordinate. The only error is
// ErrInvalidCoordinate; every imagery failure degrades to a substitute
// observation.
func (e *Engine) Produce(ctx context.Context, lat, lon float64) (domain.ForecastResult, error) {
	if err := validateCoordinate(lat, lon); err != nil {
		return domain.ForecastResult{}, err
	}

	today := domain.Today(e.clock, e.location)
	obs := domain.ResolveObservation(e.digest, e.fetch(ctx, lat, lon), lat, lon, today)
	e.metrics.ObservationSource.WithLabelValues(string(obs.Source)).Inc()

	days := make([]domain.DailyForecast, 0, domain.ForecastDays)
	levels := make([]domain.RiskLevel, 0, domain.ForecastDays)
	for i := range domain.ForecastDays {
		day := domain.BuildDay(e.digest, lat, lon, today.AddDate(0, 0, i), obs)
		days = append(days, day)
		levels = append(levels, day.RiskLevel)
	}

	result := domain.ForecastResult{
		Days: days,
		Metadata: domain.ForecastMetadata{
			SatelliteDate: obs.ObservationDate,
			DataSource:    obs.Source,
			GapWarning:    domain.GapNote(obs.ObservationDate, today),
			Generator:     e.digest.Version(),
			PlaceName:     domain.DescribeLocation(ctx, e.geocoder, lat, lon, e.logger),
		},
		OverallStatus: domain.Aggregate(levels...),
	}
	e.metrics.ForecastsIssued.WithLabelValues(result.OverallStatus.Label()).Inc()

	return result, nil
}

func (e *Engine) fetch(ctx context.Context, lat, lon float64) domain.ImageryResult {
	if !e.status.Available {
		return domain.Unreachable{Reason: e.status.Reason}
	}

	result := e.source.Fetch(ctx, lat, lon)
	switch r := result.(type) {
	case domain.ArchiveGap:
		e.logger.Warn("no recent scene, using archive placeholder",
			"lat", lat,
			"lon", lon,
			"source", domain.SourceArchiveGap,
		)
	case domain.Unreachable:
		e.logger.Warn("imagery catalog unreachable, using offline fallback",
			"lat", lat,
			"lon", lon,
			"source", domain.SourceOfflineSimulated,
			"reason", r.Reason,
		)
	case domain.ConnectionFailure:
		e.logger.Warn("imagery lookup failed, using offline fallback",
			"lat", lat,
			"lon", lon,
			"source", domain.SourceConnectionError,
			"reason", r.Err,
		)
	}
	return result
}

func validateCoordinate(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinate, lat, lon)
	}
	return nil
}

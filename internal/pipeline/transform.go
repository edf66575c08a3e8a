package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Forecaster produces a forecast for a coordinate.
type Forecaster interface {
	Produce(ctx context.Context, lat, lon float64) (domain.ForecastResult, error)
}

// ForecastTransformer implements Transformer by running each request through
// the forecast engine.
type ForecastTransformer struct {
	forecaster Forecaster
	validate   *validator.Validate
	clock      clockwork.Clock
	logger     *slog.Logger
}

// NewTransformer creates a ForecastTransformer. A nil clock uses real time
// for the issued_at stamp.
func NewTransformer(forecaster Forecaster, clock clockwork.Clock, logger *slog.Logger) *ForecastTransformer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ForecastTransformer{
		forecaster: forecaster,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		clock:      clock,
		logger:     logger,
	}
}

func (t *ForecastTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error) {
	req, err := domain.ParseForecastRequest(raw)
	if err != nil {
		return domain.OutputEvent{}, err
	}
	if err := t.validate.Struct(req); err != nil {
		return domain.OutputEvent{}, fmt.Errorf("validate forecast request: %w", err)
	}

	result, err := t.forecaster.Produce(ctx, req.Lat, req.Lon)
	if err != nil {
		return domain.OutputEvent{}, fmt.Errorf("produce forecast: %w", err)
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	t.logger.Debug("forecast produced",
		"request_id", req.RequestID,
		"global_status", result.OverallStatus.Label(),
		"source", result.Metadata.DataSource,
	)

	return domain.SerializeForecastEvent(domain.ForecastEvent{
		RequestID:        req.RequestID,
		Lat:              req.Lat,
		Lon:              req.Lon,
		IssuedAt:         t.clock.Now().UTC(),
		ForecastResponse: domain.NewForecastResponse(result),
	})
}

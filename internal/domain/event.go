package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ForecastRequest is the JSON payload of a message on the request topic.
type ForecastRequest struct {
	RequestID string  `json:"request_id,omitempty"`
	Lat       float64 `json:"lat" validate:"latitude"`
	Lon       float64 `json:"lon" validate:"longitude"`
}

// RawEvent represents an unprocessed message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// ForecastEvent is a computed forecast destined for the sink topic.
type ForecastEvent struct {
	RequestID string    `json:"request_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	IssuedAt  time.Time `json:"issued_at"`
	ForecastResponse
}

// OutputEvent is the serialized form destined for the sink topic.
type OutputEvent struct {
	Key     []byte
	Value   []byte
	Headers map[string]string
}

// ParseForecastRequest decodes a raw message into a ForecastRequest. Both
// coordinates must be present; a missing field is not read as zero.
func ParseForecastRequest(raw RawEvent) (ForecastRequest, error) {
	var body struct {
		RequestID string   `json:"request_id"`
		Lat       *float64 `json:"lat"`
		Lon       *float64 `json:"lon"`
	}
	if err := json.Unmarshal(raw.Value, &body); err != nil {
		return ForecastRequest{}, fmt.Errorf("unmarshal forecast request: %w", err)
	}
	if body.Lat == nil || body.Lon == nil {
		return ForecastRequest{}, errors.New("forecast request requires lat and lon")
	}
	return ForecastRequest{RequestID: body.RequestID, Lat: *body.Lat, Lon: *body.Lon}, nil
}

// Header keys set on every serialized forecast.
const (
	HeaderGlobalStatus = "global_status"
	HeaderDataSource   = "data_source"
	HeaderIssuedAt     = "issued_at"
)

// SerializeForecastEvent marshals a ForecastEvent into an OutputEvent keyed by
// request ID, with the overall status and provenance copied into headers.
func SerializeForecastEvent(event ForecastEvent) (OutputEvent, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return OutputEvent{}, fmt.Errorf("serialize forecast event: %w", err)
	}
	return OutputEvent{
		Key:   []byte(event.RequestID),
		Value: data,
		Headers: map[string]string{
			HeaderGlobalStatus: event.GlobalStatus.Label(),
			HeaderDataSource:   event.Meta.DataSource,
			HeaderIssuedAt:     event.IssuedAt.Format(time.RFC3339),
		},
	}, nil
}

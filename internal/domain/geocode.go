package domain

import (
	"context"
	"log/slog"
)

// DescribeLocation returns a display name for the query point. If geocoder is
// nil or the lookup fails, it returns "" (graceful degradation).
func DescribeLocation(ctx context.Context, geocoder Geocoder, lat, lon float64, logger *slog.Logger) string {
	if geocoder == nil {
		return ""
	}

	place, err := geocoder.Reverse(ctx, lat, lon)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", lat,
			"lon", lon,
			"error", err,
		)
		return ""
	}
	if place.DisplayName != "" {
		return place.DisplayName
	}
	return place.Name
}

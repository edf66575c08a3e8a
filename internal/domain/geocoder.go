package domain

import "context"

// Place is a named location returned by a geocoding provider.
type Place struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// Geocoder resolves place names and coordinates.
type Geocoder interface {
	// Search converts a free-text place query to candidate locations.
	Search(ctx context.Context, query string) ([]Place, error)

	// Reverse converts coordinates to the nearest named place.
	Reverse(ctx context.Context, lat, lon float64) (Place, error)
}

// ImagerySource looks up the newest radar scene over a point.
// Implementations never return errors: every failure is an ImageryResult variant.
type ImagerySource interface {
	Fetch(ctx context.Context, lat, lon float64) ImageryResult
}

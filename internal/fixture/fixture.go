// Package fixture generates and checks golden forecast files. A fixture pins
// a date and generator version, so regenerating it on any machine must give
// byte-identical numbers.
package fixture

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/forecast"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Location is one coordinate in a fixture.
type Location struct {
	Name string  `json:"name,omitempty"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// Entry pairs a location with the response the engine produced for it.
type Entry struct {
	Location
	Response domain.ForecastResponse `json:"response"`
}

// File is the on-disk fixture.
type File struct {
	Date    string        `json:"date"`
	Digest  domain.Digest `json:"digest"`
	Entries []Entry       `json:"entries"`
}

// DefaultLocations covers flood-prone cities across Java and Sumatra.
var DefaultLocations = []Location{
	{Name: "Jakarta", Lat: -6.2, Lon: 106.8167},
	{Name: "Bandung", Lat: -6.9175, Lon: 107.6191},
	{Name: "Semarang", Lat: -6.9667, Lon: 110.4167},
	{Name: "Surabaya", Lat: -7.2575, Lon: 112.7521},
	{Name: "Medan", Lat: 3.5952, Lon: 98.6722},
}

// NewEngine builds an offline engine whose "today" is the given date.
func NewEngine(date time.Time, digest domain.Digest, logger *slog.Logger, metrics *observability.Metrics) *forecast.Engine {
	noon := time.Date(date.Year(), date.Month(), date.Day(), 12, 0, 0, 0, time.UTC)
	return forecast.NewEngine(nil, domain.SourceStatus{Reason: "fixtures are generated offline"}, logger, metrics,
		forecast.WithClock(clockwork.NewFakeClockAt(noon)),
		forecast.WithLocation(time.UTC),
		forecast.WithDigest(digest),
	)
}

// Generate runs every location through the engine.
func Generate(ctx context.Context, engine *forecast.Engine, date time.Time, locations []Location) (File, error) {
	f := File{
		Date:    date.Format(domain.DateLayout),
		Digest:  engine.Digest(),
		Entries: make([]Entry, 0, len(locations)),
	}
	for _, loc := range locations {
		result, err := engine.Produce(ctx, loc.Lat, loc.Lon)
		if err != nil {
			return File{}, fmt.Errorf("forecast %s (%v,%v): %w", loc.Name, loc.Lat, loc.Lon, err)
		}
		f.Entries = append(f.Entries, Entry{Location: loc, Response: domain.NewForecastResponse(result)})
	}
	return f, nil
}

// ParseDate parses a fixture date (YYYY-MM-DD).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid fixture date %q: %w", s, err)
	}
	return t, nil
}

// ReadLocations parses "lat,lon[,name]" rows. A first row whose lat column is
// not a number is treated as a header.
func ReadLocations(r io.Reader) ([]Location, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}

	locations := make([]Location, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("row %d: want lat,lon[,name], got %d fields", i+1, len(row))
		}
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row[0]), 64)
		if latErr != nil && i == 0 {
			continue
		}
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row[1]), 64)
		if err := errors.Join(latErr, lonErr); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		loc := Location{Lat: lat, Lon: lon}
		if len(row) > 2 {
			loc.Name = strings.TrimSpace(row[2])
		}
		locations = append(locations, loc)
	}
	if len(locations) == 0 {
		return nil, errors.New("no coordinates")
	}
	return locations, nil
}

// Write stores a fixture as indented JSON.
func Write(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

// Load reads a fixture written by Write.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("decode fixture: %w", err)
	}
	if _, err := domain.ParseDigest(string(f.Digest)); err != nil {
		return File{}, err
	}
	return f, nil
}

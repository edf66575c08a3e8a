// Package imagery looks up the newest Sentinel-1 radar scene over a point in a
// STAC catalog. Every failure is folded into a domain.ImageryResult variant so
// the forecast engine never sees an error from this package.
package imagery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
)

// Options configures a Client.
type Options struct {
	BaseURL      string // STAC API root
	Collection   string
	Token        string
	Timeout      time.Duration
	LookbackDays int
	Clock        clockwork.Clock
	Location     *time.Location // calendar zone of the search window; UTC when nil
}

// Client implements domain.ImagerySource against a STAC API.
type Client struct {
	baseURL      string
	collection   string
	token        string
	lookbackDays int
	location     *time.Location
	httpClient   *http.Client
	breaker      *gobreaker.CircuitBreaker[*http.Response]
	clock        clockwork.Clock
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewClient creates a catalog client. The circuit breaker opens after more
// than five consecutive failures and half-opens after 30 seconds.
func NewClient(opts Options, logger *slog.Logger, metrics *observability.Metrics) *Client {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 14
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		collection:   opts.Collection,
		token:        opts.Token,
		lookbackDays: opts.LookbackDays,
		location:     opts.Location,
		httpClient:   &http.Client{Timeout: opts.Timeout},
		breaker: gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "imagery-catalog",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
			// A caller hanging up says nothing about the catalog.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
		clock:   opts.Clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Connect checks the collection endpoint once. The returned status is meant to
// be handed to the forecast engine at construction.
func (c *Client) Connect(ctx context.Context) domain.SourceStatus {
	status := c.checkCollection(ctx)
	if status.Available {
		c.metrics.ImageryAvailable.Set(1)
		c.logger.Info("imagery catalog available", "url", c.baseURL, "collection", c.collection)
	} else {
		c.metrics.ImageryAvailable.Set(0)
		c.logger.Warn("imagery catalog unavailable, forecasts will use offline fallback",
			"url", c.baseURL,
			"reason", status.Reason,
		)
	}
	return status
}

func (c *Client) checkCollection(ctx context.Context) domain.SourceStatus {
	u := fmt.Sprintf("%s/collections/%s", c.baseURL, url.PathEscape(c.collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.SourceStatus{Reason: fmt.Sprintf("create request: %v", err)}
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.SourceStatus{Reason: fmt.Sprintf("connect: %v", err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.SourceStatus{Reason: fmt.Sprintf("collection check returned status %d", resp.StatusCode)}
	}
	return domain.SourceStatus{Available: true}
}

// Fetch returns the newest scene over (lat, lon) within the lookback window.
func (c *Client) Fetch(ctx context.Context, lat, lon float64) domain.ImageryResult {
	start := c.clock.Now()
	result := c.search(ctx, lat, lon)
	c.metrics.ImageryAPIDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.ImageryRequests.WithLabelValues(outcome(result)).Inc()
	return result
}

func (c *Client) search(ctx context.Context, lat, lon float64) domain.ImageryResult {
	if err := ctx.Err(); err != nil {
		return domain.Unreachable{Reason: fmt.Sprintf("request abandoned: %v", err)}
	}
	body, err := json.Marshal(c.searchRequest(lat, lon))
	if err != nil {
		return domain.ConnectionFailure{Err: fmt.Errorf("encode search: %w", err)}
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/geo+json")
		c.authorize(req)

		r, doErr := c.httpClient.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if r.StatusCode >= 500 {
			return r, fmt.Errorf("catalog returned status %d", r.StatusCode)
		}
		return r, nil
	})
	if resp != nil {
		defer resp.Body.Close()
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.Unreachable{Reason: "circuit breaker open"}
	case err != nil && resp == nil:
		return domain.Unreachable{Reason: err.Error()}
	case err != nil:
		return domain.ConnectionFailure{Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return domain.Unreachable{Reason: fmt.Sprintf("catalog rejected credentials: status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.ConnectionFailure{Err: fmt.Errorf("catalog returned status %d: %s", resp.StatusCode, msg)}
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return domain.ConnectionFailure{Err: fmt.Errorf("decode search response: %w", err)}
	}
	if len(fc.Features) == 0 {
		return domain.ArchiveGap{}
	}

	f := fc.Features[0]
	if f.ID == "" {
		return domain.ConnectionFailure{Err: errors.New("scene without id")}
	}
	return domain.LiveScene{SceneID: f.ID, AcquiredAt: f.Properties.Datetime}
}

func (c *Client) searchRequest(lat, lon float64) searchRequest {
	// The window covers whole calendar days in the forecast zone, expressed
	// in UTC for the catalog.
	now := c.clock.Now().In(c.location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.location)
	begin := today.AddDate(0, 0, -c.lookbackDays)
	end := today.AddDate(0, 0, 1).Add(-time.Second)
	return searchRequest{
		Collections: []string{c.collection},
		Intersects:  point{Type: "Point", Coordinates: [2]float64{lon, lat}},
		Datetime:    begin.UTC().Format(time.RFC3339) + "/" + end.UTC().Format(time.RFC3339),
		SortBy:      []sortBy{{Field: "properties.datetime", Direction: "desc"}},
		Limit:       1,
		FilterLang:  "cql2-json",
		Filter: cql2{
			Op:   "a_contains",
			Args: []any{map[string]string{"property": "sar:polarizations"}, []string{"VV"}},
		},
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func outcome(r domain.ImageryResult) string {
	switch r.(type) {
	case domain.LiveScene:
		return "live"
	case domain.ArchiveGap:
		return "gap"
	case domain.Unreachable:
		return "unreachable"
	default:
		return "error"
	}
}

// STAC API request and response types.

type searchRequest struct {
	Collections []string `json:"collections"`
	Intersects  point    `json:"intersects"`
	Datetime    string   `json:"datetime"`
	SortBy      []sortBy `json:"sortby"`
	Limit       int      `json:"limit"`
	FilterLang  string   `json:"filter-lang"`
	Filter      cql2     `json:"filter"`
}

type point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // [lon, lat]
}

type sortBy struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

type cql2 struct {
	Op   string `json:"op"`
	Args []any  `json:"args"`
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Datetime string `json:"datetime"`
	} `json:"properties"`
}

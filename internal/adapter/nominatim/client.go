package nominatim

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// searchLimit caps the candidates returned for a place query.
const searchLimit = 5

// Client implements domain.Geocoder using the Nominatim API.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Nominatim geocoding client. Nominatim's usage policy
// requires an identifying User-Agent on every request.
func NewClient(baseURL, userAgent string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics,
		logger:  logger,
	}
}

// Search converts a free-text place query to candidate locations.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Place, error) {
	params := url.Values{
		"q":      {query},
		"format": {"jsonv2"},
		"limit":  {strconv.Itoa(searchLimit)},
	}

	var results []place
	if err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode(), "search", &results); err != nil {
		return nil, err
	}

	places := make([]domain.Place, 0, len(results))
	for _, r := range results {
		p, err := r.toDomain()
		if err != nil {
			c.logger.Debug("skipping nominatim result", "display_name", r.DisplayName, "error", err)
			continue
		}
		places = append(places, p)
	}
	c.record("search", len(places) == 0)
	return places, nil
}

// Reverse converts coordinates to the nearest named place.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (domain.Place, error) {
	params := url.Values{
		"lat":    {strconv.FormatFloat(lat, 'f', 6, 64)},
		"lon":    {strconv.FormatFloat(lon, 'f', 6, 64)},
		"format": {"jsonv2"},
		"zoom":   {"14"},
	}

	var result place
	if err := c.doRequest(ctx, c.baseURL+"/reverse?"+params.Encode(), "reverse", &result); err != nil {
		return domain.Place{}, err
	}

	// Nominatim answers 200 with an "error" field when nothing is nearby (open sea).
	if result.Error != "" || result.DisplayName == "" {
		c.record("reverse", true)
		return domain.Place{}, nil
	}

	p, err := result.toDomain()
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("reverse", "error").Inc()
		return domain.Place{}, err
	}
	c.record("reverse", false)
	return p, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, method string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("nominatim API error: status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) record(method string, empty bool) {
	outcome := "success"
	if empty {
		outcome = "empty"
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, outcome).Inc()
}

// Nominatim API response types.

type place struct {
	Lat         string `json:"lat"` // decimal degrees as a string
	Lon         string `json:"lon"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (p place) toDomain() (domain.Place, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.Place{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return domain.Place{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Lat:         lat,
		Lon:         lon,
	}, nil
}

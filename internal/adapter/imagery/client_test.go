package imagery

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken      = "test-token"
	testCollection = "sentinel-1-grd"
	testSceneID    = "S1A_IW_GRDH_1SDV_20261017T224512_20261017T224537_061234_07A1B2_9F3C"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(Options{
		BaseURL:      baseURL,
		Collection:   testCollection,
		Token:        testToken,
		Timeout:      timeout,
		LookbackDays: 14,
		Clock:        clockwork.NewFakeClockAt(time.Date(2026, time.October, 19, 9, 30, 0, 0, time.UTC)),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func sceneHandler(t *testing.T, features string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = io.WriteString(w, `{"type":"FeatureCollection","features":`+features+`}`)
	}
}

func TestFetch_LiveScene(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{testCollection}, req.Collections)
		assert.Equal(t, "Point", req.Intersects.Type)
		assert.Equal(t, [2]float64{106.8167, -6.2}, req.Intersects.Coordinates, "GeoJSON order is lon, lat")
		assert.Equal(t, "2026-10-05T00:00:00Z/2026-10-19T23:59:59Z", req.Datetime)
		assert.Equal(t, 1, req.Limit)
		require.Len(t, req.SortBy, 1)
		assert.Equal(t, "desc", req.SortBy[0].Direction)
		assert.Equal(t, "a_contains", req.Filter.Op)

		sceneHandler(t, `[{"id":"`+testSceneID+`","properties":{"datetime":"2026-10-17T22:45:12.345Z"}}]`)(w, r)
	}))
	defer srv.Close()

	result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), -6.2, 106.8167)

	assert.Equal(t, domain.LiveScene{SceneID: testSceneID, AcquiredAt: "2026-10-17T22:45:12.345Z"}, result)
}

func TestFetch_NoFeaturesIsArchiveGap(t *testing.T) {
	srv := httptest.NewServer(sceneHandler(t, `[]`))
	defer srv.Close()

	result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), -6.2, 106.8167)

	assert.Equal(t, domain.ArchiveGap{}, result)
}

func TestFetch_RejectedCredentialsIsUnreachable(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), 0, 0)
		srv.Close()

		require.IsType(t, domain.Unreachable{}, result)
		assert.Contains(t, result.(domain.Unreachable).Reason, "credentials")
	}
}

func TestFetch_ServerErrorIsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), 0, 0)

	require.IsType(t, domain.ConnectionFailure{}, result)
	assert.Contains(t, result.(domain.ConnectionFailure).Err.Error(), "502")
}

func TestFetch_BadRequestIsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unknown collection", http.StatusBadRequest)
	}))
	defer srv.Close()

	result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), 0, 0)

	require.IsType(t, domain.ConnectionFailure{}, result)
	assert.Contains(t, result.(domain.ConnectionFailure).Err.Error(), "unknown collection")
}

func TestFetch_UndecodableBodyIsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"features": [`)
	}))
	defer srv.Close()

	result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), 0, 0)

	assert.IsType(t, domain.ConnectionFailure{}, result)
}

func TestFetch_SceneWithoutIDIsConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(sceneHandler(t, `[{"properties":{"datetime":"2026-10-17T22:45:12Z"}}]`))
	defer srv.Close()

	result := testClient(srv.URL, 5*time.Second).Fetch(context.Background(), 0, 0)

	assert.IsType(t, domain.ConnectionFailure{}, result)
}

func TestFetch_ClosedServerIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(sceneHandler(t, `[]`))
	url := srv.URL
	srv.Close()

	result := testClient(url, 5*time.Second).Fetch(context.Background(), 0, 0)

	assert.IsType(t, domain.Unreachable{}, result)
}

func TestFetch_TimeoutIsUnreachable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	result := testClient(srv.URL, 50*time.Millisecond).Fetch(context.Background(), 0, 0)

	assert.IsType(t, domain.Unreachable{}, result)
}

func TestFetch_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	for range 6 {
		assert.IsType(t, domain.ConnectionFailure{}, c.Fetch(context.Background(), 0, 0))
	}

	result := c.Fetch(context.Background(), 0, 0)

	require.IsType(t, domain.Unreachable{}, result)
	assert.Contains(t, result.(domain.Unreachable).Reason, "circuit breaker")
	assert.Equal(t, int32(6), hits.Load(), "open breaker short-circuits the request")
}

func TestFetch_CancelledCallersDoNotOpenBreaker(t *testing.T) {
	var (
		mu       sync.Mutex
		hangUp   context.CancelFunc
		healthy  atomic.Bool
		searches atomic.Int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		searches.Add(1)
		if healthy.Load() {
			sceneHandler(t, `[{"id":"`+testSceneID+`","properties":{"datetime":"2026-10-17T22:45:12Z"}}]`)(w, r)
			return
		}
		// The caller goes away while the catalog is still answering.
		mu.Lock()
		hangUp()
		mu.Unlock()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)

	for range 8 {
		ctx, cancel := context.WithCancel(context.Background())
		mu.Lock()
		hangUp = cancel
		mu.Unlock()
		assert.IsType(t, domain.Unreachable{}, c.Fetch(ctx, 0, 0))
		cancel()
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for range 8 {
		assert.IsType(t, domain.Unreachable{}, c.Fetch(cancelled, 0, 0))
	}
	assert.Equal(t, int32(8), searches.Load(), "an already cancelled request never reaches the catalog")

	healthy.Store(true)
	result := c.Fetch(context.Background(), -6.2, 106.8167)

	assert.Equal(t, domain.LiveScene{SceneID: testSceneID, AcquiredAt: "2026-10-17T22:45:12Z"}, result)
}

func TestFetch_WindowFollowsForecastZone(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)

	var window string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		window = req.Datetime
		sceneHandler(t, `[]`)(w, r)
	}))
	defer srv.Close()

	// 20:00 UTC on the 19th is already the 20th in Jakarta (UTC+7).
	c := NewClient(Options{
		BaseURL:      srv.URL,
		Collection:   testCollection,
		Token:        testToken,
		Timeout:      5 * time.Second,
		LookbackDays: 14,
		Clock:        clockwork.NewFakeClockAt(time.Date(2026, time.October, 19, 20, 0, 0, 0, time.UTC)),
		Location:     jakarta,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	assert.Equal(t, domain.ArchiveGap{}, c.Fetch(context.Background(), -6.2, 106.8167))
	assert.Equal(t, "2026-10-05T17:00:00Z/2026-10-20T16:59:59Z", window)
}

func TestConnect_Available(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/collections/"+testCollection, r.URL.Path)
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"id":"sentinel-1-grd"}`)
	}))
	defer srv.Close()

	status := testClient(srv.URL, 5*time.Second).Connect(context.Background())

	assert.True(t, status.Available)
	assert.Empty(t, status.Reason)
}

func TestConnect_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	status := testClient(srv.URL, 5*time.Second).Connect(context.Background())

	assert.False(t, status.Available)
	assert.Contains(t, status.Reason, "401")
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	status := testClient(url, 5*time.Second).Connect(context.Background())

	assert.False(t, status.Available)
	assert.Contains(t, status.Reason, "connect")
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := testClient("http://stac.local/", time.Second)
	assert.Equal(t, "http://stac.local", c.baseURL)
}

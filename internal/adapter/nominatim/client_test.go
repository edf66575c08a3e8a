package nominatim

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUserAgent     = "flood-risk-test"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string) *Client {
	return NewClient(baseURL, testUserAgent, 5*time.Second,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
}

func TestClient_Search_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Bandung", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `[
			{"lat":"-6.9215529","lon":"107.6110212","name":"Bandung","display_name":"Bandung, Jawa Barat, Indonesia"},
			{"lat":"-7.0","lon":"107.5","name":"Kabupaten Bandung","display_name":"Kabupaten Bandung, Jawa Barat, Indonesia"}
		]`)
	}))
	defer srv.Close()

	places, err := testClient(srv.URL).Search(context.Background(), "Bandung")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "Bandung", places[0].Name)
	assert.Equal(t, "Bandung, Jawa Barat, Indonesia", places[0].DisplayName)
	assert.InDelta(t, -6.9215529, places[0].Lat, 1e-9)
	assert.InDelta(t, 107.6110212, places[0].Lon, 1e-9)
}

func TestClient_Search_SkipsUnparsableCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[{"lat":"north","lon":"107.6","name":"Broken"},{"lat":"-6.2","lon":"106.8","name":"Jakarta","display_name":"Jakarta"}]`)
	}))
	defer srv.Close()

	places, err := testClient(srv.URL).Search(context.Background(), "jakarta")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, "Jakarta", places[0].Name)
}

func TestClient_Search_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	places, err := testClient(srv.URL).Search(context.Background(), "XYZNONEXISTENT99")
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestClient_Reverse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "-6.200000", r.URL.Query().Get("lat"))
		assert.Equal(t, "106.816700", r.URL.Query().Get("lon"))
		assert.Equal(t, testUserAgent, r.Header.Get("User-Agent"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = io.WriteString(w, `{"lat":"-6.1999","lon":"106.8166","name":"Menteng","display_name":"Menteng, Jakarta Pusat, Indonesia"}`)
	}))
	defer srv.Close()

	p, err := testClient(srv.URL).Reverse(context.Background(), -6.2, 106.8167)
	require.NoError(t, err)

	assert.Equal(t, "Menteng", p.Name)
	assert.Equal(t, "Menteng, Jakarta Pusat, Indonesia", p.DisplayName)
	assert.InDelta(t, -6.1999, p.Lat, 1e-9)
}

func TestClient_Reverse_UnableToGeocode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"error":"Unable to geocode"}`)
	}))
	defer srv.Close()

	p, err := testClient(srv.URL).Reverse(context.Background(), -10, 90)
	require.NoError(t, err)
	assert.Empty(t, p.DisplayName)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<html>Access blocked</html>`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Search(context.Background(), "Bandung")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"lat":`)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Reverse(context.Background(), 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, testUserAgent, 50*time.Millisecond,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	_, err := c.Reverse(context.Background(), -6.2, 106.8167)
	require.Error(t, err)
}

package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- mock geocoder ---

type mockGeocoder struct {
	reverseResult Place
	reverseErr    error
	reverseCalls  int
}

func (m *mockGeocoder) Search(_ context.Context, _ string) ([]Place, error) {
	return nil, nil
}

func (m *mockGeocoder) Reverse(_ context.Context, _, _ float64) (Place, error) {
	m.reverseCalls++
	return m.reverseResult, m.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestDescribeLocation_NilGeocoder(t *testing.T) {
	assert.Empty(t, DescribeLocation(context.Background(), nil, -6.2, 106.8167, discardLogger()))
}

func TestDescribeLocation_DisplayName(t *testing.T) {
	geo := &mockGeocoder{
		reverseResult: Place{Name: "Menteng", DisplayName: "Menteng, Jakarta Pusat, Indonesia"},
	}

	name := DescribeLocation(context.Background(), geo, -6.2, 106.8167, discardLogger())

	assert.Equal(t, "Menteng, Jakarta Pusat, Indonesia", name)
	assert.Equal(t, 1, geo.reverseCalls)
}

func TestDescribeLocation_FallsBackToName(t *testing.T) {
	geo := &mockGeocoder{reverseResult: Place{Name: "Coblong"}}

	assert.Equal(t, "Coblong", DescribeLocation(context.Background(), geo, -6.8915, 107.6107, discardLogger()))
}

func TestDescribeLocation_Error_GracefulDegradation(t *testing.T) {
	geo := &mockGeocoder{reverseErr: errors.New("rate limited")}

	name := DescribeLocation(context.Background(), geo, -6.2, 106.8167, discardLogger())

	assert.Empty(t, name)
	assert.Equal(t, 1, geo.reverseCalls)
}

func TestDescribeLocation_EmptyResult(t *testing.T) {
	geo := &mockGeocoder{}

	assert.Empty(t, DescribeLocation(context.Background(), geo, 0, 0, discardLogger()))
}

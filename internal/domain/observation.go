package domain

import (
	"time"
)

// SourceLabel is the provenance tag of a MoistureObservation.
type SourceLabel string

const (
	SourceLive             SourceLabel = "live"
	SourceArchiveGap       SourceLabel = "archive-gap"
	SourceOfflineSimulated SourceLabel = "offline-simulated"
	SourceConnectionError  SourceLabel = "connection-error"
)

// Degraded reports whether the observation came from a substitute value.
func (s SourceLabel) Degraded() bool {
	return s != SourceLive
}

const (
	// DateLayout is the ISO calendar date layout used for observation dates and keys.
	DateLayout = "2006-01-02"

	// ArchiveGapDate is the fixed historical date reported during an orbit gap.
	ArchiveGapDate = "2024-01-27"
	// ArchiveGapMoisture is the placeholder moisture reported during an orbit gap.
	ArchiveGapMoisture = 0.45

	// OfflineObservationLag is how far back the simulated observation is dated.
	OfflineObservationLag = 3

	liveMoistureMin    = 0.4
	liveMoistureMax    = 0.9
	offlineMoistureMin = 0.3
	offlineMoistureMax = 0.8
)

// MoistureObservation is the single soil-moisture reading a forecast is built on.
// ObservationDate is an ISO calendar date as reported by the source; it is kept
// as text because a malformed upstream date must not abort the forecast.
type MoistureObservation struct {
	Value           float64
	ObservationDate string
	Source          SourceLabel
}

// SourceStatus is the outcome of the one-time imagery source initialization.
type SourceStatus struct {
	Available bool
	Reason    string
}

// ImageryResult is the tagged answer of an ImagerySource lookup. Exactly one of
// LiveScene, ArchiveGap, Unreachable and ConnectionFailure implements it.
type ImageryResult interface {
	imageryResult()
}

// LiveScene is a scene found in the trailing window.
type LiveScene struct {
	SceneID    string
	AcquiredAt string // RFC 3339 timestamp from the catalog
}

// ArchiveGap means the catalog answered but had no scene in the window.
type ArchiveGap struct{}

// Unreachable means no connection to the catalog could be established
// (network failure, timeout, open breaker, rejected credentials).
type Unreachable struct {
	Reason string
}

// ConnectionFailure means the catalog was reached but the exchange failed
// part-way (unexpected status, undecodable body).
type ConnectionFailure struct {
	Err error
}

func (LiveScene) imageryResult()         {}
func (ArchiveGap) imageryResult()        {}
func (Unreachable) imageryResult()       {}
func (ConnectionFailure) imageryResult() {}

// ResolveObservation collapses an imagery result into a MoistureObservation.
// today must be a calendar date in the forecast time zone.
func ResolveObservation(d Digest, result ImageryResult, lat, lon float64, today time.Time) MoistureObservation {
	switch r := result.(type) {
	case LiveScene:
		moisture, _ := StableValue(d, r.SceneID, liveMoistureMin, liveMoistureMax)
		return MoistureObservation{
			Value:           moisture,
			ObservationDate: acquisitionDate(r.AcquiredAt, today.Location()),
			Source:          SourceLive,
		}
	case ArchiveGap:
		return MoistureObservation{
			Value:           ArchiveGapMoisture,
			ObservationDate: ArchiveGapDate,
			Source:          SourceArchiveGap,
		}
	case ConnectionFailure:
		obs := offlineObservation(d, lat, lon, today)
		obs.Source = SourceConnectionError
		return obs
	default:
		// Unreachable, and nil from a source that could not answer at all.
		return offlineObservation(d, lat, lon, today)
	}
}

func offlineObservation(d Digest, lat, lon float64, today time.Time) MoistureObservation {
	moisture, _ := StableValue(d, LocationKey(lat, lon), offlineMoistureMin, offlineMoistureMax)
	return MoistureObservation{
		Value:           moisture,
		ObservationDate: today.AddDate(0, 0, -OfflineObservationLag).Format(DateLayout),
		Source:          SourceOfflineSimulated,
	}
}

// acquisitionDate converts a catalog timestamp to a calendar date in loc.
// Unparsable timestamps are passed through untouched.
func acquisitionDate(ts string, loc *time.Location) string {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.In(loc).Format(DateLayout)
	}
	if t, err := time.Parse(DateLayout, ts); err == nil {
		return t.Format(DateLayout)
	}
	return ts
}

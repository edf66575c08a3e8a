package domain

import (
	"fmt"
	"math"
	"time"
)

// ForecastDays is the fixed length of the forecast window, starting today.
const ForecastDays = 3

// DailyForecast is one day of the window. Values are unrounded; rounding is a
// presentation concern (see NewForecastResponse).
type DailyForecast struct {
	Date         time.Time
	DayName      string
	RainfallMm   float64
	SoilMoisture float64
	RiskScore    float64
	RiskLevel    RiskLevel
}

// DisplayClass mirrors the risk level for styling.
func (d DailyForecast) DisplayClass() string {
	return d.RiskLevel.CSSClass()
}

// ForecastMetadata describes where the window's moisture came from.
type ForecastMetadata struct {
	SatelliteDate string
	DataSource    SourceLabel
	GapWarning    string // empty when the observation is from today or its date is malformed
	Generator     string
	PlaceName     string
}

// ForecastResult is the complete answer for one coordinate.
type ForecastResult struct {
	Days          []DailyForecast
	Metadata      ForecastMetadata
	OverallStatus RiskLevel
}

// BuildDay computes one forecast day from the window's observation.
func BuildDay(d Digest, lat, lon float64, date time.Time, obs MoistureObservation) DailyForecast {
	rain, _ := StableValue(d, RainfallKey(lat, lon, date.Format(DateLayout)), RainfallMin, RainfallMax)
	score := RiskScore(obs.Value, rain)
	return DailyForecast{
		Date:         date,
		DayName:      date.Weekday().String(),
		RainfallMm:   rain,
		SoilMoisture: obs.Value,
		RiskScore:    score,
		RiskLevel:    Classify(score),
	}
}

// GapNote describes how stale the observation is. It returns "" when the
// observation is from today (or later) or its date cannot be parsed.
func GapNote(observationDate string, today time.Time) string {
	days, err := DaysSince(observationDate, today)
	if err != nil || days <= 0 {
		return ""
	}
	return fmt.Sprintf("Note: latest satellite data was acquired %d day(s) ago (%s).", days, observationDate)
}

// ForecastResponse is the JSON shape served to existing consumers.
type ForecastResponse struct {
	Forecast     []DayResponse `json:"forecast"`
	Meta         MetaResponse  `json:"meta"`
	GlobalStatus RiskLevel     `json:"global_status"`
}

// DayResponse is one rounded forecast day.
type DayResponse struct {
	Date         string    `json:"date"`
	DayName      string    `json:"day_name"`
	RainMm       float64   `json:"rain_mm"`
	SoilMoisture float64   `json:"soil_moisture"`
	FloodRisk    float64   `json:"flood_risk"`
	Status       RiskLevel `json:"status"`
	CSSClass     string    `json:"css_class"`
}

// MetaResponse carries observation provenance.
type MetaResponse struct {
	SatelliteDate string `json:"satellite_date"`
	DataSource    string `json:"data_source"`
	GapNote       string `json:"gap_note"`
	Generator     string `json:"generator,omitempty"`
	PlaceName     string `json:"place_name,omitempty"`
}

// displayDateLayout matches the day label consumers render ("19 Oct").
const displayDateLayout = "02 Jan"

// NewForecastResponse rounds a result for display: rainfall and risk to one
// decimal, moisture to two.
func NewForecastResponse(r ForecastResult) ForecastResponse {
	days := make([]DayResponse, 0, len(r.Days))
	for _, d := range r.Days {
		days = append(days, DayResponse{
			Date:         d.Date.Format(displayDateLayout),
			DayName:      d.DayName,
			RainMm:       round(d.RainfallMm, 1),
			SoilMoisture: round(d.SoilMoisture, 2),
			FloodRisk:    round(d.RiskScore, 1),
			Status:       d.RiskLevel,
			CSSClass:     d.DisplayClass(),
		})
	}
	return ForecastResponse{
		Forecast: days,
		Meta: MetaResponse{
			SatelliteDate: r.Metadata.SatelliteDate,
			DataSource:    string(r.Metadata.DataSource),
			GapNote:       r.Metadata.GapWarning,
			Generator:     r.Metadata.Generator,
			PlaceName:     r.Metadata.PlaceName,
		},
		GlobalStatus: r.OverallStatus,
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

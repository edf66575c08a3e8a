package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// RiskLevel is the ordinal flood-risk class. Higher values are more severe.
type RiskLevel int

const (
	RiskSafe RiskLevel = iota
	RiskWatch
	RiskDanger
)

const (
	// RiskCeiling caps the score below 100, which is reserved as a sentinel.
	RiskCeiling = 98.5

	moistureWeight  = 40
	rainfallWeight  = 0.5
	dangerThreshold = 70
	watchThreshold  = 40

	// RainfallMin and RainfallMax bound the synthetic daily rainfall in millimetres.
	RainfallMin = 0
	RainfallMax = 80
)

// String returns the internal name (SAFE, WATCH, DANGER).
func (l RiskLevel) String() string {
	switch l {
	case RiskSafe:
		return "SAFE"
	case RiskWatch:
		return "WATCH"
	case RiskDanger:
		return "DANGER"
	default:
		return fmt.Sprintf("RiskLevel(%d)", int(l))
	}
}

// Label returns the wire token consumers expect.
func (l RiskLevel) Label() string {
	switch l {
	case RiskWatch:
		return "SIAGA"
	case RiskDanger:
		return "BAHAYA"
	default:
		return "AMAN"
	}
}

// CSSClass returns the display class mirroring the level.
func (l RiskLevel) CSSClass() string {
	switch l {
	case RiskWatch:
		return "warning"
	case RiskDanger:
		return "danger"
	default:
		return "safe"
	}
}

// MarshalJSON encodes the level as its wire label.
func (l RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Label())
}

// UnmarshalJSON accepts a wire label.
func (l *RiskLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRiskLabel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseRiskLabel maps a wire label back to a level.
func ParseRiskLabel(s string) (RiskLevel, error) {
	switch s {
	case "AMAN":
		return RiskSafe, nil
	case "SIAGA":
		return RiskWatch, nil
	case "BAHAYA":
		return RiskDanger, nil
	default:
		return RiskSafe, fmt.Errorf("unknown risk label %q", s)
	}
}

// RiskScore combines moisture and rainfall. Moisture dominates; the result is
// capped at RiskCeiling.
func RiskScore(moisture, rainfallMm float64) float64 {
	return math.Min(float64(moisture*moistureWeight)+float64(rainfallMm*rainfallWeight), RiskCeiling)
}

// Classify maps a risk score to a level. Both thresholds are exclusive.
func Classify(score float64) RiskLevel {
	switch {
	case score > dangerThreshold:
		return RiskDanger
	case score > watchThreshold:
		return RiskWatch
	default:
		return RiskSafe
	}
}

// Aggregate returns the most severe level. An empty input is SAFE.
func Aggregate(levels ...RiskLevel) RiskLevel {
	overall := RiskSafe
	for _, l := range levels {
		if l > overall {
			overall = l
		}
	}
	return overall
}

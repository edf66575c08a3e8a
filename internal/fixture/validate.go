package fixture

import (
	"context"
	"fmt"
	"reflect"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/forecast"
)

// Check is the outcome of one validation phase.
type Check struct {
	Name   string
	Errors []string
}

func (c *Check) errorf(format string, args ...any) {
	c.Errors = append(c.Errors, fmt.Sprintf(format, args...))
}

// Passed reports whether the check found no problems.
func (c *Check) Passed() bool { return len(c.Errors) == 0 }

// Validate recomputes every entry with engine, which must be built for the
// fixture's date and digest, and checks the forecast invariants.
func Validate(ctx context.Context, engine *forecast.Engine, f File) []*Check {
	determinism := &Check{Name: "Recomputed values match fixture"}
	window := &Check{Name: "Three chronological days"}
	scores := &Check{Name: "Scores within bounds"}
	classes := &Check{Name: "Levels consistent with scores"}
	overall := &Check{Name: "Global status is the worst day"}

	if engine.Digest() != f.Digest {
		determinism.errorf("engine digest %s does not match fixture digest %s", engine.Digest(), f.Digest)
	}

	for _, e := range f.Entries {
		label := e.Name
		if label == "" {
			label = fmt.Sprintf("(%v,%v)", e.Lat, e.Lon)
		}

		result, err := engine.Produce(ctx, e.Lat, e.Lon)
		if err != nil {
			determinism.errorf("%s: %v", label, err)
			continue
		}
		if got := domain.NewForecastResponse(result); !reflect.DeepEqual(got, e.Response) {
			determinism.errorf("%s: recomputed response differs from fixture", label)
		}

		checkWindow(window, label, result)
		levels := make([]domain.RiskLevel, 0, len(result.Days))
		for i, d := range result.Days {
			checkDay(scores, classes, fmt.Sprintf("%s day %d", label, i), d)
			levels = append(levels, d.RiskLevel)
		}
		if want := domain.Aggregate(levels...); result.OverallStatus != want {
			overall.errorf("%s: overall %s, worst day %s", label, result.OverallStatus, want)
		}

		fixtureLevels := make([]domain.RiskLevel, 0, len(e.Response.Forecast))
		for _, d := range e.Response.Forecast {
			fixtureLevels = append(fixtureLevels, d.Status)
		}
		if want := domain.Aggregate(fixtureLevels...); e.Response.GlobalStatus != want {
			overall.errorf("%s: fixture global_status %s, worst day %s", label, e.Response.GlobalStatus.Label(), want.Label())
		}
	}

	return []*Check{determinism, window, scores, classes, overall}
}

func checkWindow(c *Check, label string, r domain.ForecastResult) {
	if len(r.Days) != domain.ForecastDays {
		c.errorf("%s: %d days, want %d", label, len(r.Days), domain.ForecastDays)
		return
	}
	first := r.Days[0].Date
	for i, d := range r.Days {
		if want := first.AddDate(0, 0, i); !d.Date.Equal(want) {
			c.errorf("%s: day %d is %s, want %s", label, i, d.Date.Format(domain.DateLayout), want.Format(domain.DateLayout))
		}
		if d.DayName != d.Date.Weekday().String() {
			c.errorf("%s: day %d named %s, date is a %s", label, i, d.DayName, d.Date.Weekday())
		}
	}
}

func checkDay(scores, classes *Check, label string, d domain.DailyForecast) {
	if d.RiskScore < 0 || d.RiskScore > domain.RiskCeiling {
		scores.errorf("%s: risk %.4f outside [0, %v]", label, d.RiskScore, domain.RiskCeiling)
	}
	if d.RainfallMm < domain.RainfallMin || d.RainfallMm > domain.RainfallMax {
		scores.errorf("%s: rainfall %.4f outside [%d, %d]", label, d.RainfallMm, domain.RainfallMin, domain.RainfallMax)
	}
	if d.SoilMoisture < 0 || d.SoilMoisture > 1 {
		scores.errorf("%s: moisture %.4f outside [0, 1]", label, d.SoilMoisture)
	}
	if want := domain.Classify(d.RiskScore); d.RiskLevel != want {
		classes.errorf("%s: level %s for score %.4f, want %s", label, d.RiskLevel, d.RiskScore, want)
	}
}

// Command genfixture writes a golden forecast fixture. The engine runs offline
// under a fixed clock, so the output depends only on the date, the generator
// version and the coordinates.
//
// Usage:
//
//	go run ./cmd/genfixture \
//	  -date 2026-01-15 \
//	  -out testdata/forecast_260115.json \
//	  [-coords coords.csv] [-digest sha256]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/fixture"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dateFlag := flag.String("date", "", "forecast date (YYYY-MM-DD)")
	out := flag.String("out", "", "output path for the JSON fixture")
	coords := flag.String("coords", "", "optional CSV of lat,lon[,name] rows")
	digestFlag := flag.String("digest", string(domain.DigestMD5), "stable value generator (md5 or sha256)")
	flag.Parse()

	if *dateFlag == "" || *out == "" {
		flag.Usage()
		return errors.New("missing required flags: -date, -out")
	}

	date, err := fixture.ParseDate(*dateFlag)
	if err != nil {
		return err
	}
	digest, err := domain.ParseDigest(*digestFlag)
	if err != nil {
		return err
	}

	locations := fixture.DefaultLocations
	if *coords != "" {
		f, err := os.Open(*coords)
		if err != nil {
			return fmt.Errorf("open coords: %w", err)
		}
		locations, err = fixture.ReadLocations(f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("coords %s: %w", *coords, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine := fixture.NewEngine(date, digest, logger, observability.NewMetrics())

	f, err := fixture.Generate(context.Background(), engine, date, locations)
	if err != nil {
		return err
	}
	if err := fixture.Write(*out, f); err != nil {
		return fmt.Errorf("writing fixture: %w", err)
	}

	log.Printf("wrote %d forecasts for %s (%s) to %s", len(f.Entries), f.Date, digest.Version(), *out)
	printSummary(f)
	return nil
}

func printSummary(f fixture.File) {
	counts := map[domain.RiskLevel]int{}
	for _, e := range f.Entries {
		counts[e.Response.GlobalStatus]++
	}
	fmt.Printf("\n=== Global status ===\n")
	fmt.Printf("AMAN=%d SIAGA=%d BAHAYA=%d\n", counts[domain.RiskSafe], counts[domain.RiskWatch], counts[domain.RiskDanger])

	fmt.Printf("\n=== Per location ===\n")
	for _, e := range f.Entries {
		fmt.Printf("  %-12s (%8.4f, %9.4f) %-6s", e.Name, e.Lat, e.Lon, e.Response.GlobalStatus.Label())
		for _, d := range e.Response.Forecast {
			fmt.Printf("  %s risk=%5.1f", d.Date, d.FloodRisk)
		}
		fmt.Println()
	}
}

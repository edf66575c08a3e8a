// Command validate recomputes a golden forecast fixture and checks that every
// value is reproduced exactly and that each forecast respects the scoring
// rules. It exits non-zero on any failure.
//
// Usage:
//
//	go run ./cmd/validate -fixture testdata/forecast_260115.json
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/couchcryptid/flood-risk-service/internal/fixture"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

func main() {
	path := flag.String("fixture", "", "path to a fixture written by genfixture")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*path))
}

func run(path string) int {
	fmt.Println("=== Flood Forecast Fixture Validation ===")
	fmt.Println()

	f, err := fixture.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}
	date, err := fixture.ParseDate(f.Date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := fixture.NewEngine(date, f.Digest, logger, observability.NewMetrics())
	checks := fixture.Validate(context.Background(), engine, f)

	allPassed := true
	for _, c := range checks {
		status := "\033[32mPASS\033[0m"
		if !c.Passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(c.Errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", c.Name, status)
	}

	fmt.Println()
	fmt.Printf("Entries: %d, date %s, generator %s\n", len(f.Entries), f.Date, f.Digest.Version())

	for _, c := range checks {
		if c.Passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", c.Name)
		for i, e := range c.Errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

package domain

import (
	"crypto/md5" //nolint:gosec // md5 is a value generator here, not a security primitive
	"crypto/sha256"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// Digest selects the content digest behind StableValue. Each value is a
// generator version: changing it changes every derived number.
type Digest string

const (
	// DigestMD5 is generator v1, compatible with previously issued forecasts.
	DigestMD5 Digest = "md5"
	// DigestSHA256 is generator v2 and uses the leading 128 bits of SHA-256.
	DigestSHA256 Digest = "sha256"
)

// ParseDigest validates a configured digest name.
func ParseDigest(s string) (Digest, error) {
	switch d := Digest(strings.ToLower(strings.TrimSpace(s))); d {
	case DigestMD5, DigestSHA256:
		return d, nil
	default:
		return "", fmt.Errorf("unknown stable digest %q", s)
	}
}

// Version returns the label recorded in forecast metadata.
func (d Digest) Version() string {
	switch d {
	case DigestSHA256:
		return "sha256-v2"
	default:
		return "md5-v1"
	}
}

// InvalidRangeError is returned when the requested bounds are inverted or NaN.
type InvalidRangeError struct {
	Min float64
	Max float64
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid stable value range [%g, %g]", e.Min, e.Max)
}

// two128 is 2^128, the size of the digest space.
var two128 = new(big.Float).SetMantExp(big.NewFloat(1), 128)

// StableValue maps key deterministically into [lo, hi). It is a pure function
// of (digest, key, lo, hi).
func StableValue(d Digest, key string, lo, hi float64) (float64, error) {
	if !(lo <= hi) {
		return 0, &InvalidRangeError{Min: lo, Max: hi}
	}
	// The explicit conversion forbids a fused multiply-add, keeping results
	// identical across architectures.
	return lo + float64(unitInterval(d, key)*(hi-lo)), nil
}

// unitInterval returns D / 2^128 rounded to the nearest float64.
func unitInterval(d Digest, key string) float64 {
	var sum []byte
	switch d {
	case DigestSHA256:
		s := sha256.Sum256([]byte(key))
		sum = s[:16]
	default:
		s := md5.Sum([]byte(key)) //nolint:gosec
		sum = s[:]
	}

	n := new(big.Int).SetBytes(sum)
	u, _ := new(big.Float).Quo(new(big.Float).SetInt(n), two128).Float64()

	// D close to 2^128 can round up to exactly 1.
	if u >= 1 {
		u = math.Nextafter(1, 0)
	}
	return u
}

// LocationKey is the per-location fallback key, e.g. "-6.2000_106.8167".
func LocationKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f_%.4f", lat, lon)
}

// RainfallKey is the per-day rainfall key: coordinate reprs followed by the ISO date.
func RainfallKey(lat, lon float64, isoDate string) string {
	return coordRepr(lat) + coordRepr(lon) + isoDate
}

// coordRepr formats a coordinate in shortest round-trip form, keeping a
// trailing ".0" on integral values so keys match those already issued.
func coordRepr(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

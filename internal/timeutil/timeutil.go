// Package timeutil centralizes timestamp normalization for scan-time
// comparisons. Cached scan times and book modification times come from two
// different databases with different offset conventions; every comparison
// must go through NormalizeUTC on both sides.
package timeutil

import "time"

// NormalizeUTC converts a timestamp to UTC. Zero values pass through
// unchanged so callers can keep using IsZero as the "never" sentinel.
func NormalizeUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// After reports whether a is strictly after b once both are normalized.
func After(a, b time.Time) bool {
	return NormalizeUTC(a).After(NormalizeUTC(b))
}

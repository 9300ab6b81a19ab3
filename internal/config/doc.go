// Package config loads, normalizes, and validates shelfaudit configuration
// from TOML files with sensible defaults for unset values.
package config

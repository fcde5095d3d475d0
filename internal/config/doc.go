// Package config loads, normalizes, and validates coverscan's TOML
// configuration.
//
// Configuration covers the external service boundaries (catalog search,
// vision analyzer), the scanner trigger thresholds, and the correction cache.
// Load applies defaults first, then decodes the file over them, expands
// paths, and validates the result so downstream packages can trust every
// field without re-checking.
package config

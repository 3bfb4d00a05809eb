// Package config loads, normalizes, and validates veriflow's TOML
// configuration. Defaults are defined in defaults.go; normalize repairs
// missing or out-of-range values and expands paths, while Validate rejects
// values that cannot be repaired.
package config

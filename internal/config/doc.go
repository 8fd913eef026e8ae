// Package config loads, normalizes, and validates the TOML configuration
// that drives the vitrine daemon and CLI.
package config

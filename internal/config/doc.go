// Package config loads, normalizes, and validates the scanner's TOML
// configuration and carries defaults for every section.
package config

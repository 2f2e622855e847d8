// Package logging wraps log/slog with the scanner's console and JSON
// handlers, typed attribute helpers, and standardized field keys.
package logging

// Package services defines the error taxonomy shared by the scanner's
// external-service clients and pipeline stages, plus context helpers for
// propagating scan identifiers into logs.
package services

// Package telemetry delivers scan outcome and feedback records to an
// external collaborator. Delivery is best-effort; a failed emit is logged
// and never fails the scan, since the record also persists locally.
package telemetry

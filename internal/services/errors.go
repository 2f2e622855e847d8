package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks transport-level failures (timeouts, 5xx, rate
	// limits) that the caller may retry.
	ErrTransient = errors.New("transient failure")
	// ErrQuota marks provider billing/credit failures; retrying without
	// operator action will not help.
	ErrQuota = errors.New("quota exhausted")
	// ErrBudgetExceeded marks the daily spend cap; terminal until the UTC
	// day rolls over or the cap is raised.
	ErrBudgetExceeded = errors.New("daily budget exceeded")
	// ErrUnparsable marks a remote-model response that failed structured
	// extraction; terminal for that call.
	ErrUnparsable = errors.New("unparsable response")
	// ErrValidation marks bad input or configuration.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing resource.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the caller may usefully retry the operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

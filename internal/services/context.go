package services

import "context"

type contextKey string

const (
	scanIDKey contextKey = "scan_id"
	stageKey  contextKey = "stage"
)

// WithScanID stores the scan correlation identifier on the context.
func WithScanID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, scanIDKey, id)
}

// ScanIDFromContext extracts the scan identifier, if any.
func ScanIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(scanIDKey).(string)
	return id, ok && id != ""
}

// WithStage stores the pipeline stage name on the context.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext extracts the pipeline stage name, if any.
func StageFromContext(ctx context.Context) (string, bool) {
	stage, ok := ctx.Value(stageKey).(string)
	return stage, ok && stage != ""
}

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	eventsFileName   = "scanner-events.jsonl"
	feedbackFileName = "scanner-feedback.jsonl"
)

// fileService appends events as JSON lines. A file lock guards appends so
// concurrent scans from separate processes do not interleave lines.
type fileService struct {
	dir    string
	logger *slog.Logger
}

func newFileService(dir string, logger *slog.Logger) *fileService {
	return &fileService{dir: dir, logger: logger}
}

func (s *fileService) PublishScanOutcome(ctx context.Context, payload any) error {
	return s.append(ctx, eventsFileName, KindScanOutcome, payload)
}

func (s *fileService) PublishFeedback(ctx context.Context, payload any) error {
	return s.append(ctx, feedbackFileName, KindFeedback, payload)
}

func (s *fileService) append(ctx context.Context, fileName, kind string, payload any) error {
	line, err := json.Marshal(map[string]any{"kind": kind, "payload": payload})
	if err != nil {
		return fmt.Errorf("encode telemetry event: %w", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure telemetry directory: %w", err)
	}
	path := filepath.Join(s.dir, fileName)

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return fmt.Errorf("lock telemetry file: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock telemetry file %s: not acquired", path)
	}
	defer func() { _ = lock.Unlock() }()

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(line); err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

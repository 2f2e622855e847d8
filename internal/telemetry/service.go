package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cardscan/internal/config"
	"cardscan/internal/logging"
)

// Event kinds accepted by the collaborator.
const (
	KindScanOutcome = "scan_outcome"
	KindFeedback    = "feedback"
)

// Service defines the telemetry surface exposed to the scan coordinator.
type Service interface {
	PublishScanOutcome(ctx context.Context, payload any) error
	PublishFeedback(ctx context.Context, payload any) error
}

// NewService builds a telemetry service from config. A configured directory
// wins over a webhook; with neither, events are dropped.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	log := logging.NewComponentLogger(logger, "telemetry")
	if cfg != nil {
		if dir := strings.TrimSpace(cfg.Telemetry.Dir); dir != "" {
			return newFileService(dir, log)
		}
		if url := strings.TrimSpace(cfg.Telemetry.WebhookURL); url != "" {
			return newWebhookService(url, &http.Client{Timeout: 10 * time.Second}, log)
		}
	}
	return noopService{}
}

type noopService struct{}

func (noopService) PublishScanOutcome(context.Context, any) error { return nil }

func (noopService) PublishFeedback(context.Context, any) error { return nil }

// NewNop returns a telemetry service that drops everything.
func NewNop() Service { return noopService{} }

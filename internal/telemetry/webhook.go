package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// webhookService POSTs {kind, payload} JSON envelopes to a collaborator URL.
type webhookService struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

func newWebhookService(url string, client *http.Client, logger *slog.Logger) *webhookService {
	return &webhookService{url: url, client: client, logger: logger}
}

func (s *webhookService) PublishScanOutcome(ctx context.Context, payload any) error {
	return s.post(ctx, KindScanOutcome, payload)
}

func (s *webhookService) PublishFeedback(ctx context.Context, payload any) error {
	return s.post(ctx, KindFeedback, payload)
}

func (s *webhookService) post(ctx context.Context, kind string, payload any) error {
	body, err := json.Marshal(map[string]any{"kind": kind, "payload": payload})
	if err != nil {
		return fmt.Errorf("encode telemetry event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telemetry request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver telemetry event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("deliver telemetry event: status %d", resp.StatusCode)
	}
	return nil
}

package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"cardscan/internal/config"
	"cardscan/internal/logging"
)

func TestFileServiceAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	svc := newFileService(dir, logging.NewNop())
	ctx := context.Background()

	if err := svc.PublishScanOutcome(ctx, map[string]string{"scan_id": "a"}); err != nil {
		t.Fatalf("PublishScanOutcome: %v", err)
	}
	if err := svc.PublishScanOutcome(ctx, map[string]string{"scan_id": "b"}); err != nil {
		t.Fatalf("PublishScanOutcome: %v", err)
	}
	if err := svc.PublishFeedback(ctx, map[string]string{"scan_id": "a", "verdict": "correct"}); err != nil {
		t.Fatalf("PublishFeedback: %v", err)
	}

	events, err := os.Open(filepath.Join(dir, eventsFileName))
	if err != nil {
		t.Fatalf("open events file: %v", err)
	}
	defer events.Close()

	var lines int
	scanner := bufio.NewScanner(events)
	for scanner.Scan() {
		var envelope struct {
			Kind    string            `json:"kind"`
			Payload map[string]string `json:"payload"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &envelope); err != nil {
			t.Fatalf("line %d not JSON: %v", lines, err)
		}
		if envelope.Kind != KindScanOutcome {
			t.Fatalf("unexpected kind %q", envelope.Kind)
		}
		lines++
	}
	if lines != 2 {
		t.Fatalf("expected 2 event lines, got %d", lines)
	}

	if _, err := os.Stat(filepath.Join(dir, feedbackFileName)); err != nil {
		t.Fatalf("feedback file missing: %v", err)
	}
}

func TestWebhookServicePostsEnvelope(t *testing.T) {
	var received struct {
		Kind    string         `json:"kind"`
		Payload map[string]any `json:"payload"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := newWebhookService(server.URL, server.Client(), logging.NewNop())
	if err := svc.PublishFeedback(context.Background(), map[string]any{"verdict": "incorrect"}); err != nil {
		t.Fatalf("PublishFeedback: %v", err)
	}
	if received.Kind != KindFeedback || received.Payload["verdict"] != "incorrect" {
		t.Fatalf("unexpected envelope: %+v", received)
	}
}

func TestNewServicePrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.Telemetry.Dir = t.TempDir()
	cfg.Telemetry.WebhookURL = "https://example.test/hook"
	if _, ok := NewService(&cfg, nil).(*fileService); !ok {
		t.Fatal("directory sink should win over webhook")
	}

	cfg.Telemetry.Dir = ""
	if _, ok := NewService(&cfg, nil).(*webhookService); !ok {
		t.Fatal("webhook sink expected when only webhook configured")
	}

	cfg.Telemetry.WebhookURL = ""
	if _, ok := NewService(&cfg, nil).(noopService); !ok {
		t.Fatal("noop expected when nothing configured")
	}
}

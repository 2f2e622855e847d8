package vision

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardscan/internal/services"
)

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing auth header, got %q", got)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func completionBody(t *testing.T, content string, usage Usage) string {
	t.Helper()
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": usage,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return string(data)
}

var testImage = []byte{0xFF, 0xD8, 0xFF, 0xE0}

func TestExtractCardParsesStructuredRecord(t *testing.T) {
	content := `{"language":"english","name":"Pikachu","name_english":"Pikachu","set_name":"151","set_name_english":"151","card_number":"025/025","rarity":"rare","confidence":92,"alternatives":["Pikachu ex"],"reasoning":"clear print"}`
	server := newTestServer(t, http.StatusOK, completionBody(t, content, Usage{PromptTokens: 900, CompletionTokens: 120}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	extraction, usage, err := client.ExtractCard(context.Background(), "openai/gpt-4o-mini", testImage, "auto")
	if err != nil {
		t.Fatalf("ExtractCard: %v", err)
	}
	if extraction.Name != "Pikachu" || extraction.CardNumber != "025/025" || extraction.Confidence != 92 {
		t.Fatalf("unexpected extraction: %+v", extraction)
	}
	if usage.PromptTokens != 900 || usage.CompletionTokens != 120 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestExtractCardToleratesCodeFences(t *testing.T) {
	content := "```json\n{\"name\":\"Pikachu\",\"confidence\":88}\n```"
	server := newTestServer(t, http.StatusOK, completionBody(t, content, Usage{}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	extraction, _, err := client.ExtractCard(context.Background(), "openai/gpt-4o-mini", testImage, "")
	if err != nil {
		t.Fatalf("ExtractCard: %v", err)
	}
	if extraction.Name != "Pikachu" || extraction.Confidence != 88 {
		t.Fatalf("unexpected extraction: %+v", extraction)
	}
}

func TestExtractCardUnparsableContent(t *testing.T) {
	server := newTestServer(t, http.StatusOK, completionBody(t, "the card looks like a pikachu", Usage{}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	_, _, err := client.ExtractCard(context.Background(), "openai/gpt-4o-mini", testImage, "")
	if !errors.Is(err, services.ErrUnparsable) {
		t.Fatalf("expected unparsable error, got %v", err)
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		marker error
	}{
		{http.StatusPaymentRequired, services.ErrQuota},
		{http.StatusTooManyRequests, services.ErrTransient},
		{http.StatusInternalServerError, services.ErrTransient},
	}
	for _, tc := range cases {
		server := newTestServer(t, tc.status, `{"error":{"message":"nope"}}`)
		client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
		_, _, err := client.ExtractCard(context.Background(), "openai/gpt-4o-mini", testImage, "")
		server.Close()
		if !errors.Is(err, tc.marker) {
			t.Fatalf("status %d: expected marker %v, got %v", tc.status, tc.marker, err)
		}
	}
}

func TestBadRequestIsNotRetryable(t *testing.T) {
	server := newTestServer(t, http.StatusBadRequest, `{"error":{"message":"bad payload"}}`)
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	_, _, err := client.ExtractCard(context.Background(), "openai/gpt-4o-mini", testImage, "")
	if err == nil {
		t.Fatal("expected error")
	}
	if services.Retryable(err) {
		t.Fatalf("400 must not be retryable: %v", err)
	}
}

func TestReadSetNumber(t *testing.T) {
	server := newTestServer(t, http.StatusOK, completionBody(t, `{"card_number":"025/025","confidence":90}`, Usage{}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test-key", BaseURL: server.URL})
	reading, _, err := client.ReadSetNumber(context.Background(), "openai/gpt-4o-mini", testImage)
	if err != nil {
		t.Fatalf("ReadSetNumber: %v", err)
	}
	if reading.Number != "025/025" || reading.Confidence != 90 {
		t.Fatalf("unexpected reading: %+v", reading)
	}
}

func TestRateForSelectsMiniBeforeFull(t *testing.T) {
	if got := RateFor("openai/gpt-4o-mini"); got != rateMini {
		t.Fatalf("unexpected mini rate: %+v", got)
	}
	if got := RateFor("openai/gpt-4o"); got != rateFull {
		t.Fatalf("unexpected full rate: %+v", got)
	}
	if got := RateFor("anthropic/other"); got != rateDefault {
		t.Fatalf("unexpected default rate: %+v", got)
	}
}

func TestEstimateCost(t *testing.T) {
	usage := Usage{PromptTokens: 1000, CompletionTokens: 500}
	got := EstimateCost("openai/gpt-4o-mini", usage)
	want := 0.00015 + 0.0003
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("EstimateCost = %v, want %v", got, want)
	}
}

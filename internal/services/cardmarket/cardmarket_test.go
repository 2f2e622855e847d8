package cardmarket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardscan/internal/services"
)

func TestSearchParsesCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("name") != "Pikachu" || r.URL.Query().Get("number") != "025/025" {
			t.Errorf("unexpected query: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"results":[{"id":"p1","name":"Pikachu","number":"025/025","set_name":"151","currency":"USD","prices":{"avg30":4.5,"avg7":4.7}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	candidates, err := client.Search(context.Background(), "Pikachu", "025/025")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	got := candidates[0]
	if got.Name != "Pikachu" || got.Currency != "USD" || got.Stats.Avg30 != 4.5 {
		t.Fatalf("unexpected candidate: %+v", got)
	}
}

func TestSearchUnconfiguredSourceIsTransient(t *testing.T) {
	client := NewClient("", 0, nil)
	_, err := client.Search(context.Background(), "Pikachu", "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSearchServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	_, err := client.Search(context.Background(), "Pikachu", "")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"cardscan/internal/services"
)

func TestMineNumbersDeduplicatesInOrder(t *testing.T) {
	text := "Pikachu 025/025 appears in 151; reprint 025/025; promo 001/034."
	got := MineNumbers(text)
	want := []string{"025/025", "001/034"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("MineNumbers = %v, want %v", got, want)
	}
}

func TestMineNumbersIgnoresMalformedTokens(t *testing.T) {
	text := "1234/109 is too long, 12/3 is too short a denominator, 134/109 is fine"
	got := MineNumbers(text)
	if len(got) != 1 || got[0] != "134/109" {
		t.Fatalf("MineNumbers = %v, want only 134/109", got)
	}
}

func TestSearchNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "Pikachu 151" {
			t.Errorf("unexpected query: %q", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte("Results: Pikachu 025/025 (151), Pikachu ex 026/025"))
	}))
	defer server.Close()

	client := NewClient(server.URL, 0, nil)
	numbers, err := client.SearchNumbers(context.Background(), "Pikachu 151")
	if err != nil {
		t.Fatalf("SearchNumbers: %v", err)
	}
	want := []string{"025/025", "026/025"}
	if !reflect.DeepEqual(numbers, want) {
		t.Fatalf("numbers = %v, want %v", numbers, want)
	}
}

func TestSearchNumbersUnconfiguredSourceIsTransient(t *testing.T) {
	client := NewClient("", 0, nil)
	_, err := client.SearchNumbers(context.Background(), "Pikachu")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

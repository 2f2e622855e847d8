package pricing

import (
	"context"
	"errors"
	"testing"

	"cardscan/internal/services/cardmarket"
)

type searchKey struct {
	name   string
	number string
}

type fakeSearcher struct {
	results map[searchKey][]cardmarket.Candidate
	err     error
	calls   []searchKey
}

func (f *fakeSearcher) Search(_ context.Context, name, number string) ([]cardmarket.Candidate, error) {
	key := searchKey{name, number}
	f.calls = append(f.calls, key)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[key], nil
}

type fakeConverter struct {
	rate  float64
	err   error
	calls int
}

func (f *fakeConverter) Convert(_ context.Context, amount float64, _, _ string) (float64, float64, error) {
	f.calls++
	if f.err != nil {
		return 0, 0, f.err
	}
	return amount * f.rate, f.rate, nil
}

func pikachuCandidate() cardmarket.Candidate {
	return cardmarket.Candidate{
		ID:       "pm-151-25",
		Name:     "Pikachu",
		Number:   "025/025",
		SetName:  "151",
		Currency: "USD",
		Stats:    cardmarket.PriceStats{Avg30: 4.50, Avg7: 4.80},
	}
}

func TestResolveConvertsBestStatistic(t *testing.T) {
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Pikachu", "025/025"}: {pikachuCandidate()},
	}}
	converter := &fakeConverter{rate: 0.92}
	r := New(searcher, converter, Options{DisplayCurrency: "EUR"})

	res := r.Resolve(context.Background(), "Pikachu", "025/025", "151")
	if res.Reason != ReasonPriced || res.Quote == nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	q := res.Quote
	if q.Source != "avg30" || q.NativeValue != 4.50 || q.NativeCurrency != "USD" {
		t.Fatalf("wrong statistic selected: %+v", q)
	}
	if q.Currency != "EUR" || q.Value != 4.50*0.92 || q.FXRate != 0.92 {
		t.Fatalf("conversion not applied: %+v", q)
	}
	wantScore := scoreNameExact + scoreNumberExact + scoreNumeratorMatch + scoreSetContainment
	if q.MatchConfidence != wantScore {
		t.Fatalf("match confidence %d, want %d", q.MatchConfidence, wantScore)
	}
}

func TestResolveFXFailureKeepsNativeValue(t *testing.T) {
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Pikachu", "025/025"}: {pikachuCandidate()},
	}}
	converter := &fakeConverter{err: errors.New("fx offline")}
	r := New(searcher, converter, Options{DisplayCurrency: "EUR"})

	res := r.Resolve(context.Background(), "Pikachu", "025/025", "151")
	if res.Reason != ReasonPriced || res.Quote == nil {
		t.Fatalf("FX failure must not block the quote: %+v", res)
	}
	if res.Quote.Value != 4.50 || res.Quote.Currency != "USD" || res.Quote.FXRate != 0 {
		t.Fatalf("expected unconverted native value: %+v", res.Quote)
	}
}

func TestResolveSameCurrencySkipsConversion(t *testing.T) {
	candidate := pikachuCandidate()
	candidate.Currency = "EUR"
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Pikachu", "025/025"}: {candidate},
	}}
	converter := &fakeConverter{rate: 0.92}
	r := New(searcher, converter, Options{DisplayCurrency: "EUR"})

	res := r.Resolve(context.Background(), "Pikachu", "025/025", "151")
	if res.Quote == nil || res.Quote.Value != 4.50 || res.Quote.Currency != "EUR" {
		t.Fatalf("unexpected quote: %+v", res.Quote)
	}
	if converter.calls != 0 {
		t.Fatalf("same-currency quote must not hit FX, calls: %d", converter.calls)
	}
}

func TestResolveFallsBackThroughQueryVariants(t *testing.T) {
	candidate := pikachuCandidate()
	candidate.Name = "Charizard"
	candidate.Number = "006/165"
	candidate.SetName = "151"
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Charizard", "006/165"}: {candidate},
	}}
	r := New(searcher, &fakeConverter{rate: 1}, Options{DisplayCurrency: "USD"})

	res := r.Resolve(context.Background(), "Charizard ex", "006/165", "151")
	if res.Reason != ReasonPriced {
		t.Fatalf("unexpected result: %+v", res)
	}
	want := []searchKey{
		{"Charizard ex", "006/165"},
		{"Charizard ex", ""},
		{"Charizard", "006/165"},
	}
	if len(searcher.calls) != len(want) {
		t.Fatalf("unexpected search calls: %v", searcher.calls)
	}
	for i, call := range want {
		if searcher.calls[i] != call {
			t.Fatalf("call %d = %v, want %v", i, searcher.calls[i], call)
		}
	}
}

func TestResolveRejectsWeakMatch(t *testing.T) {
	candidate := pikachuCandidate()
	candidate.Name = "Totally Different Card"
	candidate.Number = "001/099"
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Pikachu", "025/025"}: {candidate},
	}}
	r := New(searcher, nil, Options{DisplayCurrency: "EUR"})

	res := r.Resolve(context.Background(), "Pikachu", "025/025", "151")
	if res.Reason != ReasonNoConfidentMatch || res.Quote != nil {
		t.Fatalf("weak match must be rejected: %+v", res)
	}
}

func TestResolveStatisticPriority(t *testing.T) {
	candidate := pikachuCandidate()
	candidate.Stats = cardmarket.PriceStats{Trend: 3.20, Average: 5.00}
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Pikachu", "025/025"}: {candidate},
	}}
	r := New(searcher, nil, Options{DisplayCurrency: "USD"})

	res := r.Resolve(context.Background(), "Pikachu", "025/025", "151")
	if res.Quote == nil || res.Quote.Source != "trend" || res.Quote.Value != 3.20 {
		t.Fatalf("expected trend statistic: %+v", res.Quote)
	}
}

func TestResolveNoUsableStatistic(t *testing.T) {
	candidate := pikachuCandidate()
	candidate.Stats = cardmarket.PriceStats{}
	searcher := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{
		{"Pikachu", "025/025"}: {candidate},
	}}
	r := New(searcher, nil, Options{DisplayCurrency: "USD"})

	res := r.Resolve(context.Background(), "Pikachu", "025/025", "151")
	if res.Reason != ReasonNoUsableStatistic || res.Quote != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestResolveNoResultsAndSourceUnavailable(t *testing.T) {
	empty := &fakeSearcher{results: map[searchKey][]cardmarket.Candidate{}}
	r := New(empty, nil, Options{DisplayCurrency: "EUR"})
	if res := r.Resolve(context.Background(), "Pikachu", "025/025", "151"); res.Reason != ReasonNoResults {
		t.Fatalf("expected no-results, got %+v", res)
	}

	broken := &fakeSearcher{err: errors.New("dial tcp: refused")}
	r = New(broken, nil, Options{DisplayCurrency: "EUR"})
	if res := r.Resolve(context.Background(), "Pikachu", "025/025", "151"); res.Reason != ReasonSourceUnavailable {
		t.Fatalf("expected source-unavailable, got %+v", res)
	}
}

func TestNumeratorsEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"025/025", "025/025", true},
		{"025/102", "25/025", true},
		{"13/102", "134/102", false},
		{"134/102", "13/102", false},
		{"001/099", "025/025", false},
		{"", "025/025", false},
	}
	for _, tc := range cases {
		if got := numeratorsEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("numeratorsEqual(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestScoringRejectsNumeratorPrefix(t *testing.T) {
	candidate := pikachuCandidate()
	candidate.Name = "Unrelated"
	candidate.Number = "134/102"
	candidate.SetName = "Other"
	if score := scoreCandidate(candidate, "Pikachu", "13/102", "151"); score != 0 {
		t.Fatalf("prefix-only numerator must not score, got %d", score)
	}
}

func TestStripMarkers(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Charizard ex", "Charizard"},
		{"Pikachu VMAX", "Pikachu"},
		{"Umbreon VSTAR", "Umbreon"},
		{"Mewtwo Lv.X", "Mewtwo"},
		{"Radiant Greninja", "Greninja"},
		{"Pikachu", "Pikachu"},
	}
	for _, tc := range cases {
		if got := stripMarkers(tc.in); got != tc.want {
			t.Errorf("stripMarkers(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

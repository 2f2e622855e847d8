package scan

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"cardscan/internal/identify"
	"cardscan/internal/pricing"
	"cardscan/internal/services"
	"cardscan/internal/services/cardmarket"
	"cardscan/internal/services/vision"
	"cardscan/internal/setnumber"
	"cardscan/internal/store"
)

type fakeIdentifier struct {
	result   *identify.Result
	err      error
	attached []setnumber.Resolution
}

func (f *fakeIdentifier) Identify(context.Context, image.Image) (*identify.Result, error) {
	return f.result, f.err
}

func (f *fakeIdentifier) AttachResolution(_ context.Context, result *identify.Result, resolution setnumber.Resolution) error {
	result.Resolution = &resolution
	f.attached = append(f.attached, resolution)
	return nil
}

// cachingIdentifier mimics the orchestrator's cache: repeat calls come back
// cached at zero cost, carrying whatever resolution was attached.
type cachingIdentifier struct {
	result     *identify.Result
	resolution *setnumber.Resolution
	calls      int
}

func (c *cachingIdentifier) Identify(context.Context, image.Image) (*identify.Result, error) {
	c.calls++
	copied := *c.result
	if c.calls > 1 {
		copied.Cached = true
		copied.EstimatedCost = 0
		copied.Resolution = c.resolution
	}
	return &copied, nil
}

func (c *cachingIdentifier) AttachResolution(_ context.Context, _ *identify.Result, resolution setnumber.Resolution) error {
	c.resolution = &resolution
	return nil
}

type fakeNumbers struct {
	resolution setnumber.Resolution
	calls      int
}

func (f *fakeNumbers) Resolve(context.Context, image.Image, string, string, string) setnumber.Resolution {
	f.calls++
	return f.resolution
}

type fakePrices struct {
	result pricing.Result
	calls  int
}

func (f *fakePrices) Resolve(context.Context, string, string, string) pricing.Result {
	f.calls++
	return f.result
}

type memRecords struct {
	records  []*store.ScanRecord
	feedback map[string][3]string
	spend    map[string]float64
}

func newMemRecords() *memRecords {
	return &memRecords{feedback: map[string][3]string{}, spend: map[string]float64{}}
}

func (m *memRecords) InsertScanRecord(_ context.Context, record *store.ScanRecord) error {
	m.records = append(m.records, record)
	return nil
}

func (m *memRecords) AnnotateFeedback(_ context.Context, id, verdict, label string, at time.Time) error {
	for _, record := range m.records {
		if record.ID == id {
			m.feedback[id] = [3]string{verdict, label, at.Format(time.RFC3339)}
			return nil
		}
	}
	return services.Wrap(services.ErrNotFound, "record", "annotate feedback", id, nil)
}

func (m *memRecords) AddSpend(_ context.Context, day string, amount float64) error {
	m.spend[day] += amount
	return nil
}

type recordingTelemetry struct {
	outcomes []any
	feedback []any
	err      error
}

func (r *recordingTelemetry) PublishScanOutcome(_ context.Context, payload any) error {
	if r.err != nil {
		return r.err
	}
	r.outcomes = append(r.outcomes, payload)
	return nil
}

func (r *recordingTelemetry) PublishFeedback(_ context.Context, payload any) error {
	if r.err != nil {
		return r.err
	}
	r.feedback = append(r.feedback, payload)
	return nil
}

func pikachuResult() *identify.Result {
	return &identify.Result{
		Name:          "Pikachu",
		NameEnglish:   "Pikachu",
		SetName:       "151",
		CardNumber:    "025/025",
		Confidence:    92,
		Model:         "openai/gpt-4o-mini",
		EstimatedCost: 0.0012,
		Verification:  identify.Verification{Verified: true, CardID: "sv151-25", Score: 120},
	}
}

func scanImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 50, 70))
	for y := 0; y < 70; y++ {
		for x := 0; x < 50; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 5), uint8(y * 3), 64, 255})
		}
	}
	return img
}

func testOptions() Options {
	return Options{
		Clock:     func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) },
		NewScanID: func() string { return "scan-1" },
	}
}

func TestScanVerifiedPathProducesQuote(t *testing.T) {
	numbers := &fakeNumbers{resolution: setnumber.Resolution{
		Number: "025/025", Verified: true, Reason: setnumber.ReasonCropAuthoritative,
		CropConfidence: 90, CostUSD: 0.0003,
	}}
	prices := &fakePrices{result: pricing.Result{
		Reason: pricing.ReasonPriced,
		Quote:  &pricing.Quote{Value: 4.14, Currency: "EUR", Source: "avg30", NativeValue: 4.50, NativeCurrency: "USD", FXRate: 0.92},
	}}
	records := newMemRecords()
	events := &recordingTelemetry{}
	c, err := New(&fakeIdentifier{result: pikachuResult()}, numbers, prices, records, events, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if outcome.Status != StatusComplete || !outcome.Priced() {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if outcome.CostUSD != 0.0012+0.0003 {
		t.Fatalf("cost must sum identification and crop re-query: %v", outcome.CostUSD)
	}
	if prices.calls != 1 {
		t.Fatalf("pricing called %d times", prices.calls)
	}
	if records.spend["2026-08-29"] != 0.0003 {
		t.Fatalf("crop spend not recorded: %v", records.spend)
	}
	if len(records.records) != 1 {
		t.Fatalf("expected one persisted record, got %d", len(records.records))
	}
	record := records.records[0]
	if record.Status != StatusComplete || record.PriceValue != 4.14 || record.PriceCurrency != "EUR" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if record.VerificationReason != setnumber.ReasonCropAuthoritative || !record.NumberVerified {
		t.Fatalf("verification not persisted: %+v", record)
	}
	if len(events.outcomes) != 1 {
		t.Fatalf("outcome not published: %+v", events.outcomes)
	}
}

func TestScanRepeatUsesCachedResolution(t *testing.T) {
	identifier := &cachingIdentifier{result: pikachuResult()}
	numbers := &fakeNumbers{resolution: setnumber.Resolution{
		Number: "025/025", Verified: true, Reason: setnumber.ReasonCropAuthoritative,
		CropConfidence: 90, CostUSD: 0.0003,
	}}
	prices := &fakePrices{result: pricing.Result{
		Reason: pricing.ReasonPriced,
		Quote:  &pricing.Quote{Value: 4.14, Currency: "EUR", Source: "avg30"},
	}}
	records := newMemRecords()
	c, err := New(identifier, numbers, prices, records, &recordingTelemetry{}, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	first, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	if first.Status != StatusComplete || identifier.resolution == nil {
		t.Fatalf("verified resolution must be attached to the cache: %+v", first)
	}
	spentAfterFirst := records.spend["2026-08-29"]

	second, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}
	if second.Status != StatusComplete || !second.Number.Verified {
		t.Fatalf("cached scan must stay verified: %+v", second)
	}
	if numbers.calls != 1 {
		t.Fatalf("cached resolution must skip the crop re-query, calls: %d", numbers.calls)
	}
	if second.CostUSD != 0 {
		t.Fatalf("cached scan must charge nothing, got %v", second.CostUSD)
	}
	if records.spend["2026-08-29"] != spentAfterFirst {
		t.Fatalf("cached scan must not add spend: %v", records.spend)
	}
	if !second.Priced() {
		t.Fatal("pricing still runs on a cached verified scan")
	}
}

func TestScanUnverifiedResolutionNotCached(t *testing.T) {
	identifier := &fakeIdentifier{result: pikachuResult()}
	numbers := &fakeNumbers{resolution: setnumber.Resolution{
		Number: "134/109", Verified: false, Reason: setnumber.ReasonAmbiguous,
	}}
	c, err := New(identifier, numbers, &fakePrices{}, newMemRecords(), &recordingTelemetry{}, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Scan(context.Background(), scanImage()); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(identifier.attached) != 0 {
		t.Fatalf("unverified resolution must not be cached: %+v", identifier.attached)
	}
}

func TestScanBlockedWhenNumberUnverified(t *testing.T) {
	numbers := &fakeNumbers{resolution: setnumber.Resolution{
		Number: "134/109", Verified: false, Reason: setnumber.ReasonAmbiguous,
	}}
	prices := &fakePrices{result: pricing.Result{Reason: pricing.ReasonPriced, Quote: &pricing.Quote{Value: 9.99}}}
	records := newMemRecords()
	c, err := New(&fakeIdentifier{result: pikachuResult()}, numbers, prices, records, &recordingTelemetry{}, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if outcome.Status != StatusBlocked || outcome.Priced() {
		t.Fatalf("unverified number must block pricing: %+v", outcome)
	}
	if outcome.Pricing.Reason != PricingReasonBlocked {
		t.Fatalf("blocked outcome must say why pricing was skipped: %+v", outcome.Pricing)
	}
	if prices.calls != 0 {
		t.Fatal("pricing must not run for an unverified number")
	}
	record := records.records[0]
	if record.Status != StatusBlocked || record.PriceValue != 0 {
		t.Fatalf("blocked scan recorded wrong: %+v", record)
	}
	if record.PricingReason != PricingReasonBlocked {
		t.Fatalf("blocked record must carry the pricing reason: %+v", record)
	}
}

func TestScanBlockedWhenNumberMalformed(t *testing.T) {
	// Verified but not NNN/MMM shaped still blocks.
	numbers := &fakeNumbers{resolution: setnumber.Resolution{
		Number: "TG12/TG30", Verified: true, Reason: setnumber.ReasonExact,
	}}
	prices := &fakePrices{}
	c, err := New(&fakeIdentifier{result: pikachuResult()}, numbers, prices, newMemRecords(), &recordingTelemetry{}, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if outcome.Status != StatusBlocked || prices.calls != 0 {
		t.Fatalf("malformed number must block pricing: %+v", outcome)
	}
}

func TestScanIdentificationFailurePropagates(t *testing.T) {
	failure := services.Wrap(services.ErrBudgetExceeded, "identify", "budget gate", "", nil)
	records := newMemRecords()
	c, err := New(&fakeIdentifier{err: failure}, &fakeNumbers{}, &fakePrices{}, records, &recordingTelemetry{}, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Scan(context.Background(), scanImage()); !errors.Is(err, services.ErrBudgetExceeded) {
		t.Fatalf("expected budget error, got %v", err)
	}
	if len(records.records) != 0 {
		t.Fatal("failed identification must not leave a record")
	}
}

func TestScanTelemetryFailureDoesNotFailScan(t *testing.T) {
	numbers := &fakeNumbers{resolution: setnumber.Resolution{
		Number: "025/025", Verified: true, Reason: setnumber.ReasonExact,
	}}
	events := &recordingTelemetry{err: errors.New("collector down")}
	c, err := New(&fakeIdentifier{result: pikachuResult()}, numbers, &fakePrices{result: pricing.Result{Reason: pricing.ReasonNoResults}}, newMemRecords(), events, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("telemetry failure must not fail the scan: %v", err)
	}
	if outcome.Status != StatusComplete {
		t.Fatalf("unexpected status: %s", outcome.Status)
	}
}

func TestFeedbackAnnotation(t *testing.T) {
	numbers := &fakeNumbers{resolution: setnumber.Resolution{Number: "025/025", Verified: true, Reason: setnumber.ReasonExact}}
	records := newMemRecords()
	events := &recordingTelemetry{}
	c, err := New(&fakeIdentifier{result: pikachuResult()}, numbers, &fakePrices{result: pricing.Result{Reason: pricing.ReasonNoResults}}, records, events, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Scan(context.Background(), scanImage()); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if err := c.Feedback(context.Background(), "scan-1", VerdictCorrected, "Raichu 026/025"); err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	got := records.feedback["scan-1"]
	if got[0] != VerdictCorrected || got[1] != "Raichu 026/025" {
		t.Fatalf("feedback not stored: %v", got)
	}
	if len(events.feedback) != 1 {
		t.Fatal("feedback not published")
	}

	if err := c.Feedback(context.Background(), "scan-1", VerdictCorrected, ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("corrected verdict without label must fail validation, got %v", err)
	}
	if err := c.Feedback(context.Background(), "scan-1", "meh", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("unknown verdict must fail validation, got %v", err)
	}
	if err := c.Feedback(context.Background(), "missing", VerdictCorrect, ""); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("missing record must surface not-found, got %v", err)
	}
}

// End-to-end over the real number and pricing resolvers with stubbed
// external services.
func TestScanEndToEndVerifiedAndPriced(t *testing.T) {
	reader := &stubReader{reading: vision.NumberReading{Number: "025/025", Confidence: 90}}
	numbers := setnumber.New(reader, &stubSearcher{}, setnumber.Options{Model: "openai/gpt-4o-mini"})

	searcher := &stubMarket{candidates: []cardmarket.Candidate{{
		Name: "Pikachu", Number: "025/025", SetName: "151", Currency: "USD",
		Stats: cardmarket.PriceStats{Avg30: 4.50},
	}}}
	prices := pricing.New(searcher, &stubFX{rate: 0.92}, pricing.Options{DisplayCurrency: "EUR"})

	records := newMemRecords()
	c, err := New(&fakeIdentifier{result: pikachuResult()}, numbers, prices, records, &recordingTelemetry{}, testOptions())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := c.Scan(context.Background(), scanImage())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if outcome.Status != StatusComplete {
		t.Fatalf("unexpected status: %s", outcome.Status)
	}
	if outcome.Number.Reason != setnumber.ReasonCropAuthoritative || outcome.Number.CropConfidence != 90 {
		t.Fatalf("unexpected number resolution: %+v", outcome.Number)
	}
	quote := outcome.Pricing.Quote
	if quote == nil || quote.Currency != "EUR" || quote.Value != 4.50*0.92 || quote.Source != "avg30" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if outcome.Identification.Escalated {
		t.Fatal("confident verified identification must not escalate")
	}
}

type stubReader struct {
	reading vision.NumberReading
}

func (s *stubReader) ReadSetNumber(context.Context, string, []byte) (vision.NumberReading, vision.Usage, error) {
	return s.reading, vision.Usage{PromptTokens: 150, CompletionTokens: 15}, nil
}

type stubSearcher struct{}

func (stubSearcher) SearchNumbers(context.Context, string) ([]string, error) {
	return nil, errors.New("unused")
}

type stubMarket struct {
	candidates []cardmarket.Candidate
}

func (s *stubMarket) Search(context.Context, string, string) ([]cardmarket.Candidate, error) {
	return s.candidates, nil
}

type stubFX struct {
	rate float64
}

func (s *stubFX) Convert(_ context.Context, amount float64, _, _ string) (float64, float64, error) {
	return amount * s.rate, s.rate, nil
}

package scan

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cardscan/internal/identify"
	"cardscan/internal/logging"
	"cardscan/internal/pricing"
	"cardscan/internal/services"
	"cardscan/internal/setnumber"
	"cardscan/internal/store"
	"cardscan/internal/telemetry"
)

// Scan statuses as persisted and published.
const (
	StatusComplete = "complete"
	StatusBlocked  = "blocked_unverified_setid"
)

// Feedback verdicts.
const (
	VerdictCorrect   = "correct"
	VerdictIncorrect = "incorrect"
	VerdictCorrected = "corrected"
)

const dayKeyLayout = "2006-01-02"

// PricingReasonBlocked marks records whose pricing stage was skipped
// because the catalog number never verified.
const PricingReasonBlocked = "blocked"

// Identifier is the identification stage port. AttachResolution lets the
// coordinator store the catalog-number resolution with the cached
// identification once it verifies.
type Identifier interface {
	Identify(ctx context.Context, img image.Image) (*identify.Result, error)
	AttachResolution(ctx context.Context, result *identify.Result, resolution setnumber.Resolution) error
}

// NumberResolver is the catalog-number verification port.
type NumberResolver interface {
	Resolve(ctx context.Context, img image.Image, readNumber, cardName, setName string) setnumber.Resolution
}

// PriceResolver is the pricing port.
type PriceResolver interface {
	Resolve(ctx context.Context, name, number, setName string) pricing.Result
}

// RecordStore persists scan records and the spend ledger.
type RecordStore interface {
	InsertScanRecord(ctx context.Context, record *store.ScanRecord) error
	AnnotateFeedback(ctx context.Context, id, verdict, label string, at time.Time) error
	AddSpend(ctx context.Context, day string, amount float64) error
}

// Outcome is the result of one scan as returned to the caller and published
// to the telemetry collaborator.
type Outcome struct {
	ScanID         string               `json:"scan_id"`
	Status         string               `json:"status"`
	Identification *identify.Result     `json:"identification"`
	Number         setnumber.Resolution `json:"number"`
	Pricing        pricing.Result       `json:"pricing"`
	CostUSD        float64              `json:"cost_usd"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Priced reports whether the scan produced a quote.
func (o *Outcome) Priced() bool {
	return o.Pricing.Quote != nil
}

// Options configures a Coordinator.
type Options struct {
	// Clock is injected for deterministic timestamps. Nil uses time.Now.
	Clock func() time.Time
	// NewScanID overrides scan ID generation. Nil uses random UUIDs.
	NewScanID func() string
	Logger    *slog.Logger
}

// Coordinator drives the per-capture state machine.
type Coordinator struct {
	identifier Identifier
	numbers    NumberResolver
	prices     PriceResolver
	records    RecordStore
	events     telemetry.Service
	clock      func() time.Time
	newID      func() string
	logger     *slog.Logger
}

// New constructs a Coordinator.
func New(identifier Identifier, numbers NumberResolver, prices PriceResolver, records RecordStore, events telemetry.Service, opts Options) (*Coordinator, error) {
	if identifier == nil || numbers == nil || prices == nil {
		return nil, errors.New("scan: identifier, number resolver, and price resolver required")
	}
	if records == nil {
		return nil, errors.New("scan: record store required")
	}
	if events == nil {
		events = telemetry.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := opts.NewScanID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Coordinator{
		identifier: identifier,
		numbers:    numbers,
		prices:     prices,
		records:    records,
		events:     events,
		clock:      clock,
		newID:      newID,
		logger:     logging.NewComponentLogger(opts.Logger, "scan"),
	}, nil
}

// Scan runs one capture end to end. Identification failures surface to the
// caller; number-verification and pricing failures degrade the outcome but
// the scan still completes and is recorded truthfully.
func (c *Coordinator) Scan(ctx context.Context, img image.Image) (*Outcome, error) {
	scanID := c.newID()
	ctx = services.WithScanID(ctx, scanID)
	log := logging.WithContext(ctx, c.logger)
	startedAt := c.clock().UTC()
	log.Info("scan started")

	ident, err := c.identifier.Identify(ctx, img)
	if err != nil {
		return nil, err
	}

	var resolution setnumber.Resolution
	if cached := ident.Resolution; ident.Cached && cached != nil && cached.Verified {
		// The cached entry already carries a verified number; nothing to
		// re-query and nothing new to charge.
		resolution = *cached
		resolution.CostUSD = 0
		log.Debug("reusing cached number resolution",
			logging.String("number", resolution.Number),
			logging.String("reason", resolution.Reason))
	} else {
		resolution = c.numbers.Resolve(ctx, img, ident.CardNumber, ident.BestName(), ident.BestSetName())
		if resolution.CostUSD > 0 {
			day := c.clock().UTC().Format(dayKeyLayout)
			if err := c.records.AddSpend(ctx, day, resolution.CostUSD); err != nil {
				log.Warn("recording crop re-query spend failed", logging.Error(err))
			}
		}
		if resolution.Verified {
			if err := c.identifier.AttachResolution(ctx, ident, resolution); err != nil {
				log.Warn("caching number resolution failed", logging.Error(err))
			}
		}
	}

	outcome := &Outcome{
		ScanID:         scanID,
		Identification: ident,
		Number:         resolution,
		CostUSD:        ident.EstimatedCost + resolution.CostUSD,
		CreatedAt:      startedAt,
	}

	// Pricing is gated on a verified, well-formed number regardless of how
	// confident the identification was.
	if resolution.Verified && setnumber.Valid(resolution.Number) {
		outcome.Status = StatusComplete
		outcome.Pricing = c.prices.Resolve(ctx, ident.BestName(), resolution.Number, ident.BestSetName())
	} else {
		outcome.Status = StatusBlocked
		outcome.Pricing = pricing.Result{Reason: PricingReasonBlocked}
		log.Warn("pricing blocked",
			logging.String("number", resolution.Number),
			logging.String("reason", resolution.Reason))
	}

	if err := c.records.InsertScanRecord(ctx, recordFromOutcome(outcome)); err != nil {
		return nil, fmt.Errorf("persist scan record: %w", err)
	}
	if err := c.events.PublishScanOutcome(ctx, outcome); err != nil {
		// Telemetry is best effort and never fails a scan.
		log.Warn("publishing scan outcome failed", logging.Error(err))
	}

	log.Info("scan finished",
		logging.String("status", outcome.Status),
		logging.Int(logging.FieldConfidence, ident.Confidence),
		logging.Float64(logging.FieldCost, outcome.CostUSD))
	return outcome, nil
}

// Feedback annotates an existing scan record with a user verdict. The
// original outcome columns are never touched.
func (c *Coordinator) Feedback(ctx context.Context, scanID, verdict, label string) error {
	switch verdict {
	case VerdictCorrect, VerdictIncorrect:
	case VerdictCorrected:
		if label == "" {
			return services.Wrap(services.ErrValidation, "feedback", "annotate",
				"corrected verdict requires a label", nil)
		}
	default:
		return services.Wrap(services.ErrValidation, "feedback", "annotate",
			fmt.Sprintf("unknown verdict %q", verdict), nil)
	}

	at := c.clock().UTC()
	if err := c.records.AnnotateFeedback(ctx, scanID, verdict, label, at); err != nil {
		return err
	}

	payload := struct {
		ScanID  string    `json:"scan_id"`
		Verdict string    `json:"verdict"`
		Label   string    `json:"label,omitempty"`
		At      time.Time `json:"at"`
	}{scanID, verdict, label, at}
	if err := c.events.PublishFeedback(ctx, payload); err != nil {
		logging.WithContext(ctx, c.logger).Warn("publishing feedback failed", logging.Error(err))
	}
	return nil
}

func recordFromOutcome(outcome *Outcome) *store.ScanRecord {
	ident := outcome.Identification
	record := &store.ScanRecord{
		ID:                 outcome.ScanID,
		CreatedAt:          outcome.CreatedAt,
		Status:             outcome.Status,
		CardName:           ident.Name,
		CardNameEnglish:    ident.NameEnglish,
		SetName:            ident.SetName,
		SetNameEnglish:     ident.SetNameEnglish,
		CardNumber:         outcome.Number.Number,
		OriginalNumber:     outcome.Number.Original,
		NumberVerified:     outcome.Number.Verified,
		VerificationReason: outcome.Number.Reason,
		Confidence:         ident.Confidence,
		ModelRoute:         ident.Model,
		Escalated:          ident.Escalated,
		Cached:             ident.Cached,
		CostUSD:            outcome.CostUSD,
		PricingReason:      outcome.Pricing.Reason,
	}
	if quote := outcome.Pricing.Quote; quote != nil {
		record.PriceValue = quote.Value
		record.PriceCurrency = quote.Currency
		record.PriceSource = quote.Source
	}
	return record
}

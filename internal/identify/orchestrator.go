package identify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"cardscan/internal/imagehash"
	"cardscan/internal/logging"
	"cardscan/internal/refindex"
	"cardscan/internal/services"
	"cardscan/internal/services/vision"
	"cardscan/internal/setnumber"
)

const (
	// visionMaxEdge bounds the payload sent to the model provider.
	visionMaxEdge = 1024
	// visionJPEGQuality is the recompression quality for model payloads.
	// The content hash is taken over these bytes, so the value must stay
	// stable or cache keys shift.
	visionJPEGQuality = 78

	dayKeyLayout = "2006-01-02"
)

// ModelCaller is the port into the vision client.
type ModelCaller interface {
	ExtractCard(ctx context.Context, model string, imageJPEG []byte, languageHint string) (vision.Extraction, vision.Usage, error)
}

// CacheStore persists identification results by content hash.
type CacheStore interface {
	GetScanCache(ctx context.Context, contentHash string) (string, bool, error)
	PutScanCache(ctx context.Context, contentHash, payload string, at time.Time) error
}

// BudgetStore persists the per-day estimated spend ledger.
type BudgetStore interface {
	SpentOn(ctx context.Context, day string) (float64, error)
	AddSpend(ctx context.Context, day string, amount float64) error
}

// Attempt records one model call in the escalation chain.
type Attempt struct {
	Model      string  `json:"model"`
	Confidence int     `json:"confidence"`
	Verified   bool    `json:"verified"`
	CostUSD    float64 `json:"cost_usd"`
	Error      string  `json:"error,omitempty"`
}

// Result is the identification of one scan.
type Result struct {
	ScanHash       string       `json:"scan_hash"`
	Language       string       `json:"language"`
	Name           string       `json:"name"`
	NameEnglish    string       `json:"name_english"`
	SetName        string       `json:"set_name"`
	SetNameEnglish string       `json:"set_name_english"`
	CardNumber     string       `json:"card_number"`
	Rarity         string       `json:"rarity"`
	Confidence     int          `json:"confidence"`
	Alternatives   []string     `json:"alternatives,omitempty"`
	Reasoning      string       `json:"reasoning,omitempty"`
	Model          string       `json:"model"`
	Escalated      bool         `json:"escalated"`
	Cached         bool         `json:"cached"`
	Verification   Verification `json:"verification"`
	EstimatedCost  float64      `json:"estimated_cost"`
	Attempts       []Attempt    `json:"attempts,omitempty"`
	// Resolution is the catalog-number verification appended after
	// identification. It travels with the cache entry so a repeat scan of
	// the same image skips the billed crop re-query.
	Resolution *setnumber.Resolution `json:"resolution,omitempty"`
}

// BestName returns the English name when present, the native name
// otherwise.
func (r *Result) BestName() string {
	if r.NameEnglish != "" {
		return r.NameEnglish
	}
	return r.Name
}

// BestSetName returns the English set name when present.
func (r *Result) BestSetName() string {
	if r.SetNameEnglish != "" {
		return r.SetNameEnglish
	}
	return r.SetName
}

// Options configures an Orchestrator.
type Options struct {
	// Models is the ordered attempt chain, primary first.
	Models []string
	// Policy decides whether to continue down the chain. Nil uses
	// ThresholdPolicy(85).
	Policy EscalationPolicy
	// Weights are the verification scoring weights. Zero value uses the
	// defaults.
	Weights VerifyWeights
	// DailyBudgetUSD is the spend cap per UTC day.
	DailyBudgetUSD float64
	// LanguageHint shapes the extraction prompt (auto/english/japanese).
	LanguageHint string
	// Clock is injected for deterministic day boundaries. Nil uses
	// time.Now.
	Clock func() time.Time
	Logger *slog.Logger
}

// Orchestrator runs the identification flow for one scan at a time. Safe
// for concurrent use; shared state lives in the cache and budget stores.
type Orchestrator struct {
	caller  ModelCaller
	cache   CacheStore
	budget  BudgetStore
	index   *refindex.Index
	models  []string
	policy  EscalationPolicy
	weights VerifyWeights
	cap     float64
	hint    string
	clock   func() time.Time
	logger  *slog.Logger
}

// New constructs an Orchestrator.
func New(caller ModelCaller, cache CacheStore, budget BudgetStore, index *refindex.Index, opts Options) (*Orchestrator, error) {
	if caller == nil {
		return nil, errors.New("identify: model caller required")
	}
	if cache == nil || budget == nil {
		return nil, errors.New("identify: cache and budget stores required")
	}
	if len(opts.Models) == 0 {
		return nil, errors.New("identify: at least one model required")
	}
	if opts.DailyBudgetUSD <= 0 {
		return nil, errors.New("identify: positive daily budget required")
	}
	policy := opts.Policy
	if policy == nil {
		policy = ThresholdPolicy(85)
	}
	weights := opts.Weights
	if weights == (VerifyWeights{}) {
		weights = DefaultVerifyWeights()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	if index == nil {
		index = refindex.New()
	}
	return &Orchestrator{
		caller:  caller,
		cache:   cache,
		budget:  budget,
		index:   index,
		models:  opts.Models,
		policy:  policy,
		weights: weights,
		cap:     opts.DailyBudgetUSD,
		hint:    opts.LanguageHint,
		clock:   clock,
		logger:  logging.NewComponentLogger(opts.Logger, "identify"),
	}, nil
}

// ContentHash returns the deterministic cache key for a compressed payload.
func ContentHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// PrepareImage downscales and recompresses a raster into the payload sent
// to the model provider.
func PrepareImage(img image.Image) ([]byte, error) {
	scaled := imagehash.DownscaleLongEdge(img, visionMaxEdge)
	return imagehash.EncodeJPEG(scaled, visionJPEGQuality)
}

// Identify resolves a structured identification for the raster. Cache hits
// return at zero added cost; otherwise the budget gate runs before any
// network call, the model chain executes under the escalation policy, and
// the accepted result is cached by content hash.
func (o *Orchestrator) Identify(ctx context.Context, img image.Image) (*Result, error) {
	ctx = services.WithStage(ctx, "identify")
	log := logging.WithContext(ctx, o.logger)

	payload, err := PrepareImage(img)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "identify", "prepare image", "", err)
	}
	hash := ContentHash(payload)

	if cached, ok, err := o.cache.GetScanCache(ctx, hash); err != nil {
		return nil, fmt.Errorf("read scan cache: %w", err)
	} else if ok {
		var result Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			result.Cached = true
			result.EstimatedCost = 0
			log.Debug("cache hit", logging.String("scan_hash", hash))
			return &result, nil
		}
		// A corrupt payload falls through to a fresh identification.
		log.Warn("discarding unreadable cache entry", logging.String("scan_hash", hash))
	}

	day := o.clock().UTC().Format(dayKeyLayout)
	spent, err := o.budget.SpentOn(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("read budget ledger: %w", err)
	}
	if spent >= o.cap {
		return nil, services.Wrap(services.ErrBudgetExceeded, "identify", "budget gate",
			fmt.Sprintf("spent %.4f of %.4f USD", spent, o.cap), nil)
	}

	result, err := o.runAttempts(ctx, log, payload, hash, day)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode cache payload: %w", err)
	}
	if err := o.cache.PutScanCache(ctx, hash, string(encoded), o.clock()); err != nil {
		log.Warn("caching identification failed", logging.Error(err))
	}
	return result, nil
}

// AttachResolution rewrites the cached entry for the result's scan hash
// with the catalog-number resolution included, so later scans of the same
// image come back fully resolved.
func (o *Orchestrator) AttachResolution(ctx context.Context, result *Result, resolution setnumber.Resolution) error {
	if result == nil || result.ScanHash == "" {
		return services.Wrap(services.ErrValidation, "identify", "attach resolution", "missing scan hash", nil)
	}
	result.Resolution = &resolution
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode cache payload: %w", err)
	}
	return o.cache.PutScanCache(ctx, result.ScanHash, string(encoded), o.clock())
}

func (o *Orchestrator) runAttempts(ctx context.Context, log *slog.Logger, payload []byte, hash, day string) (*Result, error) {
	var (
		attempts  []Attempt
		totalCost float64
		accepted  *Result
		lastGood  *Result
		lastErr   error
	)

	for i, model := range o.models {
		extraction, usage, err := o.caller.ExtractCard(ctx, model, payload, o.hint)
		cost := vision.EstimateCost(model, usage)
		totalCost += cost
		if cost > 0 {
			if ledgerErr := o.budget.AddSpend(ctx, day, cost); ledgerErr != nil {
				log.Warn("recording spend failed", logging.Error(ledgerErr))
			}
		}

		if err != nil {
			attempts = append(attempts, Attempt{Model: model, CostUSD: cost, Error: err.Error()})
			lastErr = err
			// Unparsable output from one model still allows escalation to
			// the next; everything else ends the chain.
			if errors.Is(err, services.ErrUnparsable) {
				log.Warn("model output unparsable",
					logging.String(logging.FieldModel, model),
					logging.Error(err))
				continue
			}
			return nil, err
		}

		verification := verifyExtraction(o.index.Cards(), extraction, o.weights)
		attempts = append(attempts, Attempt{
			Model:      model,
			Confidence: extraction.Confidence,
			Verified:   verification.Verified,
			CostUSD:    cost,
		})

		candidate := resultFromExtraction(extraction, verification, model, hash)
		lastGood = candidate
		if !o.policy(extraction.Confidence, verification.Verified) {
			accepted = candidate
			break
		}
		log.Info("escalating identification",
			logging.String(logging.FieldModel, model),
			logging.Int(logging.FieldConfidence, extraction.Confidence),
			logging.Bool("verified", verification.Verified),
			logging.Int("attempt", i+1))
	}

	if accepted == nil {
		accepted = lastGood
	}
	if accepted == nil {
		if lastErr == nil {
			lastErr = errors.New("no model attempts executed")
		}
		return nil, lastErr
	}

	accepted.Escalated = len(attempts) > 1
	accepted.EstimatedCost = totalCost
	accepted.Attempts = attempts
	log.Info("identification accepted",
		logging.String(logging.FieldModel, accepted.Model),
		logging.Int(logging.FieldConfidence, accepted.Confidence),
		logging.Bool("verified", accepted.Verification.Verified),
		logging.Float64(logging.FieldCost, totalCost))
	return accepted, nil
}

func resultFromExtraction(extraction vision.Extraction, verification Verification, model, hash string) *Result {
	return &Result{
		ScanHash:       hash,
		Language:       extraction.Language,
		Name:           extraction.Name,
		NameEnglish:    extraction.NameEnglish,
		SetName:        extraction.SetName,
		SetNameEnglish: extraction.SetNameEnglish,
		CardNumber:     extraction.CardNumber,
		Rarity:         extraction.Rarity,
		Confidence:     extraction.Confidence,
		Alternatives:   extraction.Alternatives,
		Reasoning:      extraction.Reasoning,
		Model:          model,
		Verification:   verification,
	}
}

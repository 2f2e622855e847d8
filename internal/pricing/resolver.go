package pricing

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"cardscan/internal/logging"
	"cardscan/internal/services"
	"cardscan/internal/services/cardmarket"
	"cardscan/internal/textutil"
)

// Candidate scoring weights and the acceptance floor.
const (
	scoreNameExact      = 70
	scoreNamePartial    = 50
	scoreNumberExact    = 40
	scoreNumeratorMatch = 20
	scoreSetContainment = 25
	minAcceptScore      = 35
)

// Resolution reasons.
const (
	ReasonPriced            = "priced"
	ReasonNoResults         = "no-results"
	ReasonNoConfidentMatch  = "no-confident-match"
	ReasonNoUsableStatistic = "no-usable-statistic"
	ReasonSourceUnavailable = "source-unavailable"
)

var (
	trailingMarker = regexp.MustCompile(`(?i)\s+(ex|gx|vmax|vstar|lv\.?\s*x)$`)
	leadingMarker  = regexp.MustCompile(`(?i)^radiant\s+`)
)

// Searcher is the port into the pricing source.
type Searcher interface {
	Search(ctx context.Context, name, number string) ([]cardmarket.Candidate, error)
}

// Converter is the port into the exchange-rate service.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to string) (float64, float64, error)
}

// Quote is the resolved price for one scan. Never created for an
// unverified catalog number.
type Quote struct {
	Value           float64 `json:"value"`
	Currency        string  `json:"currency"`
	Source          string  `json:"source"`
	MatchConfidence int     `json:"match_confidence"`
	CandidateName   string  `json:"candidate_name"`
	NativeValue     float64 `json:"native_value"`
	NativeCurrency  string  `json:"native_currency"`
	FXRate          float64 `json:"fx_rate,omitempty"`
}

// Result carries either a quote or the reason none could be produced.
type Result struct {
	Quote  *Quote `json:"quote,omitempty"`
	Reason string `json:"reason"`
}

// Options configures a Resolver.
type Options struct {
	DisplayCurrency string
	Logger          *slog.Logger
}

// Resolver turns a verified identification into a Quote.
type Resolver struct {
	searcher  Searcher
	converter Converter
	currency  string
	logger    *slog.Logger
}

// New constructs a Resolver. A nil converter disables FX conversion and
// quotes stay in the source's native currency.
func New(searcher Searcher, converter Converter, opts Options) *Resolver {
	currency := strings.ToUpper(strings.TrimSpace(opts.DisplayCurrency))
	if currency == "" {
		currency = "EUR"
	}
	return &Resolver{
		searcher:  searcher,
		converter: converter,
		currency:  currency,
		logger:    logging.NewComponentLogger(opts.Logger, "pricing"),
	}
}

// Resolve searches the pricing source with progressively looser query
// variants, scores the candidates, and converts the best statistic to the
// display currency. FX failure never blocks a quote.
func (r *Resolver) Resolve(ctx context.Context, name, number, setName string) Result {
	ctx = services.WithStage(ctx, "pricing")
	log := logging.WithContext(ctx, r.logger)

	if r.searcher == nil {
		return Result{Reason: ReasonSourceUnavailable}
	}

	candidates, sawError := r.search(ctx, log, name, number)
	if len(candidates) == 0 {
		if sawError {
			return Result{Reason: ReasonSourceUnavailable}
		}
		return Result{Reason: ReasonNoResults}
	}

	best, bestScore := bestCandidate(candidates, name, number, setName)
	if bestScore < minAcceptScore {
		log.Debug("no confident pricing match",
			logging.Int("best_score", bestScore),
			logging.Int("candidates", len(candidates)))
		return Result{Reason: ReasonNoConfidentMatch}
	}

	value, source, ok := pickStatistic(best.Stats)
	if !ok {
		return Result{Reason: ReasonNoUsableStatistic}
	}

	quote := &Quote{
		Value:           value,
		Currency:        strings.ToUpper(best.Currency),
		Source:          source,
		MatchConfidence: bestScore,
		CandidateName:   best.Name,
		NativeValue:     value,
		NativeCurrency:  strings.ToUpper(best.Currency),
	}
	if r.converter != nil && quote.NativeCurrency != "" && quote.NativeCurrency != r.currency {
		converted, rate, err := r.converter.Convert(ctx, value, quote.NativeCurrency, r.currency)
		if err != nil {
			// Never block a quote on FX; the native value still stands.
			log.Warn("currency conversion failed", logging.Error(err))
		} else {
			quote.Value = converted
			quote.Currency = r.currency
			quote.FXRate = rate
		}
	}

	log.Info("price resolved",
		logging.String("candidate", best.Name),
		logging.Int("score", bestScore),
		logging.String("statistic", source),
		logging.Float64("value", quote.Value),
		logging.String("currency", quote.Currency))
	return Result{Quote: quote, Reason: ReasonPriced}
}

// search walks the query variants and stops at the first non-empty result
// set. Transport errors on one variant do not stop the walk.
func (r *Resolver) search(ctx context.Context, log *slog.Logger, name, number string) ([]cardmarket.Candidate, bool) {
	sawError := false
	for _, variant := range queryVariants(name, number) {
		candidates, err := r.searcher.Search(ctx, variant.name, variant.number)
		if err != nil {
			sawError = true
			log.Warn("pricing search failed",
				logging.String("query", variant.name),
				logging.Error(err))
			continue
		}
		if len(candidates) > 0 {
			return candidates, false
		}
	}
	return nil, sawError
}

type queryVariant struct {
	name   string
	number string
}

// queryVariants loosens the search progressively: full name, marker-stripped
// name, then the first name token, each with and without the number.
func queryVariants(name, number string) []queryVariant {
	name = strings.TrimSpace(name)
	number = strings.TrimSpace(number)

	names := []string{name, stripMarkers(name), textutil.FirstToken(name)}
	seen := make(map[queryVariant]bool)
	var variants []queryVariant
	for _, n := range names {
		if n == "" {
			continue
		}
		for _, v := range []queryVariant{{n, number}, {n, ""}} {
			if seen[v] {
				continue
			}
			seen[v] = true
			variants = append(variants, v)
		}
	}
	return variants
}

func stripMarkers(name string) string {
	name = leadingMarker.ReplaceAllString(name, "")
	name = trailingMarker.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

func bestCandidate(candidates []cardmarket.Candidate, name, number, setName string) (cardmarket.Candidate, int) {
	var best cardmarket.Candidate
	bestScore := -1
	for _, candidate := range candidates {
		score := scoreCandidate(candidate, name, number, setName)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	return best, bestScore
}

func scoreCandidate(candidate cardmarket.Candidate, name, number, setName string) int {
	score := 0

	extName := textutil.Normalize(name)
	candName := textutil.Normalize(candidate.Name)
	switch {
	case extName != "" && extName == candName:
		score += scoreNameExact
	case textutil.EitherContains(candName, extName):
		score += scoreNamePartial
	}

	if number != "" && candidate.Number != "" {
		if number == candidate.Number {
			score += scoreNumberExact
		}
		if numeratorsEqual(number, candidate.Number) {
			score += scoreNumeratorMatch
		}
	}

	if textutil.EitherContains(textutil.Normalize(candidate.SetName), textutil.Normalize(setName)) {
		score += scoreSetContainment
	}
	return score
}

// numeratorsEqual compares the zero-trimmed numerators of two catalog
// numbers. A shared numerator with a different denominator still signals
// the same card across set printings.
func numeratorsEqual(a, b string) bool {
	na := strings.TrimLeft(strings.SplitN(a, "/", 2)[0], "0")
	nb := strings.TrimLeft(strings.SplitN(b, "/", 2)[0], "0")
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

// pickStatistic selects the first positive statistic in priority order.
func pickStatistic(stats cardmarket.PriceStats) (float64, string, bool) {
	ordered := []struct {
		value float64
		name  string
	}{
		{stats.Avg30, "avg30"},
		{stats.Avg7, "avg7"},
		{stats.Trend, "trend"},
		{stats.LowestNearMint, "lowest_near_mint"},
		{stats.Sell, "sell"},
		{stats.Average, "average"},
	}
	for _, stat := range ordered {
		if stat.value > 0 {
			return stat.value, stat.name, true
		}
	}
	return 0, "", false
}

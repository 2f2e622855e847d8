package setnumber

import (
	"context"
	"image"
	"log/slog"
	"regexp"
	"strings"

	"cardscan/internal/imagehash"
	"cardscan/internal/logging"
	"cardscan/internal/services"
	"cardscan/internal/services/vision"
)

const (
	// cropBand is the fraction of image height holding the printed number.
	cropBand  = 0.24
	cropInset = 0.01
	// cropJPEGQuality is higher than the identification payload quality
	// because small digits degrade fast under compression.
	cropJPEGQuality = 90

	defaultCropConfidenceFloor = 85
	numeratorWidth             = 3
)

// Resolution reasons.
const (
	ReasonCropAuthoritative = "crop-authoritative"
	ReasonExact             = "exact"
	ReasonSingleCandidate   = "single-candidate"
	ReasonAutocorrect       = "autocorrect-one-digit"
	ReasonAmbiguous         = "ambiguous"
	ReasonNoCandidates      = "no-candidates"
	ReasonSourceUnavailable = "source-unavailable"
)

var numberShape = regexp.MustCompile(`^\d{1,3}/\d{2,3}$`)

// Valid reports whether a string is a well-formed "NNN/MMM" catalog number.
func Valid(number string) bool {
	return numberShape.MatchString(number)
}

// NumberReader is the port into the vision client's narrow number prompt.
type NumberReader interface {
	ReadSetNumber(ctx context.Context, model string, cropJPEG []byte) (vision.NumberReading, vision.Usage, error)
}

// CatalogSearcher is the port into the external catalog cross-check. It
// returns every number-shaped token mined from the search response.
type CatalogSearcher interface {
	SearchNumbers(ctx context.Context, query string) ([]string, error)
}

// Resolution is the verified catalog number for one scan.
type Resolution struct {
	Number   string `json:"number"`
	Verified bool   `json:"verified"`
	Reason   string `json:"reason"`
	// Original is set when the resolver changed the number, for audit.
	Original       string  `json:"original,omitempty"`
	CropConfidence int     `json:"crop_confidence,omitempty"`
	CostUSD        float64 `json:"cost_usd"`
}

// Options configures a Resolver.
type Options struct {
	// Model is the identifier used for the crop re-query. Empty disables
	// the crop step.
	Model string
	// CropConfidenceFloor is the confidence at which a crop reading is
	// authoritative. Zero uses the default of 85.
	CropConfidenceFloor int
	Logger              *slog.Logger
}

// Resolver verifies catalog numbers. Either collaborator may be nil; the
// resolver degrades to the remaining evidence.
type Resolver struct {
	reader  NumberReader
	catalog CatalogSearcher
	model   string
	floor   int
	logger  *slog.Logger
}

// New constructs a Resolver.
func New(reader NumberReader, catalog CatalogSearcher, opts Options) *Resolver {
	floor := opts.CropConfidenceFloor
	if floor <= 0 {
		floor = defaultCropConfidenceFloor
	}
	return &Resolver{
		reader:  reader,
		catalog: catalog,
		model:   opts.Model,
		floor:   floor,
		logger:  logging.NewComponentLogger(opts.Logger, "setnumber"),
	}
}

// Resolve verifies the catalog number read during identification. The crop
// re-query runs first; when inconclusive, the external catalog is searched
// by name and set. Failures of either collaborator never abort the scan,
// they only leave the number unverified.
func (r *Resolver) Resolve(ctx context.Context, img image.Image, readNumber, cardName, setName string) Resolution {
	ctx = services.WithStage(ctx, "verify-number")
	log := logging.WithContext(ctx, r.logger)

	original := strings.TrimSpace(readNumber)
	working := original
	var cost float64
	var cropConfidence int

	if r.reader != nil && r.model != "" && img != nil {
		reading, readCost, err := r.readCrop(ctx, img)
		cost += readCost
		if err != nil {
			log.Warn("crop re-query failed", logging.Error(err))
		} else {
			cropConfidence = reading.Confidence
			number := strings.TrimSpace(reading.Number)
			if reading.Confidence >= r.floor && Valid(number) {
				res := Resolution{
					Number:         number,
					Verified:       true,
					Reason:         ReasonCropAuthoritative,
					CropConfidence: cropConfidence,
					CostUSD:        cost,
				}
				if number != original {
					res.Original = original
				}
				log.Info("catalog number verified by crop",
					logging.String("number", number),
					logging.Int(logging.FieldConfidence, reading.Confidence))
				return res
			}
			if working == "" && Valid(number) {
				working = number
			}
			log.Debug("crop reading inconclusive",
				logging.String("number", number),
				logging.Int(logging.FieldConfidence, reading.Confidence))
		}
	}

	res := r.crossCheck(ctx, log, working, cardName, setName)
	if res.Number != original && original != "" {
		res.Original = original
	}
	res.CropConfidence = cropConfidence
	res.CostUSD = cost
	return res
}

func (r *Resolver) readCrop(ctx context.Context, img image.Image) (vision.NumberReading, float64, error) {
	band := imagehash.CropBottomBand(img, cropBand, cropInset)
	payload, err := imagehash.EncodeJPEG(band, cropJPEGQuality)
	if err != nil {
		return vision.NumberReading{}, 0, err
	}
	reading, usage, err := r.reader.ReadSetNumber(ctx, r.model, payload)
	cost := vision.EstimateCost(r.model, usage)
	if err != nil {
		return vision.NumberReading{}, cost, err
	}
	return reading, cost, nil
}

func (r *Resolver) crossCheck(ctx context.Context, log *slog.Logger, working, cardName, setName string) Resolution {
	if r.catalog == nil {
		return Resolution{Number: working, Reason: ReasonSourceUnavailable}
	}

	query := strings.TrimSpace(strings.TrimSpace(cardName) + " " + strings.TrimSpace(setName))
	tokens, err := r.catalog.SearchNumbers(ctx, query)
	if err == nil && len(tokens) == 0 && working != "" {
		// A second pass with the number itself often surfaces the set page.
		tokens, err = r.catalog.SearchNumbers(ctx, query+" "+working)
	}
	if err != nil {
		log.Warn("catalog cross-check unreachable", logging.Error(err))
		return Resolution{Number: working, Reason: ReasonSourceUnavailable}
	}
	if len(tokens) == 0 {
		return Resolution{Number: working, Verified: Valid(working), Reason: ReasonNoCandidates}
	}

	for _, token := range tokens {
		if token == working {
			return Resolution{Number: working, Verified: true, Reason: ReasonExact}
		}
	}
	if len(tokens) == 1 {
		return Resolution{Number: tokens[0], Verified: true, Reason: ReasonSingleCandidate}
	}

	if corrected, ok := autocorrect(working, tokens); ok {
		log.Info("catalog number autocorrected",
			logging.String("from", working),
			logging.String("to", corrected))
		return Resolution{Number: corrected, Verified: true, Reason: ReasonAutocorrect}
	}
	return Resolution{Number: working, Reason: ReasonAmbiguous}
}

// autocorrect looks for a unique candidate sharing the read denominator
// whose numerator differs by at most one digit at fixed width.
func autocorrect(working string, tokens []string) (string, bool) {
	numerator, denominator, ok := splitNumber(working)
	if !ok {
		return "", false
	}

	best := ""
	bestDistance := numeratorWidth + 1
	ties := 0
	for _, token := range tokens {
		candNum, candDen, ok := splitNumber(token)
		if !ok || candDen != denominator {
			continue
		}
		d := digitDistance(numerator, candNum)
		switch {
		case d < bestDistance:
			best, bestDistance, ties = token, d, 1
		case d == bestDistance:
			ties++
		}
	}
	if best == "" || bestDistance > 1 || ties > 1 {
		return "", false
	}
	return best, true
}

func splitNumber(number string) (numerator, denominator string, ok bool) {
	if !Valid(number) {
		return "", "", false
	}
	parts := strings.SplitN(number, "/", 2)
	return parts[0], parts[1], true
}

// digitDistance compares numerators left-padded with zeros to fixed width.
func digitDistance(a, b string) int {
	a = padNumerator(a)
	b = padNumerator(b)
	distance := 0
	for i := 0; i < numeratorWidth; i++ {
		if a[i] != b[i] {
			distance++
		}
	}
	return distance
}

func padNumerator(s string) string {
	for len(s) < numeratorWidth {
		s = "0" + s
	}
	return s
}

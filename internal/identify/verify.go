package identify

import (
	"cardscan/internal/refindex"
	"cardscan/internal/services/vision"
	"cardscan/internal/textutil"
)

// VerifyWeights are the per-signal scores of reference verification. Any
// nonzero total on the best card counts as verified.
type VerifyWeights struct {
	Name     int
	Number   int
	Set      int
	Combined int
}

// DefaultVerifyWeights returns the standard scoring weights.
func DefaultVerifyWeights() VerifyWeights {
	return VerifyWeights{Name: 60, Number: 25, Set: 15, Combined: 20}
}

// Verification is the outcome of matching an extraction against the
// reference index.
type Verification struct {
	Verified bool   `json:"verified"`
	CardID   string `json:"card_id,omitempty"`
	CardName string `json:"card_name,omitempty"`
	Score    int    `json:"score"`
}

// verifyExtraction scores every reference card by weighted string
// containment and returns the best match.
func verifyExtraction(cards []refindex.ReferenceCard, extraction vision.Extraction, weights VerifyWeights) Verification {
	extName := bestNormalized(extraction.Name, extraction.NameEnglish)
	extSet := bestNormalized(extraction.SetName, extraction.SetNameEnglish)
	extNumber := textutil.Normalize(extraction.CardNumber)
	extCombined := extName + extSet + extNumber

	var best Verification
	for _, card := range cards {
		cardName := textutil.Normalize(card.Name)
		cardSet := textutil.Normalize(card.Metadata["set"])
		cardNumber := textutil.Normalize(card.Metadata["number"])
		cardCombined := cardName + cardSet + cardNumber

		score := 0
		if textutil.EitherContains(cardName, extName) {
			score += weights.Name
		}
		if extNumber != "" && cardNumber != "" && textutil.EitherContains(cardNumber, extNumber) {
			score += weights.Number
		}
		if textutil.EitherContains(cardSet, extSet) {
			score += weights.Set
		}
		if textutil.EitherContains(cardCombined, extCombined) {
			score += weights.Combined
		}

		if score > best.Score {
			best = Verification{
				Verified: true,
				CardID:   card.ID,
				CardName: card.Name,
				Score:    score,
			}
		}
	}
	return best
}

func bestNormalized(values ...string) string {
	for _, value := range values {
		if normalized := textutil.Normalize(value); normalized != "" {
			return normalized
		}
	}
	return ""
}

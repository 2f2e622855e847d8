package refindex

import (
	"sort"
	"sync"

	"cardscan/internal/imagehash"
)

// DefaultMatchCount is how many nearest neighbors a query returns.
const DefaultMatchCount = 8

// ReferenceCard is one labeled fingerprint in the index.
type ReferenceCard struct {
	ID         string
	Name       string
	Triple     imagehash.Triple
	PreviewRef string
	Metadata   map[string]string
}

// Match is one query result, annotated with blended distance and confidence.
type Match struct {
	Card       ReferenceCard
	Distance   int
	Confidence int
}

// Index holds reference cards and serves distance queries. Safe for
// concurrent use.
type Index struct {
	mu    sync.RWMutex
	cards []ReferenceCard
}

// New returns an empty index.
func New() *Index {
	return &Index{}
}

// NewFromCards builds an index over previously persisted cards.
func NewFromCards(cards []ReferenceCard) *Index {
	idx := New()
	idx.Replace(cards)
	return idx
}

// Replace swaps the index contents.
func (i *Index) Replace(cards []ReferenceCard) {
	copied := make([]ReferenceCard, len(cards))
	copy(copied, cards)
	i.mu.Lock()
	i.cards = copied
	i.mu.Unlock()
}

// Add appends one card.
func (i *Index) Add(card ReferenceCard) {
	i.mu.Lock()
	i.cards = append(i.cards, card)
	i.mu.Unlock()
}

// Len reports the number of indexed cards.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.cards)
}

// Cards returns a copy of the indexed cards.
func (i *Index) Cards() []ReferenceCard {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]ReferenceCard, len(i.cards))
	copy(out, i.cards)
	return out
}

// Query returns the k lowest blended-distance matches in ascending order.
// k <= 0 uses DefaultMatchCount.
func (i *Index) Query(triple imagehash.Triple, k int) []Match {
	if k <= 0 {
		k = DefaultMatchCount
	}

	i.mu.RLock()
	matches := make([]Match, 0, len(i.cards))
	for _, card := range i.cards {
		distance := imagehash.BlendedDistance(triple, card.Triple)
		matches = append(matches, Match{
			Card:       card,
			Distance:   distance,
			Confidence: imagehash.Confidence(distance),
		})
	}
	i.mu.RUnlock()

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].Distance < matches[b].Distance
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

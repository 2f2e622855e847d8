package imagehash

import (
	"fmt"
	"image"
	"math"
	"math/bits"

	"gonum.org/v1/gonum/stat"
)

const (
	// gridSize is the edge length of the downsampled luminance grid.
	gridSize = 8
	// HashBits is the fingerprint length at each crop level.
	HashBits = gridSize * gridSize
)

// Hash is a 64-bit average hash. Bit i is set when grid sample i is at or
// above the grid's mean luminance.
type Hash uint64

// Distance returns the Hamming distance to another hash.
func (h Hash) Distance(other Hash) int {
	return bits.OnesCount64(uint64(h ^ other))
}

// String renders the hash as 16 hex digits.
func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Triple is the fingerprint of one image: full frame, detected card crop,
// and an inner crop of the card.
type Triple struct {
	Full  Hash `json:"full"`
	Crop  Hash `json:"crop"`
	Inner Hash `json:"inner"`
}

// BlendedDistance combines per-level Hamming distances. The card crop
// dominates, the inner crop corrects border noise, and the full frame acts
// as a weak tiebreaker.
func BlendedDistance(a, b Triple) int {
	full := float64(a.Full.Distance(b.Full))
	crop := float64(a.Crop.Distance(b.Crop))
	inner := float64(a.Inner.Distance(b.Inner))
	return int(math.Round(0.2*full + 0.5*crop + 0.3*inner))
}

// Confidence maps a blended distance onto a 0-100 score. Distance 0 scores
// 100 and distance 64 (or worse) scores 0.
func Confidence(distance int) int {
	scaled := 1 - float64(distance)/float64(HashBits)
	if scaled < 0 {
		scaled = 0
	}
	return int(math.Round(scaled * 100))
}

// FromImage fingerprints a decoded raster: detect the card bounds (or fall
// back to a centered canonical-ratio crop), take an inner crop at 82% linear
// scale, and average-hash each level.
func FromImage(img image.Image) Triple {
	cardRect := DetectCardBounds(img)
	card := cropRect(img, cardRect)
	inner := cropRect(card, innerRect(card.Bounds(), innerScale))
	return Triple{
		Full:  averageHash(img),
		Crop:  averageHash(card),
		Inner: averageHash(inner),
	}
}

func averageHash(img image.Image) Hash {
	grid := luminanceGrid(img, gridSize)
	mean := stat.Mean(grid, nil)
	var h Hash
	for i, sample := range grid {
		if sample >= mean {
			h |= 1 << uint(i)
		}
	}
	return h
}

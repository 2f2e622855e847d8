package imagehash

import (
	"image"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// cardAspectRatio is the canonical width/height ratio of a trading card.
	cardAspectRatio = 0.715
	// innerScale is the linear scale of the inner crop within the card crop.
	innerScale = 0.82

	// edgeThreshold is the combined gradient+variance magnitude a sampled
	// point needs to count as card edge or art detail.
	edgeThreshold = 55
	// minEdgePoints is the number of qualifying points required before the
	// detected bounding box is trusted over the centered fallback.
	minEdgePoints = 200

	lowerPercentile = 0.08
	upperPercentile = 0.92
)

// DetectCardBounds locates the card within a photograph. It samples a regular
// grid, marks points whose local gradient and variance suggest card edges or
// printed detail, and takes a percentile bounding box over those points
// adjusted to the canonical card aspect ratio. Too few qualifying points
// means a flat or washed-out frame; then a centered canonical-ratio crop is
// used instead.
func DetectCardBounds(img image.Image) image.Rectangle {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 8 || h < 8 {
		return bounds
	}

	shorter := w
	if h < shorter {
		shorter = h
	}
	stride := shorter / 300
	if stride < 2 {
		stride = 2
	}

	rgba := cropRect(img, bounds)
	var xs, ys []float64
	for y := stride; y < h-stride; y += stride {
		for x := stride; x < w-stride; x += stride {
			if edgeMagnitude(rgba, x, y, stride) >= edgeThreshold {
				xs = append(xs, float64(x))
				ys = append(ys, float64(y))
			}
		}
	}

	if len(xs) < minEdgePoints {
		return centeredCardRect(bounds)
	}

	sort.Float64s(xs)
	sort.Float64s(ys)
	x0 := stat.Quantile(lowerPercentile, stat.Empirical, xs, nil)
	x1 := stat.Quantile(upperPercentile, stat.Empirical, xs, nil)
	y0 := stat.Quantile(lowerPercentile, stat.Empirical, ys, nil)
	y1 := stat.Quantile(upperPercentile, stat.Empirical, ys, nil)

	rect := image.Rect(
		bounds.Min.X+int(x0),
		bounds.Min.Y+int(y0),
		bounds.Min.X+int(math.Ceil(x1)),
		bounds.Min.Y+int(math.Ceil(y1)),
	)
	return adjustToAspect(rect, bounds)
}

// edgeMagnitude combines the horizontal/vertical intensity gradients at a
// point with the spread of its neighborhood.
func edgeMagnitude(img *image.RGBA, x, y, stride int) float64 {
	center := luminanceAt(img, x, y)
	east := luminanceAt(img, x+stride, y)
	west := luminanceAt(img, x-stride, y)
	south := luminanceAt(img, x, y+stride)
	north := luminanceAt(img, x, y-stride)

	gradient := (math.Abs(east-west) + math.Abs(south-north)) / 2
	_, variance := stat.MeanVariance([]float64{center, east, west, south, north}, nil)
	return gradient + math.Sqrt(variance)
}

// adjustToAspect grows the shorter dimension of rect until it matches the
// canonical card ratio, centered, clamped to the image bounds.
func adjustToAspect(rect, bounds image.Rectangle) image.Rectangle {
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	if w < 1 || h < 1 {
		return centeredCardRect(bounds)
	}

	cx := float64(rect.Min.X) + w/2
	cy := float64(rect.Min.Y) + h/2
	if w/h < cardAspectRatio {
		w = h * cardAspectRatio
	} else {
		h = w / cardAspectRatio
	}

	adjusted := image.Rect(
		int(cx-w/2),
		int(cy-h/2),
		int(cx+w/2),
		int(cy+h/2),
	).Intersect(bounds)
	if adjusted.Empty() {
		return centeredCardRect(bounds)
	}
	return adjusted
}

// centeredCardRect is the fallback crop: 78% of the frame width at the
// canonical ratio, shrunk when the resulting height would exceed 90% of the
// frame.
func centeredCardRect(bounds image.Rectangle) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())

	cw := math.Floor(w * 0.78)
	ch := cw / cardAspectRatio
	if ch > h*0.9 {
		ch = h * 0.9
		cw = ch * cardAspectRatio
	}

	x0 := bounds.Min.X + int((w-cw)/2)
	y0 := bounds.Min.Y + int((h-ch)/2)
	return image.Rect(x0, y0, x0+int(cw), y0+int(ch)).Intersect(bounds)
}

// innerRect shrinks rect to scale linear size, centered.
func innerRect(rect image.Rectangle, scale float64) image.Rectangle {
	w := float64(rect.Dx()) * scale
	h := float64(rect.Dy()) * scale
	x0 := float64(rect.Min.X) + (float64(rect.Dx())-w)/2
	y0 := float64(rect.Min.Y) + (float64(rect.Dy())-h)/2
	return image.Rect(int(x0), int(y0), int(x0+w), int(y0+h))
}

package imagehash

import (
	"image"
	"image/color"
	"testing"
)

// checkerboard builds a synthetic raster with enough structure that hashes
// are non-trivial.
func checkerboard(w, h, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			shade := uint8(40)
			if (x/cell+y/cell)%2 == 0 {
				shade = 220
			}
			img.Set(x, y, color.RGBA{shade, shade, shade, 255})
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			shade := uint8((x * 255) / w)
			img.Set(x, y, color.RGBA{shade, shade, shade, 255})
		}
	}
	return img
}

func TestFromImageIsDeterministic(t *testing.T) {
	img := checkerboard(320, 448, 16)
	first := FromImage(img)
	second := FromImage(img)
	if first != second {
		t.Fatalf("same raster produced different fingerprints: %+v vs %+v", first, second)
	}
}

func TestBlendedDistanceSymmetry(t *testing.T) {
	a := FromImage(checkerboard(320, 448, 16))
	b := FromImage(gradientImage(320, 448))
	if BlendedDistance(a, b) != BlendedDistance(b, a) {
		t.Fatal("blended distance must be symmetric")
	}
}

func TestBlendedDistanceZeroForIdenticalTriples(t *testing.T) {
	a := FromImage(checkerboard(320, 448, 16))
	if got := BlendedDistance(a, a); got != 0 {
		t.Fatalf("distance to self = %d, want 0", got)
	}
}

func TestConfidenceEndpointsAndMonotonicity(t *testing.T) {
	if got := Confidence(0); got != 100 {
		t.Fatalf("Confidence(0) = %d, want 100", got)
	}
	if got := Confidence(HashBits); got != 0 {
		t.Fatalf("Confidence(64) = %d, want 0", got)
	}
	if got := Confidence(HashBits + 10); got != 0 {
		t.Fatalf("Confidence beyond range = %d, want 0", got)
	}
	prev := 101
	for d := 0; d <= HashBits; d++ {
		c := Confidence(d)
		if c > prev {
			t.Fatalf("confidence increased from %d to %d at distance %d", prev, c, d)
		}
		prev = c
	}
}

func TestHashDistanceCountsBits(t *testing.T) {
	var a, b Hash
	a = 0
	b = 0xFF
	if got := a.Distance(b); got != 8 {
		t.Fatalf("Distance = %d, want 8", got)
	}
}

func TestCenteredFallbackRespectsAspectRatio(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 1400)
	rect := centeredCardRect(bounds)
	w := rect.Dx()
	if w != 780 {
		t.Fatalf("fallback width = %d, want 780", w)
	}
	ratio := float64(rect.Dx()) / float64(rect.Dy())
	if ratio < cardAspectRatio-0.01 || ratio > cardAspectRatio+0.01 {
		t.Fatalf("fallback ratio = %.3f, want about %.3f", ratio, cardAspectRatio)
	}
}

func TestCenteredFallbackClampsTallCrops(t *testing.T) {
	// A wide, short frame forces the height clamp.
	bounds := image.Rect(0, 0, 1200, 400)
	rect := centeredCardRect(bounds)
	if rect.Dy() > 360 {
		t.Fatalf("fallback height = %d, want at most 360", rect.Dy())
	}
}

func TestDetectCardBoundsFallsBackOnFlatImage(t *testing.T) {
	flat := image.NewRGBA(image.Rect(0, 0, 600, 840))
	want := centeredCardRect(flat.Bounds())
	if got := DetectCardBounds(flat); got != want {
		t.Fatalf("flat frame should use centered fallback, got %v want %v", got, want)
	}
}

func TestDownscaleLongEdge(t *testing.T) {
	img := checkerboard(2048, 1024, 32)
	scaled := DownscaleLongEdge(img, 1024)
	if scaled.Bounds().Dx() != 1024 || scaled.Bounds().Dy() != 512 {
		t.Fatalf("unexpected scaled bounds: %v", scaled.Bounds())
	}

	small := checkerboard(400, 300, 16)
	if got := DownscaleLongEdge(small, 1024); got != image.Image(small) {
		t.Fatal("images within bounds should be returned unchanged")
	}
}

func TestCropBottomBand(t *testing.T) {
	img := checkerboard(400, 1000, 16)
	band := CropBottomBand(img, 0.24, 0.01)
	if got := band.Bounds().Dy(); got != 240 {
		t.Fatalf("band height = %d, want 240", got)
	}
	if got := band.Bounds().Dx(); got != 400 {
		t.Fatalf("band width = %d, want 400", got)
	}
}

func TestEncodeDecodeJPEGRoundTrip(t *testing.T) {
	img := checkerboard(64, 64, 8)
	data, err := EncodeJPEG(img, 78)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	decoded, err := DecodeBytes(data)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Fatalf("bounds changed across round trip: %v", decoded.Bounds())
	}
}

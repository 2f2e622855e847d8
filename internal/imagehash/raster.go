package imagehash

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// Decode reads a JPEG or PNG image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DecodeBytes decodes an in-memory JPEG or PNG image.
func DecodeBytes(data []byte) (image.Image, error) {
	return Decode(bytes.NewReader(data))
}

// EncodeJPEG re-encodes an image at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// DownscaleLongEdge scales an image so its longer edge is at most maxEdge
// pixels, preserving aspect ratio. Images already within bounds are returned
// unchanged.
func DownscaleLongEdge(img image.Image, maxEdge int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if maxEdge <= 0 || longest <= maxEdge {
		return img
	}
	scale := float64(maxEdge) / float64(longest)
	return scaleTo(img, int(float64(w)*scale), int(float64(h)*scale))
}

// CropBottomBand extracts the lower portion of an image where catalog
// numbers are conventionally printed. band is the fraction of image height
// to keep and inset trims the very bottom edge.
func CropBottomBand(img image.Image, band, inset float64) image.Image {
	bounds := img.Bounds()
	h := bounds.Dy()
	bandPx := int(float64(h) * band)
	insetPx := int(float64(h) * inset)
	if bandPx < 1 {
		bandPx = 1
	}
	top := bounds.Max.Y - insetPx - bandPx
	if top < bounds.Min.Y {
		top = bounds.Min.Y
	}
	rect := image.Rect(bounds.Min.X, top, bounds.Max.X, bounds.Max.Y-insetPx)
	return cropRect(img, rect)
}

func scaleTo(img image.Image, w, h int) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}

func cropRect(img image.Image, rect image.Rectangle) *image.RGBA {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		rect = img.Bounds()
	}
	dst := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(dst, dst.Bounds(), img, rect.Min, draw.Src)
	return dst
}

// luminanceGrid downsamples an image to size x size and returns per-cell
// luminance as mean of R, G, B.
func luminanceGrid(img image.Image, size int) []float64 {
	small := scaleTo(img, size, size)
	grid := make([]float64, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			grid = append(grid, luminanceAt(small, x, y))
		}
	}
	return grid
}

func luminanceAt(img *image.RGBA, x, y int) float64 {
	offset := img.PixOffset(img.Bounds().Min.X+x, img.Bounds().Min.Y+y)
	r := float64(img.Pix[offset])
	g := float64(img.Pix[offset+1])
	b := float64(img.Pix[offset+2])
	return (r + g + b) / 3
}

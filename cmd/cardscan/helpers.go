package main

import (
	"fmt"
	"image"
	"os"

	"cardscan/internal/config"
	"cardscan/internal/imagehash"
)

func loadImage(path string) (image.Image, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer file.Close()
	img, err := imagehash.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

func formatMoney(value float64, currency string) string {
	if currency == "" {
		return fmt.Sprintf("%.2f", value)
	}
	return fmt.Sprintf("%.2f %s", value, currency)
}

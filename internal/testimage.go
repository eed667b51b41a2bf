// Package internal provides shared test helpers.
package internal

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// TestImage generates a deterministic gradient image.
func TestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{
				R: uint8(x * 255 / max(width-1, 1)),
				G: uint8(y * 255 / max(height-1, 1)),
				B: uint8((x + y) % 256),
				A: 255,
			})
		}
	}
	return img
}

// WriteTestImage writes a generated PNG into dir and returns its path.
func WriteTestImage(t *testing.T, dir string, width, height int) string {
	t.Helper()
	filePath := filepath.Join(dir, "source.png")
	f, err := os.Create(filePath)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, TestImage(width, height)); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return filePath
}

package enrich

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"strings"

	// Raster formats seen in the wild; decoders register themselves.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is one decoded raster document: the RGBA pixel buffer plus its
// dimensions, keyed by the normalized URL it was fetched from.
type Image struct {
	URL    string
	Width  int
	Height int
	Pixels []byte // RGBA, row-major
}

// DecodeImage decodes a raster payload into an RGBA buffer. Unreadable
// payloads are an error so the caller drops the item.
func DecodeImage(data []byte, normalizedURL string) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	return &Image{
		URL:    normalizedURL,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: rgba.Pix,
	}, nil
}

// imageExtensions are URL suffixes treated as raster documents when deciding
// whether a url entity should be promoted to an image.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".tiff", ".tif"}

// LooksLikeImageURL reports whether a normalized URL plausibly points at a
// raster image.
func LooksLikeImageURL(normalizedURL string) bool {
	lower := strings.ToLower(normalizedURL)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

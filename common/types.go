// package common contains common types and helpers used throughout the toolkit. They are not interface-wrapped
// structs, just plain structs and functions that express commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image holds decoded RGBA8 pixel data pending upload into a texture.
type Image struct {
	// Pixels is the RGBA pixel data, 4 bytes per pixel, row-major.
	Pixels []byte
	// Width is the image width in pixels.
	Width int
	// Height is the image height in pixels.
	Height int
}

// DecodeImage decodes a PNG, JPEG, WebP, BMP or TIFF stream into RGBA8 pixels.
//
// Parameters:
//   - r: the encoded image stream
//
// Returns:
//   - *Image: the decoded pixels
//   - error: error if decoding fails
func DecodeImage(r io.Reader) (*Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)
	return &Image{Pixels: rgba.Pix, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// DecodeImageBytes decodes an in-memory image, such as an image embedded in a GLB buffer view.
func DecodeImageBytes(data []byte) (*Image, error) {
	return DecodeImage(bytes.NewReader(data))
}

// LoadImage opens and decodes an image file from disk.
//
// Parameters:
//   - path: the image file path
//
// Returns:
//   - *Image: the decoded pixels
//   - error: error if the file cannot be opened or decoded
func LoadImage(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer file.Close()
	img, err := DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

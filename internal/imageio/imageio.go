// Package imageio decodes uploaded images and exposes them as extraction
// documents. PNG and JPEG pass through unchanged; GIF, BMP, TIFF and WebP are
// re-encoded as PNG so every backend sees a format it accepts.
package imageio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pdftext/internal/extraction"
	"pdftext/internal/logger"
)

// JPEGQuality is used when converting images for the hosted model.
const JPEGQuality = 90

// ErrUnsupportedFormat is returned for data no registered decoder accepts.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// MIMEType maps a decoder format name to its MIME type.
func MIMEType(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff":
		return "image/tiff"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Decode decodes data with any registered image decoder.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

// Normalize returns data as PNG or JPEG, re-encoding other formats to PNG.
func Normalize(data []byte) ([]byte, string, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, "", err
	}
	switch format {
	case "png", "jpeg":
		return data, MIMEType(format), nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), "image/png", nil
}

// ToJPEG returns data as JPEG. JPEG input is returned as is; transparent
// areas are flattened onto white.
func ToJPEG(data []byte) ([]byte, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if format == "jpeg" {
		return data, nil
	}

	b := img.Bounds()
	flat := image.NewRGBA(b)
	draw.Draw(flat, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(flat, b, img, b.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Document is a list of image files processed as pages.
type Document struct {
	paths []string
}

// NewDocument returns a Document whose pages are the given image files in
// order.
func NewDocument(paths ...string) *Document {
	return &Document{paths: paths}
}

// Name implements extraction.Document.
func (d *Document) Name() string {
	if len(d.paths) == 1 {
		return filepath.Base(d.paths[0])
	}
	return fmt.Sprintf("%d images", len(d.paths))
}

// Units implements extraction.Document. Images carry no text layer, so the
// direct outcome is always unavailable.
func (d *Document) Units(ctx context.Context) ([]extraction.Unit, error) {
	if len(d.paths) == 0 {
		return nil, extraction.Unreadable("Units", errors.New("no images given"))
	}

	units := make([]extraction.Unit, len(d.paths))
	for i, path := range d.paths {
		page := i + 1
		units[i] = extraction.Unit{
			Index:  page,
			Direct: extraction.UnavailableOutcome(nil),
			Render: func(ctx context.Context) (extraction.Image, error) {
				return Load(path, page)
			},
		}
	}

	log := logger.WithComponent("imageio")
	log.Debug().
		Int("images", len(units)).
		Msg("Image document prepared")

	return units, nil
}

// Rasterizable implements extraction.Document. Images need no renderer.
func (d *Document) Rasterizable() error { return nil }

// Warnings implements extraction.Document.
func (d *Document) Warnings() []error { return nil }

// Load reads and normalizes one image file.
func Load(path string, page int) (extraction.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return extraction.Image{}, fmt.Errorf("read image: %w", err)
	}
	norm, mime, err := Normalize(data)
	if err != nil {
		return extraction.Image{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return extraction.Image{Data: norm, MIMEType: mime, Page: page}, nil
}

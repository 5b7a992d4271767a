package ocr_test

import (
	"context"
	"errors"
	"fmt"

	"pdftext/internal/extraction"
	"pdftext/internal/ocr"
)

// staticRecognizer returns the same text for every image.
type staticRecognizer string

func (s staticRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*ocr.OCRResult, error) {
	if s == "" {
		return nil, ocr.ErrEmptyDocument
	}
	return &ocr.OCRResult{Text: string(s), Confidence: 0.93}, nil
}

func (staticRecognizer) Close() error { return nil }

// ExampleBackend shows how a Recognizer becomes an extraction backend.
func ExampleBackend() {
	backend := ocr.NewBackend("tesseract", staticRecognizer("Total: 19.99 EUR"))
	defer backend.Close()

	out := backend.Extract(context.Background(), extraction.Image{Data: []byte("png"), Page: 1})
	fmt.Println(out.Status, out.Text)
	// Output: text Total: 19.99 EUR
}

// ExampleBackend_errorHandling shows that failures come back as outcomes.
func ExampleBackend_errorHandling() {
	backend := ocr.NewBackend("tesseract", staticRecognizer("unused"))

	out := backend.Extract(context.Background(), extraction.Image{Page: 3})
	fmt.Println(out.Status)
	fmt.Println(errors.Is(out.Err, ocr.ErrEmptyImage))
	fmt.Println(errors.Is(out.Err, extraction.ErrBackendCallFailed))
	// Output:
	// failed
	// true
	// true
}

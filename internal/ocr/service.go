// Package ocr provides optical character recognition for rendered pages and
// uploaded images.
//
// Three engines are available behind the Recognizer interface:
//   - Tesseract: local engine, run as the tesseract CLI or, when built with
//     the "ocr" tag, linked through gosseract
//   - Google Cloud Vision: DOCUMENT_TEXT_DETECTION on inline image content
//   - Google Document AI: an OCR processor fed with a raw image document
//
// Cloud engines read credentials from the environment:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Backend adapts any Recognizer to the extraction pipeline. It never returns
// an error to its caller: failures become failed outcomes.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"pdftext/internal/extraction"
	"pdftext/internal/logger"
)

// MaxImageSizeBytes is the largest image sent to any engine (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// Recognizer extracts text from a single image.
type Recognizer interface {
	// Recognize returns the text found in the image. ErrEmptyDocument means
	// the engine ran and found nothing.
	Recognize(ctx context.Context, data []byte, mimeType string) (*OCRResult, error)

	// Close releases engine resources.
	Close() error
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the recognized text in reading order.
	Text string `json:"text"`

	// Confidence is the average confidence reported by the engine (0.0 to 1.0),
	// or 0 when the engine does not report one.
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages in the image.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// Backend implements extraction.Backend on top of a Recognizer.
type Backend struct {
	name string
	rec  Recognizer
	log  zerolog.Logger
}

// NewBackend wraps rec as an extraction backend named name.
func NewBackend(name string, rec Recognizer) *Backend {
	return &Backend{
		name: name,
		rec:  rec,
		log:  logger.WithComponent("ocr").With().Str("engine", name).Logger(),
	}
}

// Name implements extraction.Backend.
func (b *Backend) Name() string {
	return b.name
}

// Extract implements extraction.Backend.
func (b *Backend) Extract(ctx context.Context, img extraction.Image) extraction.Outcome {
	const op = "Extract"

	switch {
	case len(img.Data) == 0:
		return b.fail(img.Page, WrapOCRError(op, ErrEmptyImage, ""))
	case len(img.Data) > MaxImageSizeBytes:
		return b.fail(img.Page, WrapOCRError(op, ErrImageTooLarge, fmt.Sprintf("image size: %d bytes", len(img.Data))))
	}

	start := time.Now()
	result, err := b.rec.Recognize(ctx, img.Data, img.MIMEType)
	if errors.Is(err, ErrEmptyDocument) {
		b.log.Debug().Int("page", img.Page).Msg("No text recognized")
		return extraction.TextOutcome("")
	}
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			err = fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		return b.fail(img.Page, err)
	}

	b.log.Debug().
		Int("page", img.Page).
		Int("chars", len(result.Text)).
		Float32("confidence", result.Confidence).
		Strs("languages", result.LanguageCodes).
		Dur("duration", time.Since(start)).
		Msg("Page recognized")

	return extraction.TextOutcome(result.Text)
}

func (b *Backend) fail(page int, err error) extraction.Outcome {
	return extraction.FailedOutcome(extraction.NewBackendError(b.name, page, err))
}

// Close closes the underlying Recognizer.
func (b *Backend) Close() error {
	if b.rec == nil {
		return nil
	}
	return b.rec.Close()
}

// credentialOptions returns client options for Google Cloud credentials.
// Inline GOOGLE_CREDENTIALS take precedence over a credentials file; with
// neither set the client falls back to application default credentials.
func credentialOptions() []option.ClientOption {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}
	}
	return nil
}

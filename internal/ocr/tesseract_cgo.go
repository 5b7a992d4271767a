//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"pdftext/internal/command"
)

// TesseractConfig configures the local tesseract engine.
type TesseractConfig struct {
	// Path is the tesseract binary. Ignored by the gosseract build.
	Path string

	// Lang is one or more "+"-separated language codes (e.g., "eng+deu").
	Lang string
}

// TesseractRecognizer implements Recognizer with libtesseract via gosseract.
// A gosseract client is not safe for concurrent use, so calls are serialized.
type TesseractRecognizer struct {
	mu     sync.Mutex
	client *gosseract.Client
	langs  []string
}

// NewTesseractRecognizer creates a gosseract client for cfg.Lang. The runner
// is unused in this build.
func NewTesseractRecognizer(cfg TesseractConfig, _ command.Runner) (*TesseractRecognizer, error) {
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	langs := strings.Split(cfg.Lang, "+")

	client := gosseract.NewClient()
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, WrapOCRError("NewTesseractRecognizer", fmt.Errorf("%w: %w", ErrEngineNotInstalled, err), cfg.Lang)
	}
	return &TesseractRecognizer{client: client, langs: langs}, nil
}

// Recognize implements Recognizer.
func (t *TesseractRecognizer) Recognize(ctx context.Context, data []byte, _ string) (*OCRResult, error) {
	const op = "TesseractRecognize"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(data); err != nil {
		return nil, WrapOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), "failed to set image")
	}
	text, err := t.client.Text()
	if err != nil {
		return nil, WrapOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), "")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return &OCRResult{Text: text, LanguageCodes: t.langs}, nil
}

// Close releases OCR resources.
func (t *TesseractRecognizer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

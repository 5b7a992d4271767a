//go:build !ocr

package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdftext/internal/command"
)

// TesseractConfig configures the local tesseract engine.
type TesseractConfig struct {
	// Path is the tesseract binary. Ignored by the gosseract build.
	Path string

	// Lang is one or more "+"-separated language codes (e.g., "eng+deu").
	Lang string
}

// TesseractRecognizer implements Recognizer by running the tesseract CLI.
// Build with -tags ocr to link libtesseract through gosseract instead.
type TesseractRecognizer struct {
	cfg    TesseractConfig
	runner command.Runner

	once    sync.Once
	lookErr error
}

// NewTesseractRecognizer returns a recognizer for the tesseract binary in
// cfg.Path. It fails with ErrEngineNotInstalled when the binary is missing.
func NewTesseractRecognizer(cfg TesseractConfig, runner command.Runner) (*TesseractRecognizer, error) {
	if cfg.Path == "" {
		cfg.Path = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	if runner == nil {
		runner = command.Exec{}
	}
	t := &TesseractRecognizer{cfg: cfg, runner: runner}
	if err := t.available(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TesseractRecognizer) available() error {
	t.once.Do(func() {
		if _, err := t.runner.LookPath(t.cfg.Path); err != nil {
			t.lookErr = WrapOCRError("NewTesseractRecognizer", fmt.Errorf("%w: %w", ErrEngineNotInstalled, err), t.cfg.Path)
		}
	})
	return t.lookErr
}

// Recognize implements Recognizer. tesseract reads from a file, so the image
// is written to a temporary file first.
func (t *TesseractRecognizer) Recognize(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	const op = "TesseractRecognize"

	tmpDir, err := os.MkdirTemp("", "pdftext-ocr-*")
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create temp dir")
	}
	defer os.RemoveAll(tmpDir)

	path := filepath.Join(tmpDir, "image"+extensionFor(mimeType))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, WrapOCRError(op, err, "failed to write image")
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := t.runner.Run(ctx, t.cfg.Path, path, "stdout", "-l", t.cfg.Lang)
	if err != nil {
		return nil, WrapOCRError(op, fmt.Errorf("%w: %w", ErrOCRFailed, err), strings.TrimSpace(string(errb)))
	}

	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, ErrEmptyDocument
	}
	return &OCRResult{Text: text, LanguageCodes: strings.Split(t.cfg.Lang, "+")}, nil
}

// Close implements Recognizer.
func (t *TesseractRecognizer) Close() error {
	return nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/tiff":
		return ".tif"
	case "image/bmp":
		return ".bmp"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

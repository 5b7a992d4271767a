// Package pdfdoc opens PDF files as extraction documents.
//
// Page count and structural validation come from pdfcpu, the embedded text
// layer from ledongthuc/pdf with pdftotext as a fallback for sparse results,
// and page images from pdftoppm (poppler-utils). Rendering is optional: when
// pdftoppm is not installed the document still yields its text layer.
package pdfdoc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog"

	"pdftext/internal/command"
	"pdftext/internal/extraction"
	"pdftext/internal/logger"
)

var (
	// ErrInvalidPDF is returned when the file does not carry a PDF header.
	ErrInvalidPDF = errors.New("invalid or corrupted PDF document")

	// ErrEmptyFile is returned for zero-byte input.
	ErrEmptyFile = errors.New("PDF file is empty")

	// ErrNoPages is returned when the document has no pages.
	ErrNoPages = errors.New("PDF has no pages")
)

func init() {
	// pdfcpu would otherwise create a config directory under the user's home.
	api.DisableConfigDir()
}

// Config controls text-layer fallback and rendering.
type Config struct {
	// Pdftoppm and Pdftotext name the poppler binaries.
	Pdftoppm  string
	Pdftotext string

	// DPI is the rendering resolution.
	DPI int

	// MinTextChars is the total trimmed text-layer length under which the
	// pdftotext fallback is tried.
	MinTextChars int
}

// DefaultConfig returns the poppler defaults.
func DefaultConfig() Config {
	return Config{
		Pdftoppm:     "pdftoppm",
		Pdftotext:    "pdftotext",
		DPI:          300,
		MinTextChars: 100,
	}
}

// Document is a PDF file on disk. It is opened lazily by Units so that an
// unreadable file surfaces through the aggregator as a document-level error.
type Document struct {
	path   string
	cfg    Config
	runner command.Runner
	log    zerolog.Logger

	mu       sync.Mutex
	warnings []error

	rasterOnce sync.Once
	rasterErr  error
}

// New returns a Document for the file at path.
func New(path string, cfg Config, runner command.Runner) *Document {
	def := DefaultConfig()
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = def.Pdftoppm
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = def.Pdftotext
	}
	if cfg.DPI <= 0 {
		cfg.DPI = def.DPI
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = def.MinTextChars
	}
	if runner == nil {
		runner = command.Exec{}
	}
	return &Document{
		path:   path,
		cfg:    cfg,
		runner: runner,
		log:    logger.WithComponent("pdfdoc").With().Str("file", filepath.Base(path)).Logger(),
	}
}

// Name implements extraction.Document.
func (d *Document) Name() string {
	return filepath.Base(d.path)
}

// Warnings implements extraction.Document.
func (d *Document) Warnings() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.warnings...)
}

func (d *Document) warn(err error) {
	d.mu.Lock()
	d.warnings = append(d.warnings, err)
	d.mu.Unlock()
	d.log.Warn().Err(err).Msg("Document warning")
}

// Rasterizable implements extraction.Document. The pdftoppm lookup happens
// once per document.
func (d *Document) Rasterizable() error {
	d.rasterOnce.Do(func() {
		if _, err := d.runner.LookPath(d.cfg.Pdftoppm); err != nil {
			d.rasterErr = fmt.Errorf("pdftoppm not available: %w", err)
		}
	})
	return d.rasterErr
}

// Units implements extraction.Document.
func (d *Document) Units(ctx context.Context) ([]extraction.Unit, error) {
	const op = "Units"

	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, extraction.Unreadable(op, fmt.Errorf("failed to read PDF file: %w", err))
	}
	pageCount, err := PageCount(data)
	if err != nil {
		return nil, extraction.Unreadable(op, err)
	}

	direct := d.textLayer(ctx, data, pageCount)

	direct, err = extraction.AlignPages(direct, pageCount)
	if err != nil {
		d.warn(err)
	}

	units := make([]extraction.Unit, len(direct))
	for i := range direct {
		page := i + 1
		units[i] = extraction.Unit{Index: page, Direct: direct[i]}
		if page <= pageCount {
			units[i].Render = func(ctx context.Context) (extraction.Image, error) {
				return d.renderPage(ctx, page)
			}
		}
	}

	d.log.Debug().
		Int("pages", pageCount).
		Int("units", len(units)).
		Msg("PDF opened")

	return units, nil
}

// PageCount validates data as a PDF and returns its number of pages.
func PageCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyFile
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return 0, fmt.Errorf("%w: missing PDF header", ErrInvalidPDF)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPDF, err)
	}
	if n == 0 {
		return 0, ErrNoPages
	}
	return n, nil
}

// textLayer returns one direct-text outcome per page. When the primary
// parser yields little text, pdftotext is tried and kept if it finds more.
func (d *Document) textLayer(ctx context.Context, data []byte, pageCount int) []extraction.Outcome {
	pages, err := ParseTextLayer(data)
	if err != nil {
		d.log.Warn().Err(err).Msg("Text layer parse failed")
	}

	if totalChars(pages) >= d.cfg.MinTextChars {
		return outcomes(pages)
	}

	alt, altErr := d.pdftotext(ctx)
	if altErr != nil {
		d.log.Debug().Err(altErr).Msg("pdftotext fallback unavailable")
		if pages == nil && err != nil {
			return failedPages(pageCount, err)
		}
		return outcomes(pages)
	}

	if totalChars(alt) > totalChars(pages) {
		d.log.Info().
			Int("primary_chars", totalChars(pages)).
			Int("pdftotext_chars", totalChars(alt)).
			Msg("Using pdftotext text layer")
		return outcomes(alt)
	}
	if pages == nil && err != nil {
		return failedPages(pageCount, err)
	}
	return outcomes(pages)
}

// pdftotext extracts the text layer with poppler. Pages are separated by
// form feeds.
func (d *Document) pdftotext(ctx context.Context) ([]string, error) {
	if _, err := d.runner.LookPath(d.cfg.Pdftotext); err != nil {
		return nil, err
	}
	out, errb, err := d.runner.Run(ctx, d.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", d.path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed: %w (stderr: %s)", err, strings.TrimSpace(string(errb)))
	}
	return SplitFormFeeds(string(out)), nil
}

// SplitFormFeeds splits pdftotext output into pages, dropping the empty
// segment after the final form feed.
func SplitFormFeeds(s string) []string {
	if s == "" {
		return nil
	}
	pages := strings.Split(s, "\f")
	if len(pages) > 1 && strings.TrimSpace(pages[len(pages)-1]) == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

func totalChars(pages []string) int {
	n := 0
	for _, p := range pages {
		n += len([]rune(strings.TrimSpace(p)))
	}
	return n
}

func outcomes(pages []string) []extraction.Outcome {
	out := make([]extraction.Outcome, len(pages))
	for i, p := range pages {
		out[i] = extraction.TextOutcome(p)
	}
	return out
}

func failedPages(n int, err error) []extraction.Outcome {
	out := make([]extraction.Outcome, n)
	for i := range out {
		out[i] = extraction.FailedOutcome(&extraction.ExtractionError{
			Op:      "TextLayer",
			Backend: "direct",
			Page:    i + 1,
			Err:     fmt.Errorf("%w: %w", extraction.ErrBackendCallFailed, err),
		})
	}
	return out
}

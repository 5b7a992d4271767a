package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pdftext/internal/aivision"
	"pdftext/internal/command"
	"pdftext/internal/config"
	"pdftext/internal/extraction"
	"pdftext/internal/ocr"
	"pdftext/internal/pdfdoc"
	"pdftext/internal/sheets"
)

// runOptions are the flags shared by extract and images.
type runOptions struct {
	output   string
	json     bool
	compare  bool
	strategy string
	ocr      string
	noAI     bool
	apiKey   string
	workers  int
	timeout  int
	sheet    string
}

func addRunFlags(c *cobra.Command) {
	c.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	c.Flags().Bool("json", false, "Output the full report as JSON")
	c.Flags().Bool("compare", false, "Show every method's text per page")
	c.Flags().String("strategy", "", "Reconciliation strategy: ai-preferred (ai) or length-ratio (ratio) (default from RECONCILE_STRATEGY)")
	c.Flags().String("ocr", "", "OCR provider: tesseract, vision, documentai or none (default from OCR_PROVIDER)")
	c.Flags().Bool("no-ai", false, "Do not call the hosted vision model")
	c.Flags().String("api-key", "", "API key for the hosted vision model (overrides AI_API_KEY)")
	c.Flags().Int("workers", 0, "Pages processed concurrently (default from EXTRACT_WORKERS)")
	c.Flags().Int("timeout", 600, "Overall processing timeout in seconds (0 for none)")
	c.Flags().String("sheet", "", "Google Sheets URL to append per-page results to (overrides GOOGLE_SHEET_URL)")
}

func readRunOptions(c *cobra.Command) runOptions {
	var o runOptions
	o.output, _ = c.Flags().GetString("output")
	o.json, _ = c.Flags().GetBool("json")
	o.compare, _ = c.Flags().GetBool("compare")
	o.strategy, _ = c.Flags().GetString("strategy")
	o.ocr, _ = c.Flags().GetString("ocr")
	o.noAI, _ = c.Flags().GetBool("no-ai")
	o.apiKey, _ = c.Flags().GetString("api-key")
	o.workers, _ = c.Flags().GetInt("workers")
	o.timeout, _ = c.Flags().GetInt("timeout")
	o.sheet, _ = c.Flags().GetString("sheet")
	return o
}

// loadConfig reads the environment configuration and applies flag
// overrides. Overrides produce a new Config; the loaded one is not modified.
func loadConfig(o runOptions) (*config.Config, error) {
	base, err := config.Load()
	if err != nil {
		return nil, err
	}
	return base.With(func(c *config.Config) {
		if o.strategy != "" {
			c.Strategy = o.strategy
		}
		if o.ocr != "" {
			c.OCRProvider = strings.ToLower(o.ocr)
		}
		if o.apiKey != "" {
			c.AIAPIKey = o.apiKey
		}
		if o.noAI {
			c.AIAPIKey = ""
		}
		if o.workers > 0 {
			c.Workers = o.workers
		}
		if o.sheet != "" {
			c.GoogleSheetURL = o.sheet
		}
	})
}

// backends holds the configured OCR and AI backends plus the notices for
// the ones that could not be built.
type backends struct {
	ocr     extraction.Backend
	ai      extraction.Backend
	notices []error
	closers []func() error
}

func (b *backends) Close() {
	for _, c := range b.closers {
		_ = c()
	}
}

// buildBackends creates the backends selected by cfg. Construction failures
// are recorded as notices, never returned.
func buildBackends(ctx context.Context, cfg *config.Config, aiDisabled bool, log zerolog.Logger) *backends {
	b := &backends{}

	if rec, err := newRecognizer(ctx, cfg); err != nil {
		b.notices = append(b.notices, extraction.Unavailable("ocr", err))
		log.Warn().Err(err).Str("provider", cfg.OCRProvider).Msg("OCR unavailable")
	} else if rec != nil {
		backend := ocr.NewBackend(cfg.OCRProvider, rec)
		b.ocr = backend
		b.closers = append(b.closers, backend.Close)
	}

	if aiDisabled {
		return b
	}
	client, err := aivision.New(aivision.Config{
		APIKey:            cfg.AIAPIKey,
		BaseURL:           cfg.AIBaseURL,
		Model:             cfg.AIModel,
		RequestsPerMinute: cfg.AIRequestsPerMinute,
		MaxRetries:        cfg.AIMaxRetries,
	})
	if err != nil {
		b.notices = append(b.notices, extraction.Unavailable(aivision.BackendName, err))
		log.Warn().Err(err).Msg("Hosted vision model unavailable")
	} else {
		b.ai = client
	}
	return b
}

// newRecognizer returns nil, nil when OCR is switched off.
func newRecognizer(ctx context.Context, cfg *config.Config) (ocr.Recognizer, error) {
	switch cfg.OCRProvider {
	case config.OCRNone:
		return nil, nil
	case config.OCRVision:
		return ocr.NewVisionRecognizer(ctx)
	case config.OCRDocumentAI:
		return ocr.NewDocumentAIRecognizer(ctx, ocr.DocumentAIConfig{
			ProjectID:        cfg.GoogleCloudProject,
			Location:         cfg.GoogleCloudLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIProcessorVersion,
		})
	default:
		return ocr.NewTesseractRecognizer(ocr.TesseractConfig{
			Path: cfg.TesseractPath,
			Lang: cfg.TesseractLang,
		}, command.Exec{})
	}
}

// pdfConfig maps the tool settings onto the PDF document source.
func pdfConfig(cfg *config.Config) pdfdoc.Config {
	return pdfdoc.Config{
		Pdftoppm:  cfg.PdftoppmPath,
		Pdftotext: cfg.PdftotextPath,
		DPI:       cfg.RasterDPI,
	}
}

// runExtraction drives one document through the aggregator and writes the
// result.
func runExtraction(ctx context.Context, o runOptions, cfg *config.Config, doc extraction.Document, log zerolog.Logger) error {
	strategy, err := extraction.ParseStrategy(cfg.Strategy, cfg.FallbackText)
	if err != nil {
		return err
	}

	b := buildBackends(ctx, cfg, o.noAI, log)
	defer b.Close()

	agg := extraction.NewAggregator(extraction.Options{
		Strategy:      strategy,
		OCR:           b.ocr,
		AI:            b.ai,
		Workers:       cfg.Workers,
		AIConcurrency: cfg.AIMaxConcurrent,
		CallTimeout:   cfg.BackendTimeout,
		Notices:       b.notices,
		OnPage: func(p extraction.PageResult, done, total int) {
			log.Info().
				Int("page", p.PageIndex).
				Str("source", p.ChosenSource.String()).
				Msgf("Processed page %d/%d", done, total)
		},
	})

	report, err := agg.Run(ctx, doc)
	if err != nil && (report == nil || len(report.Pages) == 0) {
		return handleExtractionError(err, log)
	}

	printWarnings(report.Warnings)

	if werr := writeOutput(report, o, log); werr != nil {
		return werr
	}

	if cfg.GoogleSheetURL != "" {
		if serr := exportToSheet(ctx, cfg, report, log); serr != nil {
			return serr
		}
	}

	if err != nil {
		return handleExtractionError(err, log)
	}
	return nil
}

func exportToSheet(ctx context.Context, cfg *config.Config, report *extraction.Report, log zerolog.Logger) error {
	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create Google Sheets service")
		return fmt.Errorf("failed to connect to Google Sheets: %w", err)
	}
	if err := svc.WriteReport(ctx, report, cfg.GoogleSheetWorksheet); err != nil {
		log.Error().Err(err).Msg("Failed to write report to Google Sheet")
		return fmt.Errorf("failed to write report to Google Sheet: %w", err)
	}
	return nil
}

// printWarnings reports degraded capabilities to the operator once per run.
func printWarnings(warnings []error) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %v\n", w)

		var extErr *extraction.ExtractionError
		if !errors.As(w, &extErr) || !errors.Is(w, extraction.ErrBackendUnavailable) {
			continue
		}
		switch {
		case extErr.Backend == "rasterizer":
			fmt.Fprintf(os.Stderr, "OCR and AI extraction need pdftoppm.\n%s\n", command.HostPopplerInstallGuide())
		case errors.Is(w, ocr.ErrEngineNotInstalled):
			fmt.Fprintf(os.Stderr, "%s\n", command.HostTesseractInstallGuide())
		}
	}
}

// createContextWithTimeout creates a context with timeout and signal handling.
// A timeout of zero or less means no overall deadline.
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeoutSecs > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling extraction")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleExtractionError provides user-friendly error messages for failed runs
func handleExtractionError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout or processing fewer pages")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, pdfdoc.ErrEmptyFile):
		return fmt.Errorf("the PDF file is empty")
	case errors.Is(err, pdfdoc.ErrInvalidPDF):
		return fmt.Errorf("invalid or corrupted PDF file. Please check the file integrity")
	case errors.Is(err, pdfdoc.ErrNoPages):
		return fmt.Errorf("the PDF has no pages")
	case errors.Is(err, extraction.ErrDocumentUnreadable):
		return fmt.Errorf("the document could not be read: %w", err)
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}

// validateInputFile checks if the file exists, is a regular file and is not empty
func validateInputFile(path string, log zerolog.Logger) (os.FileInfo, error) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("File not found")
			return nil, fmt.Errorf("file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing file")
			return nil, fmt.Errorf("permission denied accessing file: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}

	if !fileInfo.Mode().IsRegular() {
		log.Error().Str("file", path).Msg("Path is not a regular file")
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}

	if fileInfo.Size() == 0 {
		log.Error().Str("file", path).Msg("File is empty")
		return nil, fmt.Errorf("file is empty: %s", path)
	}

	return fileInfo, nil
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"pdftext/internal/command"
	"pdftext/internal/logger"
	"pdftext/internal/pdfdoc"
)

var extractCmd = &cobra.Command{
	Use:   "extract [pdf-file]",
	Short: "Extract the text of every page of a PDF",
	Long: `Extract the text of a PDF page by page and reconcile the methods.

The embedded text layer is always read. When pdftoppm is installed each page
is also rendered and passed to the configured OCR provider and, when an API
key is set, to a hosted vision model. The reconciliation strategy then keeps
the best text per page.

Environment variables:
  AI_API_KEY / GEMINI_API_KEY - Key for the hosted vision model
  OCR_PROVIDER                - tesseract (default), vision, documentai or none
  RECONCILE_STRATEGY          - ai-preferred (default) or length-ratio
  GOOGLE_APPLICATION_CREDENTIALS / GOOGLE_CREDENTIALS - For vision and documentai`,
	Example: `  # Print the combined text of a scanned invoice
  pdftext extract invoice.pdf

  # Compare all methods side by side without calling the hosted model
  pdftext extract invoice.pdf --compare --no-ai

  # Full JSON report using Cloud Vision for OCR
  pdftext extract invoice.pdf --ocr vision --json -o report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addRunFlags(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")
	opts := readRunOptions(cmd)
	pdfPath := args[0]

	log.Info().
		Str("file", pdfPath).
		Str("output", opts.output).
		Bool("json", opts.json).
		Bool("compare", opts.compare).
		Int("timeout", opts.timeout).
		Msg("Starting extraction")

	fileInfo, err := validateInputFile(pdfPath, log)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(strings.ToLower(pdfPath), ".pdf") {
		log.Warn().
			Str("file", pdfPath).
			Msg("File does not have .pdf extension")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(opts.timeout, log)
	defer cancel()

	log.Info().
		Str("file", pdfPath).
		Int64("size", fileInfo.Size()).
		Msg("Processing PDF")

	doc := pdfdoc.New(pdfPath, pdfConfig(cfg), command.Exec{})
	return runExtraction(ctx, opts, cfg, doc, log)
}

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pdftext/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "pdftext",
	Short: "pdftext - extract text from PDFs and images with several methods",
	Long: `pdftext extracts the text of PDF documents and images page by page.

Each page is read with up to three methods: the PDF's embedded text layer,
OCR (tesseract, Google Cloud Vision or Document AI) on the rendered page, and
a hosted vision model. A reconciliation strategy keeps the best text for every
page and the pages are joined into one document text.

Missing tools or credentials never stop a run: the affected method is skipped
and a warning is printed.`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet, _ := cmd.Flags().GetBool("quiet"); quiet {
			logger.Discard()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Debug().
			Str("version", version).
			Msg("pdftext executed")

		fmt.Println("Welcome to pdftext!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress log output")
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
}

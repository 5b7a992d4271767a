package cmd

import (
	"github.com/spf13/cobra"

	"pdftext/internal/imageio"
	"pdftext/internal/logger"
)

var imagesCmd = &cobra.Command{
	Use:   "images [image-file...]",
	Short: "Extract text from one or more images",
	Long: `Extract text from image files, treating each image as one page.

Images have no text layer, so only OCR and the hosted vision model run.
PNG, JPEG, GIF, BMP, TIFF and WebP inputs are accepted.`,
	Example: `  # Two photographed receipt pages as one document
  pdftext images receipt-1.jpg receipt-2.jpg

  # OCR only
  pdftext images scan.png --no-ai`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImages,
}

func init() {
	rootCmd.AddCommand(imagesCmd)
	addRunFlags(imagesCmd)
}

func runImages(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("images")
	opts := readRunOptions(cmd)

	log.Info().
		Strs("files", args).
		Bool("json", opts.json).
		Int("timeout", opts.timeout).
		Msg("Starting image extraction")

	for _, path := range args {
		if _, err := validateInputFile(path, log); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(opts.timeout, log)
	defer cancel()

	return runExtraction(ctx, opts, cfg, imageio.NewDocument(args...), log)
}

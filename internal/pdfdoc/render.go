package pdfdoc

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pdftext/internal/extraction"
)

// renderPage renders a single page with pdftoppm and returns it as PNG.
func (d *Document) renderPage(ctx context.Context, page int) (extraction.Image, error) {
	tmpDir, err := os.MkdirTemp("", "pdftext-page-*")
	if err != nil {
		return extraction.Image{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(page)

	// -singlefile drops the page-number suffix from the output name
	_, errb, err := d.runner.Run(ctx, d.cfg.Pdftoppm,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(d.cfg.DPI),
		"-singlefile",
		d.path,
		outputPrefix,
	)
	if err != nil {
		return extraction.Image{}, fmt.Errorf("pdftoppm failed: %w (stderr: %s)", err, strings.TrimSpace(string(errb)))
	}

	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return extraction.Image{}, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	if len(data) == 0 {
		return extraction.Image{}, fmt.Errorf("pdftoppm produced an empty image for page %d", page)
	}

	return extraction.Image{Data: data, MIMEType: "image/png", Page: page}, nil
}

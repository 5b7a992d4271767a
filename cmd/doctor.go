package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"pdftext/internal/command"
	"pdftext/internal/config"
	"pdftext/internal/logger"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check which extraction methods are available",
	Long: `Check the external tools and credentials each extraction method needs
and print installation hints for anything missing.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// check is one line of the doctor report.
type check struct {
	Name   string
	OK     bool
	Detail string
	Hint   string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("doctor")

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	checks := diagnose(cfg, command.Exec{}, os.Getenv)
	printChecks(os.Stdout, checks)

	missing := 0
	for _, c := range checks {
		if !c.OK {
			missing++
		}
	}
	log.Info().
		Int("checks", len(checks)).
		Int("missing", missing).
		Msg("Doctor completed")
	return nil
}

// diagnose inspects tools and credentials without calling any remote API.
func diagnose(cfg *config.Config, runner command.Runner, getenv func(string) string) []check {
	var checks []check

	lookup := func(name, tool, hint string) {
		path, err := runner.LookPath(tool)
		if err != nil {
			checks = append(checks, check{Name: name, Detail: err.Error(), Hint: hint})
			return
		}
		checks = append(checks, check{Name: name, OK: true, Detail: path})
	}

	lookup("pdftoppm (page rendering)", cfg.PdftoppmPath, command.HostPopplerInstallGuide())
	lookup("pdftotext (text layer fallback)", cfg.PdftotextPath, command.HostPopplerInstallGuide())

	switch cfg.OCRProvider {
	case config.OCRTesseract:
		lookup("tesseract (OCR)", cfg.TesseractPath, command.HostTesseractInstallGuide())
	case config.OCRVision, config.OCRDocumentAI:
		c := check{Name: "Google credentials (OCR " + cfg.OCRProvider + ")"}
		switch {
		case getenv("GOOGLE_CREDENTIALS") != "":
			c.OK, c.Detail = true, "GOOGLE_CREDENTIALS"
		case getenv("GOOGLE_APPLICATION_CREDENTIALS") != "":
			c.OK, c.Detail = true, getenv("GOOGLE_APPLICATION_CREDENTIALS")
		default:
			c.Detail = "no explicit credentials, application default credentials will be tried"
			c.Hint = "Set GOOGLE_APPLICATION_CREDENTIALS to a service account JSON file or GOOGLE_CREDENTIALS to its content"
		}
		checks = append(checks, c)
		if cfg.OCRProvider == config.OCRDocumentAI && cfg.DocumentAIProcessorID == "" {
			checks = append(checks, check{
				Name:   "Document AI processor",
				Detail: "DOCUMENT_AI_PROCESSOR_ID is not set",
				Hint:   "Create an OCR processor in the Google Cloud console and set DOCUMENT_AI_PROCESSOR_ID",
			})
		}
	default:
		checks = append(checks, check{Name: "OCR", OK: true, Detail: "disabled"})
	}

	ai := check{Name: "Hosted vision model (" + cfg.AIModel + ")"}
	if cfg.HasAIKey() {
		ai.OK, ai.Detail = true, cfg.AIBaseURL
	} else {
		ai.Detail = "no API key"
		ai.Hint = "Set AI_API_KEY or GEMINI_API_KEY"
	}
	checks = append(checks, ai)

	return checks
}

func printChecks(w io.Writer, checks []check) {
	for _, c := range checks {
		mark := "ok"
		if !c.OK {
			mark = "missing"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", mark, c.Name, c.Detail)
		if !c.OK && c.Hint != "" {
			fmt.Fprintf(w, "  %s\n", c.Hint)
		}
	}
}

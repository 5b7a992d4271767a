package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pdftext/internal/extraction"
)

// ReportOutput represents the JSON output structure
type ReportOutput struct {
	RunID              string         `json:"run_id"`
	Source             string         `json:"source"`
	Strategy           string         `json:"strategy"`
	PageCount          int            `json:"page_count"`
	Pages              []PageOutput   `json:"pages"`
	SourceCounts       map[string]int `json:"source_counts"`
	Warnings           []string       `json:"warnings,omitempty"`
	CombinedText       string         `json:"combined_text"`
	ProcessedAt        time.Time      `json:"processed_at"`
	ProcessingDuration string         `json:"processing_duration"`
}

// PageOutput is one page of the JSON output.
type PageOutput struct {
	Page     int           `json:"page"`
	Source   string        `json:"source"`
	Text     string        `json:"text"`
	Direct   OutcomeOutput `json:"direct"`
	OCR      OutcomeOutput `json:"ocr"`
	AI       OutcomeOutput `json:"ai"`
	Duration string        `json:"duration"`
}

// OutcomeOutput is a single backend outcome in the JSON output.
type OutcomeOutput struct {
	Status     string `json:"status"`
	Characters int    `json:"characters"`
	Text       string `json:"text,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newOutcomeOutput(o extraction.Outcome, withText bool) OutcomeOutput {
	out := OutcomeOutput{Status: o.Status.String(), Characters: o.Len()}
	if withText {
		out.Text = o.Trimmed()
	}
	if o.Err != nil {
		out.Error = o.Err.Error()
	}
	return out
}

func newReportOutput(r *extraction.Report) ReportOutput {
	out := ReportOutput{
		RunID:              r.ID,
		Source:             r.Source,
		Strategy:           r.Strategy,
		PageCount:          len(r.Pages),
		Pages:              make([]PageOutput, 0, len(r.Pages)),
		SourceCounts:       make(map[string]int),
		CombinedText:       r.CombinedText(),
		ProcessedAt:        r.StartedAt,
		ProcessingDuration: r.Duration.String(),
	}
	for _, p := range r.Pages {
		out.Pages = append(out.Pages, PageOutput{
			Page:     p.PageIndex,
			Source:   p.ChosenSource.String(),
			Text:     p.ChosenText,
			Direct:   newOutcomeOutput(p.Direct, true),
			OCR:      newOutcomeOutput(p.OCR, true),
			AI:       newOutcomeOutput(p.AI, true),
			Duration: p.Duration.String(),
		})
	}
	for src, n := range r.SourceCounts() {
		out.SourceCounts[src.String()] = n
	}
	for _, w := range r.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out
}

// renderJSON formats the full report.
func renderJSON(r *extraction.Report) ([]byte, error) {
	return json.MarshalIndent(newReportOutput(r), "", "  ")
}

// renderCompare lists every method's result per page followed by the choice.
func renderCompare(r *extraction.Report) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "=== Extraction comparison for %s ===\n", r.Source)
	fmt.Fprintf(&b, "Strategy: %s\n", r.Strategy)
	fmt.Fprintf(&b, "Pages: %d\n", len(r.Pages))
	fmt.Fprintf(&b, "Processing time: %v\n", r.Duration)

	for _, p := range r.Pages {
		fmt.Fprintf(&b, "\n=== Page %d (chosen: %s) ===\n", p.PageIndex, p.ChosenSource)
		writeMethod(&b, "Direct", p.Direct)
		writeMethod(&b, "OCR", p.OCR)
		writeMethod(&b, "AI", p.AI)
		b.WriteString("\n--- Chosen ---\n")
		b.WriteString(p.ChosenText)
		b.WriteString("\n")
	}
	return []byte(b.String())
}

func writeMethod(b *strings.Builder, label string, o extraction.Outcome) {
	fmt.Fprintf(b, "\n--- %s: %s, %d chars", label, o.Status, o.Len())
	if o.Err != nil {
		fmt.Fprintf(b, " (%v)", o.Err)
	}
	b.WriteString(" ---\n")
	if o.Usable() {
		b.WriteString(o.Trimmed())
		b.WriteString("\n")
	}
}

// renderOutput picks the output format for the report.
func renderOutput(r *extraction.Report, o runOptions) ([]byte, error) {
	switch {
	case o.json:
		return renderJSON(r)
	case o.compare:
		return renderCompare(r), nil
	default:
		return []byte(r.CombinedText() + "\n"), nil
	}
}

// writeOutput writes the rendered report to the output file or stdout.
func writeOutput(r *extraction.Report, o runOptions, log zerolog.Logger) error {
	data, err := renderOutput(r, o)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if o.output != "" {
		if err := os.WriteFile(o.output, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", o.output).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().
			Str("output_file", o.output).
			Int("bytes", len(data)).
			Msg("Extraction results written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

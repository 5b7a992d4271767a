// Package extraction reconciles page text coming from several extraction
// methods into one best-effort text per page and per document.
//
// Three kinds of backends feed a page:
//   - Direct: the text layer already embedded in a PDF
//   - OCR: local or cloud optical character recognition on a rendered page
//   - AI: a hosted multimodal model asked to transcribe the rendered page
//
// Backends never fail past their boundary. Every call yields an Outcome that
// is either text, empty, unavailable or failed, and a Strategy picks the text
// to keep for the page. The Aggregator drives backends and the strategy across
// all pages of a document and produces an ordered Report.
package extraction

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

// Source identifies which extraction method produced a page's chosen text.
type Source int

const (
	SourceNone Source = iota
	SourceDirect
	SourceOCR
	SourceAI
)

// String returns the lowercase source name used in logs and JSON output.
func (s Source) String() string {
	switch s {
	case SourceDirect:
		return "direct"
	case SourceOCR:
		return "ocr"
	case SourceAI:
		return "ai"
	default:
		return "none"
	}
}

// MarshalText lets Source serialize as its name.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status tags the result of a single backend call.
type Status int

const (
	// StatusUnavailable means the backend was not run for this page.
	StatusUnavailable Status = iota
	// StatusEmpty means the backend ran and found no text.
	StatusEmpty
	// StatusText means the backend returned non-blank text.
	StatusText
	// StatusFailed means the backend call errored.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusText:
		return "text"
	case StatusFailed:
		return "failed"
	default:
		return "unavailable"
	}
}

// MarshalText lets Status serialize as its name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the tagged result of one backend call for one page.
type Outcome struct {
	Status Status
	// Text is the raw text as returned by the backend. Only meaningful when
	// Status is StatusText.
	Text string
	// Err carries the failure detail for StatusFailed and StatusUnavailable.
	Err error
}

// TextOutcome wraps backend text, tagging blank text as empty.
func TextOutcome(text string) Outcome {
	if strings.TrimSpace(text) == "" {
		return Outcome{Status: StatusEmpty}
	}
	return Outcome{Status: StatusText, Text: text}
}

// FailedOutcome records a backend failure.
func FailedOutcome(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// UnavailableOutcome records that a backend could not be run.
func UnavailableOutcome(err error) Outcome {
	return Outcome{Status: StatusUnavailable, Err: err}
}

// Usable reports whether the outcome carries non-blank text.
func (o Outcome) Usable() bool {
	return o.Status == StatusText && strings.TrimSpace(o.Text) != ""
}

// Trimmed returns the outcome text without surrounding whitespace, or "" when
// the outcome is not usable.
func (o Outcome) Trimmed() string {
	if !o.Usable() {
		return ""
	}
	return strings.TrimSpace(o.Text)
}

// Len is the rune count of the trimmed text.
func (o Outcome) Len() int {
	return utf8.RuneCountInString(o.Trimmed())
}

// Image is a rendered page or an uploaded picture handed to OCR and AI
// backends.
type Image struct {
	Data     []byte
	MIMEType string
	// Page is the 1-based position of the image in its document.
	Page int
}

// Backend turns one image into text. Implementations must convert every
// internal failure into a failed Outcome.
type Backend interface {
	Name() string
	Extract(ctx context.Context, img Image) Outcome
}

// PageResult is the reconciled result for one page. It is built once and
// not modified afterwards.
type PageResult struct {
	PageIndex    int
	Direct       Outcome
	OCR          Outcome
	AI           Outcome
	ChosenText   string
	ChosenSource Source
	Duration     time.Duration
}

// Candidates returns the page's backend outcomes in reconciler input form.
func (p PageResult) Candidates() Candidates {
	return Candidates{Direct: p.Direct, OCR: p.OCR, AI: p.AI}
}

// PageSeparator joins chosen page texts in a combined document text.
const PageSeparator = "\n\n"

// Report is the ordered outcome of one extraction pass over a document.
type Report struct {
	ID        string
	Source    string
	Strategy  string
	Pages     []PageResult
	Warnings  []error
	StartedAt time.Time
	Duration  time.Duration
}

// CombinedText joins the chosen text of every page in page order.
func (r *Report) CombinedText() string {
	if r == nil || len(r.Pages) == 0 {
		return ""
	}
	parts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		parts[i] = p.ChosenText
	}
	return strings.Join(parts, PageSeparator)
}

// SourceCounts tallies how many pages were resolved from each source.
func (r *Report) SourceCounts() map[Source]int {
	counts := make(map[Source]int)
	if r == nil {
		return counts
	}
	for _, p := range r.Pages {
		counts[p.ChosenSource]++
	}
	return counts
}

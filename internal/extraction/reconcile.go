package extraction

import (
	"fmt"
	"strings"
)

// DefaultFallbackText is the chosen text of a page no backend could read.
const DefaultFallbackText = "No text could be extracted from this page."

// MinAIChars is the trimmed length AI text must exceed to win outright under
// the AI-preferred strategy.
const MinAIChars = 20

// Strategy names accepted by ParseStrategy.
const (
	StrategyAIPreferred = "ai-preferred"
	StrategyLengthRatio = "length-ratio"
)

// Candidates are the backend outcomes available for one page.
type Candidates struct {
	Direct Outcome
	OCR    Outcome
	AI     Outcome
}

// Decision is the text kept for a page and where it came from.
type Decision struct {
	Text   string
	Source Source
}

// Strategy selects the best text among a page's candidates. Implementations
// are pure functions of their input.
type Strategy interface {
	Name() string
	Reconcile(c Candidates) Decision
}

// ParseStrategy returns the named strategy using fallback as the text for
// pages without any usable candidate.
func ParseStrategy(name, fallback string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyAIPreferred, "ai", "":
		return AIPreferred{Fallback: fallback}, nil
	case StrategyLengthRatio, "ratio", "length":
		return LengthRatio{Fallback: fallback}, nil
	default:
		return nil, fmt.Errorf("unknown reconciliation strategy %q (want %s or %s)",
			name, StrategyAIPreferred, StrategyLengthRatio)
	}
}

// candidate is a usable outcome tagged with its source.
type candidate struct {
	source Source
	text   string
	length int
}

func pick(src Source, o Outcome) (candidate, bool) {
	if !o.Usable() {
		return candidate{}, false
	}
	return candidate{source: src, text: o.Trimmed(), length: o.Len()}, true
}

// AIPreferred keeps substantial AI text and otherwise falls back to the text
// layer (or the better of text layer and OCR when both exist).
type AIPreferred struct {
	Fallback string
}

// Name implements Strategy.
func (AIPreferred) Name() string { return StrategyAIPreferred }

// Reconcile implements Strategy.
func (s AIPreferred) Reconcile(c Candidates) Decision {
	ai, hasAI := pick(SourceAI, c.AI)
	if hasAI && ai.length > MinAIChars {
		return Decision{Text: ai.text, Source: SourceAI}
	}

	// Short AI text only wins when the page has nothing else.
	base, hasBase := compareByLength(c.Direct, SourceDirect, c.OCR, SourceOCR)
	switch {
	case hasBase:
		return Decision{Text: base.text, Source: base.source}
	case hasAI:
		return Decision{Text: ai.text, Source: SourceAI}
	default:
		return Decision{Text: s.Fallback, Source: SourceNone}
	}
}

// LengthRatio keeps whichever candidate is clearly longer. Direct text is
// compared against OCR first and the winner against AI text; the earlier
// source wins ties.
type LengthRatio struct {
	Fallback string
}

// Name implements Strategy.
func (LengthRatio) Name() string { return StrategyLengthRatio }

// Reconcile implements Strategy.
func (s LengthRatio) Reconcile(c Candidates) Decision {
	best, ok := compareByLength(c.Direct, SourceDirect, c.OCR, SourceOCR)
	if ai, hasAI := pick(SourceAI, c.AI); hasAI {
		if !ok {
			best, ok = ai, true
		} else {
			best = longer(best, ai)
		}
	}
	if !ok {
		return Decision{Text: s.Fallback, Source: SourceNone}
	}
	return Decision{Text: best.text, Source: best.source}
}

// compareByLength applies the length-ratio rule to a primary and secondary
// outcome. The boolean is false when neither side is usable.
func compareByLength(primary Outcome, ps Source, secondary Outcome, ss Source) (candidate, bool) {
	p, hasP := pick(ps, primary)
	q, hasQ := pick(ss, secondary)
	switch {
	case hasP && hasQ:
		return longer(p, q), true
	case hasP:
		return p, true
	case hasQ:
		return q, true
	default:
		return candidate{}, false
	}
}

// longer returns the longer candidate; p wins on equality. The half-length
// cut-offs of the ratio rule always agree with this plain comparison.
func longer(p, q candidate) candidate {
	if q.length > p.length {
		return q
	}
	return p
}

package extraction

import (
	"errors"
	"strings"
	"testing"
)

var (
	unavailable = UnavailableOutcome(nil)
	failed      = FailedOutcome(errors.New("boom"))
)

func text(s string) Outcome { return TextOutcome(s) }

func TestAIPreferred_Reconcile(t *testing.T) {
	paragraph := strings.Repeat("Lorem ipsum dolor sit amet. ", 8)[:200]
	s := AIPreferred{Fallback: DefaultFallbackText}

	tests := []struct {
		name       string
		in         Candidates
		wantText   string
		wantSource Source
	}{
		{
			name:       "long ai text wins over direct",
			in:         Candidates{Direct: text(paragraph), AI: text("This transcription is long enough.")},
			wantText:   "This transcription is long enough.",
			wantSource: SourceAI,
		},
		{
			name:       "short ai text loses to direct",
			in:         Candidates{Direct: text(paragraph), AI: text("Short")},
			wantText:   strings.TrimSpace(paragraph),
			wantSource: SourceDirect,
		},
		{
			name:       "ai text of exactly twenty characters does not win",
			in:         Candidates{Direct: text("tiny"), AI: text("12345678901234567890")},
			wantText:   "tiny",
			wantSource: SourceDirect,
		},
		{
			name:       "short direct preferred over short ai",
			in:         Candidates{Direct: text("abc"), AI: text("defgh")},
			wantText:   "abc",
			wantSource: SourceDirect,
		},
		{
			name:       "short ai used when nothing else",
			in:         Candidates{Direct: text("   "), AI: text(" Short ")},
			wantText:   "Short",
			wantSource: SourceAI,
		},
		{
			name:       "ocr used when direct empty and ai unavailable",
			in:         Candidates{Direct: text(""), OCR: text("Hello world"), AI: unavailable},
			wantText:   "Hello world",
			wantSource: SourceOCR,
		},
		{
			name:       "longer of direct and ocr when ai is short",
			in:         Candidates{Direct: text("ab"), OCR: text("a clearly longer OCR result"), AI: text("tiny")},
			wantText:   "a clearly longer OCR result",
			wantSource: SourceOCR,
		},
		{
			name:       "failed ai treated as absent",
			in:         Candidates{Direct: text("page text"), AI: failed},
			wantText:   "page text",
			wantSource: SourceDirect,
		},
		{
			name:       "nothing usable",
			in:         Candidates{Direct: text("\n\t"), OCR: failed, AI: unavailable},
			wantText:   DefaultFallbackText,
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Reconcile(tt.in)
			if got.Text != tt.wantText || got.Source != tt.wantSource {
				t.Errorf("Reconcile() = (%q, %v), want (%q, %v)", got.Text, got.Source, tt.wantText, tt.wantSource)
			}
		})
	}
}

func TestAIPreferred_LongAIAlwaysWins(t *testing.T) {
	s := AIPreferred{Fallback: DefaultFallbackText}
	ai := "twenty-one characters"
	directs := []Outcome{unavailable, failed, text(""), text("x"), text(strings.Repeat("direct ", 500))}
	ocrs := []Outcome{unavailable, text(strings.Repeat("ocr ", 500))}

	for _, d := range directs {
		for _, o := range ocrs {
			got := s.Reconcile(Candidates{Direct: d, OCR: o, AI: text(ai)})
			if got.Source != SourceAI || got.Text != ai {
				t.Errorf("Reconcile(direct %v, ocr %v) = (%q, %v), want ai", d.Status, o.Status, got.Text, got.Source)
			}
		}
	}
}

func TestLengthRatio_Reconcile(t *testing.T) {
	s := LengthRatio{Fallback: DefaultFallbackText}

	tests := []struct {
		name       string
		in         Candidates
		wantText   string
		wantSource Source
	}{
		{
			name:       "direct unavailable uses ocr",
			in:         Candidates{Direct: unavailable, OCR: text("Hello world")},
			wantText:   "Hello world",
			wantSource: SourceOCR,
		},
		{
			name:       "ocr failed uses direct",
			in:         Candidates{Direct: text("Hello world"), OCR: failed},
			wantText:   "Hello world",
			wantSource: SourceDirect,
		},
		{
			name:       "direct under half of ocr",
			in:         Candidates{Direct: text("abc"), OCR: text("abcdefghij")},
			wantText:   "abcdefghij",
			wantSource: SourceOCR,
		},
		{
			name:       "ocr under half of direct",
			in:         Candidates{Direct: text("abcdefghij"), OCR: text("abc")},
			wantText:   "abcdefghij",
			wantSource: SourceDirect,
		},
		{
			name:       "comparable lengths strictly longer ocr",
			in:         Candidates{Direct: text("abcdefgh"), OCR: text("abcdefghij")},
			wantText:   "abcdefghij",
			wantSource: SourceOCR,
		},
		{
			name:       "tie prefers direct",
			in:         Candidates{Direct: text("direct!"), OCR: text("ocr....")},
			wantText:   "direct!",
			wantSource: SourceDirect,
		},
		{
			name:       "lengths compared after trimming",
			in:         Candidates{Direct: text("  abcd  "), OCR: text("abcde")},
			wantText:   "abcde",
			wantSource: SourceOCR,
		},
		{
			name:       "ai compared against the winner",
			in:         Candidates{Direct: text("abc"), OCR: text("abcd"), AI: text("abcdefghijkl")},
			wantText:   "abcdefghijkl",
			wantSource: SourceAI,
		},
		{
			name:       "ai alone",
			in:         Candidates{AI: text("only ai")},
			wantText:   "only ai",
			wantSource: SourceAI,
		},
		{
			name:       "both empty",
			in:         Candidates{Direct: text(""), OCR: text(" ")},
			wantText:   DefaultFallbackText,
			wantSource: SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Reconcile(tt.in)
			if got.Text != tt.wantText || got.Source != tt.wantSource {
				t.Errorf("Reconcile() = (%q, %v), want (%q, %v)", got.Text, got.Source, tt.wantText, tt.wantSource)
			}
		})
	}
}

func TestLengthRatio_MirrorSymmetry(t *testing.T) {
	s := LengthRatio{Fallback: DefaultFallbackText}
	swap := map[Source]Source{SourceDirect: SourceOCR, SourceOCR: SourceDirect, SourceNone: SourceNone}

	pairs := [][2]string{
		{"a", "abcdefgh"},
		{"abcdefgh", "a"},
		{"abcdef", "abcdefgh"},
		{"short text", "a noticeably longer text body"},
		{"", "only one side"},
	}
	for _, p := range pairs {
		fwd := s.Reconcile(Candidates{Direct: text(p[0]), OCR: text(p[1])})
		rev := s.Reconcile(Candidates{Direct: text(p[1]), OCR: text(p[0])})
		if fwd.Text != rev.Text || rev.Source != swap[fwd.Source] {
			t.Errorf("pair %q: forward (%q, %v), reverse (%q, %v)", p, fwd.Text, fwd.Source, rev.Text, rev.Source)
		}
	}
}

func TestFallbackWhenEverythingEmpty(t *testing.T) {
	empties := []Outcome{unavailable, failed, text(""), text(" \n ")}
	for _, s := range []Strategy{AIPreferred{Fallback: DefaultFallbackText}, LengthRatio{Fallback: DefaultFallbackText}} {
		for _, d := range empties {
			for _, o := range empties {
				for _, a := range empties {
					got := s.Reconcile(Candidates{Direct: d, OCR: o, AI: a})
					if got.Source != SourceNone || got.Text != DefaultFallbackText {
						t.Errorf("%s: Reconcile(%v, %v, %v) = (%q, %v)", s.Name(), d.Status, o.Status, a.Status, got.Text, got.Source)
					}
				}
			}
		}
	}
}

func TestEmptyFallbackYieldsEmptyText(t *testing.T) {
	got := AIPreferred{}.Reconcile(Candidates{})
	if got.Text != "" || got.Source != SourceNone {
		t.Errorf("Reconcile() = (%q, %v), want empty none", got.Text, got.Source)
	}
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", StrategyAIPreferred, false},
		{"ai-preferred", StrategyAIPreferred, false},
		{"AI", StrategyAIPreferred, false},
		{" length-ratio ", StrategyLengthRatio, false},
		{"ratio", StrategyLengthRatio, false},
		{"longest", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseStrategy(tt.name, "fallback")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStrategy(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err == nil && s.Name() != tt.want {
				t.Errorf("ParseStrategy(%q) = %s, want %s", tt.name, s.Name(), tt.want)
			}
		})
	}
}

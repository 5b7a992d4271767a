package cmd

import (
	"testing"

	"github.com/rs/zerolog"

	"pdftext/internal/config"
	"pdftext/internal/extraction"
)

func TestCreateContextWithTimeout(t *testing.T) {
	tests := []struct {
		name         string
		secs         int
		wantDeadline bool
	}{
		{"positive", 30, true},
		{"zero means none", 0, false},
		{"negative means none", -5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := createContextWithTimeout(tt.secs, zerolog.Nop())
			defer cancel()

			if err := ctx.Err(); err != nil {
				t.Fatalf("context already done: %v", err)
			}
			if _, ok := ctx.Deadline(); ok != tt.wantDeadline {
				t.Errorf("Deadline() set = %v, want %v", ok, tt.wantDeadline)
			}
			cancel()
			if ctx.Err() == nil {
				t.Error("cancel did not end the context")
			}
		})
	}
}

func TestLoadConfig_StrategyAlias(t *testing.T) {
	t.Setenv("OCR_PROVIDER", config.OCRNone)
	t.Setenv("RECONCILE_STRATEGY", "ai-preferred")

	cfg, err := loadConfig(runOptions{strategy: "ratio"})
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	s, err := extraction.ParseStrategy(cfg.Strategy, cfg.FallbackText)
	if err != nil {
		t.Fatalf("ParseStrategy() error = %v", err)
	}
	if s.Name() != extraction.StrategyLengthRatio {
		t.Errorf("strategy = %q, want %q", s.Name(), extraction.StrategyLengthRatio)
	}

	if _, err := loadConfig(runOptions{strategy: "longest"}); err == nil {
		t.Error("loadConfig() accepted an unknown strategy")
	}
}

// Package command runs the external poppler and tesseract tools.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"pdftext/internal/logger"
)

// ErrNotInstalled is returned by LookPath when a tool is not on PATH.
var ErrNotInstalled = errors.New("command not installed")

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
	LookPath(name string) (string, error)
}

// Exec runs commands with os/exec.
type Exec struct{}

// Run implements Runner.
func (Exec) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	log := logger.WithComponent("command")
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Dur("duration", dur).
			Str("stderr", truncate(errb.String(), 8<<10)).
			Msg("exec failed")
	} else {
		log.Debug().
			Str("cmd", name).
			Str("args", strings.Join(args, " ")).
			Dur("duration", dur).
			Int("stdout_bytes", out.Len()).
			Int("stderr_bytes", errb.Len()).
			Msg("exec ok")
	}

	return out.Bytes(), errb.Bytes(), err
}

// LookPath implements Runner.
func (Exec) LookPath(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrNotInstalled, name, err)
	}
	return path, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

package qc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"vidqc/internal/execx"
)

// Runner executes an external binary. stdout may be nil when the caller only
// needs the diagnostic stream; stderr is returned in full.
type Runner interface {
	Run(ctx context.Context, binary string, args []string, stdout io.Writer) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout bounds each invocation; zero means no limit beyond ctx.
	Timeout time.Duration
}

// Run implements Runner.
func (r ExecRunner) Run(ctx context.Context, binary string, args []string, stdout io.Writer) ([]byte, error) {
	ctx, cancel := execx.WithTimeout(ctx, r.Timeout)
	defer cancel()
	cmd := execx.Command(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if stdout != nil {
		cmd.Stdout = stdout
	}
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stderr.Bytes(), ctxErr
		}
		return stderr.Bytes(), fmt.Errorf("%s: %w: %s", binaryLabel(binary), err, tail(stderr.String(), 5))
	}
	return stderr.Bytes(), nil
}

func binaryLabel(binary string) string {
	binary = strings.TrimSpace(binary)
	if idx := strings.LastIndexAny(binary, `/\`); idx >= 0 {
		binary = binary[idx+1:]
	}
	return strings.TrimSuffix(binary, ".exe")
}

// tail returns the last n non-empty lines of s.
func tail(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		kept = append(kept, line)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return strings.Join(kept, " | ")
}

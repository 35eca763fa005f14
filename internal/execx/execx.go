// Package execx builds external commands the way every vidqc caller needs
// them: bounded by the configured timeout and without a console window on
// windows.
package execx

import (
	"context"
	"os/exec"
	"time"
)

// Command returns exec.CommandContext with platform process attributes set.
func Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	configure(cmd)
	return cmd
}

// WithTimeout bounds ctx by d. A non-positive d returns ctx unchanged.
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

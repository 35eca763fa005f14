package preflight

import (
	"context"

	"vidqc/internal/config"
	"vidqc/internal/deps"
	"vidqc/internal/execx"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects the optional checks.
type Options struct {
	// Binaries resolves and runs ffmpeg and ffprobe.
	Binaries bool
	// Network probes the configured download URL.
	Network bool
}

// RunAll executes the directory checks plus whichever optional checks are
// selected. Directories are created first so a fresh install passes.
func RunAll(ctx context.Context, cfg *config.Config, resolver *deps.Resolver, opts Options) []Result {
	if cfg == nil {
		return nil
	}
	_ = cfg.EnsureDirectories()

	results := []Result{
		CheckDirectoryAccess("Tools directory", cfg.Paths.ToolsDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if opts.Binaries && resolver != nil {
		binCtx, cancel := execx.WithTimeout(ctx, cfg.CommandTimeout())
		results = append(results,
			CheckBinary(binCtx, "FFmpeg", resolver.FFmpeg),
			CheckBinary(binCtx, "FFprobe", resolver.FFprobe),
		)
		cancel()
	}

	if opts.Network {
		results = append(results, CheckDownloadURL(ctx, cfg.Provision.DownloadURL))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"vidqc/internal/config"
	"vidqc/internal/logging"
)

// LockFileName is held under the tools dir while a provision or bundle runs.
const LockFileName = ".provision.lock"

// ErrLocked reports that another process holds the tools lock.
var ErrLocked = errors.New("tools directory is locked by another vidqc process")

// Options describes one provisioning run.
type Options struct {
	URL        string
	ToolsDir   string
	Pattern    string
	TargetName string
	Timeout    time.Duration
	// GOOS selects binary names inside the build; empty means the host.
	GOOS     string
	Progress io.Writer
	Client   *http.Client
}

// OptionsFromConfig maps the [provision] and [paths] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		URL:        cfg.Provision.DownloadURL,
		ToolsDir:   cfg.Paths.ToolsDir,
		Pattern:    cfg.Provision.BuildDirPattern,
		TargetName: cfg.Provision.BuildDirName,
		Timeout:    cfg.DownloadTimeout(),
		GOOS:       cfg.Bundle.GOOS,
	}
}

// Result summarizes a completed run.
type Result struct {
	URL      string
	Bytes    int64
	Files    int
	BuildDir string
	FFmpeg   string
	FFprobe  string
	Replaced bool
}

// Provisioner downloads and installs an ffmpeg build into the tools dir.
type Provisioner struct {
	opts   Options
	logger *slog.Logger
}

// New validates opts and returns a Provisioner.
func New(opts Options, logger *slog.Logger) (*Provisioner, error) {
	opts.URL = strings.TrimSpace(opts.URL)
	opts.ToolsDir = strings.TrimSpace(opts.ToolsDir)
	switch {
	case opts.URL == "":
		return nil, errors.New("provision: download url is required")
	case opts.ToolsDir == "":
		return nil, errors.New("provision: tools dir is required")
	case strings.TrimSpace(opts.Pattern) == "":
		return nil, errors.New("provision: build dir pattern is required")
	case strings.TrimSpace(opts.TargetName) == "":
		return nil, errors.New("provision: build dir name is required")
	}
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.Client == nil {
		opts.Client = NewClient(opts.Timeout)
	}
	return &Provisioner{opts: opts, logger: logging.NewComponentLogger(logger, "provision")}, nil
}

// BuildDir is where the renamed build lives after a successful run.
func (p *Provisioner) BuildDir() string {
	return filepath.Join(p.opts.ToolsDir, p.opts.TargetName)
}

// Lock takes the tools-dir lock without blocking. The caller must Unlock.
func Lock(toolsDir string) (*flock.Flock, error) {
	if err := os.MkdirAll(toolsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tools dir: %w", err)
	}
	lock := flock.New(filepath.Join(toolsDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire tools lock: %w", err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return lock, nil
}

// Run downloads the archive, extracts it into a staging dir under the tools
// dir, renames the single matching build dir to the target name and checks
// that both binaries are present.
func (p *Provisioner) Run(ctx context.Context) (Result, error) {
	lock, err := Lock(p.opts.ToolsDir)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			p.logger.Warn("failed to release tools lock", logging.Error(err))
		}
	}()
	return p.runLocked(ctx)
}

// RunLocked is Run for callers already holding the tools lock.
func (p *Provisioner) RunLocked(ctx context.Context) (Result, error) {
	return p.runLocked(ctx)
}

func (p *Provisioner) runLocked(ctx context.Context) (Result, error) {
	result := Result{URL: p.opts.URL}
	staging, err := os.MkdirTemp(p.opts.ToolsDir, ".staging-")
	if err != nil {
		return result, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			p.logger.Warn("failed to remove staging dir", logging.String("path", staging), logging.Error(err))
		}
	}()

	archive := filepath.Join(staging, "ffmpeg.zip")
	p.logger.Info("downloading ffmpeg build",
		logging.String(logging.FieldEventType, "download_started"),
		logging.String("url", p.opts.URL),
	)
	started := time.Now()
	downloader := Downloader{Client: p.opts.Client, Progress: p.opts.Progress}
	result.Bytes, err = downloader.Download(ctx, p.opts.URL, archive)
	if err != nil {
		logging.ErrorWithContext(p.logger, "download failed", "download_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check network access and provision.download_url"),
		)
		return result, err
	}
	p.logger.Info("download complete",
		logging.Int64("bytes", result.Bytes),
		logging.Duration("elapsed", time.Since(started)),
	)

	extractDir := filepath.Join(staging, "extract")
	result.Files, err = Extract(archive, extractDir)
	if err != nil {
		logging.ErrorWithContext(p.logger, "extract failed", "extract_failed", logging.Error(err))
		return result, err
	}
	p.logger.Debug("archive extracted", logging.Int("files", result.Files))

	// An existing build is only replaced by one that carries both binaries.
	source, err := LocateBuildDir(extractDir, p.opts.Pattern)
	if err == nil {
		_, _, err = BinaryPaths(source, p.opts.GOOS)
	}
	if err == nil {
		result.BuildDir, result.Replaced, err = RenameBuildDir(extractDir, p.opts.Pattern, p.BuildDir())
	}
	if err != nil {
		logging.ErrorWithContext(p.logger, "build directory not installed", "rename_failed",
			logging.Error(err),
			logging.String("pattern", p.opts.Pattern),
			logging.String(logging.FieldErrorHint, "confirm the archive layout matches provision.build_dir_pattern"),
		)
		return result, err
	}
	p.logger.Info("build directory installed",
		logging.String(logging.FieldEventType, "build_dir_renamed"),
		logging.String("path", result.BuildDir),
		logging.Bool("replaced", result.Replaced),
	)

	result.FFmpeg, result.FFprobe, err = BinaryPaths(result.BuildDir, p.opts.GOOS)
	if err != nil {
		logging.ErrorWithContext(p.logger, "build is missing binaries", "binaries_missing", logging.Error(err))
		return result, err
	}
	return result, nil
}

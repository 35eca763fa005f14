package deps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"vidqc/internal/config"
	"vidqc/internal/execx"
	"vidqc/internal/sidecar"
)

// ErrBinaryNotFound reports that no lookup source produced a usable binary.
var ErrBinaryNotFound = errors.New("binary not found")

// Source names where a binary was resolved from.
type Source string

const (
	SourceConfigured Source = "configured"
	SourceBundled    Source = "bundled"
	SourceAdjacent   Source = "adjacent"
	SourceTools      Source = "tools"
	SourcePath       Source = "path"
)

// Resolution is the outcome of resolving one tool.
type Resolution struct {
	Name   string
	Path   string
	Source Source
}

// Resolver finds ffmpeg and ffprobe. Lookup order: explicitly configured
// binary, payload bundled into this executable, a binary sitting next to the
// executable, the provisioned tools build dir, then PATH.
type Resolver struct {
	ConfiguredFFmpeg  string
	ConfiguredFFprobe string
	// ToolsBinDir is the bin/ directory of the provisioned FFmpeg build.
	ToolsBinDir string
	// CacheDir receives the unpacked bundled payload.
	CacheDir string
	// Bundled overrides sidecar.Payload(); tests inject an fstest.MapFS.
	Bundled    fs.FS
	Executable func() (string, error)
	GOOS       string

	bundledOnce  sync.Once
	bundledPaths sidecar.Paths
	bundledErr   error
}

// NewResolver wires the configured binaries, tools build and sidecar cache.
func NewResolver(cfg *config.Config) *Resolver {
	return &Resolver{
		ConfiguredFFmpeg:  cfg.FFmpeg.FFmpegBinary,
		ConfiguredFFprobe: cfg.FFmpeg.FFprobeBinary,
		ToolsBinDir:       filepath.Join(cfg.BuildDir(), "bin"),
		CacheDir:          cfg.SidecarCacheDir(),
	}
}

// FFmpeg resolves the ffmpeg binary.
func (r *Resolver) FFmpeg() (Resolution, error) {
	return r.resolve(sidecar.FFmpegName, r.ConfiguredFFmpeg)
}

// FFprobe resolves the ffprobe binary.
func (r *Resolver) FFprobe() (Resolution, error) {
	return r.resolve(sidecar.FFprobeName, r.ConfiguredFFprobe)
}

func (r *Resolver) resolve(name, configured string) (Resolution, error) {
	goos := r.goos()
	configured = strings.TrimSpace(configured)
	if configured != "" {
		resolved, err := exec.LookPath(configured)
		if err != nil {
			return Resolution{Name: name, Path: configured, Source: SourceConfigured}, fmt.Errorf("%s: configured binary %q: %w", name, configured, ErrBinaryNotFound)
		}
		return Resolution{Name: name, Path: resolved, Source: SourceConfigured}, nil
	}

	if paths, err := r.bundled(); err == nil {
		path := paths.FFmpeg
		if name == sidecar.FFprobeName {
			path = paths.FFprobe
		}
		return Resolution{Name: name, Path: path, Source: SourceBundled}, nil
	}

	file := sidecar.ExecutableName(name, goos)
	if exe := r.executable(); exe != "" {
		candidate := filepath.Join(filepath.Dir(exe), file)
		if isExecutableFile(candidate, goos) {
			return Resolution{Name: name, Path: candidate, Source: SourceAdjacent}, nil
		}
	}

	if dir := strings.TrimSpace(r.ToolsBinDir); dir != "" {
		candidate := filepath.Join(dir, file)
		if isExecutableFile(candidate, goos) {
			return Resolution{Name: name, Path: candidate, Source: SourceTools}, nil
		}
	}

	if resolved, err := exec.LookPath(name); err == nil {
		return Resolution{Name: name, Path: resolved, Source: SourcePath}, nil
	}

	return Resolution{Name: name, Path: name}, fmt.Errorf("%s: %w (run `vidqc provision` or set ffmpeg.%s_binary)", name, ErrBinaryNotFound, name)
}

func (r *Resolver) bundled() (sidecar.Paths, error) {
	r.bundledOnce.Do(func() {
		payload := r.Bundled
		if payload == nil {
			payload = sidecar.Payload()
		}
		if payload == nil {
			r.bundledErr = sidecar.ErrNotBundled
			return
		}
		cache := strings.TrimSpace(r.CacheDir)
		if cache == "" {
			cache = filepath.Join(os.TempDir(), "vidqc-sidecar")
		}
		r.bundledPaths, r.bundledErr = sidecar.Extract(payload, cache, r.goos())
	})
	return r.bundledPaths, r.bundledErr
}

func (r *Resolver) executable() string {
	lookup := r.Executable
	if lookup == nil {
		lookup = os.Executable
	}
	exe, err := lookup()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		return resolved
	}
	return exe
}

func (r *Resolver) goos() string {
	if r.GOOS != "" {
		return r.GOOS
	}
	return runtime.GOOS
}

// Statuses reports ffmpeg and ffprobe availability for status output.
func (r *Resolver) Statuses() []Status {
	requirements := make([]Requirement, 0, 2)
	for _, tool := range []struct {
		resolve     func() (Resolution, error)
		name        string
		description string
	}{
		{r.FFmpeg, "FFmpeg", "Required for mute, shot, peak and black frame checks"},
		{r.FFprobe, "FFprobe", "Required for media metadata"},
	} {
		res, err := tool.resolve()
		req := Requirement{Name: tool.name, Command: res.Path, Description: tool.description}
		if err == nil {
			req.Source = res.Source
		}
		requirements = append(requirements, req)
	}
	return CheckBinaries(requirements)
}

// Verify runs `<binary> -version` to confirm the binary executes. The call is
// capped at 15s on top of any deadline already on ctx.
func Verify(ctx context.Context, binary string) error {
	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	cmd := execx.Command(checkCtx, binary, "-version")
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("verify %s: %w: %s", filepath.Base(binary), err, strings.TrimSpace(output.String()))
	}
	return nil
}

func isExecutableFile(path string, goos string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if goos == "windows" || runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

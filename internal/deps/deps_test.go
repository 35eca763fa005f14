package deps

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"testing/fstest"

	"vidqc/internal/config"
)

func writeStub(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
}

func TestCheckBinaries(t *testing.T) {
	skipOnWindows(t)
	present := filepath.Join(t.TempDir(), "present")
	writeStub(t, present)
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func newResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	base := t.TempDir()
	t.Setenv("PATH", "")
	return &Resolver{
		ToolsBinDir: filepath.Join(base, "tools", "ffmpeg_build", "bin"),
		CacheDir:    filepath.Join(base, "cache"),
		Bundled:     nil,
		Executable:  func() (string, error) { return filepath.Join(base, "app", "vidqc"), nil },
		GOOS:        "linux",
	}, base
}

func TestResolverPrefersConfigured(t *testing.T) {
	skipOnWindows(t)
	r, base := newResolver(t)
	configured := filepath.Join(base, "custom", "ffmpeg")
	writeStub(t, configured)
	writeStub(t, filepath.Join(r.ToolsBinDir, "ffmpeg"))
	r.ConfiguredFFmpeg = configured

	res, err := r.FFmpeg()
	if err != nil {
		t.Fatalf("FFmpeg: %v", err)
	}
	if res.Source != SourceConfigured || res.Path != configured {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolverConfiguredMissingFails(t *testing.T) {
	r, base := newResolver(t)
	r.ConfiguredFFprobe = filepath.Join(base, "nope", "ffprobe")
	if _, err := r.FFprobe(); !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
}

func TestResolverBundledPayload(t *testing.T) {
	skipOnWindows(t)
	r, _ := newResolver(t)
	r.Bundled = fstest.MapFS{
		"ffmpeg":  &fstest.MapFile{Data: []byte("#!/bin/sh\nexit 0\n")},
		"ffprobe": &fstest.MapFile{Data: []byte("#!/bin/sh\nexit 0\n")},
	}
	writeStub(t, filepath.Join(r.ToolsBinDir, "ffmpeg"))

	ffmpeg, err := r.FFmpeg()
	if err != nil {
		t.Fatalf("FFmpeg: %v", err)
	}
	ffprobe, err := r.FFprobe()
	if err != nil {
		t.Fatalf("FFprobe: %v", err)
	}
	if ffmpeg.Source != SourceBundled || ffprobe.Source != SourceBundled {
		t.Fatalf("expected bundled sources, got %+v / %+v", ffmpeg, ffprobe)
	}
	if filepath.Dir(ffmpeg.Path) != filepath.Dir(ffprobe.Path) {
		t.Fatalf("expected both binaries in one cache dir: %q %q", ffmpeg.Path, ffprobe.Path)
	}
	if err := Verify(context.Background(), ffmpeg.Path); err != nil {
		t.Fatalf("Verify bundled ffmpeg: %v", err)
	}
}

func TestResolverAdjacentBeforeTools(t *testing.T) {
	skipOnWindows(t)
	r, base := newResolver(t)
	adjacent := filepath.Join(base, "app", "ffmpeg")
	writeStub(t, adjacent)
	writeStub(t, filepath.Join(r.ToolsBinDir, "ffmpeg"))

	res, err := r.FFmpeg()
	if err != nil {
		t.Fatalf("FFmpeg: %v", err)
	}
	if res.Source != SourceAdjacent || res.Path != adjacent {
		t.Fatalf("unexpected resolution: %+v", res)
	}
}

func TestResolverToolsThenPath(t *testing.T) {
	skipOnWindows(t)
	r, base := newResolver(t)
	tools := filepath.Join(r.ToolsBinDir, "ffprobe")
	writeStub(t, tools)

	res, err := r.FFprobe()
	if err != nil {
		t.Fatalf("FFprobe: %v", err)
	}
	if res.Source != SourceTools || res.Path != tools {
		t.Fatalf("unexpected resolution: %+v", res)
	}

	binDir := filepath.Join(base, "bin")
	writeStub(t, filepath.Join(binDir, "ffmpeg"))
	t.Setenv("PATH", binDir)
	res, err = r.FFmpeg()
	if err != nil {
		t.Fatalf("FFmpeg: %v", err)
	}
	if res.Source != SourcePath {
		t.Fatalf("expected PATH resolution, got %+v", res)
	}
}

func TestResolverNotFound(t *testing.T) {
	r, _ := newResolver(t)
	if _, err := r.FFmpeg(); !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("expected ErrBinaryNotFound, got %v", err)
	}
	statuses := r.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for _, status := range statuses {
		if status.Available {
			t.Fatalf("expected %s unavailable", status.Name)
		}
	}
}

func TestVerifyFailingBinary(t *testing.T) {
	skipOnWindows(t)
	bad := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(bad, []byte("#!/bin/sh\necho broken >&2\nexit 3\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	err := Verify(context.Background(), bad)
	if err == nil {
		t.Fatal("expected verify error")
	}
}

func TestNewResolverFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.ToolsDir = "/opt/vidqc/tools"
	cfg.Paths.StateDir = "/var/lib/vidqc"
	cfg.FFmpeg.FFmpegBinary = "/usr/local/bin/ffmpeg"

	r := NewResolver(&cfg)
	if r.ToolsBinDir != filepath.Join("/opt/vidqc/tools", "ffmpeg_build", "bin") {
		t.Fatalf("unexpected tools bin dir %q", r.ToolsBinDir)
	}
	if r.CacheDir != filepath.Join("/var/lib/vidqc", "sidecar") {
		t.Fatalf("unexpected cache dir %q", r.CacheDir)
	}
	if r.ConfiguredFFmpeg != "/usr/local/bin/ffmpeg" || r.ConfiguredFFprobe != "" {
		t.Fatalf("unexpected configured binaries %+v", r)
	}
}

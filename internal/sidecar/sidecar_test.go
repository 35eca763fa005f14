package sidecar

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func testPayload(ffmpeg, ffprobe string) fstest.MapFS {
	return fstest.MapFS{
		FFmpegName:  &fstest.MapFile{Data: []byte(ffmpeg), Mode: 0o755},
		FFprobeName: &fstest.MapFile{Data: []byte(ffprobe), Mode: 0o755},
	}
}

func TestExtractWritesExecutables(t *testing.T) {
	cache := t.TempDir()
	paths, err := Extract(testPayload("ffmpeg-bytes", "ffprobe-bytes"), cache, "linux")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if filepath.Dir(paths.FFmpeg) != paths.Dir || filepath.Base(paths.FFmpeg) != "ffmpeg" {
		t.Fatalf("unexpected ffmpeg path: %q", paths.FFmpeg)
	}
	data, err := os.ReadFile(paths.FFprobe)
	if err != nil {
		t.Fatalf("read ffprobe: %v", err)
	}
	if string(data) != "ffprobe-bytes" {
		t.Fatalf("unexpected ffprobe content %q", data)
	}
	info, err := os.Stat(paths.FFmpeg)
	if err != nil {
		t.Fatalf("stat ffmpeg: %v", err)
	}
	if info.Mode().Perm()&0o100 == 0 {
		t.Fatalf("expected executable mode, got %v", info.Mode())
	}
}

func TestExtractIsContentAddressedAndReused(t *testing.T) {
	cache := t.TempDir()
	first, err := Extract(testPayload("a", "b"), cache, "linux")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	marker := filepath.Join(first.Dir, completeMarker)
	before, err := os.Stat(marker)
	if err != nil {
		t.Fatalf("expected completion marker: %v", err)
	}

	again, err := Extract(testPayload("a", "b"), cache, "linux")
	if err != nil {
		t.Fatalf("Extract again: %v", err)
	}
	if again != first {
		t.Fatalf("expected identical paths for identical payload: %+v vs %+v", again, first)
	}
	after, err := os.Stat(marker)
	if err != nil {
		t.Fatalf("stat marker: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatal("expected reuse without rewriting the marker")
	}

	other, err := Extract(testPayload("ab", ""), cache, "linux")
	if err != nil {
		t.Fatalf("Extract other: %v", err)
	}
	if other.Dir == first.Dir {
		t.Fatal("expected different payloads to land in different directories")
	}
}

func TestExtractUsesStagedDigest(t *testing.T) {
	payload := testPayload("ffmpeg-bytes", "ffprobe-bytes")
	payload[DigestName] = &fstest.MapFile{Data: []byte("0123456789abcdef0123\n")}

	paths, err := Extract(payload, t.TempDir(), "linux")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if filepath.Base(paths.Dir) != "0123456789abcdef" {
		t.Fatalf("expected cache dir keyed by staged digest, got %q", paths.Dir)
	}
}

func TestExtractRejectsMalformedDigest(t *testing.T) {
	payload := testPayload("a", "b")
	payload[DigestName] = &fstest.MapFile{Data: []byte("not-hex")}
	if _, err := Extract(payload, t.TempDir(), "linux"); err == nil {
		t.Fatal("expected error for malformed digest entry")
	}
}

func TestExtractWindowsNames(t *testing.T) {
	paths, err := Extract(testPayload("x", "y"), t.TempDir(), "windows")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if filepath.Base(paths.FFmpeg) != "ffmpeg.exe" || filepath.Base(paths.FFprobe) != "ffprobe.exe" {
		t.Fatalf("unexpected windows names: %+v", paths)
	}
}

func TestExtractMissingEntry(t *testing.T) {
	fsys := fstest.MapFS{FFmpegName: &fstest.MapFile{Data: []byte("x")}}
	if _, err := Extract(fsys, t.TempDir(), "linux"); err == nil {
		t.Fatal("expected error when ffprobe is missing")
	}
}

func TestExtractNilPayload(t *testing.T) {
	if _, err := Extract(nil, t.TempDir(), "linux"); !errors.Is(err, ErrNotBundled) {
		t.Fatalf("expected ErrNotBundled, got %v", err)
	}
}

func TestResolveUnbundledBuild(t *testing.T) {
	if Payload() != nil {
		t.Skip("test binary built with vidqc_bundled")
	}
	if _, err := Resolve(t.TempDir()); !errors.Is(err, ErrNotBundled) {
		t.Fatalf("expected ErrNotBundled, got %v", err)
	}
}

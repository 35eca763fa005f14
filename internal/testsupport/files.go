package testsupport

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := make([]byte, size)
	for i := range data {
		data[i] = 0x42
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteScript writes an executable POSIX shell script with the given body.
func WriteScript(t testing.TB, path, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	script := "#!/bin/sh\n" + strings.TrimSpace(body) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
}

// ZipBytes builds an in-memory zip archive. Keys ending in "/" become
// directory entries; everything else is a file with the mapped content.
func ZipBytes(t testing.TB, entries map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf strings.Builder
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		header := &zip.FileHeader{Name: name, Method: zip.Deflate}
		if strings.HasSuffix(name, "/") {
			header.SetMode(os.ModeDir | 0o755)
		} else {
			header.SetMode(0o755)
		}
		w, err := zw.CreateHeader(header)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if strings.HasSuffix(name, "/") {
			continue
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return []byte(buf.String())
}

// WriteZip writes ZipBytes output to path.
func WriteZip(t testing.TB, path string, entries map[string]string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, ZipBytes(t, entries), 0o644); err != nil {
		t.Fatalf("write zip %s: %v", path, err)
	}
}

// EssentialsArchive returns zip entries shaped like an ffmpeg essentials
// build for the given version.
func EssentialsArchive(version string) map[string]string {
	root := "ffmpeg-" + version + "-essentials_build/"
	return map[string]string{
		root:                     "",
		root + "bin/":            "",
		root + "bin/ffmpeg.exe":  "#!/bin/sh\necho ffmpeg version " + version + "\n",
		root + "bin/ffprobe.exe": "#!/bin/sh\necho ffprobe version " + version + "\n",
		root + "bin/ffmpeg":      "#!/bin/sh\necho ffmpeg version " + version + "\n",
		root + "bin/ffprobe":     "#!/bin/sh\necho ffprobe version " + version + "\n",
		root + "LICENSE":         "GPL",
		root + "doc/ffmpeg.html": "<html></html>",
	}
}

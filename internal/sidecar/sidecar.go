package sidecar

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Names of the embedded payload entries. DigestName holds the hex Digest of
// the two binaries, written at staging time so startup never rehashes them.
const (
	FFmpegName  = "ffmpeg"
	FFprobeName = "ffprobe"
	DigestName  = "digest"
)

const completeMarker = ".complete"

// ErrNotBundled reports that the running binary carries no embedded payload.
var ErrNotBundled = errors.New("sidecar: binaries not bundled into this build")

// Paths locates the unpacked ffmpeg and ffprobe executables.
type Paths struct {
	Dir     string
	FFmpeg  string
	FFprobe string
}

// Resolve unpacks the embedded payload of this build into cacheRoot.
func Resolve(cacheRoot string) (Paths, error) {
	payload := Payload()
	if payload == nil {
		return Paths{}, ErrNotBundled
	}
	return Extract(payload, cacheRoot, runtime.GOOS)
}

// Extract writes the ffmpeg and ffprobe entries of fsys into a
// content-addressed directory under cacheRoot. An existing complete
// extraction with the same content is reused as-is.
func Extract(fsys fs.FS, cacheRoot, goos string) (Paths, error) {
	if fsys == nil {
		return Paths{}, ErrNotBundled
	}
	if cacheRoot == "" {
		return Paths{}, errors.New("sidecar: empty cache directory")
	}
	digest, err := payloadKey(fsys)
	if err != nil {
		return Paths{}, err
	}

	dir := filepath.Join(cacheRoot, digest[:16])
	paths := Paths{
		Dir:     dir,
		FFmpeg:  filepath.Join(dir, ExecutableName(FFmpegName, goos)),
		FFprobe: filepath.Join(dir, ExecutableName(FFprobeName, goos)),
	}
	if _, err := os.Stat(filepath.Join(dir, completeMarker)); err == nil {
		return paths, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("sidecar: create cache dir: %w", err)
	}
	if err := writeEntry(fsys, FFmpegName, paths.FFmpeg); err != nil {
		return Paths{}, err
	}
	if err := writeEntry(fsys, FFprobeName, paths.FFprobe); err != nil {
		return Paths{}, err
	}
	if err := os.WriteFile(filepath.Join(dir, completeMarker), []byte(digest+"\n"), 0o644); err != nil {
		return Paths{}, fmt.Errorf("sidecar: mark complete: %w", err)
	}
	return paths, nil
}

// ExecutableName appends .exe for windows targets.
func ExecutableName(base, goos string) string {
	if goos == "windows" {
		return base + ".exe"
	}
	return base
}

// payloadKey prefers the staged digest entry and hashes the binaries only
// when it is absent.
func payloadKey(fsys fs.FS) (string, error) {
	data, err := fs.ReadFile(fsys, DigestName)
	switch {
	case err == nil:
		digest := strings.TrimSpace(string(data))
		if _, decodeErr := hex.DecodeString(digest); decodeErr != nil || len(digest) < 16 {
			return "", fmt.Errorf("sidecar: malformed %s entry %q", DigestName, digest)
		}
		return digest, nil
	case errors.Is(err, fs.ErrNotExist):
		return Digest(fsys)
	default:
		return "", fmt.Errorf("sidecar: read %s: %w", DigestName, err)
	}
}

// Digest hashes the ffmpeg and ffprobe entries of fsys.
func Digest(fsys fs.FS) (string, error) {
	hasher := sha256.New()
	for _, name := range []string{FFmpegName, FFprobeName} {
		f, err := fsys.Open(name)
		if err != nil {
			return "", fmt.Errorf("sidecar: open %s: %w", name, err)
		}
		_, err = io.Copy(hasher, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("sidecar: hash %s: %w", name, err)
		}
		// Separator keeps ("ab","c") and ("a","bc") distinct.
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// writeEntry writes to a temp file and renames so concurrent extractions
// never observe a partial binary.
func writeEntry(fsys fs.FS, name, dst string) error {
	src, err := fsys.Open(name)
	if err != nil {
		return fmt.Errorf("sidecar: open %s: %w", name, err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+name+"-*")
	if err != nil {
		return fmt.Errorf("sidecar: create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return fmt.Errorf("sidecar: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sidecar: close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o755); err != nil {
		return fmt.Errorf("sidecar: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("sidecar: install %s: %w", name, err)
	}
	return nil
}

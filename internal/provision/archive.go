package provision

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

var (
	// ErrBuildDirNotFound reports that no extracted directory matched the pattern.
	ErrBuildDirNotFound = errors.New("no ffmpeg build directory found")
	// ErrAmbiguousBuildDir reports more than one directory matching the pattern.
	ErrAmbiguousBuildDir = errors.New("more than one ffmpeg build directory found")
	// ErrUnsafeEntry reports an archive entry that would land outside the destination.
	ErrUnsafeEntry = errors.New("archive entry escapes destination")
)

// Extract unpacks a zip archive into dir and returns the number of files
// written. Entries resolving outside dir are rejected before anything is
// written. Symlinks are skipped.
func Extract(archive, dir string) (int, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		if zr != nil {
			_ = zr.Close()
		}
		if errors.Is(err, zip.ErrInsecurePath) {
			return 0, fmt.Errorf("%w: %v", ErrUnsafeEntry, err)
		}
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	targets := make([]string, len(zr.File))
	for i, f := range zr.File {
		target, err := entryPath(root, f.Name)
		if err != nil {
			return 0, err
		}
		targets[i] = target
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("create extract dir: %w", err)
	}
	written := 0
	for i, f := range zr.File {
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(targets[i], 0o755); err != nil {
				return written, fmt.Errorf("create %s: %w", f.Name, err)
			}
		case mode&os.ModeSymlink != 0:
			continue
		default:
			if err := extractFile(f, targets[i]); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func entryPath(root, name string) (string, error) {
	slashed := strings.ReplaceAll(name, `\`, "/")
	if strings.HasPrefix(slashed, "/") || filepath.VolumeName(filepath.FromSlash(slashed)) != "" {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	target := filepath.Join(root, filepath.FromSlash(slashed))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(target), err)
	}
	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	// archives built on windows carry no unix modes
	inBin := path.Base(path.Dir(strings.ReplaceAll(f.Name, `\`, "/"))) == "bin"
	if runtime.GOOS != "windows" && inBin && perm&0o100 == 0 {
		perm |= 0o755
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// LocateBuildDir returns the single directory directly under dir whose name
// matches pattern.
func LocateBuildDir(dir, pattern string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("scan %s: %w", dir, err)
	}
	var matches []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := path.Match(pattern, entry.Name())
		if err != nil {
			return "", fmt.Errorf("build dir pattern %q: %w", pattern, err)
		}
		if ok {
			matches = append(matches, entry.Name())
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: nothing matching %q in %s", ErrBuildDirNotFound, pattern, dir)
	case 1:
		return filepath.Join(dir, matches[0]), nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%w: %s", ErrAmbiguousBuildDir, strings.Join(matches, ", "))
	}
}

// RenameBuildDir moves the directory matching pattern under dir to target.
// A relative target is taken relative to dir. An existing target is moved
// aside, replaced and then removed, so repeated runs replace rather than
// nest and a failed rename restores the previous target. The returned bool
// reports whether a previous target was replaced.
func RenameBuildDir(dir, pattern, target string) (string, bool, error) {
	source, err := LocateBuildDir(dir, pattern)
	if err != nil {
		return "", false, err
	}
	dest := target
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(dir, target)
	}

	backup := dest + ".previous"
	replaced := false
	if _, err := os.Lstat(dest); err == nil {
		if err := os.RemoveAll(backup); err != nil {
			return "", false, fmt.Errorf("remove stale %s: %w", backup, err)
		}
		if err := os.Rename(dest, backup); err != nil {
			return "", false, fmt.Errorf("move previous %s aside: %w", dest, err)
		}
		replaced = true
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false, fmt.Errorf("stat %s: %w", dest, err)
	}

	if err := os.Rename(source, dest); err != nil {
		if replaced {
			if restoreErr := os.Rename(backup, dest); restoreErr != nil {
				err = errors.Join(err, fmt.Errorf("restore previous build: %w", restoreErr))
			}
		}
		return "", false, fmt.Errorf("rename %s to %s: %w", filepath.Base(source), dest, err)
	}
	if replaced {
		if err := os.RemoveAll(backup); err != nil {
			return dest, replaced, fmt.Errorf("remove previous build: %w", err)
		}
	}
	return dest, replaced, nil
}

// BinaryPaths returns the ffmpeg and ffprobe paths inside a build directory
// and fails when either is missing.
func BinaryPaths(buildDir, goos string) (string, string, error) {
	suffix := ""
	if goos == "windows" {
		suffix = ".exe"
	}
	ffmpeg := filepath.Join(buildDir, "bin", "ffmpeg"+suffix)
	ffprobe := filepath.Join(buildDir, "bin", "ffprobe"+suffix)
	for _, candidate := range []string{ffmpeg, ffprobe} {
		info, err := os.Stat(candidate)
		if err != nil {
			return "", "", fmt.Errorf("build dir missing %s: %w", filepath.Base(candidate), err)
		}
		if !info.Mode().IsRegular() {
			return "", "", fmt.Errorf("build dir entry %s is not a file", candidate)
		}
	}
	return ffmpeg, ffprobe, nil
}

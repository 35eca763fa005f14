package bundle

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"vidqc/internal/fileutil"
	"vidqc/internal/testsupport"
)

const fakeGo = `
printf '%s\n' "$*" > "$VIDQC_FAKE_GO_ARGS"
printf '%s\n' "$GOOS/$GOARCH cgo=$CGO_ENABLED" >> "$VIDQC_FAKE_GO_ARGS"
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf 'binary for %s' "$GOOS" > "$out"
`

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs require a POSIX shell")
	}
}

func writeBuild(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}
	for name, content := range map[string]string{"ffmpeg.exe": "ffmpeg-bytes", "ffprobe.exe": "ffprobe-bytes"} {
		if err := os.WriteFile(filepath.Join(dir, "bin", name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func testOptions(t *testing.T) (Options, string) {
	t.Helper()
	base := t.TempDir()
	goBin := filepath.Join(base, "fakebin", "go")
	testsupport.WriteScript(t, goBin, fakeGo)
	argsFile := filepath.Join(base, "go-args.txt")
	t.Setenv("VIDQC_FAKE_GO_ARGS", argsFile)
	return Options{
		GoBinary:     goBin,
		Package:      "./cmd/vidqc",
		OutputDir:    "dist",
		ArtifactName: "vidqc",
		GOOS:         "windows",
		GOARCH:       "amd64",
		Version:      "1.2.3",
		Dir:          base,
	}, argsFile
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		opts Options
		want string
	}{
		{Options{OutputDir: "dist", ArtifactName: "vidqc", GOOS: "windows"}, filepath.Join("dist", "vidqc.exe")},
		{Options{OutputDir: "dist", ArtifactName: "vidqc.exe", GOOS: "windows"}, filepath.Join("dist", "vidqc.exe")},
		{Options{OutputDir: "out", ArtifactName: "vidqc", GOOS: "linux"}, filepath.Join("out", "vidqc")},
		{Options{OutputDir: "dist", ArtifactName: "vidqc", GOOS: "linux", Dir: "/src"}, filepath.Join("/src", "dist", "vidqc")},
	}
	for _, tt := range tests {
		if got := ArtifactPath(tt.opts); got != tt.want {
			t.Fatalf("ArtifactPath(%+v) = %q, want %q", tt.opts, got, tt.want)
		}
	}
}

func TestStageOverwritesPayload(t *testing.T) {
	build := t.TempDir()
	writeBuild(t, build)
	payload := filepath.Join(t.TempDir(), "payload")
	if err := os.MkdirAll(payload, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(payload, "ffmpeg"), []byte("stale and much longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	staged, err := Stage(build, payload, "windows")
	if err != nil {
		t.Fatalf("Stage: %v", err)
	}
	data, err := os.ReadFile(staged.FFmpeg)
	if err != nil || string(data) != "ffmpeg-bytes" {
		t.Fatalf("unexpected staged ffmpeg %q (%v)", data, err)
	}
	want, _, err := fileutil.HashFile(filepath.Join(build, "bin", "ffprobe.exe"))
	if err != nil {
		t.Fatal(err)
	}
	if staged.Digests["ffprobe"] != want {
		t.Fatalf("unexpected ffprobe digest %q", staged.Digests["ffprobe"])
	}
	key, err := os.ReadFile(filepath.Join(payload, "digest"))
	if err != nil {
		t.Fatalf("read digest entry: %v", err)
	}
	if strings.TrimSpace(string(key)) != staged.Key || len(staged.Key) != 64 {
		t.Fatalf("unexpected digest entry %q for key %q", key, staged.Key)
	}
}

func TestStageMissingBinary(t *testing.T) {
	build := t.TempDir()
	if _, err := Stage(build, filepath.Join(t.TempDir(), "payload"), "windows"); err == nil {
		t.Fatal("expected error for empty build dir")
	}
}

func TestBuildProducesSingleArtifact(t *testing.T) {
	skipOnWindows(t)
	opts, argsFile := testOptions(t)

	artifact, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if artifact.Path != filepath.Join(opts.Dir, "dist", "vidqc.exe") {
		t.Fatalf("unexpected artifact path %q", artifact.Path)
	}
	if artifact.Size != int64(len("binary for windows")) || len(artifact.SHA256) != 64 {
		t.Fatalf("unexpected artifact %+v", artifact)
	}

	entries, err := os.ReadDir(filepath.Join(opts.Dir, "dist"))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	if strings.Join(names, ",") != "vidqc.exe,vidqc.exe.sha256" {
		t.Fatalf("unexpected dist contents: %v", names)
	}
	sum, err := os.ReadFile(artifact.Checksum)
	if err != nil {
		t.Fatal(err)
	}
	if string(sum) != artifact.SHA256+"  vidqc.exe\n" {
		t.Fatalf("unexpected checksum file %q", sum)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	got := string(args)
	for _, want := range []string{"-tags vidqc_bundled", "-trimpath", "-X main.version=1.2.3", "./cmd/vidqc", "windows/amd64 cgo=0"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in go invocation:\n%s", want, got)
		}
	}
}

func TestBuildWithRelativeModuleDir(t *testing.T) {
	skipOnWindows(t)
	opts, _ := testOptions(t)
	base := opts.Dir
	if err := os.MkdirAll(filepath.Join(base, "mod"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(base)
	opts.Dir = "mod"

	artifact, err := Build(context.Background(), opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !filepath.IsAbs(artifact.Path) {
		t.Fatalf("expected absolute artifact path, got %q", artifact.Path)
	}
	if _, err := os.Stat(filepath.Join(base, "mod", "dist", "vidqc.exe")); err != nil {
		t.Fatalf("artifact not under module dir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(base, "mod", "mod")); !os.IsNotExist(err) {
		t.Fatalf("module dir joined twice: %v", err)
	}
}

func TestBuildFailureIncludesOutput(t *testing.T) {
	skipOnWindows(t)
	opts, _ := testOptions(t)
	testsupport.WriteScript(t, opts.GoBinary, "echo 'undefined: sidecar.Payload' >&2\nexit 1")

	_, err := Build(context.Background(), opts)
	if err == nil || !strings.Contains(err.Error(), "undefined: sidecar.Payload") {
		t.Fatalf("expected build output in error, got %v", err)
	}
}

func TestBuildValidatesOptions(t *testing.T) {
	_, err := Build(context.Background(), Options{ArtifactName: "a/b"})
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBundlerRunIsRepeatable(t *testing.T) {
	skipOnWindows(t)
	opts, _ := testOptions(t)
	build := filepath.Join(opts.Dir, "tools", "ffmpeg_build")
	writeBuild(t, build)
	b := New(opts, nil)

	first, err := b.Run(context.Background(), build)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := b.Run(context.Background(), build)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.Path != second.Path || first.SHA256 != second.SHA256 {
		t.Fatalf("expected identical artifacts, got %+v and %+v", first, second)
	}
	staged, err := os.ReadFile(filepath.Join(opts.Dir, DefaultPayloadDir, "ffprobe"))
	if err != nil || string(staged) != "ffprobe-bytes" {
		t.Fatalf("unexpected staged payload %q (%v)", staged, err)
	}
}

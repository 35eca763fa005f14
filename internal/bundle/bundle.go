package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidqc/internal/config"
	"vidqc/internal/execx"
	"vidqc/internal/fileutil"
	"vidqc/internal/logging"
	"vidqc/internal/provision"
	"vidqc/internal/sidecar"
)

// BuildTag enables the embedded payload in internal/sidecar.
const BuildTag = "vidqc_bundled"

// DefaultPayloadDir is the embed directory relative to the module root.
var DefaultPayloadDir = filepath.Join("internal", "sidecar", "payload")

// Options controls the go build invocation.
type Options struct {
	GoBinary     string
	Package      string
	OutputDir    string
	ArtifactName string
	GOOS         string
	GOARCH       string
	Version      string
	// LDFlags is appended after the default "-s -w".
	LDFlags string
	// Dir is the module root; empty means the working directory.
	Dir string
	// PayloadDir defaults to DefaultPayloadDir under Dir.
	PayloadDir string
}

// OptionsFromConfig maps the [bundle] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		GoBinary:     cfg.Bundle.GoBinary,
		Package:      cfg.Bundle.Package,
		OutputDir:    cfg.Bundle.OutputDir,
		ArtifactName: cfg.Bundle.ArtifactName,
		GOOS:         cfg.Bundle.GOOS,
		GOARCH:       cfg.Bundle.GOARCH,
	}
}

// Artifact describes the built executable.
type Artifact struct {
	Path     string
	Size     int64
	SHA256   string
	Checksum string
}

// Staged records the digests of the binaries copied into the payload dir.
type Staged struct {
	FFmpeg  string
	FFprobe string
	// Digests are hex SHA-256 values, keyed by payload name.
	Digests map[string]string
	// Key is the combined payload digest written to the digest entry.
	Key string
}

// ArtifactPath returns <output>/<name>, with .exe for windows targets.
func ArtifactPath(opts Options) string {
	name := opts.ArtifactName
	if opts.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(name), ".exe") {
		name += ".exe"
	}
	return filepath.Join(resolve(opts.Dir, opts.OutputDir), name)
}

func (o Options) payloadDir() string {
	if o.PayloadDir != "" {
		return resolve(o.Dir, o.PayloadDir)
	}
	return resolve(o.Dir, DefaultPayloadDir)
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

// Stage copies ffmpeg and ffprobe from buildDir into payloadDir under the
// fixed names the embed directive expects, overwriting previous payloads.
func Stage(buildDir, payloadDir, goos string) (Staged, error) {
	ffmpeg, ffprobe, err := provision.BinaryPaths(buildDir, goos)
	if err != nil {
		return Staged{}, err
	}
	if err := os.MkdirAll(payloadDir, 0o755); err != nil {
		return Staged{}, fmt.Errorf("create payload dir: %w", err)
	}
	staged := Staged{
		FFmpeg:  filepath.Join(payloadDir, sidecar.FFmpegName),
		FFprobe: filepath.Join(payloadDir, sidecar.FFprobeName),
		Digests: make(map[string]string, 2),
	}
	for _, pair := range []struct{ src, dst, name string }{
		{ffmpeg, staged.FFmpeg, sidecar.FFmpegName},
		{ffprobe, staged.FFprobe, sidecar.FFprobeName},
	} {
		sum, err := fileutil.CopyVerified(pair.src, pair.dst, 0o755)
		if err != nil {
			return Staged{}, fmt.Errorf("stage %s: %w", pair.name, err)
		}
		staged.Digests[pair.name] = sum
	}
	staged.Key, err = sidecar.Digest(os.DirFS(payloadDir))
	if err != nil {
		return Staged{}, err
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(payloadDir, sidecar.DigestName), []byte(staged.Key+"\n"), 0o644); err != nil {
		return Staged{}, fmt.Errorf("write payload digest: %w", err)
	}
	return staged, nil
}

// Build cross-compiles the bundled executable and writes its checksum file.
// The returned artifact path is absolute.
func Build(ctx context.Context, opts Options) (Artifact, error) {
	if err := validate(opts); err != nil {
		return Artifact{}, err
	}
	// go build runs inside opts.Dir, so a relative -o would be joined twice.
	output, err := filepath.Abs(ArtifactPath(opts))
	if err != nil {
		return Artifact{}, fmt.Errorf("resolve artifact path: %w", err)
	}
	artifact := Artifact{Path: output}
	if err := os.MkdirAll(filepath.Dir(artifact.Path), 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create output dir: %w", err)
	}

	goBinary := strings.TrimSpace(opts.GoBinary)
	if goBinary == "" {
		goBinary = "go"
	}
	cmd := execx.Command(ctx, goBinary, buildArgs(opts, artifact.Path)...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(),
		"GOOS="+opts.GOOS,
		"GOARCH="+opts.GOARCH,
		"CGO_ENABLED=0",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Artifact{}, ctxErr
		}
		return Artifact{}, fmt.Errorf("go build: %w: %s", err, tailLines(string(out), 8))
	}

	info, err := os.Stat(artifact.Path)
	if err != nil {
		return Artifact{}, fmt.Errorf("artifact missing after build: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Artifact{}, fmt.Errorf("artifact %s is not a file", artifact.Path)
	}
	artifact.SHA256, artifact.Size, err = fileutil.HashFile(artifact.Path)
	if err != nil {
		return Artifact{}, err
	}
	artifact.Checksum = artifact.Path + ".sha256"
	line := fmt.Sprintf("%s  %s\n", artifact.SHA256, filepath.Base(artifact.Path))
	if err := fileutil.WriteFileAtomic(artifact.Checksum, []byte(line), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write checksum: %w", err)
	}
	return artifact, nil
}

func validate(opts Options) error {
	var missing []string
	for _, field := range []struct{ name, value string }{
		{"package", opts.Package},
		{"output_dir", opts.OutputDir},
		{"artifact_name", opts.ArtifactName},
		{"goos", opts.GOOS},
		{"goarch", opts.GOARCH},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("bundle: missing %s", strings.Join(missing, ", "))
	}
	if strings.ContainsAny(opts.ArtifactName, `/\`) {
		return errors.New("bundle: artifact_name must not contain path separators")
	}
	return nil
}

func buildArgs(opts Options, output string) []string {
	ldflags := "-s -w"
	if v := strings.TrimSpace(opts.Version); v != "" {
		ldflags += " -X main.version=" + v
	}
	if extra := strings.TrimSpace(opts.LDFlags); extra != "" {
		ldflags += " " + extra
	}
	return []string{
		"build",
		"-tags", BuildTag,
		"-trimpath",
		"-ldflags", ldflags,
		"-o", output,
		opts.Package,
	}
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Bundler stages a provisioned build and compiles the artifact.
type Bundler struct {
	opts   Options
	logger *slog.Logger
}

// New returns a Bundler for opts.
func New(opts Options, logger *slog.Logger) *Bundler {
	return &Bundler{opts: opts, logger: logging.NewComponentLogger(logger, "bundle")}
}

// Run stages the binaries from buildDir and builds the artifact. The same
// inputs always produce the same artifact path.
func (b *Bundler) Run(ctx context.Context, buildDir string) (Artifact, error) {
	payload := b.opts.payloadDir()
	staged, err := Stage(buildDir, payload, b.opts.GOOS)
	if err != nil {
		logging.ErrorWithContext(b.logger, "staging failed", "stage_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run `vidqc provision` first"),
		)
		return Artifact{}, err
	}
	b.logger.Info("payload staged",
		logging.String(logging.FieldEventType, "payload_staged"),
		logging.String("payload_dir", payload),
		logging.String("ffmpeg_sha256", staged.Digests[sidecar.FFmpegName]),
		logging.String("ffprobe_sha256", staged.Digests[sidecar.FFprobeName]),
	)

	started := time.Now()
	b.logger.Info("building artifact",
		logging.String("goos", b.opts.GOOS),
		logging.String("goarch", b.opts.GOARCH),
		logging.String("package", b.opts.Package),
	)
	artifact, err := Build(ctx, b.opts)
	if err != nil {
		logging.ErrorWithContext(b.logger, "build failed", "build_failed", logging.Error(err))
		return Artifact{}, err
	}
	b.logger.Info("artifact built",
		logging.String(logging.FieldEventType, "artifact_built"),
		logging.String("path", artifact.Path),
		logging.Int64("bytes", artifact.Size),
		logging.String("sha256", artifact.SHA256),
		logging.Duration("elapsed", time.Since(started)),
	)
	return artifact, nil
}

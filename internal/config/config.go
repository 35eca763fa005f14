package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	ToolsDir string `toml:"tools_dir"`
	StateDir string `toml:"state_dir"`
}

// FFmpeg contains configuration for the external ffmpeg/ffprobe binaries.
type FFmpeg struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	CommandTimeout int    `toml:"command_timeout"`
}

// Thresholds contains the detection limits used by the quality checks.
type Thresholds struct {
	// MuteThresholdDB is the noise floor below which audio counts as silent.
	MuteThresholdDB float64 `toml:"mute_threshold_db"`
	// MuteMinDuration is the shortest silence (seconds) worth reporting.
	MuteMinDuration float64 `toml:"mute_min_duration"`
	// ShortShotMinFrames is the frame count under which a shot is "short".
	ShortShotMinFrames int     `toml:"short_shot_min_frames"`
	SceneThreshold     float64 `toml:"scene_threshold"`
	BlackMinDuration   float64 `toml:"black_min_duration"`
	BlackPictureRatio  float64 `toml:"black_picture_threshold"`
	BlackPixelRatio    float64 `toml:"black_pixel_threshold"`
	// PeakDBFS is the level (dBFS, 0 is full scale) a sample must exceed to
	// count towards a peak.
	PeakDBFS        float64 `toml:"peak_dbfs"`
	PeakMaxDuration float64 `toml:"peak_max_duration"`
}

// Provision contains configuration for fetching the FFmpeg distribution.
type Provision struct {
	DownloadURL     string `toml:"download_url"`
	BuildDirPattern string `toml:"build_dir_pattern"`
	BuildDirName    string `toml:"build_dir_name"`
	DownloadTimeout int    `toml:"download_timeout"`
}

// Bundle contains configuration for producing the single-file executable.
type Bundle struct {
	OutputDir    string `toml:"output_dir"`
	ArtifactName string `toml:"artifact_name"`
	GOOS         string `toml:"goos"`
	GOARCH       string `toml:"goarch"`
	Package      string `toml:"package"`
	GoBinary     string `toml:"go_binary"`
}

// History contains configuration for the analysis run store.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for vidqc.
//
// Configuration sections by subsystem:
//   - Paths: log, tools and state directories
//   - FFmpeg: explicit binary overrides and per-pass timeout
//   - Thresholds: quality check limits
//   - Provision: FFmpeg distribution download and rename contract
//   - Bundle: single executable build settings
//   - History: sqlite run history
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	FFmpeg     FFmpeg     `toml:"ffmpeg"`
	Thresholds Thresholds `toml:"thresholds"`
	Provision  Provision  `toml:"provision"`
	Bundle     Bundle     `toml:"bundle"`
	History    History    `toml:"history"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vidqc/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vidqc.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log, tools and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.ToolsDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HistoryPath returns the sqlite database used for run history.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// SidecarCacheDir returns the directory bundled binaries are unpacked into.
func (c *Config) SidecarCacheDir() string {
	return filepath.Join(c.Paths.StateDir, "sidecar")
}

// BuildDir returns the renamed FFmpeg distribution directory inside the tools dir.
func (c *Config) BuildDir() string {
	return filepath.Join(c.Paths.ToolsDir, c.Provision.BuildDirName)
}

// CommandTimeout returns the per-pass ffmpeg timeout, or zero for none.
func (c *Config) CommandTimeout() time.Duration {
	if c.FFmpeg.CommandTimeout <= 0 {
		return 0
	}
	return time.Duration(c.FFmpeg.CommandTimeout) * time.Second
}

// DownloadTimeout returns the HTTP timeout used for the FFmpeg download.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Provision.DownloadTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	c.normalizeProvision()
	c.normalizeBundle()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ToolsDir) == "" {
		c.Paths.ToolsDir = defaultToolsDir
	}
	if c.Paths.ToolsDir, err = expandPath(c.Paths.ToolsDir); err != nil {
		return fmt.Errorf("paths.tools_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	if value, ok := os.LookupEnv("VIDQC_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.FFmpegBinary = value
	}
	if value, ok := os.LookupEnv("VIDQC_FFPROBE"); ok && strings.TrimSpace(value) != "" {
		c.FFmpeg.FFprobeBinary = value
	}
	var err error
	if c.FFmpeg.FFmpegBinary, err = expandBinary(c.FFmpeg.FFmpegBinary); err != nil {
		return fmt.Errorf("ffmpeg.ffmpeg_binary: %w", err)
	}
	if c.FFmpeg.FFprobeBinary, err = expandBinary(c.FFmpeg.FFprobeBinary); err != nil {
		return fmt.Errorf("ffmpeg.ffprobe_binary: %w", err)
	}
	if c.FFmpeg.CommandTimeout < 0 {
		c.FFmpeg.CommandTimeout = 0
	}
	return nil
}

// expandBinary expands values that look like paths and leaves bare command
// names alone so they keep resolving through PATH.
func expandBinary(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if !strings.ContainsAny(value, `/\`) && !strings.HasPrefix(value, "~") {
		return value, nil
	}
	return expandPath(value)
}

func (c *Config) normalizeProvision() {
	if value, ok := os.LookupEnv("VIDQC_FFMPEG_URL"); ok && strings.TrimSpace(value) != "" {
		c.Provision.DownloadURL = value
	}
	c.Provision.DownloadURL = strings.TrimSpace(c.Provision.DownloadURL)
	if c.Provision.DownloadURL == "" {
		c.Provision.DownloadURL = defaultDownloadURL
	}
	c.Provision.BuildDirPattern = strings.TrimSpace(c.Provision.BuildDirPattern)
	if c.Provision.BuildDirPattern == "" {
		c.Provision.BuildDirPattern = defaultBuildDirPattern
	}
	c.Provision.BuildDirName = strings.TrimSpace(c.Provision.BuildDirName)
	if c.Provision.BuildDirName == "" {
		c.Provision.BuildDirName = defaultBuildDirName
	}
	if c.Provision.DownloadTimeout <= 0 {
		c.Provision.DownloadTimeout = defaultDownloadTimeout
	}
}

func (c *Config) normalizeBundle() {
	c.Bundle.OutputDir = strings.TrimSpace(c.Bundle.OutputDir)
	if c.Bundle.OutputDir == "" {
		c.Bundle.OutputDir = defaultBundleOutputDir
	}
	c.Bundle.OutputDir = filepath.Clean(c.Bundle.OutputDir)
	c.Bundle.ArtifactName = strings.TrimSpace(c.Bundle.ArtifactName)
	if c.Bundle.ArtifactName == "" {
		c.Bundle.ArtifactName = defaultArtifactName
	}
	c.Bundle.GOOS = strings.ToLower(strings.TrimSpace(c.Bundle.GOOS))
	if c.Bundle.GOOS == "" {
		c.Bundle.GOOS = defaultBundleGOOS
	}
	c.Bundle.GOARCH = strings.ToLower(strings.TrimSpace(c.Bundle.GOARCH))
	if c.Bundle.GOARCH == "" {
		c.Bundle.GOARCH = defaultBundleGOARCH
	}
	c.Bundle.Package = strings.TrimSpace(c.Bundle.Package)
	if c.Bundle.Package == "" {
		c.Bundle.Package = defaultBundlePackage
	}
	c.Bundle.GoBinary = strings.TrimSpace(c.Bundle.GoBinary)
	if c.Bundle.GoBinary == "" {
		c.Bundle.GoBinary = defaultGoBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateThresholds(); err != nil {
		return err
	}
	if err := c.validateProvision(); err != nil {
		return err
	}
	if err := c.validateBundle(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateThresholds() error {
	t := c.Thresholds
	if t.MuteThresholdDB >= 0 {
		return errors.New("thresholds.mute_threshold_db must be negative")
	}
	if t.MuteMinDuration <= 0 {
		return errors.New("thresholds.mute_min_duration must be positive")
	}
	if t.ShortShotMinFrames <= 0 {
		return errors.New("thresholds.short_shot_min_frames must be positive")
	}
	if t.SceneThreshold <= 0 || t.SceneThreshold > 1 {
		return errors.New("thresholds.scene_threshold must be between 0 and 1")
	}
	if t.BlackMinDuration < 0 {
		return errors.New("thresholds.black_min_duration must be >= 0")
	}
	if err := ensureRatios(map[string]float64{
		"thresholds.black_picture_threshold": t.BlackPictureRatio,
		"thresholds.black_pixel_threshold":   t.BlackPixelRatio,
	}); err != nil {
		return err
	}
	if t.PeakDBFS > 0 {
		return errors.New("thresholds.peak_dbfs must be <= 0")
	}
	if t.PeakMaxDuration <= 0 {
		return errors.New("thresholds.peak_max_duration must be positive")
	}
	return nil
}

func (c *Config) validateProvision() error {
	if _, err := path.Match(c.Provision.BuildDirPattern, ""); err != nil {
		return fmt.Errorf("provision.build_dir_pattern: %w", err)
	}
	if strings.ContainsAny(c.Provision.BuildDirName, `/\`) {
		return errors.New("provision.build_dir_name must be a single directory name")
	}
	if c.Provision.DownloadTimeout <= 0 {
		return errors.New("provision.download_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateBundle() error {
	if strings.ContainsAny(c.Bundle.ArtifactName, `/\`) {
		return errors.New("bundle.artifact_name must not contain path separators")
	}
	return nil
}

func ensureRatios(values map[string]float64) error {
	for key, value := range values {
		if value < 0 || value > 1 {
			return fmt.Errorf("%s must be between 0 and 1", key)
		}
	}
	return nil
}

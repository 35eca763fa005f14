// Package config loads, normalizes, and validates vidqc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// VIDQC_FFMPEG and VIDQC_FFMPEG_URL. The Config type centralizes every knob the
// CLI needs: where tools are provisioned, which thresholds the quality checks
// apply, and how the single-file bundle is produced.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config

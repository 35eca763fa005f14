// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// This package has no vidqc-specific dependencies and could be extracted
// as a standalone library.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Format: container-level metadata (duration, size, bitrate)
//   - Metadata: frame rate, duration, sample rate and channel count used by
//     the quality checks
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe

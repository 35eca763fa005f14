// Package qc runs the video quality checks.
//
// Each check drives ffmpeg with a detection filter and parses what it logs:
// silencedetect per audio channel for mute stretches, a scene-score select
// with showinfo for shot boundaries, raw float PCM for short level peaks and
// blackdetect for black frames. Analyzer strings them together for one file
// and AnalyzeBatch fans files out over a bounded worker pool.
package qc

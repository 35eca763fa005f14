// Package sidecar carries ffmpeg and ffprobe inside the vidqc executable.
//
// Builds tagged vidqc_bundled embed the two binaries staged under payload/ by
// `vidqc bundle`. At runtime they are unpacked once into a content-addressed
// cache directory and reused by later runs; untagged builds report
// ErrNotBundled and binary resolution falls through to the next source.
package sidecar

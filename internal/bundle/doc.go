// Package bundle produces the single-file vidqc executable.
//
// Stage copies a provisioned ffmpeg and ffprobe into the sidecar embed
// directory with checksum verification, and Build cross-compiles cmd/vidqc
// with the vidqc_bundled tag so both binaries travel inside the artifact.
// The artifact gets a sibling .sha256 file in the format sha256sum reads.
package bundle

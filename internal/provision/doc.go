// Package provision fetches the ffmpeg essentials distribution and installs
// it under the tools directory.
//
// A run downloads the zip archive, extracts it into a private staging
// directory and renames the one directory matching the configured pattern
// (ffmpeg-*-essentials_build by default) to the fixed build name. A stale
// build of the same name is replaced, never nested. Runs are serialized with
// a file lock on the tools directory.
package provision

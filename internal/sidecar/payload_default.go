//go:build !vidqc_bundled

package sidecar

import "io/fs"

// Payload returns nil in builds without the vidqc_bundled tag.
func Payload() fs.FS { return nil }

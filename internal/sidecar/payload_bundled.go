//go:build vidqc_bundled

package sidecar

import (
	"embed"
	"io/fs"
)

//go:embed payload/ffmpeg payload/ffprobe payload/digest
var payloadFS embed.FS

// Payload returns the ffmpeg/ffprobe binaries embedded at build time.
func Payload() fs.FS {
	sub, err := fs.Sub(payloadFS, "payload")
	if err != nil {
		return nil
	}
	return sub
}

// Package deps resolves and checks the external binaries vidqc shells out to.
//
// Resolver walks the lookup chain for ffmpeg and ffprobe (configured path,
// bundled sidecar, next to the executable, provisioned tools dir, PATH) and
// Verify confirms a resolved binary actually runs.
package deps

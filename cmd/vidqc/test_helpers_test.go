package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"vidqc/internal/config"
	"vidqc/internal/testsupport"
)

const stubProbeJSON = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "h264", "r_frame_rate": "25/1", "duration": "10.000000"},
    {"index": 1, "codec_type": "audio", "codec_name": "pcm_s24le", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "clip.mxf", "nb_streams": 2, "duration": "10.000000", "format_name": "mxf"}
}`

// stubFFmpeg answers the PCM decode with two full-scale frames on channel 1
// followed by silence, and every other invocation with canned filter output.
const stubFFmpeg = `
case "$*" in
  *f32le*)
    printf '\000\000\200\077\000\000\000\000\000\000\200\077\000\000\000\000'
    printf '\000\000\000\000\000\000\000\000\000\000\000\000\000\000\000\000'
    exit 0
    ;;
esac
cat >&2 <<'LOG'
[silencedetect @ 0x1] silence_start: 2
[silencedetect @ 0x1] silence_end: 4.5 | silence_duration: 2.5
[Parsed_showinfo_1 @ 0x2] n:   0 pts:    125 pts_time:5       duration:1
[Parsed_showinfo_1 @ 0x2] n:   1 pts:    127 pts_time:5.08    duration:1
[blackdetect @ 0x3] black_start:0 black_end:1 black_duration:1
LOG
`

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	media      string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub binaries are shell scripts")
	}

	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("VIDQC_FFMPEG", "")
	t.Setenv("VIDQC_FFPROBE", "")
	t.Setenv("VIDQC_FFMPEG_URL", "")

	binDir := filepath.Join(base, "bin")
	cfg.FFmpeg.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.FFmpeg.FFprobeBinary = filepath.Join(binDir, "ffprobe")
	testsupport.WriteScript(t, cfg.FFmpeg.FFmpegBinary, stubFFmpeg)
	testsupport.WriteScript(t, cfg.FFmpeg.FFprobeBinary, "cat <<'JSON'\n"+stubProbeJSON+"\nJSON")

	media := filepath.Join(base, "clip.mxf")
	testsupport.WriteFile(t, media, 1024)

	configPath := filepath.Join(base, "vidqc.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base, media: media}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
log_dir = %q
tools_dir = %q
state_dir = %q

[ffmpeg]
ffmpeg_binary = %q
ffprobe_binary = %q

[provision]
download_url = %q

[bundle]
output_dir = %q
go_binary = %q

[history]
enabled = %t

[logging]
format = "json"
level = "warn"
`,
		cfg.Paths.LogDir,
		cfg.Paths.ToolsDir,
		cfg.Paths.StateDir,
		cfg.FFmpeg.FFmpegBinary,
		cfg.FFmpeg.FFprobeBinary,
		cfg.Provision.DownloadURL,
		cfg.Bundle.OutputDir,
		cfg.Bundle.GoBinary,
		cfg.History.Enabled,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

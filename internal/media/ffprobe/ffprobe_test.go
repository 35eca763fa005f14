package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio"},
			{CodecType: "audio"},
		},
		Format: Format{
			Duration: "123.45",
			Size:     "1000",
			BitRate:  "32000",
		},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.BitRate() != 32000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.BitRate() != 0 {
		t.Fatalf("expected bitrate 0, got %d", result.BitRate())
	}
	if meta := result.Metadata(); meta.Duration != 0 {
		t.Fatalf("expected NaN duration to collapse to 0, got %v", meta.Duration)
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"25", 25},
		{"25/1", 25},
		{"30000/1001", 30000.0 / 1001.0},
		{"0/0", 0},
		{"24/0", 0},
		{"", 0},
		{"abc", 0},
		{"x/2", 0},
	}
	for _, tc := range tests {
		if got := ParseFrameRate(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseFrameRate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

const sampleProbe = `{
  "streams": [
    {"index": 0, "codec_type": "video", "codec_name": "mpeg2video", "r_frame_rate": "25/1", "avg_frame_rate": "25/1", "duration": "60.000000"},
    {"index": 1, "codec_type": "audio", "codec_name": "pcm_s24le", "sample_rate": "48000", "channels": 8},
    {"index": 2, "codec_type": "audio", "codec_name": "pcm_s24le", "sample_rate": "44100", "channels": 2}
  ],
  "format": {"filename": "clip.mxf", "nb_streams": 3, "duration": "61.5", "format_name": "mxf"}
}`

func TestParseMetadata(t *testing.T) {
	result, err := Parse([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	meta := result.Metadata()
	want := Metadata{FPS: 25, Duration: 60, SampleRate: 48000, Channels: 8, HasVideo: true, HasAudio: true}
	if meta != want {
		t.Fatalf("Metadata() = %+v, want %+v", meta, want)
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw json to be retained")
	}
}

func TestMetadataFallsBackToContainerDuration(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", RFrameRate: "0/0", AvgFrameRate: "30000/1001"}},
		Format:  Format{Duration: "12.5"},
	}
	meta := result.Metadata()
	if meta.Duration != 12.5 {
		t.Fatalf("expected container duration, got %v", meta.Duration)
	}
	if math.Abs(meta.FPS-29.97002997) > 1e-6 {
		t.Fatalf("expected avg frame rate fallback, got %v", meta.FPS)
	}
	if meta.HasAudio {
		t.Fatal("expected no audio")
	}
}

func TestInspectRunsBinary(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()
	payload := filepath.Join(dir, "probe.json")
	if err := os.WriteFile(payload, []byte(sampleProbe), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat '" + payload + "'\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), stub, "clip.mxf")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}

	if _, err := Inspect(context.Background(), stub, "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

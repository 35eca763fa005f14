package qc

import (
	"testing"
)

const silenceLog = `[silencedetect @ 0x55d1] silence_start: -0.00133
[silencedetect @ 0x55d1] silence_end: 2.5 | silence_duration: 2.50133
frame=  120 fps=0.0 q=-0.0 size=N/A time=00:00:05.00 bitrate=N/A speed= 10x` + "\r" + `[silencedetect @ 0x55d1] silence_start: 8
`

func TestParseSilenceClosesOpenSegment(t *testing.T) {
	segments := ParseSilence([]byte(silenceLog), 2, 10)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segments)
	}
	first := segments[0]
	if first.Channel != 2 || first.Start != 0 || first.End != 2.5 || first.Duration != 2.50133 {
		t.Fatalf("unexpected first segment: %+v", first)
	}
	last := segments[1]
	if last.Start != 8 || last.End != 10 || last.Duration != 2 {
		t.Fatalf("unexpected trailing segment: %+v", last)
	}
}

func TestParseSilenceUnknownDurationDropsOpenSegment(t *testing.T) {
	segments := ParseSilence([]byte("[silencedetect @ 0x1] silence_start: 3\n"), 1, 0)
	if len(segments) != 0 {
		t.Fatalf("expected no segments, got %+v", segments)
	}
}

func TestParseSceneCuts(t *testing.T) {
	log := `[Parsed_showinfo_1 @ 0x6000] config in time_base: 1/25, frame_rate: 25/1
[Parsed_showinfo_1 @ 0x6000] n:   0 pts:    100 pts_time:4       duration:      1 duration_time:0.04
[Parsed_showinfo_1 @ 0x6000] n:   1 pts:    110 pts_time:4.4     duration:      1 duration_time:0.04
[other @ 0x1] pts_time:99
`
	cuts := ParseSceneCuts([]byte(log))
	if len(cuts) != 2 || cuts[0] != 4 || cuts[1] != 4.4 {
		t.Fatalf("unexpected cuts: %v", cuts)
	}
}

func TestParseBlack(t *testing.T) {
	log := `[blackdetect @ 0x7f] black_start:0 black_end:1.52 black_duration:1.52
[blackdetect @ 0x7f] black_start:30.2 black_end:30.28 black_duration:0.08
`
	segments := ParseBlack([]byte(log))
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %+v", segments)
	}
	if segments[1] != (BlackSegment{Start: 30.2, End: 30.28, Duration: 0.08}) {
		t.Fatalf("unexpected segment: %+v", segments[1])
	}
}

func TestShortShots(t *testing.T) {
	tests := []struct {
		name     string
		cuts     []float64
		duration float64
		fps      float64
		want     []float64
	}{
		{name: "no cuts", cuts: nil, duration: 10, fps: 25},
		{name: "one short shot", cuts: []float64{4, 4.12}, duration: 10, fps: 25, want: []float64{4}},
		{name: "short tail", cuts: []float64{9.96}, duration: 10, fps: 25, want: []float64{9.96}},
		{name: "duplicate cuts ignored", cuts: []float64{2, 2, 5}, duration: 10, fps: 25},
		{name: "unknown fps", cuts: []float64{4, 4.04}, duration: 10, fps: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shots := ShortShots(tt.cuts, tt.duration, tt.fps, 5)
			if len(shots) != len(tt.want) {
				t.Fatalf("expected %d shots, got %+v", len(tt.want), shots)
			}
			for i, start := range tt.want {
				if shots[i].Start != start {
					t.Fatalf("shot %d: expected start %v, got %+v", i, start, shots[i])
				}
				if shots[i].Frames >= 5 {
					t.Fatalf("shot %d: expected fewer than 5 frames, got %v", i, shots[i].Frames)
				}
			}
		})
	}
}

func TestTailKeepsLastLines(t *testing.T) {
	got := tail("a\n\nb\nc\nd\n", 2)
	if got != "c | d" {
		t.Fatalf("unexpected tail %q", got)
	}
}

package qc

import (
	"fmt"
	"strconv"
	"strings"

	"vidqc/internal/media/ffprobe"
)

// ChannelRef addresses one audio channel: Stream is the audio-relative stream
// index (the N in 0:a:N) and Channel the channel inside that stream.
type ChannelRef struct {
	Stream  int
	Channel int
}

// ChannelPlan lays out logical channels across the audio streams in order.
// A single 8-channel stream and eight mono streams both yield eight refs.
// want <= 0 selects every channel; larger values are capped at what exists.
func ChannelPlan(result ffprobe.Result, want int) []ChannelRef {
	var plan []ChannelRef
	audioIndex := 0
	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		channels := stream.Channels
		if channels <= 0 {
			channels = 1
		}
		for ch := 0; ch < channels; ch++ {
			plan = append(plan, ChannelRef{Stream: audioIndex, Channel: ch})
		}
		audioIndex++
	}
	if want > 0 && want < len(plan) {
		plan = plan[:want]
	}
	return plan
}

func (c ChannelRef) input() string {
	return fmt.Sprintf("[0:a:%d]", c.Stream)
}

func (c ChannelRef) pan() string {
	return fmt.Sprintf("pan=mono|c0=c%d", c.Channel)
}

func baseArgs(file string) []string {
	return []string{"-hide_banner", "-nostats", "-nostdin", "-i", file}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// silenceArgs isolates one channel and runs silencedetect over it.
func silenceArgs(file string, ref ChannelRef, th Thresholds) []string {
	graph := fmt.Sprintf("%s%s,silencedetect=noise=%sdB:d=%s[out]",
		ref.input(), ref.pan(), formatFloat(th.MuteThresholdDB), formatFloat(th.MuteMinDuration))
	args := baseArgs(file)
	return append(args, "-filter_complex", graph, "-map", "[out]", "-f", "null", "-")
}

// sceneArgs prints one showinfo line per frame whose scene score exceeds the threshold.
func sceneArgs(file string, th Thresholds) []string {
	filter := fmt.Sprintf("select='gt(scene,%s)',showinfo", formatFloat(th.SceneThreshold))
	args := baseArgs(file)
	return append(args, "-map", "0:v:0", "-vf", filter, "-an", "-f", "null", "-")
}

// blackArgs runs blackdetect on the first video stream.
func blackArgs(file string, th Thresholds) []string {
	filter := fmt.Sprintf("blackdetect=d=%s:pic_th=%s:pix_th=%s",
		formatFloat(th.BlackMinDuration), formatFloat(th.BlackPictureRatio), formatFloat(th.BlackPixelRatio))
	args := baseArgs(file)
	return append(args, "-map", "0:v:0", "-vf", filter, "-an", "-f", "null", "-")
}

// pcmArgs decodes the planned channels, resampled to sampleRate, as
// interleaved float32 PCM on stdout in plan order.
func pcmArgs(file string, plan []ChannelRef, sampleRate int) []string {
	var graph strings.Builder
	for i, ref := range plan {
		fmt.Fprintf(&graph, "%s%s,aresample=%d[a%d];", ref.input(), ref.pan(), sampleRate, i)
	}
	if len(plan) == 1 {
		graph.WriteString("[a0]anull[out]")
	} else {
		for i := range plan {
			fmt.Fprintf(&graph, "[a%d]", i)
		}
		fmt.Fprintf(&graph, "amerge=inputs=%d[out]", len(plan))
	}
	args := baseArgs(file)
	return append(args,
		"-loglevel", "error",
		"-filter_complex", graph.String(),
		"-map", "[out]",
		"-ac", strconv.Itoa(len(plan)),
		"-c:a", "pcm_f32le",
		"-f", "f32le",
		"-",
	)
}

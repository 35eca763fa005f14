package qc

import (
	"bufio"
	"bytes"
	"regexp"
	"strconv"
	"strings"
)

var (
	silenceStartPattern = regexp.MustCompile(`silence_start:\s*(-?[0-9.]+)`)
	silenceEndPattern   = regexp.MustCompile(`silence_end:\s*(-?[0-9.]+)(?:\s*\|\s*silence_duration:\s*(-?[0-9.]+))?`)
	ptsTimePattern      = regexp.MustCompile(`pts_time:\s*(-?[0-9.]+)`)
	blackPattern        = regexp.MustCompile(`black_start:\s*(-?[0-9.]+)\s+black_end:\s*(-?[0-9.]+)\s+black_duration:\s*(-?[0-9.]+)`)
)

// ParseSilence extracts silence segments from silencedetect output. A start
// without a matching end is closed at duration, when duration is known.
func ParseSilence(stderr []byte, channel int, duration float64) []MuteSegment {
	var (
		segments []MuteSegment
		open     bool
		start    float64
	)
	eachLine(stderr, func(line string) {
		if !strings.Contains(line, "silence_") {
			return
		}
		if m := silenceStartPattern.FindStringSubmatch(line); m != nil {
			value, ok := parseSeconds(m[1])
			if !ok {
				return
			}
			open, start = true, value
			return
		}
		if m := silenceEndPattern.FindStringSubmatch(line); m != nil {
			end, ok := parseSeconds(m[1])
			if !ok || !open {
				return
			}
			length := end - start
			if m[2] != "" {
				if reported, ok := parseSeconds(m[2]); ok && reported > 0 {
					length = reported
				}
			}
			segments = append(segments, MuteSegment{Channel: channel, Start: start, End: end, Duration: length})
			open = false
		}
	})
	if open && duration > start {
		segments = append(segments, MuteSegment{Channel: channel, Start: start, End: duration, Duration: duration - start})
	}
	return segments
}

// ParseSceneCuts returns the pts_time of every frame reported by showinfo.
func ParseSceneCuts(stderr []byte) []float64 {
	var cuts []float64
	eachLine(stderr, func(line string) {
		if !strings.Contains(line, "showinfo") {
			return
		}
		m := ptsTimePattern.FindStringSubmatch(line)
		if m == nil {
			return
		}
		if value, ok := parseSeconds(m[1]); ok {
			cuts = append(cuts, value)
		}
	})
	return cuts
}

// ParseBlack extracts black segments from blackdetect output.
func ParseBlack(stderr []byte) []BlackSegment {
	var segments []BlackSegment
	eachLine(stderr, func(line string) {
		m := blackPattern.FindStringSubmatch(line)
		if m == nil {
			return
		}
		start, ok1 := parseSeconds(m[1])
		end, ok2 := parseSeconds(m[2])
		length, ok3 := parseSeconds(m[3])
		if !ok1 || !ok2 || !ok3 {
			return
		}
		segments = append(segments, BlackSegment{Start: start, End: end, Duration: length})
	})
	return segments
}

// ShortShots derives shots below minFrames from sorted cut times. The first
// shot starts at zero and the last ends at duration.
func ShortShots(cuts []float64, duration, fps float64, minFrames int) []ShortShot {
	if fps <= 0 || minFrames <= 0 {
		return nil
	}
	minDuration := float64(minFrames) / fps
	bounds := make([]float64, 0, len(cuts)+1)
	prev := 0.0
	for _, cut := range cuts {
		if cut <= prev {
			continue
		}
		bounds = append(bounds, cut)
		prev = cut
	}
	bounds = append(bounds, duration)

	var shots []ShortShot
	start := 0.0
	for _, end := range bounds {
		length := end - start
		if length > 0 && length < minDuration {
			shots = append(shots, ShortShot{Start: start, Duration: length, Frames: length * fps})
		}
		if end > start {
			start = end
		}
	}
	return shots
}

func eachLine(data []byte, fn func(string)) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		fn(scanner.Text())
	}
}

// scanCRLF splits on \n or \r so progress lines do not merge with log lines.
func scanCRLF(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func parseSeconds(raw string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	return value, true
}

package qc

import (
	"encoding/binary"
	"math"
	"sort"
)

const bytesPerSample = 4

// PeakDetector consumes interleaved little-endian float32 PCM and records
// runs of samples whose magnitude exceeds the threshold for less than the
// maximum duration. It implements io.Writer so ffmpeg output can be streamed
// straight into it.
type PeakDetector struct {
	channels    int
	sampleRate  int
	threshold   float64
	maxDuration float64

	frame    int64
	runStart []int64
	carry    []byte
	written  int64
	peaks    []Peak
}

// NewPeakDetector builds a detector for the given layout. dbfs is converted
// to a linear amplitude with 10^(dbfs/20).
func NewPeakDetector(channels, sampleRate int, dbfs, maxDuration float64) *PeakDetector {
	if channels < 1 {
		channels = 1
	}
	starts := make([]int64, channels)
	for i := range starts {
		starts[i] = -1
	}
	return &PeakDetector{
		channels:    channels,
		sampleRate:  sampleRate,
		threshold:   math.Pow(10, dbfs/20),
		maxDuration: maxDuration,
		runStart:    starts,
		carry:       make([]byte, 0, channels*bytesPerSample),
	}
}

// Threshold returns the linear amplitude limit.
func (d *PeakDetector) Threshold() float64 {
	return d.threshold
}

// Write implements io.Writer.
func (d *PeakDetector) Write(p []byte) (int, error) {
	n := len(p)
	d.written += int64(n)
	frameSize := d.channels * bytesPerSample

	if len(d.carry) > 0 {
		need := frameSize - len(d.carry)
		if len(p) < need {
			d.carry = append(d.carry, p...)
			return n, nil
		}
		d.carry = append(d.carry, p[:need]...)
		d.consumeFrame(d.carry)
		d.carry = d.carry[:0]
		p = p[need:]
	}
	for len(p) >= frameSize {
		d.consumeFrame(p[:frameSize])
		p = p[frameSize:]
	}
	if len(p) > 0 {
		d.carry = append(d.carry, p...)
	}
	return n, nil
}

func (d *PeakDetector) consumeFrame(frame []byte) {
	for ch := 0; ch < d.channels; ch++ {
		bits := binary.LittleEndian.Uint32(frame[ch*bytesPerSample:])
		sample := float64(math.Float32frombits(bits))
		loud := math.Abs(sample) > d.threshold
		switch {
		case loud && d.runStart[ch] < 0:
			d.runStart[ch] = d.frame
		case !loud && d.runStart[ch] >= 0:
			d.closeRun(ch, d.frame)
		}
	}
	d.frame++
}

func (d *PeakDetector) closeRun(ch int, end int64) {
	start := d.runStart[ch]
	d.runStart[ch] = -1
	if d.sampleRate <= 0 {
		return
	}
	length := float64(end-start) / float64(d.sampleRate)
	if length > 0 && length < d.maxDuration {
		d.peaks = append(d.peaks, Peak{
			Channel:  ch + 1,
			Time:     float64(start) / float64(d.sampleRate),
			Duration: length,
		})
	}
}

// Frames returns the number of complete sample frames consumed.
func (d *PeakDetector) Frames() int64 {
	return d.frame
}

// BytesWritten returns the raw byte count received.
func (d *PeakDetector) BytesWritten() int64 {
	return d.written
}

// Close ends any open run at the last frame and returns peaks ordered by
// channel then time. Trailing partial frames are discarded.
func (d *PeakDetector) Close() []Peak {
	for ch := range d.runStart {
		if d.runStart[ch] >= 0 {
			d.closeRun(ch, d.frame)
		}
	}
	d.carry = d.carry[:0]
	sort.SliceStable(d.peaks, func(i, j int) bool {
		if d.peaks[i].Channel != d.peaks[j].Channel {
			return d.peaks[i].Channel < d.peaks[j].Channel
		}
		return d.peaks[i].Time < d.peaks[j].Time
	})
	return d.peaks
}

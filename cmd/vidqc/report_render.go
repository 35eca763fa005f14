package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"vidqc/internal/qc"
)

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// renderReport writes the findings for one file: a check summary followed by
// one table per check that found something.
func renderReport(w io.Writer, report *qc.Report, colorize bool) {
	for _, line := range renderSectionHeader(filepath.Base(report.File), colorize) {
		fmt.Fprintln(w, line)
	}
	meta := report.Metadata
	fmt.Fprintf(w, "%s%s  duration %ss  fps %s  audio %d ch @ %d Hz\n",
		statusIndent, report.File, seconds(meta.Duration), seconds(meta.FPS), report.Channels, meta.SampleRate)
	fmt.Fprintf(w, "%srun %s\n\n", statusIndent, report.RunID)

	rows := make([][]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		rows = append(rows, []string{checkLabel(check.Name), string(check.Status), strconv.Itoa(check.Count), check.Detail})
	}
	fmt.Fprintln(w, tableSpec{
		headers: []string{"Check", "Status", "Findings", "Detail"},
		rows:    rows,
		aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
		footer:  []string{"Total", "", strconv.Itoa(report.IssueCount()), ""},
	}.render())

	if len(report.Mute) > 0 {
		rows := make([][]string, 0, len(report.Mute))
		for _, seg := range report.Mute {
			rows = append(rows, []string{strconv.Itoa(seg.Channel), seconds(seg.Start), seconds(seg.End), seconds(seg.Duration)})
		}
		fmt.Fprintln(w, tableSpec{
			title:   checkLabel(qc.CheckMute),
			headers: []string{"Channel", "Start", "End", "Duration"},
			rows:    rows,
			aligns:  []columnAlignment{alignRight, alignRight, alignRight, alignRight},
		}.render())
	}
	if len(report.ShortShots) > 0 {
		rows := make([][]string, 0, len(report.ShortShots))
		for _, shot := range report.ShortShots {
			rows = append(rows, []string{seconds(shot.Start), seconds(shot.Duration), strconv.FormatFloat(shot.Frames, 'f', 1, 64)})
		}
		fmt.Fprintln(w, tableSpec{
			title:   checkLabel(qc.CheckShortShots),
			headers: []string{"Start", "Duration", "Frames"},
			rows:    rows,
			aligns:  []columnAlignment{alignRight, alignRight, alignRight},
		}.render())
	}
	if len(report.Peaks) > 0 {
		rows := make([][]string, 0, len(report.Peaks))
		for _, peak := range report.Peaks {
			rows = append(rows, []string{strconv.Itoa(peak.Channel), seconds(peak.Time), strconv.FormatFloat(peak.Duration*1000, 'f', 1, 64)})
		}
		fmt.Fprintln(w, tableSpec{
			title:   checkLabel(qc.CheckPeaks),
			headers: []string{"Channel", "Time", "Length (ms)"},
			rows:    rows,
			aligns:  []columnAlignment{alignRight, alignRight, alignRight},
		}.render())
	}
	if len(report.Black) > 0 {
		rows := make([][]string, 0, len(report.Black))
		for _, seg := range report.Black {
			rows = append(rows, []string{seconds(seg.Start), seconds(seg.End), seconds(seg.Duration)})
		}
		fmt.Fprintln(w, tableSpec{
			title:   checkLabel(qc.CheckBlack),
			headers: []string{"Start", "End", "Duration"},
			rows:    rows,
			aligns:  []columnAlignment{alignRight, alignRight, alignRight},
		}.render())
	}
}

// progressObserver prints one status line per finished check.
type progressObserver struct {
	mu       sync.Mutex
	w        io.Writer
	colorize bool
	multi    bool
}

func (o *progressObserver) CheckStarted(file, check string, index, total int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	prefix := ""
	if o.multi {
		prefix = filepath.Base(file) + " "
	}
	fmt.Fprintf(o.w, "%s[%d/%d] %s...\n", prefix, index, total, checkLabel(check))
}

func (o *progressObserver) CheckFinished(_ string, result qc.CheckResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	message := fmt.Sprintf("%d finding(s)", result.Count)
	if result.Detail != "" {
		message += " " + strings.TrimSpace(result.Detail)
	}
	fmt.Fprintln(o.w, renderStatusLine(checkLabel(result.Name), checkStatusKind(result.Status), message, o.colorize))
}

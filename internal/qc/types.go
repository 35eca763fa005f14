package qc

import (
	"errors"
	"time"

	"vidqc/internal/config"
	"vidqc/internal/media/ffprobe"
)

// Check names, in execution order.
const (
	CheckMute       = "mute"
	CheckShortShots = "short_shots"
	CheckPeaks      = "peaks"
	CheckBlack      = "black_frames"
)

// Checks lists every check in the order Analyze runs them.
var Checks = []string{CheckMute, CheckShortShots, CheckPeaks, CheckBlack}

var (
	// ErrNoMetadata reports that ffprobe could not describe the file.
	ErrNoMetadata = errors.New("could not read video metadata")
	// ErrIssuesFound is returned by callers that treat findings as failure.
	ErrIssuesFound = errors.New("quality issues found")
)

// Thresholds are the detection limits applied by the checks.
type Thresholds struct {
	MuteThresholdDB    float64
	MuteMinDuration    float64
	ShortShotMinFrames int
	SceneThreshold     float64
	BlackMinDuration   float64
	BlackPictureRatio  float64
	BlackPixelRatio    float64
	PeakDBFS           float64
	PeakMaxDuration    float64
}

// ThresholdsFromConfig copies the configured limits.
func ThresholdsFromConfig(t config.Thresholds) Thresholds {
	return Thresholds{
		MuteThresholdDB:    t.MuteThresholdDB,
		MuteMinDuration:    t.MuteMinDuration,
		ShortShotMinFrames: t.ShortShotMinFrames,
		SceneThreshold:     t.SceneThreshold,
		BlackMinDuration:   t.BlackMinDuration,
		BlackPictureRatio:  t.BlackPictureRatio,
		BlackPixelRatio:    t.BlackPixelRatio,
		PeakDBFS:           t.PeakDBFS,
		PeakMaxDuration:    t.PeakMaxDuration,
	}
}

// DefaultThresholds returns the repository defaults.
func DefaultThresholds() Thresholds {
	return ThresholdsFromConfig(config.Default().Thresholds)
}

// MuteSegment is a silent stretch on one channel. Channel is 1-based.
type MuteSegment struct {
	Channel  int     `json:"channel"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// ShortShot is a shot shorter than the configured frame count.
type ShortShot struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Frames   float64 `json:"frames"`
}

// Peak is a short burst above the peak level on one channel. Channel is 1-based.
type Peak struct {
	Channel  int     `json:"channel"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
}

// BlackSegment is a run of black frames.
type BlackSegment struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// Status is the outcome of a single check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusIssues  Status = "issues"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// CheckResult summarizes one check.
type CheckResult struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Count  int    `json:"count"`
	Detail string `json:"detail,omitempty"`
}

// Report is the full outcome of analysing one file.
type Report struct {
	RunID      string           `json:"run_id"`
	File       string           `json:"file"`
	Metadata   ffprobe.Metadata `json:"metadata"`
	Channels   int              `json:"channels"`
	Mute       []MuteSegment    `json:"mute"`
	ShortShots []ShortShot      `json:"short_shots"`
	Peaks      []Peak           `json:"peaks"`
	Black      []BlackSegment   `json:"black"`
	Checks     []CheckResult    `json:"checks"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
}

// IssueCount totals findings across all checks.
func (r *Report) IssueCount() int {
	if r == nil {
		return 0
	}
	return len(r.Mute) + len(r.ShortShots) + len(r.Peaks) + len(r.Black)
}

// HasIssues reports whether any check produced findings.
func (r *Report) HasIssues() bool {
	return r.IssueCount() > 0
}

// FailedChecks lists checks that errored.
func (r *Report) FailedChecks() []string {
	if r == nil {
		return nil
	}
	var failed []string
	for _, check := range r.Checks {
		if check.Status == StatusError {
			failed = append(failed, check.Name)
		}
	}
	return failed
}

// Check returns the result for name, if it ran.
func (r *Report) Check(name string) (CheckResult, bool) {
	if r == nil {
		return CheckResult{}, false
	}
	for _, check := range r.Checks {
		if check.Name == name {
			return check, true
		}
	}
	return CheckResult{}, false
}

// Elapsed returns the wall time spent on the report.
func (r *Report) Elapsed() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

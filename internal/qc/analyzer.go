package qc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vidqc/internal/execx"
	"vidqc/internal/logging"
	"vidqc/internal/media/ffprobe"
)

// ProbeFunc inspects a media file. ffprobe.Inspect satisfies it.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Observer receives progress callbacks. Implementations must be safe for
// concurrent use when shared by AnalyzeBatch.
type Observer interface {
	CheckStarted(file string, check string, index, total int)
	CheckFinished(file string, result CheckResult)
}

type nopObserver struct{}

func (nopObserver) CheckStarted(string, string, int, int) {}
func (nopObserver) CheckFinished(string, CheckResult) {}

// Analyzer runs the quality checks against media files.
type Analyzer struct {
	ffmpeg     string
	ffprobe    string
	thresholds Thresholds
	runner     Runner
	probe      ProbeFunc
	timeout    time.Duration
	observer   Observer
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.runner = r
		}
	}
}

// WithCommandTimeout bounds every ffmpeg pass and the metadata probe. It
// applies to the default runner only; a runner passed to WithRunner keeps
// its own limits.
func WithCommandTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithProbe replaces the metadata probe.
func WithProbe(p ProbeFunc) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.probe = p
		}
	}
}

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(a *Analyzer) {
		if o != nil {
			a.observer = o
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAnalyzer constructs an analyzer bound to the given binaries.
func NewAnalyzer(ffmpegPath, ffprobePath string, thresholds Thresholds, logger *slog.Logger, opts ...Option) *Analyzer {
	a := &Analyzer{
		ffmpeg:     strings.TrimSpace(ffmpegPath),
		ffprobe:    strings.TrimSpace(ffprobePath),
		thresholds: thresholds,
		probe:      ffprobe.Inspect,
		observer:   nopObserver{},
		logger:     logging.NewComponentLogger(logger, "qc"),
		now:        time.Now,
	}
	if a.ffmpeg == "" {
		a.ffmpeg = "ffmpeg"
	}
	if a.ffprobe == "" {
		a.ffprobe = "ffprobe"
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.runner == nil {
		a.runner = ExecRunner{Timeout: a.timeout}
	}
	return a
}

// Analyze probes file and runs every check. channels <= 0 analyses every
// audio channel found. Metadata failure aborts with ErrNoMetadata; a failing
// check is recorded on the report and the remaining checks still run.
func (a *Analyzer) Analyze(ctx context.Context, file string, channels int) (*Report, error) {
	file = strings.TrimSpace(file)
	if file == "" {
		return nil, errors.New("analyze: empty file path")
	}
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("analyze %s: %w", file, err)
	}

	report := &Report{
		RunID:     uuid.NewString(),
		File:      file,
		StartedAt: a.now(),
	}
	ctx = logging.WithRunID(ctx, report.RunID)
	ctx = logging.WithFile(ctx, file)
	logger := logging.WithContext(ctx, a.logger)

	probeCtx, cancel := execx.WithTimeout(ctx, a.timeout)
	probe, err := a.probe(probeCtx, a.ffprobe, file)
	cancel()
	if err != nil {
		logging.ErrorWithContext(logger, "metadata probe failed", "metadata_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "confirm the file is a readable media container"),
		)
		return nil, fmt.Errorf("analyze %s: %w: %w", file, ErrNoMetadata, err)
	}
	meta := probe.Metadata()
	if !meta.HasVideo && !meta.HasAudio {
		return nil, fmt.Errorf("analyze %s: %w: no audio or video streams", file, ErrNoMetadata)
	}
	report.Metadata = meta

	plan := ChannelPlan(probe, channels)
	report.Channels = len(plan)
	if channels > len(plan) && len(plan) > 0 {
		logging.WarnWithContext(logger, "fewer audio channels than requested", "channels_capped",
			logging.Int("requested", channels),
			logging.Int("available", len(plan)),
			logging.String(logging.FieldImpact, "only the available channels are checked"),
		)
	}
	logger.Info("analysis started",
		logging.String(logging.FieldEventType, "analysis_started"),
		logging.Float64("duration_seconds", meta.Duration),
		logging.Float64("fps", meta.FPS),
		logging.Int("channels", report.Channels),
	)

	steps := []struct {
		name string
		run  func(context.Context) (int, string, error)
	}{
		{CheckMute, func(ctx context.Context) (int, string, error) {
			if len(plan) == 0 {
				return 0, "no audio streams", errSkip
			}
			segments, err := a.checkMute(ctx, file, plan, meta.Duration)
			report.Mute = segments
			return len(segments), "", err
		}},
		{CheckShortShots, func(ctx context.Context) (int, string, error) {
			if !meta.HasVideo {
				return 0, "no video stream", errSkip
			}
			if meta.FPS <= 0 {
				return 0, "frame rate unknown", errSkip
			}
			shots, err := a.checkShortShots(ctx, file, meta)
			report.ShortShots = shots
			return len(shots), "", err
		}},
		{CheckPeaks, func(ctx context.Context) (int, string, error) {
			if len(plan) == 0 {
				return 0, "no audio streams", errSkip
			}
			if meta.SampleRate <= 0 {
				return 0, "sample rate unknown", errSkip
			}
			peaks, err := a.checkPeaks(ctx, file, plan, meta.SampleRate)
			report.Peaks = peaks
			return len(peaks), "", err
		}},
		{CheckBlack, func(ctx context.Context) (int, string, error) {
			if !meta.HasVideo {
				return 0, "no video stream", errSkip
			}
			segments, err := a.checkBlack(ctx, file)
			report.Black = segments
			return len(segments), "", err
		}},
	}

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			report.FinishedAt = a.now()
			return report, err
		}
		a.observer.CheckStarted(file, step.name, i+1, len(steps))
		checkCtx := logging.WithCheck(ctx, step.name)
		started := a.now()
		count, detail, err := step.run(checkCtx)
		result := CheckResult{Name: step.name, Count: count, Detail: detail}
		switch {
		case errors.Is(err, errSkip):
			result.Status = StatusSkipped
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				report.FinishedAt = a.now()
				return report, ctxErr
			}
			result.Status = StatusError
			result.Detail = err.Error()
			logging.WarnWithContext(logging.WithContext(checkCtx, a.logger), "check failed", "check_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the file with ffmpeg directly"),
				logging.String(logging.FieldImpact, "results for this check are incomplete"),
			)
		case count > 0:
			result.Status = StatusIssues
		default:
			result.Status = StatusOK
		}
		report.Checks = append(report.Checks, result)
		logging.WithContext(checkCtx, a.logger).Debug("check finished",
			logging.String("status", string(result.Status)),
			logging.Int("findings", result.Count),
			logging.Duration("elapsed", a.now().Sub(started)),
		)
		a.observer.CheckFinished(file, result)
	}

	report.FinishedAt = a.now()
	logger.Info("analysis finished",
		logging.String(logging.FieldEventType, "analysis_finished"),
		logging.Int("issues", report.IssueCount()),
		logging.Int("failed_checks", len(report.FailedChecks())),
		logging.Duration("elapsed", report.Elapsed()),
	)
	return report, nil
}

var errSkip = errors.New("check skipped")

func (a *Analyzer) checkMute(ctx context.Context, file string, plan []ChannelRef, duration float64) ([]MuteSegment, error) {
	var segments []MuteSegment
	for i, ref := range plan {
		stderr, err := a.runner.Run(ctx, a.ffmpeg, silenceArgs(file, ref, a.thresholds), nil)
		if err != nil {
			return segments, fmt.Errorf("channel %d: %w", i+1, err)
		}
		segments = append(segments, ParseSilence(stderr, i+1, duration)...)
	}
	return segments, nil
}

func (a *Analyzer) checkShortShots(ctx context.Context, file string, meta ffprobe.Metadata) ([]ShortShot, error) {
	stderr, err := a.runner.Run(ctx, a.ffmpeg, sceneArgs(file, a.thresholds), nil)
	if err != nil {
		return nil, err
	}
	return ShortShots(ParseSceneCuts(stderr), meta.Duration, meta.FPS, a.thresholds.ShortShotMinFrames), nil
}

func (a *Analyzer) checkPeaks(ctx context.Context, file string, plan []ChannelRef, sampleRate int) ([]Peak, error) {
	detector := NewPeakDetector(len(plan), sampleRate, a.thresholds.PeakDBFS, a.thresholds.PeakMaxDuration)
	if _, err := a.runner.Run(ctx, a.ffmpeg, pcmArgs(file, plan, sampleRate), detector); err != nil {
		return nil, err
	}
	if detector.Frames() == 0 {
		return nil, errors.New("could not decode audio")
	}
	return detector.Close(), nil
}

func (a *Analyzer) checkBlack(ctx context.Context, file string) ([]BlackSegment, error) {
	stderr, err := a.runner.Run(ctx, a.ffmpeg, blackArgs(file, a.thresholds), nil)
	if err != nil {
		return nil, err
	}
	return ParseBlack(stderr), nil
}

// BatchResult pairs a file with its report or error.
type BatchResult struct {
	File   string
	Report *Report
	Err    error
}

// AnalyzeBatch analyses files with up to jobs workers. Results keep the
// input order.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, files []string, channels, jobs int) []BatchResult {
	results := make([]BatchResult, len(files))
	if len(files) == 0 {
		return results
	}
	if jobs < 1 {
		jobs = 1
	}
	if jobs > len(files) {
		jobs = len(files)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < jobs; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				report, err := a.Analyze(ctx, files[i], channels)
				results[i] = BatchResult{File: files[i], Report: report, Err: err}
			}
		}()
	}

feed:
	for i := range files {
		select {
		case <-ctx.Done():
			for j := i; j < len(files); j++ {
				results[j] = BatchResult{File: files[j], Err: ctx.Err()}
			}
			break feed
		case indexes <- i:
		}
	}
	close(indexes)
	wg.Wait()
	return results
}

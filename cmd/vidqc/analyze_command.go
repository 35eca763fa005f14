package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"vidqc/internal/history"
	"vidqc/internal/logging"
	"vidqc/internal/metrics"
	"vidqc/internal/preflight"
	"vidqc/internal/qc"
)

type analyzeOutput struct {
	File   string     `json:"file"`
	Report *qc.Report `json:"report,omitempty"`
	Error  string     `json:"error,omitempty"`
}

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var (
		channels    int
		jobs        int
		jsonOutput  bool
		strict      bool
		metricsFile string
		noHistory   bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Run mute, short shot, peak and black frame checks",
		Long: `Analyze one or more media files with FFmpeg.

Four checks run per file, in order: mute segments per audio channel, shots
shorter than the configured frame count, very short audio peaks, and black
frame segments. A failing check is reported and the remaining checks still
run; a file whose metadata cannot be read is skipped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if failed := preflight.Failed(preflight.RunAll(runCtx, cfg, resolver, preflight.Options{Binaries: true})); len(failed) > 0 {
				details := make([]string, 0, len(failed))
				for _, r := range failed {
					details = append(details, fmt.Sprintf("%s: %s", r.Name, r.Detail))
				}
				return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
			}
			ffmpeg, err := resolver.FFmpeg()
			if err != nil {
				return err
			}
			ffprobe, err := resolver.FFprobe()
			if err != nil {
				return err
			}
			logger.Debug("binaries resolved",
				logging.String("ffmpeg", ffmpeg.Path),
				logging.String("ffmpeg_source", string(ffmpeg.Source)),
				logging.String("ffprobe", ffprobe.Path),
				logging.String("ffprobe_source", string(ffprobe.Source)),
			)

			opts := []qc.Option{qc.WithCommandTimeout(cfg.CommandTimeout())}
			if !jsonOutput {
				errOut := cmd.ErrOrStderr()
				opts = append(opts, qc.WithObserver(&progressObserver{
					w:        errOut,
					colorize: shouldColorize(errOut),
					multi:    len(args) > 1,
				}))
			}
			analyzer := qc.NewAnalyzer(ffmpeg.Path, ffprobe.Path, qc.ThresholdsFromConfig(cfg.Thresholds), logger, opts...)
			results := analyzer.AnalyzeBatch(runCtx, args, channels, jobs)

			var reports []*qc.Report
			failures := 0
			for _, result := range results {
				if result.Err != nil {
					failures++
					continue
				}
				reports = append(reports, result.Report)
			}

			if cfg.History.Enabled && !noHistory && len(reports) > 0 {
				err := ctx.withHistory(func(store *history.Store) error {
					for _, report := range reports {
						if err := store.Save(runCtx, report); err != nil {
							return err
						}
					}
					return nil
				})
				if err != nil {
					logging.WarnWithContext(logger, "failed to record run history", "history_save_failed",
						logging.Error(err),
						logging.String(logging.FieldImpact, "runs will be missing from `vidqc history`"),
					)
				}
			}

			if path := strings.TrimSpace(metricsFile); path != "" {
				if err := metrics.Export(path, reports); err != nil {
					return fmt.Errorf("write metrics: %w", err)
				}
			}

			if jsonOutput {
				out := make([]analyzeOutput, 0, len(results))
				for _, result := range results {
					entry := analyzeOutput{File: result.File, Report: result.Report}
					if result.Err != nil {
						entry.Report = nil
						entry.Error = result.Err.Error()
					}
					out = append(out, entry)
				}
				if err := writeJSON(cmd, out); err != nil {
					return err
				}
			} else {
				stdout := cmd.OutOrStdout()
				colorize := shouldColorize(stdout)
				for _, result := range results {
					if result.Err != nil {
						fmt.Fprintln(stdout, renderStatusLine(result.File, statusError, result.Err.Error(), colorize))
						continue
					}
					renderReport(stdout, result.Report, colorize)
				}
			}

			if err := runCtx.Err(); err != nil {
				return context.Canceled
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d file(s) could not be analyzed", failures, len(results))
			}
			if strict {
				for _, report := range reports {
					if report.HasIssues() || len(report.FailedChecks()) > 0 {
						return qc.ErrIssuesFound
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&channels, "channels", 0, "Audio channels to check (0 = every channel found)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 1, "Files analyzed in parallel")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print reports as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero when any finding or check error is reported")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics to this path")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history database")
	return cmd
}

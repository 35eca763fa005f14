package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"vidqc/internal/config"
	"vidqc/internal/provision"
)

func newProvisionCommand(ctx *commandContext) *cobra.Command {
	var (
		urlFlag      string
		toolsDirFlag string
		noProgress   bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Download the FFmpeg essentials build into the tools directory",
		Long: `Download the configured FFmpeg archive, extract it, and rename the single
directory matching provision.build_dir_pattern to provision.build_dir_name.
An existing build directory is replaced.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			opts := provisionOptions(cfg, urlFlag, toolsDirFlag)
			if !noProgress {
				opts.Progress = progressWriter(cmd.ErrOrStderr())
			}
			provisioner, err := provision.New(opts, logger)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			result, err := provisioner.Run(runCtx)
			if err != nil {
				if errors.Is(err, provision.ErrLocked) {
					return fmt.Errorf("%w (another provision or bundle is running)", err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Build directory: %s\n", result.BuildDir)
			fmt.Fprintf(out, "ffmpeg:          %s\n", result.FFmpeg)
			fmt.Fprintf(out, "ffprobe:         %s\n", result.FFprobe)
			if result.Replaced {
				fmt.Fprintln(out, "A previous build was replaced")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&urlFlag, "url", "", "Override provision.download_url")
	cmd.Flags().StringVar(&toolsDirFlag, "tools-dir", "", "Override paths.tools_dir")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the download progress bar")
	return cmd
}

func provisionOptions(cfg *config.Config, urlFlag, toolsDirFlag string) provision.Options {
	opts := provision.OptionsFromConfig(cfg)
	if url := strings.TrimSpace(urlFlag); url != "" {
		opts.URL = url
	}
	if dir := strings.TrimSpace(toolsDirFlag); dir != "" {
		opts.ToolsDir = dir
	}
	return opts
}

// progressWriter returns w when it is a terminal, nil otherwise, so CI logs
// are not flooded with bar redraws.
func progressWriter(w io.Writer) io.Writer {
	if shouldColorize(w) {
		return w
	}
	return nil
}

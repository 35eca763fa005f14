package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"vidqc/internal/bundle"
	"vidqc/internal/logging"
	"vidqc/internal/provision"
)

func newBundleCommand(ctx *commandContext) *cobra.Command {
	var (
		goosFlag      string
		goarchFlag    string
		outputFlag    string
		nameFlag      string
		toolsDirFlag  string
		urlFlag       string
		appVersion    string
		moduleDir     string
		skipProvision bool
	)

	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Build a single vidqc executable with FFmpeg embedded",
		Long: `Stage ffmpeg and ffprobe from the provisioned build into the embed
payload and cross-compile vidqc with the vidqc_bundled build tag.

The FFmpeg build is provisioned first when it is missing, unless
--skip-provision is set. The artifact and a .sha256 file are written to the
output directory.`,
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

			opts := bundle.OptionsFromConfig(cfg)
			setIf(&opts.GOOS, strings.ToLower(goosFlag))
			setIf(&opts.GOARCH, strings.ToLower(goarchFlag))
			setIf(&opts.OutputDir, outputFlag)
			setIf(&opts.ArtifactName, nameFlag)
			opts.Version = strings.TrimSpace(appVersion)
			opts.Dir = strings.TrimSpace(moduleDir)

			provOpts := provisionOptions(cfg, urlFlag, toolsDirFlag)
			provOpts.GOOS = opts.GOOS

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			lock, err := provision.Lock(provOpts.ToolsDir)
			if err != nil {
				if errors.Is(err, provision.ErrLocked) {
					return fmt.Errorf("%w (another provision or bundle is running)", err)
				}
				return err
			}
			defer func() {
				if err := lock.Unlock(); err != nil {
					logger.Warn("failed to release tools lock", logging.Error(err))
				}
			}()

			buildDir := filepath.Join(provOpts.ToolsDir, provOpts.TargetName)
			if _, _, err := provision.BinaryPaths(buildDir, opts.GOOS); err != nil {
				if skipProvision {
					return fmt.Errorf("%w; run `vidqc provision` or drop --skip-provision", err)
				}
				provOpts.Progress = progressWriter(cmd.ErrOrStderr())
				provisioner, err := provision.New(provOpts, logger)
				if err != nil {
					return err
				}
				result, err := provisioner.RunLocked(runCtx)
				if err != nil {
					return err
				}
				buildDir = result.BuildDir
			}

			artifact, err := bundle.New(opts, logger).Run(runCtx, buildDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Artifact: %s\n", artifact.Path)
			fmt.Fprintf(out, "Size:     %d bytes\n", artifact.Size)
			fmt.Fprintf(out, "SHA-256:  %s\n", artifact.SHA256)
			return nil
		},
	}

	cmd.Flags().StringVar(&goosFlag, "goos", "", "Override bundle.goos")
	cmd.Flags().StringVar(&goarchFlag, "goarch", "", "Override bundle.goarch")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Override bundle.output_dir")
	cmd.Flags().StringVar(&nameFlag, "name", "", "Override bundle.artifact_name")
	cmd.Flags().StringVar(&toolsDirFlag, "tools-dir", "", "Override paths.tools_dir")
	cmd.Flags().StringVar(&urlFlag, "url", "", "Override provision.download_url")
	cmd.Flags().StringVar(&moduleDir, "module-dir", "", "vidqc module root to build from (default: working directory)")
	cmd.Flags().StringVar(&appVersion, "app-version", "", "Version stamped into the artifact")
	cmd.Flags().BoolVar(&skipProvision, "skip-provision", false, "Fail instead of downloading FFmpeg when the build is missing")
	return cmd
}

func setIf(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidqc/internal/deps"
	"vidqc/internal/preflight"
)

type depsOutput struct {
	Binaries  []depsBinary      `json:"binaries"`
	Preflight []preflightOutput `json:"preflight"`
}

type depsBinary struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Source    string `json:"source,omitempty"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type preflightOutput struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput    bool
		checkDownload bool
	)

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Show how ffmpeg and ffprobe resolve and run preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			resolver, err := ctx.resolver()
			if err != nil {
				return err
			}

			statuses := resolver.Statuses()
			results := preflight.RunAll(cmd.Context(), cfg, resolver, preflight.Options{
				Binaries: true,
				Network:  checkDownload,
			})

			if jsonOutput {
				out := depsOutput{}
				for _, s := range statuses {
					out.Binaries = append(out.Binaries, depsBinary{
						Name:      s.Name,
						Path:      s.Command,
						Source:    string(s.Source),
						Available: s.Available,
						Detail:    s.Detail,
					})
				}
				for _, r := range results {
					out.Preflight = append(out.Preflight, preflightOutput(r))
				}
				return writeJSON(cmd, out)
			}

			w := cmd.OutOrStdout()
			colorize := shouldColorize(w)
			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(w, line)
			}
			for _, s := range statuses {
				fmt.Fprintln(w, renderStatusLine(s.Name, dependencyKind(s), dependencyMessage(s), colorize))
			}
			fmt.Fprintln(w)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(w, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(w, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	cmd.Flags().BoolVar(&checkDownload, "check-download", false, "Also probe provision.download_url")
	return cmd
}

func dependencyKind(s deps.Status) statusKind {
	switch {
	case s.Available:
		return statusOK
	case s.Optional:
		return statusWarn
	default:
		return statusError
	}
}

func dependencyMessage(s deps.Status) string {
	if s.Available {
		return fmt.Sprintf("%s (%s)", s.Command, s.Source)
	}
	if s.Detail != "" {
		return s.Detail
	}
	return "not found"
}

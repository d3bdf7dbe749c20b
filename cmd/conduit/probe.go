package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/capability"
	"mercator-hq/conduit/pkg/cli"
)

var probeFlags struct {
	refresh bool
	all     bool
}

var probeCmd = &cobra.Command{
	Use:   "probe [model...]",
	Short: "Detect the streaming capability of models",
	Long: `Probe the backend and vendor-direct endpoints of each model and report
which of them stream.

Examples:
  # Probe one model
  conduit probe gpt-4o

  # Probe every configured model with a progress bar
  conduit probe --all

  # JSON output
  conduit probe gpt-4o claude-3-5-sonnet -o json`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)

	probeCmd.Flags().BoolVar(&probeFlags.refresh, "refresh", false, "discard cached snapshots before probing")
	probeCmd.Flags().BoolVar(&probeFlags.all, "all", false, "probe every configured model")
}

func runProbe(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !probeFlags.all {
		return fmt.Errorf("at least one model is required (or --all)")
	}
	f, format, err := formatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("probe", err)
	}
	defer a.close()

	models := args
	if probeFlags.all {
		models = a.models.Models()
	}

	var progress cli.ProgressReporter
	if len(models) > 1 && format == cli.FormatText {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "Probing")
		progress.Start(int64(len(models)))
	}

	results := make([]capability.Capability, 0, len(models))
	for i, model := range models {
		var c *capability.Capability
		if probeFlags.refresh {
			c, err = a.detector.Refresh(ctx, model)
		} else {
			c, err = a.detector.Detect(ctx, model)
		}
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return cli.NewCommandError("probe", err)
		}
		results = append(results, *c)
		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	if format == cli.FormatJSON {
		return f.FormatTo(cmd.OutOrStdout(), results)
	}
	return writeCapabilities(cmd, results)
}

func writeCapabilities(cmd *cobra.Command, caps []capability.Capability) error {
	sort.Slice(caps, func(i, j int) bool { return caps[i].Model < caps[j].Model })

	rows := make([][]string, 0, len(caps))
	for _, c := range caps {
		probeErr := c.ProbeError
		if probeErr == "" {
			probeErr = "-"
		}
		rows = append(rows, []string{
			c.Model,
			strconv.FormatBool(c.BackendSupportsStream),
			strconv.FormatBool(c.DirectSupportsStream),
			c.ProbedAt.Format(time.RFC3339),
			c.TTL.String(),
			probeErr,
		})
	}
	return cli.WriteTable(cmd.OutOrStdout(),
		[]string{"MODEL", "BACKEND STREAM", "DIRECT STREAM", "PROBED AT", "TTL", "PROBE ERROR"}, rows)
}

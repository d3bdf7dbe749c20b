package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/providers"
	"mercator-hq/conduit/pkg/streaming"
	"mercator-hq/conduit/pkg/telemetry/logging"
)

// prefFlags are the per-request route preference overrides shared by the
// stream and complete commands.
type prefFlags struct {
	preferDirect bool
	noTrueStream bool
	noFallback   bool
	costOptimize bool
	system       string
}

func (p *prefFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&p.preferDirect, "prefer-direct", false, "prefer the vendor-direct API over the backend")
	cmd.Flags().BoolVar(&p.noTrueStream, "no-true-stream", false, "do not prefer true streaming")
	cmd.Flags().BoolVar(&p.noFallback, "no-fallback", false, "do not fall back to a mock stream on failure")
	cmd.Flags().BoolVar(&p.costOptimize, "cost-optimize", false, "prefer the cheaper route")
	cmd.Flags().StringVar(&p.system, "system", "", "system prompt")
}

// apply overrides base with the flags that were set.
func (p *prefFlags) apply(cmd *cobra.Command, base streaming.Preferences) streaming.Preferences {
	if cmd.Flags().Changed("prefer-direct") {
		base.PreferDirectAPI = p.preferDirect
	}
	if cmd.Flags().Changed("no-true-stream") {
		base.PreferTrueStreaming = !p.noTrueStream
	}
	if cmd.Flags().Changed("no-fallback") {
		base.FallbackToMock = !p.noFallback
	}
	if cmd.Flags().Changed("cost-optimize") {
		base.CostOptimization = p.costOptimize
	}
	return base
}

func (p *prefFlags) messages(prompt string) []providers.Message {
	var msgs []providers.Message
	if p.system != "" {
		msgs = append(msgs, providers.Message{Role: providers.RoleSystem, Content: p.system})
	}
	return append(msgs, providers.Message{Role: providers.RoleUser, Content: prompt})
}

var streamFlags prefFlags

var streamCmd = &cobra.Command{
	Use:   "stream <model> <prompt>",
	Short: "Stream a chat completion",
	Long: `Stream a chat completion over the best available route.

The answer is printed as it arrives. With -o json every chunk is printed as
one JSON object per line. The selected route is reported on stderr.

Examples:
  conduit stream gpt-4o "Summarize RFC 9110 in two sentences"
  conduit stream claude-3-5-sonnet "Hello" --prefer-direct --no-fallback`,
	Args: cobra.ExactArgs(2),
	RunE: runStream,
}

func init() {
	rootCmd.AddCommand(streamCmd)
	streamFlags.register(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	_, format, err := formatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()
	ctx = logging.WithRequestID(ctx, uuid.NewString())

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("stream", err)
	}
	defer a.close()

	model := args[0]
	prefs := streamFlags.apply(cmd, a.preferences())
	stream, err := a.router.Stream(ctx, model, streamFlags.messages(args[1]), prefs)
	if err != nil {
		return cli.NewCommandError("stream", err)
	}
	defer stream.Close()

	out := cli.NewChunkWriter(cmd.OutOrStdout(), format)
	for {
		chunk, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return cli.NewCommandError("stream", err)
		}
		if err := out.Write(chunk); err != nil {
			return cli.NewCommandError("stream", err)
		}
	}

	route := stream.Route()
	chunks, chars := out.Counts()
	fmt.Fprintf(cmd.ErrOrStderr(), "route: %s (%s, cost %s), %d chunks, %d chars\n",
		route.Method, route.Rationale, route.CostTier, chunks, chars)
	return nil
}

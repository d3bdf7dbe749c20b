package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/telemetry/logging"
)

var completeFlags prefFlags

var completeCmd = &cobra.Command{
	Use:   "complete <model> <prompt>",
	Short: "Request a non-streaming chat completion",
	Long: `Request a complete answer from the backend, or from the vendor-direct API
when the backend cannot serve the model. The answer passes the response
validator before it is printed.

Examples:
  conduit complete gpt-4o "What is the capital of France?"
  conduit complete gemini-1.5-pro "Hello" -o json`,
	Args: cobra.ExactArgs(2),
	RunE: runComplete,
}

func init() {
	rootCmd.AddCommand(completeCmd)
	completeFlags.register(completeCmd)
}

func runComplete(cmd *cobra.Command, args []string) error {
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
	ctx = logging.WithRequestID(ctx, uuid.NewString())

	a, err := newApp(ctx, cfg)
	if err != nil {
		return cli.NewCommandError("complete", err)
	}
	defer a.close()

	prefs := completeFlags.apply(cmd, a.preferences())
	result, err := a.router.Complete(ctx, args[0], completeFlags.messages(args[1]), prefs)
	if err != nil {
		return cli.NewCommandError("complete", err)
	}

	if format == cli.FormatJSON {
		return f.FormatTo(cmd.OutOrStdout(), result)
	}
	fmt.Fprintln(cmd.OutOrStdout(), result.Text)
	fmt.Fprintf(cmd.ErrOrStderr(), "target: %s, tokens: %d prompt + %d completion\n",
		result.Target, result.Usage.PromptTokens, result.Usage.CompletionTokens)
	return nil
}

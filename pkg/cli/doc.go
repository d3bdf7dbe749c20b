/*
Package cli provides command-line helpers for the conduit command.

It includes error types with exit-code mapping, output formatters for
command results and streamed chunks, a progress reporter for multi-model
probes, and signal handling.

Output Formatting:

Command results are printed as text or JSON:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, capability); err != nil {
		return err
	}

Streamed chunks are printed as they arrive, either as raw text or as one
JSON object per line:

	out := cli.NewChunkWriter(os.Stdout, cli.FormatText)
	for {
		chunk, err := stream.Next(ctx)
		...
		out.Write(chunk)
	}

Signal Handling:

For cancellation on SIGINT/SIGTERM:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli

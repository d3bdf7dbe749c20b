package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/conduit/pkg/cli"
	"mercator-hq/conduit/pkg/validation"
)

var validateFlags struct {
	model  string
	prompt string
}

var validateCmd = &cobra.Command{
	Use:   "validate [file|-]",
	Short: "Validate and repair a stored upstream response",
	Long: `Run the response validator over a stored upstream response.

The input is read from the file, or from stdin when the argument is "-" or
missing. JSON input is validated as a structured response; anything else is
validated as a raw string. The exit status is 0 whether or not issues are
found; the issues are part of the output.

Examples:
  conduit validate response.json
  curl -s ... | conduit validate --model gpt-4o -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.model, "model", "", "model name recorded with the result")
	validateCmd.Flags().StringVar(&validateFlags.prompt, "prompt", "", "original prompt, used when rewriting reasoning-only answers")
}

func runValidate(cmd *cobra.Command, args []string) error {
	f, format, err := formatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		file, err := os.Open(args[0])
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		defer file.Close()
		in = file
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	validator := validation.New(cfg.Validation, nil, nil)
	result := validator.Validate(decodeRaw(data), validateFlags.model, validateFlags.prompt)

	if format == cli.FormatJSON {
		return f.FormatTo(cmd.OutOrStdout(), result)
	}
	return writeValidation(cmd.OutOrStdout(), result)
}

// decodeRaw returns data as a decoded JSON value, or as a string when it is
// not JSON. A JSON string literal decodes to its contents.
func decodeRaw(data []byte) any {
	trimmed := strings.TrimSpace(string(data))
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return string(data)
}

func writeValidation(w io.Writer, r *validation.Result) error {
	resp := r.Response()
	issues := "none"
	if len(r.Issues) > 0 {
		issues = strings.Join(r.Issues, ", ")
	}
	_, err := fmt.Fprintf(w,
		"valid: %t\ncorrected: %t\nissues: %s\ncorrelation_id: %s\ntokens: %d prompt + %d completion = %d\ntext:\n%s\n",
		r.IsValid, r.WasCorrected, issues, r.CorrelationID,
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens, resp.Usage.TotalTokens,
		resp.Text)
	return err
}

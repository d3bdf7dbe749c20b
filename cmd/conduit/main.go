// Conduit is a protocol-translation gateway that streams chat completions
// from an inference backend or directly from vendor APIs.
//
// For every request it picks the best delivery route: true streaming from the
// backend or the vendor, or a paced mock stream synthesized from a complete
// response. Capability probes are cached, responses are validated and
// repaired, and a failed stream falls back to the mock route.
//
// Usage:
//
//	# Start the operations listener, warm-up and audit schedulers
//	conduit run --config /path/to/config.yaml
//
//	# Probe a model's streaming capability
//	conduit probe gpt-4o --refresh
//
//	# Stream a completion
//	conduit stream gpt-4o "Explain TCP slow start"
//
//	# Validate a stored response
//	conduit validate --model gpt-4o response.json
package main

import "os"

func main() {
	os.Exit(Execute())
}

package providers

import "context"

// VendorKind is the closed set of translator strategies.
type VendorKind string

const (
	// VendorAnthropic translates to the Anthropic Messages shape
	VendorAnthropic VendorKind = "anthropic"

	// VendorGoogle translates to the Google generateContent shape
	VendorGoogle VendorKind = "google"

	// VendorGeneric passes OpenAI-style chat completions through unchanged
	VendorGeneric VendorKind = "generic"
)

// VendorKinds lists every supported kind.
func VendorKinds() []VendorKind {
	return []VendorKind{VendorAnthropic, VendorGoogle, VendorGeneric}
}

// Translator converts canonical messages into a vendor request and vendor
// bodies back into canonical results.
//
// BuildRequest and BuildStreamRequest return a *ConfigurationError when a
// mandatory field is missing (for example no deployment for a backend model
// or no endpoint for a vendor without a public default). They never fail on
// message content: unsupported images degrade to a text placeholder.
//
// ParseResponse and DecodeStreamEvent never fail on malformed bodies;
// ParseResponse falls back to NoResponseText.
type Translator interface {
	// Kind returns the vendor kind this translator implements.
	Kind() VendorKind

	// BuildRequest builds a non-streaming request.
	BuildRequest(baseURL string, model ModelConfig, messages []Message) (*VendorRequest, error)

	// BuildStreamRequest builds a request for the vendor's native streaming protocol.
	BuildStreamRequest(baseURL string, model ModelConfig, messages []Message) (*VendorRequest, error)

	// ParseResponse extracts text and usage from a non-streaming body.
	ParseResponse(body []byte) ParsedResponse

	// DecodeStreamEvent decodes one server-sent event.
	DecodeStreamEvent(event SSEEvent) StreamDelta

	// Authorize attaches a vendor API key for direct calls.
	Authorize(req *VendorRequest, apiKey string)
}

// StreamReader pulls chunks from a stream one at a time.
//
// Read returns io.EOF after the terminal chunk has been returned. Callers
// must call Close when done, whether or not the stream was fully consumed.
type StreamReader interface {
	// Read returns the next chunk.
	Read(ctx context.Context) (*StreamChunk, error)

	// Close releases the underlying connection.
	Close() error
}

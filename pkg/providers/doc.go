// Package providers defines the provider-agnostic message model and the
// translator contract shared by every vendor dialect.
//
// # Overview
//
// A chat request is expressed once as []Message and translated into the
// dialect of whichever upstream serves the model: the inference backend's
// deployment endpoints or a vendor's own public API. Responses travel the
// other way, from a vendor body to a ParsedResponse or, for streams, from
// vendor events to StreamDelta values and finally to StreamChunk.
//
// # Architecture
//
//  1. Message model - Message, ContentPart, TokenUsage, ModelConfig
//  2. Translator interface - builds VendorRequests and parses vendor bodies
//  3. Translators - anthropic, google and generic subpackages
//  4. HTTP client - pooled client with retries and typed upstream errors
//  5. SSE reader - splits event streams (and NDJSON) into SSEEvents
//
// # Basic Usage
//
//	tr, err := providerfactory.ForModel(model)
//	if err != nil {
//	    return err
//	}
//	req, err := tr.BuildRequest(baseURL, model, []providers.Message{
//	    {Role: providers.RoleUser, Content: "Hello!"},
//	})
//	if err != nil {
//	    return err
//	}
//	body, err := client.SendAndRead(ctx, "direct", req)
//	if err != nil {
//	    return err
//	}
//	parsed := tr.ParseResponse(body)
//
// # Error Handling
//
// Errors are typed so callers can branch on them:
//
//   - ConfigurationError: a mandatory vendor or model field is missing
//   - UpstreamTransportError: network failure or non-2xx status
//   - AuthError, RateLimitError: 401/403 and 429 responses
//   - MalformedPayloadError: a body no known shape matched (logged, not surfaced)
//   - ProbeFailure: a capability probe that resolved to unsupported
//   - CancellationError: the caller's context ended
//
// Translators never fail on message content. Images a vendor cannot take
// inline are replaced by a text placeholder, and unparseable bodies yield
// NoResponseText for the validator to repair.
package providers

// Package streaming selects a delivery route for each request and turns it
// into a pull-based chunk stream.
//
// # Routes
//
// Four delivery methods exist, tried in this priority order:
//
//  1. directTrueStream when the direct API is preferred, streaming was
//     confirmed by probe and a vendor key is present.
//  2. backendTrueStream when backend streaming was confirmed and true
//     streaming is preferred.
//  3. directTrueStream when direct streaming was confirmed, even if not
//     preferred, and true streaming is preferred.
//  4. backendMockStream: one non-streaming backend call, synthesized into
//     chunks. Requires a resolved deployment.
//  5. fallbackMockStream: a non-streaming call on whichever route works,
//     repaired by the validator, then synthesized.
//
// Cost optimization keeps a preferred direct route from displacing a
// confirmed backend stream.
//
// # Guarantees
//
// A Stream yields chunks strictly in order and ends with exactly one
// terminal chunk. When the selected route fails and fallback is enabled,
// delivery restarts from the beginning on fallbackMockStream. Cancellation
// ends the stream without a terminal chunk and never triggers fallback.
// Chunks from routes not listed as trusted pass the validator's chunk check.
package streaming

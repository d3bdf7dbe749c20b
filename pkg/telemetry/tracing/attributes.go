package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Custom attribute keys use the "conduit.*" namespace.
const (
	AttrModel  = "conduit.model"
	AttrVendor = "conduit.vendor"
	AttrTarget = "conduit.target"
	AttrRoute  = "conduit.route"

	AttrTokensPrompt     = "conduit.tokens.prompt"
	AttrTokensCompletion = "conduit.tokens.completion"
	AttrTokensTotal      = "conduit.tokens.total"

	AttrCacheHit  = "conduit.cache.hit"
	AttrCacheName = "conduit.cache.name"

	AttrProbeSupported = "conduit.probe.supported"
	AttrFallback       = "conduit.fallback"
	AttrChunks         = "conduit.chunks"

	AttrErrorType    = "conduit.error.type"
	AttrErrorMessage = "error.message"
)

// SetRouteAttributes records the selected delivery route.
//
//	SetRouteAttributes(span, "claude", "backendTrueStream")
func SetRouteAttributes(span trace.Span, model, route string) {
	span.SetAttributes(
		attribute.String(AttrModel, model),
		attribute.String(AttrRoute, route),
	)
}

// SetTokenAttributes sets token count attributes on a span.
func SetTokenAttributes(span trace.Span, promptTokens, completionTokens int) {
	span.SetAttributes(
		attribute.Int(AttrTokensPrompt, promptTokens),
		attribute.Int(AttrTokensCompletion, completionTokens),
		attribute.Int(AttrTokensTotal, promptTokens+completionTokens),
	)
}

// SetCacheAttributes sets cache-related attributes on a span.
//
//	SetCacheAttributes(span, true, "capability")
func SetCacheAttributes(span trace.Span, hit bool, cacheName string) {
	span.SetAttributes(
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheName, cacheName),
	)
}

// SetErrorAttributes records err, marks the span failed and tags it with
// errorType.
func SetErrorAttributes(span trace.Span, err error, errorType string) {
	if err == nil {
		return
	}

	span.SetAttributes(
		attribute.String(AttrErrorType, errorType),
		attribute.String(AttrErrorMessage, err.Error()),
	)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// AddEvent adds a named event to the span with optional attributes.
//
//	AddEvent(span, "fallback", attribute.String("failed_route", "directTrueStream"))
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordException records err on the span and marks it failed.
func RecordException(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

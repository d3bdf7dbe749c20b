// Package logging configures the process-wide log/slog logger.
//
// New wraps a JSON or text handler with a Handler that
//   - adds request fields carried by the context (request_id,
//     correlation_id, model, route), and
//   - masks credentials: bearer tokens, vendor API keys and OAuth client
//     secrets, whether they appear under a sensitive key or inside a
//     message-like value such as a wrapped error.
//
// # Usage
//
//	logger, err := logging.Setup(logging.ConfigFrom(cfg.Telemetry.Logging))
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, uuid.NewString())
//	slog.InfoContext(ctx, "stream opened", "model", "claude")
//	// {"level":"INFO","msg":"stream opened","request_id":"...","model":"claude"}
//
// Components log through slog.Default().With("component", name) so the
// handler installed by Setup applies everywhere.
package logging

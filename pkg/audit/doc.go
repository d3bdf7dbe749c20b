// Package audit records validator runs as append-only log entries.
//
// Recording is fire-and-forget: Recorder.Record enqueues the entry on a
// buffered channel and returns immediately. A single background worker
// writes entries to a Sink. When the queue is full the entry is dropped and
// counted; sink failures are logged and swallowed. Nothing in this package
// can block or fail the request path.
//
// Two sinks are provided:
//
//   - JSONLSink appends one JSON object per line to a file.
//   - SQLiteSink stores entries in a SQLite table, using either the pure-Go
//     driver ("sqlite") or the cgo driver ("sqlite3"), and supports
//     retention pruning on a cron schedule.
//
// # Usage
//
//	rec, err := audit.FromConfig(cfg.Audit, collector)
//	if err != nil {
//	    return err
//	}
//	defer rec.Close()
//
//	rec.Record(audit.Entry{Model: "gpt-4o", Issues: []string{"empty_text"}, Corrected: true})
package audit

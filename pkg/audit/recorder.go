package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

// Config contains recorder configuration.
type Config struct {
	// Mode is ModeIssues or ModeAll.
	// Default: ModeIssues
	Mode string

	// AsyncBuffer is the queue size; entries beyond it are dropped.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout bounds one sink write.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// Recorder writes audit entries asynchronously. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	sink    Sink
	config  Config
	entries chan *Entry
	done    chan struct{}
	wg      sync.WaitGroup
	metrics *metrics.Collector
	logger  *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewRecorder creates a recorder writing to sink and starts its worker.
func NewRecorder(sink Sink, cfg Config, collector *metrics.Collector) *Recorder {
	if cfg.Mode == "" {
		cfg.Mode = ModeIssues
	}
	if cfg.AsyncBuffer <= 0 {
		cfg.AsyncBuffer = config.DefaultAuditAsyncBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = config.DefaultAuditWriteTimeout
	}

	r := &Recorder{
		sink:    sink,
		config:  cfg,
		entries: make(chan *Entry, cfg.AsyncBuffer),
		done:    make(chan struct{}),
		metrics: collector,
		logger:  slog.Default().With("component", "audit.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("audit recorder initialized",
		"mode", cfg.Mode,
		"async_buffer", cfg.AsyncBuffer,
		"write_timeout", cfg.WriteTimeout,
	)
	return r
}

// FromConfig builds the configured sink and a recorder for it. It returns a
// nil recorder when auditing is disabled.
func FromConfig(cfg config.AuditConfig, collector *metrics.Collector) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var sink Sink
	switch cfg.Backend {
	case "sqlite":
		s, err := NewSQLiteSink(SQLiteConfig{
			Driver:      cfg.SQLite.Driver,
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		sink = s
	case "", "jsonl":
		s, err := NewJSONLSink(cfg.Path)
		if err != nil {
			return nil, err
		}
		sink = s
	default:
		return nil, fmt.Errorf("unknown audit backend %q", cfg.Backend)
	}

	return NewRecorder(sink, Config{
		Mode:         cfg.Mode,
		AsyncBuffer:  cfg.AsyncBuffer,
		WriteTimeout: cfg.WriteTimeout,
	}, collector), nil
}

// Sink returns the underlying sink.
func (r *Recorder) Sink() Sink {
	if r == nil {
		return nil
	}
	return r.sink
}

// Record enqueues e and returns immediately. Entries without issues are
// skipped in ModeIssues. A full queue drops the entry.
func (r *Recorder) Record(e Entry) {
	if r == nil {
		return
	}
	if r.config.Mode == ModeIssues && len(e.Issues) == 0 {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(&e, "closed")
		return
	}

	select {
	case r.entries <- &e:
	default:
		r.drop(&e, "queue_full")
	}
}

func (r *Recorder) drop(e *Entry, reason string) {
	r.metrics.RecordAuditDrop(reason)
	r.logger.Warn("audit entry dropped",
		"entry_id", e.ID,
		"model", e.Model,
		"reason", reason,
	)
}

// Close stops accepting entries, drains the queue and closes the sink.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	var err error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		close(r.done)
		r.mu.Unlock()

		r.wg.Wait()
		err = r.sink.Close()
		r.logger.Info("audit recorder shut down")
	})
	return err
}

func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.entries:
			r.write(e)
		case <-r.done:
			// drain what was accepted before Close
			for {
				select {
				case e := <-r.entries:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	if err := r.sink.Write(ctx, e); err != nil {
		r.metrics.RecordAuditDrop("write_error")
		r.logger.Error("failed to write audit entry",
			"entry_id", e.ID,
			"error", err,
		)
	}
}

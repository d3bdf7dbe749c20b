package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"mercator-hq/conduit/pkg/config"
	"mercator-hq/conduit/pkg/telemetry/metrics"
)

// memorySink collects entries; block, when set, holds every write until closed.
type memorySink struct {
	mu      sync.Mutex
	entries []Entry
	block   chan struct{}
	closed  bool
}

func (s *memorySink) Write(ctx context.Context, e *Entry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *e)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) all() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

func TestRecorder_Modes(t *testing.T) {
	tests := []struct {
		name string
		mode string
		want int
	}{
		{"issues mode skips clean runs", ModeIssues, 1},
		{"all mode records everything", ModeAll, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &memorySink{}
			r := NewRecorder(sink, Config{Mode: tt.mode}, nil)

			r.Record(Entry{Model: "m", Issues: []string{"empty_text"}, Corrected: true})
			r.Record(Entry{Model: "m"})

			if err := r.Close(); err != nil {
				t.Fatalf("failed to close recorder: %v", err)
			}
			got := sink.all()
			if len(got) != tt.want {
				t.Fatalf("expected %d entries, got %d", tt.want, len(got))
			}
			if got[0].ID == "" || got[0].Timestamp.IsZero() {
				t.Errorf("expected id and timestamp to be assigned: %+v", got[0])
			}
			if !sink.closed {
				t.Error("expected sink to be closed")
			}
		})
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	sink := &memorySink{block: make(chan struct{})}
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(&config.MetricsConfig{}, registry)
	r := NewRecorder(sink, Config{Mode: ModeAll, AsyncBuffer: 1}, collector)

	done := make(chan struct{})
	go func() {
		// the worker holds one entry, the queue holds one, the rest drop
		for i := 0; i < 10; i++ {
			r.Record(Entry{Model: "m"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	close(sink.block)
	_ = r.Close()

	if n := len(sink.all()); n == 0 || n > 2 {
		t.Errorf("expected 1-2 written entries, got %d", n)
	}
	if n, _ := testutil.GatherAndCount(registry, "conduit_gateway_audit_dropped_total"); n == 0 {
		t.Error("expected dropped entries to be counted")
	}

	// recording after close is a no-op
	r.Record(Entry{Model: "late"})
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.Record(Entry{Model: "m", Issues: []string{"x"}})
	if err := r.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "responses.jsonl")
	sink, err := NewJSONLSink(path)
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	r := NewRecorder(sink, Config{Mode: ModeAll}, nil)
	r.Record(Entry{Model: "a", Issues: []string{"empty_text"}, Before: "", After: "Sorry"})
	r.Record(Entry{Model: "b"})
	if err := r.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open log: %v", err)
	}
	defer f.Close()

	var lines []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("line is not JSON: %q", scanner.Text())
		}
		lines = append(lines, e)
	}
	if len(lines) != 2 || lines[0].Model != "a" || lines[1].Model != "b" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
	if lines[0].After != "Sorry" || lines[0].Issues[0] != "empty_text" {
		t.Errorf("unexpected first entry: %+v", lines[0])
	}

	if err := sink.Write(context.Background(), &Entry{}); err != ErrClosed {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}

func TestSQLiteSink(t *testing.T) {
	for _, driver := range []string{DriverPureGo, DriverCgo} {
		t.Run(driver, func(t *testing.T) {
			sink, err := NewSQLiteSink(SQLiteConfig{
				Driver: driver,
				Path:   filepath.Join(t.TempDir(), "audit.db"),
			})
			if err != nil {
				if strings.Contains(err.Error(), "CGO_ENABLED=0") {
					t.Skip("cgo sqlite driver unavailable")
				}
				t.Fatalf("failed to create sink: %v", err)
			}
			defer sink.Close()
			ctx := context.Background()

			now := time.Now().UTC()
			entries := []Entry{
				{ID: "old", Timestamp: now.AddDate(0, 0, -40), Model: "m", Kind: KindResponse, Issues: []string{"missing_usage"}},
				{ID: "new", Timestamp: now, Model: "m", Kind: KindChunk, Issues: []string{"control_characters"}, Corrected: true, Before: "a\x00", After: "a"},
			}
			for i := range entries {
				if err := sink.Write(ctx, &entries[i]); err != nil {
					t.Fatalf("failed to write: %v", err)
				}
			}

			recent, err := sink.Recent(ctx, 10)
			if err != nil {
				t.Fatalf("failed to query: %v", err)
			}
			if len(recent) != 2 || recent[0].ID != "new" {
				t.Fatalf("unexpected entries: %+v", recent)
			}
			if !recent[0].Corrected || recent[0].Issues[0] != "control_characters" || recent[0].After != "a" {
				t.Errorf("entry did not round-trip: %+v", recent[0])
			}

			scheduler := NewRetentionScheduler(sink, "0 3 * * *", 30)
			if deleted := scheduler.PruneNow(ctx); deleted != 1 {
				t.Errorf("expected 1 pruned entry, got %d", deleted)
			}
			recent, _ = sink.Recent(ctx, 10)
			if len(recent) != 1 || recent[0].ID != "new" {
				t.Errorf("unexpected entries after prune: %+v", recent)
			}
		})
	}

	t.Run("unsupported driver", func(t *testing.T) {
		if _, err := NewSQLiteSink(SQLiteConfig{Driver: "postgres", Path: ":memory:"}); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})
}

func TestRetentionScheduler_Start(t *testing.T) {
	sink, err := NewSQLiteSink(SQLiteConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create sink: %v", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	disabled := NewRetentionScheduler(sink, "", 30)
	if err := disabled.Start(ctx); err != nil || disabled.IsRunning() {
		t.Errorf("expected disabled scheduler, err=%v", err)
	}

	invalid := NewRetentionScheduler(sink, "every day", 30)
	if err := invalid.Start(ctx); err == nil {
		t.Error("expected invalid schedule error")
	}

	s := NewRetentionScheduler(sink, "0 3 * * *", 30)
	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected scheduler to be running")
	}
	s.Stop()
	if s.IsRunning() {
		t.Error("expected scheduler to be stopped")
	}
}

func TestFromConfig(t *testing.T) {
	rec, err := FromConfig(config.AuditConfig{Enabled: false}, nil)
	if err != nil || rec != nil {
		t.Fatalf("expected nil recorder when disabled, got %v, %v", rec, err)
	}

	cfg := config.AuditConfig{
		Enabled: true,
		Backend: "jsonl",
		Path:    filepath.Join(t.TempDir(), "audit.jsonl"),
		Mode:    ModeAll,
	}
	rec, err = FromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("failed to build recorder: %v", err)
	}
	if _, ok := rec.Sink().(*JSONLSink); !ok {
		t.Errorf("expected JSONL sink, got %T", rec.Sink())
	}
	_ = rec.Close()

	cfg.Backend = "kafka"
	if _, err := FromConfig(cfg, nil); err == nil {
		t.Error("expected unknown backend error")
	}
}

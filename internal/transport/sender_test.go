// internal/transport/sender_test.go
package transport

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"

	"webmon-sdk/browser"
	"webmon-sdk/browser/memdom"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/logger"
	"webmon-sdk/internal/metrics"
	"webmon-sdk/internal/storage"
)

// fakeTransport records every request and replays scripted statuses
// (last status repeats once the script runs out).
type fakeTransport struct {
	mu       sync.Mutex
	requests []*browser.Request
	statuses []int
}

func (f *fakeTransport) fn(req *browser.Request) (*browser.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	status := 200
	if len(f.statuses) > 0 {
		status = f.statuses[0]
		if len(f.statuses) > 1 {
			f.statuses = f.statuses[1:]
		}
	}
	return &browser.Response{Status: status}, nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) all() []*browser.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*browser.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

func events(n int) []*event.Event {
	out := make([]*event.Event, n)
	for i := range out {
		out[i] = &event.Event{
			Envelope: event.Envelope{
				EventID:   "e" + string(rune('a'+i%26)) + string(rune('0'+i/26)),
				Timestamp: int64(1000 + i),
				Type:      event.TypeBehavior,
			},
			Behavior: &event.BehaviorPayload{Action: event.ActionClick},
		}
	}
	return out
}

func newTestSender(t *testing.T, cfg Config, ft *fakeTransport) (*Sender, *storage.Spill) {
	t.Helper()
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://collect.test/collect"
	}
	if cfg.APIKey == "" {
		cfg.APIKey = "key-1"
	}
	if cfg.SDKVersion == "" {
		cfg.SDKVersion = "1.0.0-test"
	}
	kv := storage.NewKV(memdom.NewMemStorage(), "app-1", logger.Nop())
	spill := storage.NewSpill(kv, logger.Nop(), metrics.New())
	return NewSender(cfg, ft.fn, spill, logger.Nop(), metrics.New()), spill
}

func TestSendSplitsIntoBatches(t *testing.T) {
	ft := &fakeTransport{}
	s, _ := newTestSender(t, Config{BatchSize: 50}, ft)

	if err := s.Send(context.Background(), events(120)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := ft.count(); got != 3 {
		t.Fatalf("got %d POSTs, want 3 (50+50+20)", got)
	}

	total := 0
	for _, req := range ft.all() {
		if req.Method != "POST" || req.URL != "https://collect.test/collect" {
			t.Fatalf("unexpected request %s %s", req.Method, req.URL)
		}
		if req.Headers["Authorization"] != "Bearer key-1" {
			t.Fatalf("Authorization = %q", req.Headers["Authorization"])
		}
		if req.Headers["X-SDK-Version"] != "1.0.0-test" {
			t.Fatalf("X-SDK-Version = %q", req.Headers["X-SDK-Version"])
		}
		var batch event.Batch
		if err := json.Unmarshal(req.Body, &batch); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if batch.SDKVersion != "1.0.0-test" || batch.Timestamp == 0 {
			t.Fatalf("bad wire envelope: %+v", batch)
		}
		if len(batch.Events) > 50 {
			t.Fatalf("batch of %d exceeds limit", len(batch.Events))
		}
		total += len(batch.Events)
	}
	if total != 120 {
		t.Fatalf("delivered %d events, want 120", total)
	}
}

func TestRetryScheduleThenSpill(t *testing.T) {
	ft := &fakeTransport{statuses: []int{500}}
	s, spill := newTestSender(t, Config{}, ft)

	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	batch := events(50)
	if err := s.Send(context.Background(), batch); err == nil {
		t.Fatal("Send succeeded against a 500 endpoint")
	}

	if got := ft.count(); got != 4 {
		t.Fatalf("got %d attempts, want 4 (1 + 3 retries)", got)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("got %d backoff waits, want %d", len(delays), len(want))
	}
	for i, d := range delays {
		if d != want[i] {
			t.Fatalf("backoff[%d] = %v, want %v", i, d, want[i])
		}
	}

	spilled := spill.Load()
	if len(spilled) != 50 {
		t.Fatalf("spilled %d events, want 50", len(spilled))
	}
}

func TestParallelBatchFailuresAllSpill(t *testing.T) {
	// Single-event batches make every failure spill from its own
	// goroutine at once; the buffer must end up with the exact set.
	ft := &fakeTransport{statuses: []int{500}}
	s, spill := newTestSender(t, Config{BatchSize: 1, MaxRetries: 1}, ft)
	s.sleep = func(context.Context, time.Duration) error { return nil }

	batch := events(200)
	if err := s.Send(context.Background(), batch); err == nil {
		t.Fatal("Send succeeded against a 500 endpoint")
	}

	spilled := spill.Load()
	if len(spilled) != len(batch) {
		t.Fatalf("spill holds %d events after failed batches, want %d", len(spilled), len(batch))
	}
	seen := map[string]bool{}
	for _, e := range spilled {
		seen[e.EventID] = true
	}
	for _, e := range batch {
		if !seen[e.EventID] {
			t.Fatalf("event %s lost in spill", e.EventID)
		}
	}
}

func TestOkFalseCountsAsFailure(t *testing.T) {
	// 2xx succeeds on the first try; 204 is still ok.
	ft := &fakeTransport{statuses: []int{204}}
	s, _ := newTestSender(t, Config{}, ft)
	if err := s.Send(context.Background(), events(1)); err != nil {
		t.Fatalf("204 treated as failure: %v", err)
	}
	if ft.count() != 1 {
		t.Fatalf("got %d attempts, want 1", ft.count())
	}

	// 302 is not ok and must burn the full retry budget.
	ft = &fakeTransport{statuses: []int{302}}
	s, _ = newTestSender(t, Config{}, ft)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	if err := s.Send(context.Background(), events(1)); err == nil {
		t.Fatal("302 treated as success")
	}
}

func TestCompressionAppliedAboveThreshold(t *testing.T) {
	ft := &fakeTransport{}
	s, _ := newTestSender(t, Config{Compress: true, CompressMinBytes: 64}, ft)

	if err := s.Send(context.Background(), events(10)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	req := ft.all()[0]
	if req.Headers["Content-Encoding"] != "gzip" {
		t.Fatal("compressed body missing content-encoding header")
	}
	zr, err := gzip.NewReader(bytes.NewReader(req.Body))
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("gunzip: %v", err)
	}
	var batch event.Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batch.Events) != 10 {
		t.Fatalf("decoded %d events, want 10", len(batch.Events))
	}
}

func TestCompressionSkippedBelowThreshold(t *testing.T) {
	ft := &fakeTransport{}
	s, _ := newTestSender(t, Config{Compress: true, CompressMinBytes: 1 << 20}, ft)

	if err := s.Send(context.Background(), events(1)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	req := ft.all()[0]
	if _, set := req.Headers["Content-Encoding"]; set {
		t.Fatal("content-encoding set without compression")
	}
	if !strings.HasPrefix(string(req.Body), "{") {
		t.Fatal("body is not plain JSON")
	}
}

func TestReplaySpillSuccessClears(t *testing.T) {
	ft := &fakeTransport{}
	s, spill := newTestSender(t, Config{}, ft)

	spill.Append(events(30))
	if err := s.ReplaySpill(context.Background()); err != nil {
		t.Fatalf("ReplaySpill: %v", err)
	}
	if left := spill.Load(); len(left) != 0 {
		t.Fatalf("spill kept %d events after successful replay", len(left))
	}
	if ft.count() != 1 {
		t.Fatalf("got %d POSTs, want 1", ft.count())
	}
}

func TestReplaySpillFailureLeavesBufferIntact(t *testing.T) {
	ft := &fakeTransport{statuses: []int{503}}
	s, spill := newTestSender(t, Config{}, ft)
	s.sleep = func(context.Context, time.Duration) error { return nil }

	spill.Append(events(30))
	if err := s.ReplaySpill(context.Background()); err == nil {
		t.Fatal("ReplaySpill succeeded against a 503 endpoint")
	}
	// Intact, and not doubled by a re-spill.
	if left := spill.Load(); len(left) != 30 {
		t.Fatalf("spill holds %d events after failed replay, want 30", len(left))
	}
}

func TestReplaySpillEmptyIsNoop(t *testing.T) {
	ft := &fakeTransport{}
	s, _ := newTestSender(t, Config{}, ft)
	if err := s.ReplaySpill(context.Background()); err != nil {
		t.Fatalf("ReplaySpill on empty buffer: %v", err)
	}
	if ft.count() != 0 {
		t.Fatal("empty replay performed a request")
	}
}

func TestSendEmptyIsNoop(t *testing.T) {
	ft := &fakeTransport{}
	s, _ := newTestSender(t, Config{}, ft)
	if err := s.Send(context.Background(), nil); err != nil {
		t.Fatalf("Send(nil): %v", err)
	}
	if ft.count() != 0 {
		t.Fatal("empty send performed a request")
	}
}

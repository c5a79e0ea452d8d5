// internal/transport/sender.go
//
// Package transport delivers admitted events to the collector: a batched
// HTTP sender with retry/backoff/spill, and a one-shot beacon path for
// unload. The sender holds the transport reference it was constructed
// with, so its own traffic never flows through the wrappers the error
// capture installs later.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
	"webmon-sdk/internal/pool"
	"webmon-sdk/internal/storage"
)

// Delivery defaults.
const (
	DefaultBatchSize        = 50
	DefaultMaxRetries       = 3
	DefaultTimeout          = 10 * time.Second
	DefaultCompressMinBytes = 1024

	initialBackoff = 1 * time.Second
)

// Config tunes one Sender.
type Config struct {
	Endpoint   string
	APIKey     string
	SDKVersion string

	BatchSize  int           // events per POST, default 50
	MaxRetries int           // retries after the first attempt, default 3
	Timeout    time.Duration // per-attempt bound, default 10s

	// Compress enables gzip for bodies of at least CompressMinBytes.
	// The content-encoding header is set only when compression actually
	// ran.
	Compress         bool
	CompressMinBytes int
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.CompressMinBytes <= 0 {
		c.CompressMinBytes = DefaultCompressMinBytes
	}
	return c
}

// Sender posts event batches to the collector.
type Sender struct {
	cfg       Config
	transport browser.TransportFunc
	spill     *storage.Spill
	log       zerolog.Logger
	metrics   *metrics.Metrics

	// sleep waits for the backoff delay or the context, whichever comes
	// first. Tests swap it to record the retry schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSender builds a sender over the given transport. Pass the host's
// pristine transport reference, taken before any wrapping.
func NewSender(cfg Config, transport browser.TransportFunc, spill *storage.Spill, log zerolog.Logger, m *metrics.Metrics) *Sender {
	return &Sender{
		cfg:       cfg.withDefaults(),
		transport: transport,
		spill:     spill,
		log:       log,
		metrics:   m,
		sleep: func(ctx context.Context, d time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
				return nil
			}
		},
	}
}

// Send splits events into batches and transmits them in parallel. A
// batch that exhausts its retries spills to the persistent store; the
// error is returned, never thrown further.
func (s *Sender) Send(ctx context.Context, events []*event.Event) error {
	return s.deliver(ctx, events, true)
}

// ReplaySpill attempts the spilled events once. Full success empties the
// buffer; any failure leaves it intact for the next trigger, without
// re-appending (the events are already there).
func (s *Sender) ReplaySpill(ctx context.Context) error {
	spilled := s.spill.Load()
	if len(spilled) == 0 {
		return nil
	}
	if err := s.deliver(ctx, spilled, false); err != nil {
		return fmt.Errorf("spill replay: %w", err)
	}
	s.spill.Clear()
	metrics.Add(&s.metrics.SpillEventsReplayedTotal, int64(len(spilled)))
	s.log.Info().Int("events", len(spilled)).Msg("spill replayed")
	return nil
}

func (s *Sender) deliver(ctx context.Context, events []*event.Event, spillOnFail bool) error {
	if len(events) == 0 {
		return nil
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for start := 0; start < len(events); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(events) {
			end = len(events)
		}
		batch := events[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.sendBatch(ctx, batch); err != nil {
				if spillOnFail {
					s.spill.Append(batch)
				}
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			metrics.Add(&s.metrics.BatchesSentTotal, 1)
			metrics.Add(&s.metrics.EventsSentTotal, int64(len(batch)))
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// sendBatch runs the retry loop for one batch: first attempt plus up to
// MaxRetries, backoff starting at 1s and doubling, shutdown-safe via ctx.
func (s *Sender) sendBatch(ctx context.Context, batch []*event.Event) error {
	body, compressed, err := s.encode(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff *= 2
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := s.post(ctx, body, compressed); err != nil {
			lastErr = err
			metrics.Add(&s.metrics.SendAttemptErrorsTotal, 1)
			s.log.Debug().Err(err).Int("attempt", attempt+1).Int("events", len(batch)).
				Msg("batch send attempt failed")
			continue
		}
		return nil
	}

	s.log.Warn().Err(lastErr).Int("events", len(batch)).Msg("batch delivery exhausted retries")
	return lastErr
}

// post performs one attempt with the per-attempt timeout. The transport
// slot has no cancellation of its own, so a stuck call is abandoned when
// the deadline passes; its eventual result is discarded.
func (s *Sender) post(ctx context.Context, body []byte, compressed bool) error {
	ctx2, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	headers := map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + s.cfg.APIKey,
		"X-SDK-Version": s.cfg.SDKVersion,
	}
	if compressed {
		headers["Content-Encoding"] = "gzip"
	}

	type result struct {
		resp *browser.Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.transport(&browser.Request{
			Method:  "POST",
			URL:     s.cfg.Endpoint,
			Headers: headers,
			Body:    body,
		})
		done <- result{resp, err}
	}()

	select {
	case <-ctx2.Done():
		return fmt.Errorf("send aborted: %w", ctx2.Err())
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		if !r.resp.Ok() {
			return fmt.Errorf("collector rejected batch: status %d", r.resp.Status)
		}
		return nil
	}
}

// encode serializes the wire body, gzipping through the shared pools
// when enabled and worth it. Returns caller-owned bytes.
func (s *Sender) encode(batch []*event.Event) ([]byte, bool, error) {
	raw, err := json.Marshal(event.Batch{
		Events:     batch,
		Timestamp:  event.NowMS(),
		SDKVersion: s.cfg.SDKVersion,
	})
	if err != nil {
		return nil, false, err
	}
	if !s.cfg.Compress || len(raw) < s.cfg.CompressMinBytes {
		return raw, false, nil
	}

	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	if _, err := gz.Write(raw); err != nil {
		_ = gz.Close()
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, false, err
	}
	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, false, err
	}
	pool.GzipPool.Put(gz)

	// Copy out; the pooled buffer gets reused.
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	pool.PutBuffer(buf)
	return out, true, nil
}

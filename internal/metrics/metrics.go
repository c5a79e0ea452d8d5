// internal/metrics/metrics.go
package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics is the SDK's internal counter set. These are not a metrics
// product; they exist so an operator (or a test) can see, from one text
// dump, where events went: captured, sampled out, deduplicated, dropped
// on overflow, sent, spilled, recovered.
type Metrics struct {
	// Capture level.

	// EventsCapturedTotal counts every event a capture component produced,
	// before sampling. The gap against EventsAdmittedTotal is the
	// sampling loss.
	EventsCapturedTotal int64

	// EventsAdmittedTotal counts events that passed sampling and entered
	// the central queue.
	EventsAdmittedTotal int64

	// EventsSampledOutTotal counts admission-time sampling rejections.
	EventsSampledOutTotal int64

	// ErrorsDedupedTotal counts error events dropped because an equal
	// fingerprint was already admitted this session.
	ErrorsDedupedTotal int64

	// EventsDroppedOverflowTotal counts oldest-drop evictions from the
	// central queue and from the per-capture buffers.
	EventsDroppedOverflowTotal int64

	// Transport level.

	// BatchesSentTotal counts batch POSTs acknowledged 2xx.
	BatchesSentTotal int64

	// EventsSentTotal counts events inside acknowledged batches.
	EventsSentTotal int64

	// SendAttemptErrorsTotal counts failed POST attempts; every failing
	// retry increments it, so one exhausted batch with 3 retries adds 4.
	SendAttemptErrorsTotal int64

	// BeaconSentTotal counts unload-time beacon deliveries the host
	// accepted.
	BeaconSentTotal int64

	// Spill store.

	// SpillEventsEnqueuedTotal counts events parked after retry exhaustion.
	SpillEventsEnqueuedTotal int64

	// SpillEventsReplayedTotal counts spilled events later delivered.
	SpillEventsReplayedTotal int64

	// SpillEventsDroppedTotal counts spilled events evicted by the
	// newest-wins cap or the byte bound.
	SpillEventsDroppedTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

// Add is the single mutation path; callers pass a pointer to one of the
// exported fields.
func Add(field *int64, delta int64) {
	atomic.AddInt64(field, delta)
}

// Load reads one counter.
func Load(field *int64) int64 {
	return atomic.LoadInt64(field)
}

func (m *Metrics) Add(field *int64, delta int64) { Add(field, delta) }
func (m *Metrics) Load(field *int64) int64       { return Load(field) }

func (m *Metrics) String() string {
	var sb strings.Builder
	sb.Grow(512)

	fmt.Fprintf(&sb, "events_captured_total=%d\n", atomic.LoadInt64(&m.EventsCapturedTotal))
	fmt.Fprintf(&sb, "events_admitted_total=%d\n", atomic.LoadInt64(&m.EventsAdmittedTotal))
	fmt.Fprintf(&sb, "events_sampled_out_total=%d\n", atomic.LoadInt64(&m.EventsSampledOutTotal))
	fmt.Fprintf(&sb, "errors_deduped_total=%d\n", atomic.LoadInt64(&m.ErrorsDedupedTotal))
	fmt.Fprintf(&sb, "events_dropped_overflow_total=%d\n", atomic.LoadInt64(&m.EventsDroppedOverflowTotal))

	fmt.Fprintf(&sb, "batches_sent_total=%d\n", atomic.LoadInt64(&m.BatchesSentTotal))
	fmt.Fprintf(&sb, "events_sent_total=%d\n", atomic.LoadInt64(&m.EventsSentTotal))
	fmt.Fprintf(&sb, "send_attempt_errors_total=%d\n", atomic.LoadInt64(&m.SendAttemptErrorsTotal))
	fmt.Fprintf(&sb, "beacon_sent_total=%d\n", atomic.LoadInt64(&m.BeaconSentTotal))

	fmt.Fprintf(&sb, "spill_events_enqueued_total=%d\n", atomic.LoadInt64(&m.SpillEventsEnqueuedTotal))
	fmt.Fprintf(&sb, "spill_events_replayed_total=%d\n", atomic.LoadInt64(&m.SpillEventsReplayedTotal))
	fmt.Fprintf(&sb, "spill_events_dropped_total=%d\n", atomic.LoadInt64(&m.SpillEventsDroppedTotal))

	return sb.String()
}

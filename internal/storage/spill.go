// internal/storage/spill.go
package storage

import (
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
)

// Spill buffer bounds. Entries beyond MaxEntries drop oldest-first
// (newest failures are the most likely to still matter on replay), and
// the serialized form is additionally capped so a few huge replay
// payloads cannot eat the whole host quota.
const (
	SpillMaxEntries = 1000
	SpillMaxBytes   = 256 << 10
)

// Spill persists events that exhausted their delivery retries so a later
// page load (or a network recovery) can replay them. It is a single-slot
// JSON array under KeyFailedEvents in the persistent store; the mutex
// makes each append a single read-modify-write, so parallel batch
// failures merge instead of overwriting each other.
type Spill struct {
	kv      *KV
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

func NewSpill(kv *KV, log zerolog.Logger, m *metrics.Metrics) *Spill {
	return &Spill{kv: kv, log: log, metrics: m}
}

// Append merges events into the spill buffer, enforcing both bounds.
func (s *Spill) Append(events []*event.Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append(s.load(), events...)
	metrics.Add(&s.metrics.SpillEventsEnqueuedTotal, int64(len(events)))

	dropped := 0
	if over := len(all) - SpillMaxEntries; over > 0 {
		all = all[over:]
		dropped += over
	}

	raw, err := json.Marshal(all)
	if err != nil {
		s.log.Error().Err(err).Msg("spill encode failed, discarding batch")
		return
	}
	for len(raw) > SpillMaxBytes && len(all) > 1 {
		all = all[1:]
		dropped++
		raw, err = json.Marshal(all)
		if err != nil {
			s.log.Error().Err(err).Msg("spill encode failed, discarding batch")
			return
		}
	}
	if dropped > 0 {
		metrics.Add(&s.metrics.SpillEventsDroppedTotal, int64(dropped))
		s.log.Warn().Int("dropped", dropped).Int("kept", len(all)).Msg("spill buffer over capacity")
	}

	s.kv.Set(KeyFailedEvents, string(raw))
}

// Load decodes the spilled events; corrupt payloads are discarded so one
// bad write cannot wedge replay forever.
func (s *Spill) Load() []*event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Spill) load() []*event.Event {
	raw, ok := s.kv.Get(KeyFailedEvents)
	if !ok || raw == "" {
		return nil
	}
	var out []*event.Event
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		s.log.Warn().Err(err).Msg("spill buffer corrupt, clearing")
		s.kv.Remove(KeyFailedEvents)
		return nil
	}
	return out
}

// Clear empties the buffer.
func (s *Spill) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kv.Remove(KeyFailedEvents)
}

// monitor/bus.go
package monitor

import (
	"sync"

	"github.com/rs/zerolog"
)

// Lifecycle events emitted on the bus.
const (
	EventStart = "start"
	EventStop  = "stop"
	EventTrack = "track"
)

// Handler receives one bus event payload.
type Handler func(payload any)

// Subscription identifies one handler registration for removal (Go
// funcs are not comparable, so removal is handle-based).
type Subscription int

type busEntry struct {
	id Subscription
	fn Handler
}

// bus is the in-process pub/sub surface behind On/Off. A handler that
// panics is logged and skipped; dispatch always reaches the rest.
type bus struct {
	mu   sync.Mutex
	next Subscription
	subs map[string][]busEntry
	log  zerolog.Logger
}

func newBus(log zerolog.Logger) *bus {
	return &bus{subs: map[string][]busEntry{}, log: log}
}

func (b *bus) on(name string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs[name] = append(b.subs[name], busEntry{id: b.next, fn: fn})
	return b.next
}

// off removes the given subscriptions, or every handler for name when
// none are given.
func (b *bus) off(name string, subs ...Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(subs) == 0 {
		delete(b.subs, name)
		return
	}
	kept := b.subs[name][:0]
	for _, e := range b.subs[name] {
		drop := false
		for _, id := range subs {
			if e.id == id {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, e)
		}
	}
	b.subs[name] = kept
}

func (b *bus) emit(name string, payload any) {
	b.mu.Lock()
	entries := make([]busEntry, len(b.subs[name]))
	copy(entries, b.subs[name])
	b.mu.Unlock()

	for _, e := range entries {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.log.Warn().Str("event", name).Any("panic", r).Msg("bus handler panicked")
				}
			}()
			e.fn(payload)
		}()
	}
}

// Plugin extends the monitor. Install runs once at registration with
// the monitor it was registered on; Uninstall, when set, runs on
// removal and at Stop.
type Plugin struct {
	Name    string
	Version string

	Install   func(*Monitor) error
	Uninstall func()
}

// internal/ratelimit/ratelimit.go
//
// Package ratelimit holds the two small gates used by the capture
// components for high-frequency DOM sources.
package ratelimit

import (
	"sync"
	"time"
)

// Throttle is leading-edge: the first call passes, later calls are
// swallowed until the interval has elapsed.
type Throttle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval}
}

func (t *Throttle) Allow() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := time.Now()
	if !t.last.IsZero() && now.Sub(t.last) < t.interval {
		return false
	}
	t.last = now
	return true
}

// Debounce is trailing-edge: each Schedule replaces the pending callback
// and restarts the quiet-period timer. Stop flushes the pending callback
// so the last burst is not lost on shutdown.
type Debounce struct {
	mu      sync.Mutex
	quiet   time.Duration
	timer   *time.Timer
	pending func()
	stopped bool
}

func NewDebounce(quiet time.Duration) *Debounce {
	return &Debounce{quiet: quiet}
}

func (d *Debounce) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending = fn
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, d.fire)
}

func (d *Debounce) fire() {
	d.mu.Lock()
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (d *Debounce) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	fn := d.pending
	d.pending = nil
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

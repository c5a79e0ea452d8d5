// internal/replay/replay.go
//
// Package replay records a masked reconstruction of the page: one full
// DOM snapshot followed by mutation, interaction, and visibility deltas.
// Recording is budgeted hard on record count and wall-clock span; the
// feature gates off entirely when the host lacks mutation or
// intersection observers.
package replay

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/capture/behavior"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
	"webmon-sdk/internal/ratelimit"
)

// State of the recorder. Stopped differs from idle only in history:
// both admit nothing and hold no records.
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

// Recording budgets and delta throttles.
const (
	MaxRecords = 1000
	MaxSpanMS  = 60000

	DefaultScrollThrottle    = 100 * time.Millisecond
	DefaultMousemoveThrottle = 50 * time.Millisecond
	DefaultResizeThrottle    = 250 * time.Millisecond
)

// Options tunes one Recorder.
type Options struct {
	CaptureMousemove bool

	ScrollThrottle    time.Duration
	MousemoveThrottle time.Duration
	ResizeThrottle    time.Duration
}

func (o Options) withDefaults() Options {
	if o.ScrollThrottle <= 0 {
		o.ScrollThrottle = DefaultScrollThrottle
	}
	if o.MousemoveThrottle <= 0 {
		o.MousemoveThrottle = DefaultMousemoveThrottle
	}
	if o.ResizeThrottle <= 0 {
		o.ResizeThrottle = DefaultResizeThrottle
	}
	return o
}

// Recorder is the replay state machine.
type Recorder struct {
	win         browser.Window
	opts        Options
	newEnvelope event.EnvelopeFunc
	log         zerolog.Logger
	metrics     *metrics.Metrics

	// now is the record clock; tests swap it to drive the span budget.
	now func() int64

	mu      sync.Mutex
	state   State
	records []event.ReplayRecord
	firstAt int64

	mutObs  browser.MutationObserver
	intObs  browser.IntersectionObserver
	handles []browser.ListenerHandle

	scrollGate    *ratelimit.Throttle
	mousemoveGate *ratelimit.Throttle
	resizeGate    *ratelimit.Throttle
}

func New(win browser.Window, opts Options, newEnvelope event.EnvelopeFunc, log zerolog.Logger, m *metrics.Metrics) *Recorder {
	opts = opts.withDefaults()
	return &Recorder{
		win:           win,
		opts:          opts,
		newEnvelope:   newEnvelope,
		log:           log,
		metrics:       m,
		now:           event.NowMS,
		state:         StateIdle,
		scrollGate:    ratelimit.NewThrottle(opts.ScrollThrottle),
		mousemoveGate: ratelimit.NewThrottle(opts.MousemoveThrottle),
		resizeGate:    ratelimit.NewThrottle(opts.ResizeThrottle),
	}
}

// State returns the current lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start moves idle or stopped to recording: the gate is checked, the
// full snapshot becomes the first record, and the observers attach.
// Starting while recording or paused is a no-op.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.state == StateRecording || r.state == StatePaused {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	// Feature gate: both observer APIs or nothing.
	mutObs, err := r.win.NewMutationObserver(r.onMutations)
	if err != nil {
		r.log.Warn().Err(err).Msg("replay unavailable: no mutation observer")
		return err
	}
	intObs, err := r.win.NewIntersectionObserver(r.onIntersections)
	if err != nil {
		mutObs.Disconnect()
		r.log.Warn().Err(err).Msg("replay unavailable: no intersection observer")
		return err
	}

	r.mu.Lock()
	r.state = StateRecording
	r.records = nil
	r.firstAt = 0
	r.mutObs = mutObs
	r.intObs = intObs
	r.mu.Unlock()

	r.admit(event.RecordDOM, r.snapshotData())

	if err := mutObs.Observe(r.win.Document(), browser.MutationObserverInit{
		ChildList:             true,
		Subtree:               true,
		Attributes:            true,
		AttributeOldValue:     true,
		CharacterData:         true,
		CharacterDataOldValue: true,
	}); err != nil {
		r.log.Warn().Err(err).Msg("replay mutation observe failed")
	}
	for _, media := range collectMedia(r.win.Document()) {
		intObs.Observe(media)
	}

	passive := browser.ListenerOptions{Passive: true}
	capturing := browser.ListenerOptions{Capture: true, Passive: true}
	r.listen("click", capturing, r.onInteraction)
	r.listen("input", capturing, r.onInteraction)
	r.listen("change", capturing, r.onInteraction)
	r.listen("focus", capturing, r.onInteraction)
	r.listen("blur", capturing, r.onInteraction)
	r.listen("scroll", passive, r.onScroll)
	r.listen("resize", passive, r.onResize)
	r.listen("visibilitychange", passive, r.onVisibility)
	if r.opts.CaptureMousemove {
		r.listen("mousemove", passive, r.onMousemove)
	}
	return nil
}

// Pause suspends record admission; listeners and observers stay.
func (r *Recorder) Pause() {
	r.mu.Lock()
	if r.state == StateRecording {
		r.state = StatePaused
	}
	r.mu.Unlock()
}

// Resume re-enables admission after a pause.
func (r *Recorder) Resume() {
	r.mu.Lock()
	if r.state == StatePaused {
		r.state = StateRecording
	}
	r.mu.Unlock()
}

// Stop tears everything down and resets the accumulated records.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.state != StateRecording && r.state != StatePaused {
		r.mu.Unlock()
		return
	}
	r.state = StateStopped
	r.records = nil
	mutObs, intObs := r.mutObs, r.intObs
	r.mutObs, r.intObs = nil, nil
	handles := r.handles
	r.handles = nil
	r.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		r.win.RemoveEventListener(handles[i])
	}
	if intObs != nil {
		intObs.Disconnect()
	}
	if mutObs != nil {
		mutObs.Disconnect()
	}
}

// Flush produces the cycle's replay event and empties the record list.
// Every transmission starts with a full snapshot: when the accumulated
// deltas lost theirs (oldest-drop), a fresh one is prepended.
func (r *Recorder) Flush() *event.Event {
	r.mu.Lock()
	records := r.records
	r.records = nil
	r.mu.Unlock()

	if len(records) == 0 {
		return nil
	}
	if records[0].Type != event.RecordDOM || !isSnapshot(records[0]) {
		snap := event.ReplayRecord{
			Timestamp: r.now(),
			Type:      event.RecordDOM,
			Data:      r.snapshotData(),
		}
		records = append([]event.ReplayRecord{snap}, records...)
	}

	metrics.Add(&r.metrics.EventsCapturedTotal, 1)
	return &event.Event{
		Envelope: r.newEnvelope(event.TypeReplay),
		Replay:   &event.ReplayPayload{Records: records},
	}
}

func isSnapshot(rec event.ReplayRecord) bool {
	data, ok := rec.Data.(map[string]any)
	if !ok {
		return false
	}
	full, _ := data["fullSnapshot"].(bool)
	return full
}

// snapshotData serializes the masked document plus the page context.
func (r *Recorder) snapshotData() map[string]any {
	w, h := r.win.ViewportSize()
	return map[string]any{
		"fullSnapshot": true,
		"node":         serializeNode(r.win.Document()),
		"viewport":     map[string]any{"width": w, "height": h},
		"url":          r.win.Location(),
		"doctype":      r.win.Doctype(),
	}
}

func (r *Recorder) listen(typ string, opts browser.ListenerOptions, fn browser.Listener) {
	h := r.win.AddEventListener(typ, opts, fn)
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
}

// --- delta sources ---

func (r *Recorder) onMutations(recs []browser.MutationRecord) {
	for _, m := range recs {
		data := map[string]any{
			"kind": m.Kind,
			"path": browser.CSSPath(m.Target),
		}
		if len(m.Added) > 0 {
			added := make([]any, 0, len(m.Added))
			for _, n := range m.Added {
				added = append(added, serializeNode(n))
			}
			data["added"] = added
		}
		if len(m.Removed) > 0 {
			removed := make([]any, 0, len(m.Removed))
			for _, n := range m.Removed {
				removed = append(removed, serializeNode(n))
			}
			data["removed"] = removed
		}
		if m.AttributeName != "" {
			data["attributeName"] = m.AttributeName
			data["oldValue"] = maskAttrValue(m.AttributeName, m.OldValue)
		} else if m.Kind == "characterData" {
			data["oldValue"] = m.OldValue
		}
		r.admit(event.RecordMutation, data)
	}
}

func (r *Recorder) onIntersections(entries []browser.IntersectionEntry) {
	for _, e := range entries {
		r.admit(event.RecordIntersection, map[string]any{
			"path":           browser.CSSPath(e.Target),
			"isIntersecting": e.IsIntersecting,
			"ratio":          e.IntersectionRatio,
		})
	}
}

func (r *Recorder) onInteraction(ev *browser.DOMEvent) {
	data := map[string]any{
		"action": ev.Type,
		"path":   browser.CSSPath(ev.Target),
	}
	if ev.Type == "input" || ev.Type == "change" {
		data["value"] = behavior.MaskInputValue(ev.Target, ev.Value)
	}
	if ev.Type == "click" {
		data["x"], data["y"] = ev.X, ev.Y
	}
	r.admit(event.RecordInput, data)
}

func (r *Recorder) onScroll(ev *browser.DOMEvent) {
	if !r.scrollGate.Allow() {
		return
	}
	r.admit(event.RecordScroll, map[string]any{"x": ev.ScrollX, "y": ev.ScrollY})
}

func (r *Recorder) onMousemove(ev *browser.DOMEvent) {
	if !r.mousemoveGate.Allow() {
		return
	}
	r.admit(event.RecordInput, map[string]any{
		"action": "mousemove", "x": ev.X, "y": ev.Y,
	})
}

func (r *Recorder) onResize(ev *browser.DOMEvent) {
	if !r.resizeGate.Allow() {
		return
	}
	r.admit(event.RecordResize, map[string]any{"width": ev.Width, "height": ev.Height})
}

func (r *Recorder) onVisibility(ev *browser.DOMEvent) {
	r.admit(event.RecordDOM, map[string]any{"visibilityState": ev.VisibilityState})
}

// --- admission ---

// admit appends one record under the budgets: oldest-drop on count,
// hard stop when the recording span runs out.
func (r *Recorder) admit(kind event.RecordKind, data map[string]any) {
	now := r.now()

	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	if r.firstAt == 0 {
		r.firstAt = now
	} else if now-r.firstAt > MaxSpanMS {
		r.mu.Unlock()
		r.log.Info().Msg("replay span budget exhausted, stopping")
		r.Stop()
		return
	}
	if len(r.records) >= MaxRecords {
		r.records = r.records[1:]
	}
	r.records = append(r.records, event.ReplayRecord{Timestamp: now, Type: kind, Data: data})
	r.mu.Unlock()
}

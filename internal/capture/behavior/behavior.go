// internal/capture/behavior/behavior.go
//
// Package behavior records user interactions as behavior events: clicks,
// scrolls, inputs, focus changes, navigation, and viewport changes.
// High-frequency sources are throttled or debounced; input values are
// masked before they ever reach the buffer.
package behavior

import (
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
	"webmon-sdk/internal/ratelimit"
)

// BufferCap bounds the capture-side buffer per session.
const BufferCap = 500

// Rate-limit defaults per source.
const (
	DefaultScrollThrottle    = 250 * time.Millisecond
	DefaultInputDebounce     = 500 * time.Millisecond
	DefaultMousemoveThrottle = 100 * time.Millisecond
	DefaultResizeThrottle    = 250 * time.Millisecond
)

// Input masking rules: an input is sensitive by type or by a keyword in
// its name/id. Sensitive values become the literal mask; everything else
// is summarized, never transmitted raw.
const MaskedValue = "[MASKED]"

var sensitiveTypes = map[string]bool{
	"password": true, "email": true, "tel": true, "credit-card": true, "ssn": true,
}

var sensitiveNameParts = []string{
	"password", "pass", "pwd", "email", "phone", "tel", "credit", "card", "ssn", "social",
}

// Options tunes one Capture.
type Options struct {
	CaptureMousemove bool

	ScrollThrottle    time.Duration
	InputDebounce     time.Duration
	MousemoveThrottle time.Duration
	ResizeThrottle    time.Duration
}

func (o Options) withDefaults() Options {
	if o.ScrollThrottle <= 0 {
		o.ScrollThrottle = DefaultScrollThrottle
	}
	if o.InputDebounce <= 0 {
		o.InputDebounce = DefaultInputDebounce
	}
	if o.MousemoveThrottle <= 0 {
		o.MousemoveThrottle = DefaultMousemoveThrottle
	}
	if o.ResizeThrottle <= 0 {
		o.ResizeThrottle = DefaultResizeThrottle
	}
	return o
}

// Capture owns the interaction listeners and the history wrap.
type Capture struct {
	win         browser.Window
	opts        Options
	newEnvelope event.EnvelopeFunc
	log         zerolog.Logger
	metrics     *metrics.Metrics

	mu        sync.Mutex
	installed bool
	buf       []*event.Event
	handles   []browser.ListenerHandle
	notify    func()

	scrollGate    *ratelimit.Throttle
	mousemoveGate *ratelimit.Throttle
	resizeGate    *ratelimit.Throttle
	inputDeb      *ratelimit.Debounce

	savedPush    browser.HistoryFunc
	savedReplace browser.HistoryFunc
}

func New(win browser.Window, opts Options, newEnvelope event.EnvelopeFunc, log zerolog.Logger, m *metrics.Metrics) *Capture {
	opts = opts.withDefaults()
	c := &Capture{
		win:         win,
		opts:        opts,
		newEnvelope: newEnvelope,
		log:         log,
		metrics:     m,
	}
	c.scrollGate = ratelimit.NewThrottle(opts.ScrollThrottle)
	c.mousemoveGate = ratelimit.NewThrottle(opts.MousemoveThrottle)
	c.resizeGate = ratelimit.NewThrottle(opts.ResizeThrottle)
	return c
}

// SetNotify registers a callback invoked after each buffered event.
func (c *Capture) SetNotify(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Install registers every listener (passive; capturing for click and
// input so the record exists even when propagation stops) and wraps the
// history methods.
func (c *Capture) Install() {
	c.mu.Lock()
	if c.installed {
		c.mu.Unlock()
		return
	}
	c.installed = true
	c.inputDeb = ratelimit.NewDebounce(c.opts.InputDebounce)
	c.mu.Unlock()

	passive := browser.ListenerOptions{Passive: true}
	capturing := browser.ListenerOptions{Capture: true, Passive: true}

	c.listen("click", capturing, c.onClick)
	c.listen("scroll", passive, c.onScroll)
	c.listen("input", capturing, c.onInput)
	c.listen("change", capturing, c.onChange)
	c.listen("focus", capturing, c.onFocus)
	c.listen("blur", capturing, c.onBlur)
	c.listen("popstate", passive, c.onPopState)
	c.listen("resize", passive, c.onResize)
	c.listen("visibilitychange", passive, c.onVisibility)
	if c.opts.CaptureMousemove {
		c.listen("mousemove", passive, c.onMousemove)
	}

	h := c.win.History()
	c.savedPush = h.PushState()
	c.savedReplace = h.ReplaceState()
	savedPush, savedReplace := c.savedPush, c.savedReplace
	h.SetPushState(func(state any, title, u string) {
		c.emitNavigate(u)
		if savedPush != nil {
			savedPush(state, title, u)
		}
	})
	h.SetReplaceState(func(state any, title, u string) {
		c.emitNavigate(u)
		if savedReplace != nil {
			savedReplace(state, title, u)
		}
	})
}

// Uninstall flushes the pending debounced input, reverts the history
// wraps, and removes listeners in reverse registration order.
func (c *Capture) Uninstall() {
	c.mu.Lock()
	if !c.installed {
		c.mu.Unlock()
		return
	}
	c.installed = false
	handles := c.handles
	c.handles = nil
	deb := c.inputDeb
	push, replace := c.savedPush, c.savedReplace
	c.mu.Unlock()

	deb.Stop()

	h := c.win.History()
	h.SetReplaceState(replace)
	h.SetPushState(push)
	for i := len(handles) - 1; i >= 0; i-- {
		c.win.RemoveEventListener(handles[i])
	}
}

// Drain returns buffered events and empties the buffer.
func (c *Capture) Drain() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.buf
	c.buf = nil
	return out
}

func (c *Capture) listen(typ string, opts browser.ListenerOptions, fn browser.Listener) {
	h := c.win.AddEventListener(typ, opts, fn)
	c.mu.Lock()
	c.handles = append(c.handles, h)
	c.mu.Unlock()
}

// --- sources ---

func (c *Capture) onClick(ev *browser.DOMEvent) {
	c.admit(&event.BehaviorPayload{
		Action:      event.ActionClick,
		Target:      browser.CSSPath(ev.Target),
		Coordinates: &event.Coordinates{X: ev.X, Y: ev.Y},
	})
}

func (c *Capture) onScroll(ev *browser.DOMEvent) {
	if !c.scrollGate.Allow() {
		return
	}
	c.admit(&event.BehaviorPayload{
		Action: event.ActionScroll,
		Value:  map[string]any{"x": ev.ScrollX, "y": ev.ScrollY},
	})
}

func (c *Capture) onMousemove(ev *browser.DOMEvent) {
	if !c.mousemoveGate.Allow() {
		return
	}
	c.admit(&event.BehaviorPayload{
		Action:      event.ActionCustom,
		Target:      browser.CSSPath(ev.Target),
		Value:       "mousemove",
		Coordinates: &event.Coordinates{X: ev.X, Y: ev.Y},
	})
}

func (c *Capture) onInput(ev *browser.DOMEvent) {
	// Build the payload now (the node's value may change again before the
	// trailing edge), emit it after the quiet period.
	p := &event.BehaviorPayload{
		Action: event.ActionInput,
		Target: browser.CSSPath(ev.Target),
		Value:  MaskInputValue(ev.Target, ev.Value),
	}
	c.inputDeb.Schedule(func() { c.admit(p) })
}

func (c *Capture) onChange(ev *browser.DOMEvent) {
	c.admit(&event.BehaviorPayload{
		Action: event.ActionChange,
		Target: browser.CSSPath(ev.Target),
		Value:  MaskInputValue(ev.Target, ev.Value),
	})
}

func (c *Capture) onFocus(ev *browser.DOMEvent) {
	c.admit(&event.BehaviorPayload{Action: event.ActionFocus, Target: browser.CSSPath(ev.Target)})
}

func (c *Capture) onBlur(ev *browser.DOMEvent) {
	c.admit(&event.BehaviorPayload{Action: event.ActionBlur, Target: browser.CSSPath(ev.Target)})
}

func (c *Capture) onPopState(*browser.DOMEvent) {
	c.emitNavigate(c.win.Location())
}

func (c *Capture) onResize(ev *browser.DOMEvent) {
	if !c.resizeGate.Allow() {
		return
	}
	c.admit(&event.BehaviorPayload{
		Action: event.ActionResize,
		Value:  map[string]any{"width": ev.Width, "height": ev.Height},
	})
}

func (c *Capture) onVisibility(ev *browser.DOMEvent) {
	c.admit(&event.BehaviorPayload{Action: event.ActionVisibility, Value: ev.VisibilityState})
}

func (c *Capture) emitNavigate(rawURL string) {
	value := map[string]any{"url": rawURL}
	if u, err := url.Parse(rawURL); err == nil {
		value["path"] = u.Path
		value["search"] = u.RawQuery
		value["hash"] = u.Fragment
	}
	c.admit(&event.BehaviorPayload{Action: event.ActionNavigate, Value: value})
}

// --- admission ---

func (c *Capture) admit(p *event.BehaviorPayload) {
	c.mu.Lock()
	if len(c.buf) >= BufferCap {
		c.buf = c.buf[1:]
		c.log.Warn().Msg("behavior buffer full, dropping oldest")
	}
	c.buf = append(c.buf, &event.Event{Envelope: c.newEnvelope(event.TypeBehavior), Behavior: p})
	notify := c.notify
	c.mu.Unlock()

	metrics.Add(&c.metrics.EventsCapturedTotal, 1)
	if notify != nil {
		notify()
	}
}

// maskInputValue returns the masked literal for sensitive inputs and a
// {length, isEmpty, hasValue} summary otherwise. Raw text never leaves.
func MaskInputValue(n browser.Node, value string) any {
	if IsSensitiveInput(n) {
		return MaskedValue
	}
	return map[string]any{
		"length":   len(value),
		"isEmpty":  value == "",
		"hasValue": value != "",
	}
}

func IsSensitiveInput(n browser.Node) bool {
	if n == nil || n.NodeType() != browser.ElementNode {
		return false
	}
	if sensitiveTypes[strings.ToLower(n.Attr("type"))] {
		return true
	}
	for _, field := range []string{"name", "id"} {
		v := strings.ToLower(n.Attr(field))
		if v == "" {
			continue
		}
		for _, part := range sensitiveNameParts {
			if strings.Contains(v, part) {
				return true
			}
		}
	}
	return false
}

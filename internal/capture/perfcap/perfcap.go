// internal/capture/perfcap/perfcap.go
//
// Package perfcap collects timing data from three sources: the one-shot
// navigation entry, the observer streams (paint, LCP, layout-shift,
// resource), and custom marks/measures. One performance event is
// produced per collection cycle.
package perfcap

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
)

// Session-window parameters for cumulative layout shift: a shift joins
// the current session unless the gap to the previous shift exceeds
// clsGapMS or the session already spans clsSpanMS.
const (
	clsGapMS  = 1000
	clsSpanMS = 5000
)

// firstInputEvents are the candidates for first-input delay; the first
// one to fire wins and the rest self-remove.
var firstInputEvents = []string{"mousedown", "keydown", "touchstart", "pointerdown"}

// Capture accumulates timing state between collection cycles.
type Capture struct {
	win         browser.Window
	newEnvelope event.EnvelopeFunc
	log         zerolog.Logger
	metrics     *metrics.Metrics

	mu        sync.Mutex
	installed bool

	navRead bool
	nav     browser.NavigationTiming

	fcp, lcp, fid, ttfb *float64

	// Layout-shift session window. clsMax is what gets reported.
	clsActive     bool
	clsValue      float64
	clsStart      float64
	clsLast       float64
	clsMax        float64
	clsObservedAt bool

	custom    map[string]float64
	resources []event.ResourceTiming

	observer   browser.PerformanceObserver
	fidHandles []browser.ListenerHandle
	fidDone    bool
}

func New(win browser.Window, newEnvelope event.EnvelopeFunc, log zerolog.Logger, m *metrics.Metrics) *Capture {
	return &Capture{
		win:         win,
		newEnvelope: newEnvelope,
		log:         log,
		metrics:     m,
		custom:      map[string]float64{},
	}
}

// Install subscribes the observer streams and arms the first-input
// listeners. A host without performance observers degrades to the
// navigation entry and custom metrics.
func (c *Capture) Install() {
	c.mu.Lock()
	if c.installed {
		c.mu.Unlock()
		return
	}
	c.installed = true
	c.mu.Unlock()

	obs, err := c.win.Performance().Observe(
		[]string{"paint", "largest-contentful-paint", "layout-shift", "resource"},
		c.onEntries,
	)
	if err != nil {
		c.log.Debug().Err(err).Msg("performance observers unavailable")
	} else {
		c.observer = obs
	}

	for _, typ := range firstInputEvents {
		h := c.win.AddEventListener(typ,
			browser.ListenerOptions{Capture: true, Passive: true, Once: true}, c.onFirstInput)
		c.fidHandles = append(c.fidHandles, h)
	}
}

// Uninstall disconnects the streams and drops any unfired first-input
// listeners.
func (c *Capture) Uninstall() {
	c.mu.Lock()
	if !c.installed {
		c.mu.Unlock()
		return
	}
	c.installed = false
	handles := c.fidHandles
	c.fidHandles = nil
	obs := c.observer
	c.observer = nil
	c.mu.Unlock()

	if obs != nil {
		obs.Disconnect()
	}
	for i := len(handles) - 1; i >= 0; i-- {
		c.win.RemoveEventListener(handles[i])
	}
}

// Mark delegates to the host timing API.
func (c *Capture) Mark(name string) {
	c.win.Performance().Mark(name)
}

// Measure delegates to the host timing API and stores the duration under
// name in customMetrics.
func (c *Capture) Measure(name, startMark, endMark string) (float64, error) {
	d, err := c.win.Performance().Measure(name, startMark, endMark)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.custom[name] = d
	c.mu.Unlock()
	return d, nil
}

// Collect produces the cycle's performance event, or nil when nothing
// has been observed yet.
func (c *Capture) Collect() *event.Event {
	c.readNavTiming()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.navRead && c.fcp == nil && c.lcp == nil && c.fid == nil &&
		!c.clsObservedAt && len(c.custom) == 0 && len(c.resources) == 0 {
		return nil
	}

	m := event.Metrics{
		FCP:  copyPtr(c.fcp),
		LCP:  copyPtr(c.lcp),
		FID:  copyPtr(c.fid),
		TTFB: copyPtr(c.ttfb),
	}
	if c.clsObservedAt {
		cls := c.clsMax
		if c.clsValue > cls {
			cls = c.clsValue
		}
		m.CLS = &cls
	}
	if c.navRead {
		m.PageLoadTime = c.nav.LoadEventEnd - c.nav.NavigationStart
		m.DOMReadyTime = c.nav.DOMContentLoadedEventEnd - c.nav.NavigationStart
		m.ResourceLoadTime = c.nav.LoadEventEnd - c.nav.DOMContentLoadedEventEnd
	}
	if len(c.custom) > 0 {
		m.CustomMetrics = make(map[string]float64, len(c.custom))
		for k, v := range c.custom {
			m.CustomMetrics[k] = v
		}
	}

	p := &event.PerformancePayload{Metrics: m, Resources: c.resources}
	c.resources = nil

	metrics.Add(&c.metrics.EventsCapturedTotal, 1)
	return &event.Event{Envelope: c.newEnvelope(event.TypePerformance), Performance: p}
}

// readNavTiming latches the navigation entry the first time it is
// complete. TTFB comes from the same entry.
func (c *Capture) readNavTiming() {
	c.mu.Lock()
	done := c.navRead
	c.mu.Unlock()
	if done {
		return
	}
	nav, ok := c.win.Performance().Timing()
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navRead = true
	c.nav = nav
	ttfb := nav.ResponseStart - nav.RequestStart
	c.ttfb = &ttfb
}

// onEntries routes one observer delivery.
func (c *Capture) onEntries(entries []browser.PerformanceEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		switch e.EntryType {
		case "paint":
			if e.Name == "first-contentful-paint" && c.fcp == nil {
				v := e.StartTime
				c.fcp = &v
			}
		case "largest-contentful-paint":
			// The stream refines upward; latest entry wins.
			v := e.StartTime
			c.lcp = &v
		case "layout-shift":
			c.onLayoutShift(e)
		case "resource":
			c.resources = append(c.resources, event.ResourceTiming{
				Name:            e.Name,
				EntryType:       e.EntryType,
				StartTime:       e.StartTime,
				Duration:        e.Duration,
				TransferSize:    e.TransferSize,
				EncodedBodySize: e.EncodedBodySize,
				DecodedBodySize: e.DecodedBodySize,
			})
		}
	}
}

// onLayoutShift runs the session-window accumulation. Shifts caused by
// recent user input do not count.
func (c *Capture) onLayoutShift(e browser.PerformanceEntry) {
	if e.HadRecentInput {
		return
	}
	c.clsObservedAt = true
	if !c.clsActive ||
		e.StartTime-c.clsLast > clsGapMS ||
		e.StartTime-c.clsStart > clsSpanMS {
		if c.clsValue > c.clsMax {
			c.clsMax = c.clsValue
		}
		c.clsActive = true
		c.clsValue = 0
		c.clsStart = e.StartTime
	}
	c.clsValue += e.Value
	c.clsLast = e.StartTime
	if c.clsValue > c.clsMax {
		c.clsMax = c.clsValue
	}
}

// onFirstInput measures delay from the host event timestamp to handler
// start; the first candidate to fire wins.
func (c *Capture) onFirstInput(ev *browser.DOMEvent) {
	delay := float64(time.Since(ev.Timestamp)) / float64(time.Millisecond)
	if delay < 0 {
		delay = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fidDone {
		return
	}
	c.fidDone = true
	c.fid = &delay
}

func copyPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

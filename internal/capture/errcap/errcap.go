// internal/capture/errcap/errcap.go
//
// Package errcap turns host error signals into error events: the global
// error handler, unhandled rejections, resource load failures, and
// failed fetch/XHR calls. Every hook follows the save-and-chain rule:
// the prior handler reference is kept, invoked first, and restored on
// uninstall.
package errcap

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/metrics"
)

// BufferCap bounds the capture-side buffer per session.
const BufferCap = 100

// Capture owns the error hooks and the per-session dedup set.
type Capture struct {
	win         browser.Window
	newEnvelope event.EnvelopeFunc
	log         zerolog.Logger
	metrics     *metrics.Metrics

	mu        sync.Mutex
	installed bool
	seen      map[string]struct{}
	buf       []*event.Event
	notify    func()

	savedOnError     browser.ErrorHandler
	savedOnRejection browser.RejectionHandler
	savedFetch       browser.TransportFunc
	savedXHR         browser.TransportFunc
	resourceHandle   browser.ListenerHandle
}

func New(win browser.Window, newEnvelope event.EnvelopeFunc, log zerolog.Logger, m *metrics.Metrics) *Capture {
	return &Capture{
		win:         win,
		newEnvelope: newEnvelope,
		log:         log,
		metrics:     m,
		seen:        map[string]struct{}{},
	}
}

// SetNotify registers a callback invoked after each buffered event, so
// the orchestrator can schedule its error flush without polling.
func (c *Capture) SetNotify(fn func()) {
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

// Install hooks every source. Idempotent.
func (c *Capture) Install() {
	c.mu.Lock()
	if c.installed {
		c.mu.Unlock()
		return
	}
	c.installed = true

	c.savedOnError = c.win.OnError()
	c.savedOnRejection = c.win.OnRejection()
	c.savedFetch = c.win.Fetch()
	c.savedXHR = c.win.XHR()
	prevErr, prevRej := c.savedOnError, c.savedOnRejection
	c.mu.Unlock()

	c.win.SetOnError(func(ev browser.ErrorEvent) {
		if prevErr != nil {
			prevErr(ev)
		}
		c.onError(ev)
	})
	c.win.SetOnRejection(func(reason any) {
		if prevRej != nil {
			prevRej(reason)
		}
		c.onRejection(reason)
	})

	// Capturing phase: resource error events do not bubble.
	c.resourceHandle = c.win.AddEventListener("error",
		browser.ListenerOptions{Capture: true, Passive: true}, c.onResourceError)

	c.win.SetFetch(c.wrapTransport(c.savedFetch))
	c.win.SetXHR(c.wrapTransport(c.savedXHR))
}

// Uninstall restores every saved reference, reverse order of install.
func (c *Capture) Uninstall() {
	c.mu.Lock()
	if !c.installed {
		c.mu.Unlock()
		return
	}
	c.installed = false
	fetch, xhr := c.savedFetch, c.savedXHR
	onErr, onRej := c.savedOnError, c.savedOnRejection
	handle := c.resourceHandle
	c.mu.Unlock()

	c.win.SetXHR(xhr)
	c.win.SetFetch(fetch)
	c.win.RemoveEventListener(handle)
	c.win.SetOnRejection(onRej)
	c.win.SetOnError(onErr)
}

// Drain returns buffered events and empties the buffer. The dedup set
// survives: a fingerprint seen once is suppressed for the session.
func (c *Capture) Drain() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.buf
	c.buf = nil
	return out
}

// CaptureException records an application-reported error. The severity
// override wins over derivation when non-empty.
func (c *Capture) CaptureException(err error, ctx map[string]any, sev event.Severity) {
	if err == nil {
		return
	}
	msg := err.Error()
	if sev == "" {
		sev = deriveSeverity(msg)
	}
	c.admit(&event.ErrorPayload{
		ErrorType: event.ErrorCustom,
		Message:   msg,
		Severity:  sev,
		Context:   ctx,
	})
}

// CaptureMessage records a plain message at the given severity (derived
// from the text when empty).
func (c *Capture) CaptureMessage(msg string, sev event.Severity, ctx map[string]any) {
	if sev == "" {
		sev = deriveSeverity(msg)
	}
	c.admit(&event.ErrorPayload{
		ErrorType: event.ErrorCustom,
		Message:   msg,
		Severity:  sev,
		Context:   ctx,
	})
}

// --- sources ---

func (c *Capture) onError(ev browser.ErrorEvent) {
	c.admit(&event.ErrorPayload{
		ErrorType:    event.ErrorJavaScript,
		Message:      ev.Message,
		StackTrace:   ev.Stack,
		FileName:     ev.FileName,
		LineNumber:   ev.Line,
		ColumnNumber: ev.Column,
		Severity:     deriveSeverity(ev.Message),
	})
}

// onRejection coerces the reason: an error contributes its message, a
// string is the message, anything else is JSON-stringified.
func (c *Capture) onRejection(reason any) {
	var msg, stack string
	switch r := reason.(type) {
	case error:
		msg = r.Error()
	case string:
		msg = r
	default:
		raw, err := json.Marshal(r)
		if err != nil {
			msg = fmt.Sprintf("%v", r)
		} else {
			msg = string(raw)
		}
	}
	if st, ok := reason.(interface{ StackTrace() string }); ok {
		stack = st.StackTrace()
	}
	c.admit(&event.ErrorPayload{
		ErrorType:  event.ErrorPromise,
		Message:    msg,
		StackTrace: stack,
		Severity:   event.SeverityHigh,
	})
}

// onResourceError handles failed loads of elements carrying src/href.
func (c *Capture) onResourceError(ev *browser.DOMEvent) {
	if ev.Target == nil || ev.Target.NodeType() != browser.ElementNode {
		return
	}
	src := ev.Target.Attr("src")
	if src == "" {
		src = ev.Target.Attr("href")
	}
	if src == "" {
		return
	}
	c.admit(&event.ErrorPayload{
		ErrorType: event.ErrorNetwork,
		Message:   fmt.Sprintf("failed to load resource <%s>: %s", ev.Target.TagName(), src),
		Severity:  event.SeverityMedium,
	})
}

// wrapTransport observes one transport slot. The original outcome is
// always re-delivered untouched.
func (c *Capture) wrapTransport(next browser.TransportFunc) browser.TransportFunc {
	return func(req *browser.Request) (*browser.Response, error) {
		start := time.Now()
		resp, err := next(req)
		durationMS := float64(time.Since(start)) / float64(time.Millisecond)

		switch {
		case err != nil:
			c.admit(&event.ErrorPayload{
				ErrorType: event.ErrorNetwork,
				Message:   fmt.Sprintf("network request failed: %s %s: %v", req.Method, req.URL, err),
				Severity:  event.SeverityHigh,
				Context:   networkContext(req, nil, durationMS),
			})
		case !resp.Ok():
			sev := event.SeverityMedium
			if resp.Status >= 500 {
				sev = event.SeverityHigh
			}
			c.admit(&event.ErrorPayload{
				ErrorType: event.ErrorNetwork,
				Message:   fmt.Sprintf("network request failed: %s %s: status %d", req.Method, req.URL, resp.Status),
				Severity:  sev,
				Context:   networkContext(req, resp, durationMS),
			})
		}
		return resp, err
	}
}

func networkContext(req *browser.Request, resp *browser.Response, durationMS float64) map[string]any {
	ctx := map[string]any{
		"url":      req.URL,
		"method":   req.Method,
		"duration": durationMS,
	}
	if len(req.Headers) > 0 {
		ctx["requestHeaders"] = req.Headers
	}
	if resp != nil {
		ctx["status"] = resp.Status
		if len(resp.Headers) > 0 {
			ctx["responseHeaders"] = resp.Headers
		}
	}
	return ctx
}

// --- admission ---

// admit redacts, fingerprints, dedupes, and buffers one payload.
func (c *Capture) admit(p *event.ErrorPayload) {
	p.Message = scrubMessage(p.Message)
	p.StackTrace = scrubStack(p.StackTrace)
	p.Context = scrubContext(p.Context)
	p.Fingerprint = fingerprint(p)

	c.mu.Lock()
	if _, dup := c.seen[p.Fingerprint]; dup {
		c.mu.Unlock()
		metrics.Add(&c.metrics.ErrorsDedupedTotal, 1)
		return
	}
	c.seen[p.Fingerprint] = struct{}{}

	if len(c.buf) >= BufferCap {
		c.buf = c.buf[1:]
		c.log.Warn().Msg("error buffer full, dropping oldest")
	}
	ev := &event.Event{Envelope: c.newEnvelope(event.TypeError), Error: p}
	c.buf = append(c.buf, ev)
	notify := c.notify
	c.mu.Unlock()

	metrics.Add(&c.metrics.EventsCapturedTotal, 1)
	if notify != nil {
		notify()
	}
}

// deriveSeverity maps message keywords to a severity, worst match first.
func deriveSeverity(msg string) event.Severity {
	m := strings.ToLower(msg)
	switch {
	case containsAny(m, "crash", "fatal", "critical", "security"):
		return event.SeverityCritical
	case containsAny(m, "error", "exception", "failed", "timeout"):
		return event.SeverityHigh
	case containsAny(m, "warning", "deprecated", "invalid"):
		return event.SeverityMedium
	}
	return event.SeverityLow
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// fingerprint hashes message:fileName:line:column into a stable short
// hex token. Pure function of content; equal inputs collide on purpose.
func fingerprint(p *event.ErrorPayload) string {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s:%s:%d:%d", p.Message, p.FileName, p.LineNumber, p.ColumnNumber)
	return fmt.Sprintf("%08x", h.Sum32())
}

// browser/memdom/memdom.go
//
// Package memdom is a complete in-memory implementation of the
// browser.Window boundary: a mutable document tree, dispatchable events,
// settable handler slots, observable mutations/intersections, a fake
// performance timeline, and recorded beacons. Tests script it to stand in
// for a page; the headless agent drives it to produce realistic traffic.
package memdom

import (
	"fmt"
	"sync"
	"time"

	"webmon-sdk/browser"
)

// Node is the memdom document node. All document mutation goes through
// Window methods so observers fire; tests build trees with NewElement and
// NewText before attaching them.
type Node struct {
	typ      browser.NodeType
	tag      string
	attrs    map[string]string
	parent   *Node
	children []*Node
	text     string
	value    string
}

// NewElement builds a detached element node.
func NewElement(tag string, attrs map[string]string, children ...*Node) *Node {
	n := &Node{typ: browser.ElementNode, tag: tag, attrs: map[string]string{}}
	for k, v := range attrs {
		n.attrs[k] = v
	}
	for _, c := range children {
		c.parent = n
		n.children = append(n.children, c)
	}
	return n
}

// NewText builds a detached text node.
func NewText(text string) *Node {
	return &Node{typ: browser.TextNode, text: text}
}

func (n *Node) NodeType() browser.NodeType { return n.typ }
func (n *Node) TagName() string            { return n.tag }
func (n *Node) Text() string               { return n.text }
func (n *Node) Value() string              { return n.value }

func (n *Node) Attr(name string) string { return n.attrs[name] }

func (n *Node) Attributes() map[string]string {
	out := make(map[string]string, len(n.attrs))
	for k, v := range n.attrs {
		out[k] = v
	}
	return out
}

func (n *Node) Parent() browser.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *Node) Children() []browser.Node {
	out := make([]browser.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// Options tunes the simulated host, mostly to exercise feature gates and
// storage fallbacks.
type Options struct {
	Location  string
	Doctype   string
	Navigator browser.Navigator
	Screen    browser.Screen
	ViewportW int
	ViewportH int

	SessionStore browser.Storage // nil: in-memory
	LocalStore   browser.Storage // nil: in-memory

	DisableMutationObservers     bool
	DisableIntersectionObservers bool
	DisablePerformanceObservers  bool
	DisableBeacon                bool
}

// Beacon is one recorded SendBeacon call.
type Beacon struct {
	URL  string
	Body []byte
}

type listenerEntry struct {
	handle browser.ListenerHandle
	typ    string
	opts   browser.ListenerOptions
	fn     browser.Listener
}

// Window implements browser.Window.
type Window struct {
	mu sync.Mutex

	opts       Options
	location   string
	visibility string
	document   *Node

	onError     browser.ErrorHandler
	onRejection browser.RejectionHandler
	fetch       browser.TransportFunc
	xhr         browser.TransportFunc
	history     *memHistory

	listeners  []listenerEntry
	nextHandle browser.ListenerHandle

	perf *memPerformance

	mutObservers []*memMutationObserver
	intObservers []*memIntersectionObserver

	beacons []Beacon

	sessionStore browser.Storage
	localStore   browser.Storage
}

// New builds a window around the given document element.
func New(document *Node, opts Options) *Window {
	if opts.Location == "" {
		opts.Location = "https://example.test/"
	}
	if opts.Doctype == "" {
		opts.Doctype = "html"
	}
	if opts.ViewportW == 0 {
		opts.ViewportW, opts.ViewportH = 1280, 800
	}
	w := &Window{
		opts:       opts,
		location:   opts.Location,
		visibility: "visible",
		document:   document,
		perf:       newMemPerformance(opts.DisablePerformanceObservers),
	}
	// Host defaults: network succeeds with an empty 200; tests override
	// the slots before installing captures to model other hosts.
	ok := func(*browser.Request) (*browser.Response, error) {
		return &browser.Response{Status: 200}, nil
	}
	w.fetch, w.xhr = ok, ok
	w.history = &memHistory{
		push:    func(_ any, _ string, url string) { w.setLocation(url) },
		replace: func(_ any, _ string, url string) { w.setLocation(url) },
	}
	w.sessionStore = opts.SessionStore
	if w.sessionStore == nil {
		w.sessionStore = NewMemStorage()
	}
	w.localStore = opts.LocalStore
	if w.localStore == nil {
		w.localStore = NewMemStorage()
	}
	return w
}

func (w *Window) setLocation(url string) {
	w.mu.Lock()
	w.location = url
	w.mu.Unlock()
}

// --- environment ---

func (w *Window) Location() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.location
}

func (w *Window) Doctype() string              { return w.opts.Doctype }
func (w *Window) Navigator() browser.Navigator { return w.opts.Navigator }
func (w *Window) Screen() browser.Screen       { return w.opts.Screen }
func (w *Window) ViewportSize() (int, int)     { return w.opts.ViewportW, w.opts.ViewportH }
func (w *Window) Document() browser.Node       { return w.document }

func (w *Window) VisibilityState() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.visibility
}

// --- handler slots ---

func (w *Window) OnError() browser.ErrorHandler {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onError
}

func (w *Window) SetOnError(h browser.ErrorHandler) {
	w.mu.Lock()
	w.onError = h
	w.mu.Unlock()
}

func (w *Window) OnRejection() browser.RejectionHandler {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.onRejection
}

func (w *Window) SetOnRejection(h browser.RejectionHandler) {
	w.mu.Lock()
	w.onRejection = h
	w.mu.Unlock()
}

func (w *Window) Fetch() browser.TransportFunc {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fetch
}

func (w *Window) SetFetch(fn browser.TransportFunc) {
	w.mu.Lock()
	w.fetch = fn
	w.mu.Unlock()
}

func (w *Window) XHR() browser.TransportFunc {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.xhr
}

func (w *Window) SetXHR(fn browser.TransportFunc) {
	w.mu.Lock()
	w.xhr = fn
	w.mu.Unlock()
}

func (w *Window) History() browser.History { return w.history }

type memHistory struct {
	mu      sync.Mutex
	push    browser.HistoryFunc
	replace browser.HistoryFunc
}

func (h *memHistory) PushState() browser.HistoryFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.push
}

func (h *memHistory) SetPushState(fn browser.HistoryFunc) {
	h.mu.Lock()
	h.push = fn
	h.mu.Unlock()
}

func (h *memHistory) ReplaceState() browser.HistoryFunc {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.replace
}

func (h *memHistory) SetReplaceState(fn browser.HistoryFunc) {
	h.mu.Lock()
	h.replace = fn
	h.mu.Unlock()
}

// --- listeners & dispatch ---

func (w *Window) AddEventListener(typ string, opts browser.ListenerOptions, fn browser.Listener) browser.ListenerHandle {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextHandle++
	h := w.nextHandle
	w.listeners = append(w.listeners, listenerEntry{handle: h, typ: typ, opts: opts, fn: fn})
	return h
}

func (w *Window) RemoveEventListener(h browser.ListenerHandle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.listeners {
		if e.handle == h {
			w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
			return
		}
	}
}

// ListenerCount reports registrations for one event type; "" counts all.
// Tests use it to prove stop() removes everything start() installed.
func (w *Window) ListenerCount(typ string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if typ == "" {
		return len(w.listeners)
	}
	n := 0
	for _, e := range w.listeners {
		if e.typ == typ {
			n++
		}
	}
	return n
}

// Dispatch delivers ev to every listener of its type, removing Once
// registrations afterwards. Dispatch is synchronous, like the host loop.
func (w *Window) Dispatch(ev *browser.DOMEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	w.mu.Lock()
	targets := make([]listenerEntry, 0, 4)
	kept := w.listeners[:0]
	for _, e := range w.listeners {
		if e.typ == ev.Type {
			targets = append(targets, e)
			if e.opts.Once {
				continue
			}
		}
		kept = append(kept, e)
	}
	w.listeners = kept
	w.mu.Unlock()

	for _, e := range targets {
		e.fn(ev)
	}
}

// DispatchError invokes the global error handler (if any).
func (w *Window) DispatchError(ev browser.ErrorEvent) {
	if h := w.OnError(); h != nil {
		h(ev)
	}
}

// DispatchRejection invokes the rejection handler (if any).
func (w *Window) DispatchRejection(reason any) {
	if h := w.OnRejection(); h != nil {
		h(reason)
	}
}

// SetVisibility flips the visibility state and fires visibilitychange.
func (w *Window) SetVisibility(state string) {
	w.mu.Lock()
	w.visibility = state
	w.mu.Unlock()
	w.Dispatch(&browser.DOMEvent{Type: "visibilitychange", VisibilityState: state})
}

// PopState simulates a back/forward navigation.
func (w *Window) PopState(url string) {
	w.setLocation(url)
	w.Dispatch(&browser.DOMEvent{Type: "popstate"})
}

// GoOnline fires the network-online event.
func (w *Window) GoOnline() {
	w.Dispatch(&browser.DOMEvent{Type: "online"})
}

// --- beacon ---

func (w *Window) SendBeacon(url string, body []byte) bool {
	if w.opts.DisableBeacon {
		return false
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	w.mu.Lock()
	w.beacons = append(w.beacons, Beacon{URL: url, Body: cp})
	w.mu.Unlock()
	return true
}

// Beacons returns the recorded beacon calls.
func (w *Window) Beacons() []Beacon {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Beacon, len(w.beacons))
	copy(out, w.beacons)
	return out
}

// --- storage ---

func (w *Window) SessionStorage() browser.Storage { return w.sessionStore }
func (w *Window) LocalStorage() browser.Storage   { return w.localStore }

// MemStorage is a plain map-backed browser.Storage.
type MemStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemStorage() *MemStorage {
	return &MemStorage{m: map[string]string{}}
}

func (s *MemStorage) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemStorage) Set(key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

func (s *MemStorage) Remove(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// FailingStorage always errors; tests use it to force the in-memory
// fallback path.
type FailingStorage struct{}

func (FailingStorage) Get(string) (string, bool) { return "", false }
func (FailingStorage) Set(string, string) error  { return fmt.Errorf("storage unavailable") }
func (FailingStorage) Remove(string)             {}

// browser/browser.go
//
// Package browser defines the host-runtime boundary the SDK core consumes:
// the document, the global handler slots, the wrappable transport
// functions, event listeners, the performance timeline, and the
// mutation/intersection observers. A real embedding (wasm bridge,
// devtools protocol, extension) implements Window; browser/memdom is the
// in-memory implementation used by tests and the headless agent.
//
// Handler slots are get/set pairs on purpose: the save-and-chain
// discipline requires reading the prior reference, installing a wrapper
// that invokes it first, and restoring it on shutdown.
package browser

import "time"

// NodeType discriminates document tree nodes.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
)

// Node is a read-only view of one document node. The SDK never mutates
// the document; it only serializes and addresses it.
type Node interface {
	NodeType() NodeType

	// Element accessors. TagName is lower-case; Attributes returns a copy.
	TagName() string
	Attributes() map[string]string
	Attr(name string) string
	Parent() Node
	Children() []Node

	// Text returns the text content of a text node.
	Text() string

	// Value returns the live value of form elements, empty otherwise.
	Value() string
}

// ID and ClassList are derived from attributes; helpers so call sites do
// not re-split class strings everywhere.
func NodeID(n Node) string { return n.Attr("id") }

// DOMEvent is the single event bag delivered to listeners, JS-style:
// fields are populated per event type and zero otherwise.
type DOMEvent struct {
	Type      string
	Target    Node
	Timestamp time.Time

	// input/change
	Value string

	// click / pointer events
	X, Y int

	// scroll
	ScrollX, ScrollY int

	// resize
	Width, Height int

	// visibilitychange
	VisibilityState string
}

// Listener receives DOM events. Handlers installed by the SDK must never
// let a panic escape into the host's dispatch.
type Listener func(*DOMEvent)

// ListenerOptions mirror addEventListener options.
type ListenerOptions struct {
	Capture bool
	Passive bool
	Once    bool
}

// ListenerHandle identifies one registration for removal (Go funcs are
// not comparable, so removal is handle-based).
type ListenerHandle int

// ErrorEvent is the payload of the global error handler.
type ErrorEvent struct {
	Message  string
	FileName string
	Line     int
	Column   int
	Stack    string
}

type ErrorHandler func(ErrorEvent)

// RejectionHandler receives the rejection reason as the host produced it:
// an error, a string, or any other value.
type RejectionHandler func(reason any)

// Request / Response model the host's network calls crossing the
// wrappable transport slots (the fetch and XHR analogs).
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
}

type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// Ok reports whether the status is 2xx.
func (r *Response) Ok() bool { return r != nil && r.Status >= 200 && r.Status < 300 }

// TransportFunc is the shape of both transport slots. Wrappers must
// re-deliver the original outcome (response and error untouched) after
// recording.
type TransportFunc func(*Request) (*Response, error)

// HistoryFunc is the shape of pushState/replaceState.
type HistoryFunc func(state any, title, url string)

// History exposes the two wrappable history methods.
type History interface {
	PushState() HistoryFunc
	SetPushState(HistoryFunc)
	ReplaceState() HistoryFunc
	SetReplaceState(HistoryFunc)
}

// NavigationTiming is the one-shot navigation entry, in ms since
// navigationStart's epoch.
type NavigationTiming struct {
	NavigationStart          float64
	RequestStart             float64
	ResponseStart            float64
	DOMContentLoadedEventEnd float64
	LoadEventEnd             float64
}

// PerformanceEntry is the union of timeline entry shapes the SDK
// observes; fields beyond the common four are entry-type specific.
type PerformanceEntry struct {
	Name      string
	EntryType string // paint | largest-contentful-paint | layout-shift | first-input | resource
	StartTime float64
	Duration  float64

	// layout-shift
	Value          float64
	HadRecentInput bool

	// first-input
	ProcessingStart float64

	// resource
	TransferSize    int64
	EncodedBodySize int64
	DecodedBodySize int64
}

// PerformanceObserver is the handle returned by Performance.Observe.
type PerformanceObserver interface {
	Disconnect()
}

// Performance is the host timing API surface.
type Performance interface {
	// Timing returns the navigation entry once it is complete.
	Timing() (NavigationTiming, bool)

	// Observe streams entries of the given types. Returns an error when
	// the host cannot observe those types (feature gate).
	Observe(entryTypes []string, fn func([]PerformanceEntry)) (PerformanceObserver, error)

	// Now is the high-resolution clock in ms.
	Now() float64

	// Mark and Measure delegate to the host timing API. Measure returns
	// the measured duration in ms.
	Mark(name string)
	Measure(name, startMark, endMark string) (float64, error)
}

// MutationRecord mirrors one observed DOM mutation.
type MutationRecord struct {
	Kind          string // childList | attributes | characterData
	Target        Node
	Added         []Node
	Removed       []Node
	AttributeName string
	OldValue      string
}

// MutationObserverInit mirrors the observe options.
type MutationObserverInit struct {
	ChildList             bool
	Subtree               bool
	Attributes            bool
	AttributeOldValue     bool
	CharacterData         bool
	CharacterDataOldValue bool
}

type MutationObserver interface {
	Observe(target Node, opts MutationObserverInit) error
	Disconnect()
}

// IntersectionEntry reports a visibility change for an observed element.
type IntersectionEntry struct {
	Target            Node
	IsIntersecting    bool
	IntersectionRatio float64
}

type IntersectionObserver interface {
	Observe(target Node)
	Disconnect()
}

// Navigator is the static environment description.
type Navigator struct {
	UserAgent  string
	Platform   string
	Language   string
	Timezone   string
	Connection string
}

// Screen describes the display.
type Screen struct {
	Width  int
	Height int
}

// Storage is the key/value interface of the two host stores
// (session-scoped and browser-persistent). Implementations may fail
// (quota, unavailability); callers fall back to memory.
type Storage interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Remove(key string)
}

// Window is the full host boundary.
type Window interface {
	// Environment.
	Location() string
	Doctype() string
	Navigator() Navigator
	Screen() Screen
	ViewportSize() (w, h int)
	VisibilityState() string // "visible" | "hidden"
	Document() Node

	// Global handler slots (save-and-chain points).
	OnError() ErrorHandler
	SetOnError(ErrorHandler)
	OnRejection() RejectionHandler
	SetOnRejection(RejectionHandler)

	// Wrappable transports.
	Fetch() TransportFunc
	SetFetch(TransportFunc)
	XHR() TransportFunc
	SetXHR(TransportFunc)

	History() History

	// Listeners.
	AddEventListener(typ string, opts ListenerOptions, fn Listener) ListenerHandle
	RemoveEventListener(h ListenerHandle)

	// Timing and observers.
	Performance() Performance
	NewMutationObserver(fn func([]MutationRecord)) (MutationObserver, error)
	NewIntersectionObserver(fn func([]IntersectionEntry)) (IntersectionObserver, error)

	// Unload-safe delivery channel. Returns false when the host refuses
	// the beacon or the API is unavailable.
	SendBeacon(url string, body []byte) bool

	// Host stores.
	SessionStorage() Storage
	LocalStorage() Storage
}

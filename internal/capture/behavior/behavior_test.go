// internal/capture/behavior/behavior_test.go
package behavior

import (
	"fmt"
	"testing"
	"time"

	"webmon-sdk/browser"
	"webmon-sdk/browser/memdom"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/logger"
	"webmon-sdk/internal/metrics"
)

func testEnvelope(t event.Type) event.Envelope {
	return event.Envelope{EventID: "id", SessionID: "sess-1", Timestamp: event.NowMS(), Type: t}
}

func newCapture(win *memdom.Window, opts Options) *Capture {
	// Short windows so tests finish quickly.
	if opts.ScrollThrottle == 0 {
		opts.ScrollThrottle = 20 * time.Millisecond
	}
	if opts.InputDebounce == 0 {
		opts.InputDebounce = 20 * time.Millisecond
	}
	if opts.ResizeThrottle == 0 {
		opts.ResizeThrottle = 20 * time.Millisecond
	}
	if opts.MousemoveThrottle == 0 {
		opts.MousemoveThrottle = 20 * time.Millisecond
	}
	return New(win, opts, testEnvelope, logger.Nop(), metrics.New())
}

func TestClickRecordsCSSPathAndCoordinates(t *testing.T) {
	btn := memdom.NewElement("button", map[string]string{"id": "go"})
	doc := memdom.NewElement("html", nil, memdom.NewElement("body", nil, btn))
	win := memdom.New(doc, memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	win.Dispatch(&browser.DOMEvent{Type: "click", Target: btn, X: 15, Y: 30})

	got := c.Drain()
	if len(got) != 1 {
		t.Fatalf("captured %d events, want 1", len(got))
	}
	p := got[0].Behavior
	if p.Action != event.ActionClick || p.Target != "button#go" {
		t.Fatalf("payload = %+v", p)
	}
	if p.Coordinates == nil || p.Coordinates.X != 15 || p.Coordinates.Y != 30 {
		t.Fatalf("coordinates = %+v", p.Coordinates)
	}
}

func TestScrollThrottleLeadingEdge(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	for i := 0; i < 10; i++ {
		win.Dispatch(&browser.DOMEvent{Type: "scroll", ScrollY: i * 100})
	}
	if got := c.Drain(); len(got) != 1 {
		t.Fatalf("burst produced %d scroll events, want 1", len(got))
	}

	time.Sleep(30 * time.Millisecond)
	win.Dispatch(&browser.DOMEvent{Type: "scroll", ScrollY: 2000})
	if got := c.Drain(); len(got) != 1 {
		t.Fatalf("post-interval scroll produced %d events, want 1", len(got))
	}
}

func TestInputDebounceCoalescesBurst(t *testing.T) {
	input := memdom.NewElement("input", map[string]string{"type": "text", "name": "comment"})
	win := memdom.New(memdom.NewElement("html", nil, input), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	for _, v := range []string{"h", "he", "hel", "hello"} {
		win.Dispatch(&browser.DOMEvent{Type: "input", Target: input, Value: v})
	}
	if got := c.Drain(); len(got) != 0 {
		t.Fatalf("debounce leaked %d events before quiet period", len(got))
	}

	time.Sleep(50 * time.Millisecond)
	got := c.Drain()
	if len(got) != 1 {
		t.Fatalf("captured %d input events, want 1", len(got))
	}
	summary := got[0].Behavior.Value.(map[string]any)
	if summary["length"] != 5 || summary["isEmpty"] != false || summary["hasValue"] != true {
		t.Fatalf("summary = %+v", summary)
	}
}

func TestSensitiveInputMasked(t *testing.T) {
	cases := []map[string]string{
		{"type": "password"},
		{"type": "email"},
		{"type": "text", "name": "creditCard"},
		{"type": "text", "id": "user-phone"},
		{"type": "text", "name": "userEmail"},
	}
	for _, attrs := range cases {
		input := memdom.NewElement("input", attrs)
		win := memdom.New(memdom.NewElement("html", nil, input), memdom.Options{})
		c := newCapture(win, Options{InputDebounce: 5 * time.Millisecond})
		c.Install()

		win.Dispatch(&browser.DOMEvent{Type: "input", Target: input, Value: "4111 1111 1111 1111"})
		time.Sleep(20 * time.Millisecond)

		got := c.Drain()
		if len(got) != 1 {
			t.Fatalf("%v: captured %d events", attrs, len(got))
		}
		if got[0].Behavior.Value != MaskedValue {
			t.Fatalf("%v: value = %v, want %q", attrs, got[0].Behavior.Value, MaskedValue)
		}
		c.Uninstall()
	}
}

func TestChangeEmitsImmediatelyWithMasking(t *testing.T) {
	sel := memdom.NewElement("input", map[string]string{"type": "text", "name": "ssn-field"})
	win := memdom.New(memdom.NewElement("html", nil, sel), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	win.Dispatch(&browser.DOMEvent{Type: "change", Target: sel, Value: "123-45-6789"})

	got := c.Drain()
	if len(got) != 1 || got[0].Behavior.Action != event.ActionChange {
		t.Fatalf("got %+v", got)
	}
	if got[0].Behavior.Value != MaskedValue {
		t.Fatalf("value = %v", got[0].Behavior.Value)
	}
}

func TestHistoryWrapEmitsNavigateThenDelegates(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	win.History().PushState()(nil, "", "https://example.test/checkout?step=2#pay")

	if loc := win.Location(); loc != "https://example.test/checkout?step=2#pay" {
		t.Fatalf("delegation lost: location = %q", loc)
	}
	got := c.Drain()
	if len(got) != 1 || got[0].Behavior.Action != event.ActionNavigate {
		t.Fatalf("got %+v", got)
	}
	v := got[0].Behavior.Value.(map[string]any)
	if v["path"] != "/checkout" || v["search"] != "step=2" || v["hash"] != "pay" {
		t.Fatalf("navigate value = %+v", v)
	}

	// Revert on uninstall: pushState still navigates, nothing captured.
	c.Uninstall()
	win.History().PushState()(nil, "", "https://example.test/done")
	if win.Location() != "https://example.test/done" {
		t.Fatal("original pushState not restored")
	}
	if len(c.Drain()) != 0 {
		t.Fatal("wrap still active after uninstall")
	}
}

func TestPopStateEmitsNavigate(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	win.PopState("https://example.test/back")

	got := c.Drain()
	if len(got) != 1 || got[0].Behavior.Action != event.ActionNavigate {
		t.Fatalf("got %+v", got)
	}
	if got[0].Behavior.Value.(map[string]any)["url"] != "https://example.test/back" {
		t.Fatalf("value = %+v", got[0].Behavior.Value)
	}
}

func TestMousemoveIsOptIn(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()
	win.Dispatch(&browser.DOMEvent{Type: "mousemove", X: 1, Y: 1})
	if len(c.Drain()) != 0 {
		t.Fatal("mousemove captured without opt-in")
	}
	c.Uninstall()

	c = newCapture(win, Options{CaptureMousemove: true})
	c.Install()
	win.Dispatch(&browser.DOMEvent{Type: "mousemove", X: 1, Y: 1})
	if len(c.Drain()) != 1 {
		t.Fatal("opted-in mousemove not captured")
	}
}

func TestVisibilityChangeCaptured(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	win.SetVisibility("hidden")

	got := c.Drain()
	if len(got) != 1 || got[0].Behavior.Action != event.ActionVisibility || got[0].Behavior.Value != "hidden" {
		t.Fatalf("got %+v", got)
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	for i := 0; i < BufferCap+20; i++ {
		win.Dispatch(&browser.DOMEvent{Type: "click", X: i})
	}
	got := c.Drain()
	if len(got) != BufferCap {
		t.Fatalf("buffer held %d, want %d", len(got), BufferCap)
	}
	last := got[len(got)-1].Behavior
	if last.Coordinates.X != BufferCap+19 {
		t.Fatalf("newest click evicted: %+v", last.Coordinates)
	}
}

func TestUninstallRemovesAllListeners(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{CaptureMousemove: true})
	c.Install()
	if n := win.ListenerCount(""); n == 0 {
		t.Fatal("no listeners installed")
	}
	c.Uninstall()
	if n := win.ListenerCount(""); n != 0 {
		t.Fatalf("%d listeners left after uninstall", n)
	}
}

func TestNestedTargetPath(t *testing.T) {
	item2 := memdom.NewElement("li", map[string]string{"class": "item active"})
	list := memdom.NewElement("ul", nil,
		memdom.NewElement("li", nil), item2, memdom.NewElement("li", nil))
	doc := memdom.NewElement("html", nil, memdom.NewElement("body", nil, list))
	win := memdom.New(doc, memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	win.Dispatch(&browser.DOMEvent{Type: "click", Target: item2})

	got := c.Drain()
	want := "html > body > ul > li.item.active:nth-child(2)"
	if got[0].Behavior.Target != want {
		t.Fatalf("target = %q, want %q", got[0].Behavior.Target, want)
	}
}

func TestDistinctClicksAllCaptured(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win, Options{})
	c.Install()

	for i := 0; i < 5; i++ {
		win.Dispatch(&browser.DOMEvent{Type: "click", X: i * 10, Y: i * 10})
	}
	if got := c.Drain(); len(got) != 5 {
		t.Fatalf("captured %d clicks, want 5 (%s)", len(got), fmt.Sprint(got))
	}
}

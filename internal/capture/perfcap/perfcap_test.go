// internal/capture/perfcap/perfcap_test.go
package perfcap

import (
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

func newCapture(win *memdom.Window) *Capture {
	return New(win, testEnvelope, logger.Nop(), metrics.New())
}

func shift(at, value float64) browser.PerformanceEntry {
	return browser.PerformanceEntry{EntryType: "layout-shift", StartTime: at, Value: value}
}

func TestNavigationTimingFormulas(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	win.SetTiming(browser.NavigationTiming{
		NavigationStart:          100,
		RequestStart:             120,
		ResponseStart:            180,
		DOMContentLoadedEventEnd: 900,
		LoadEventEnd:             1500,
	})
	c := newCapture(win)
	c.Install()

	ev := c.Collect()
	if ev == nil {
		t.Fatal("no event with navigation timing present")
	}
	m := ev.Performance.Metrics
	if m.PageLoadTime != 1400 {
		t.Fatalf("pageLoadTime = %v, want 1400", m.PageLoadTime)
	}
	if m.DOMReadyTime != 800 {
		t.Fatalf("domReadyTime = %v, want 800", m.DOMReadyTime)
	}
	if m.ResourceLoadTime != 600 {
		t.Fatalf("resourceLoadTime = %v, want 600", m.ResourceLoadTime)
	}
	if m.TTFB == nil || *m.TTFB != 60 {
		t.Fatalf("ttfb = %v, want 60", m.TTFB)
	}
}

func TestCollectNilBeforeAnyData(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()
	if ev := c.Collect(); ev != nil {
		t.Fatalf("Collect with no data = %+v", ev)
	}
}

func TestPaintAndLCPStreams(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()

	win.EmitPerformanceEntries(
		browser.PerformanceEntry{EntryType: "paint", Name: "first-paint", StartTime: 80},
		browser.PerformanceEntry{EntryType: "paint", Name: "first-contentful-paint", StartTime: 120},
		browser.PerformanceEntry{EntryType: "largest-contentful-paint", StartTime: 400},
		browser.PerformanceEntry{EntryType: "largest-contentful-paint", StartTime: 950},
	)

	m := c.Collect().Performance.Metrics
	if m.FCP == nil || *m.FCP != 120 {
		t.Fatalf("fcp = %v, want 120", m.FCP)
	}
	if m.LCP == nil || *m.LCP != 950 {
		t.Fatalf("lcp = %v, want 950 (latest entry wins)", m.LCP)
	}
}

func TestCLSSessionWindow(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()

	// 0.1 at t=0 and 0.1 at t=900 share a session (gap < 1s);
	// 0.2 at t=2200 starts a new one. Max session value is 0.2.
	win.EmitPerformanceEntries(shift(0, 0.1), shift(900, 0.1), shift(2200, 0.2))

	m := c.Collect().Performance.Metrics
	if m.CLS == nil || *m.CLS != 0.2 {
		t.Fatalf("cls = %v, want 0.2", m.CLS)
	}
}

func TestCLSSpanLimitSplitsSession(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()

	// Steady shifts every 900ms: the 5s span limit forces a split even
	// though no gap exceeds 1s.
	for i := 0; i < 8; i++ {
		win.EmitPerformanceEntries(shift(float64(i)*900, 0.05))
	}

	m := c.Collect().Performance.Metrics
	// First session covers t=0..4500 (six shifts, 0.30); the rest start over.
	if m.CLS == nil || *m.CLS < 0.299 || *m.CLS > 0.301 {
		t.Fatalf("cls = %v, want 0.30", m.CLS)
	}
}

func TestCLSIgnoresShiftsWithRecentInput(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()

	win.EmitPerformanceEntries(browser.PerformanceEntry{
		EntryType: "layout-shift", StartTime: 100, Value: 0.5, HadRecentInput: true,
	})
	if ev := c.Collect(); ev != nil && ev.Performance.Metrics.CLS != nil {
		t.Fatalf("cls = %v from input-caused shift", *ev.Performance.Metrics.CLS)
	}
}

func TestFirstInputDelayCapturedOnce(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()

	win.Dispatch(&browser.DOMEvent{Type: "keydown", Timestamp: time.Now().Add(-30 * time.Millisecond)})
	win.Dispatch(&browser.DOMEvent{Type: "mousedown", Timestamp: time.Now().Add(-500 * time.Millisecond)})

	m := c.Collect().Performance.Metrics
	if m.FID == nil {
		t.Fatal("fid not captured")
	}
	if *m.FID < 25 || *m.FID > 200 {
		t.Fatalf("fid = %v, want ~30ms from the first event only", *m.FID)
	}
}

func TestResourcesClearedPerCycle(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	win.SetTiming(browser.NavigationTiming{LoadEventEnd: 1})
	c := newCapture(win)
	c.Install()

	win.EmitPerformanceEntries(browser.PerformanceEntry{
		EntryType: "resource", Name: "/app.js", StartTime: 10, Duration: 40, TransferSize: 1234,
	})

	first := c.Collect()
	if len(first.Performance.Resources) != 1 || first.Performance.Resources[0].Name != "/app.js" {
		t.Fatalf("resources = %+v", first.Performance.Resources)
	}
	second := c.Collect()
	if len(second.Performance.Resources) != 0 {
		t.Fatal("resources not cleared between cycles")
	}
}

func TestMarkMeasureFeedCustomMetrics(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()

	c.Mark("checkout-start")
	d, err := c.Measure("checkout", "checkout-start", "")
	if err != nil {
		t.Fatalf("Measure: %v", err)
	}
	if d < 0 {
		t.Fatalf("duration = %v", d)
	}
	if _, err := c.Measure("broken", "no-such-mark", ""); err == nil {
		t.Fatal("unknown mark accepted")
	}

	m := c.Collect().Performance.Metrics
	if _, ok := m.CustomMetrics["checkout"]; !ok {
		t.Fatalf("customMetrics = %+v", m.CustomMetrics)
	}
	if _, ok := m.CustomMetrics["broken"]; ok {
		t.Fatal("failed measure stored")
	}
}

func TestUninstallDisconnectsEverything(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{})
	c := newCapture(win)
	c.Install()
	if win.ListenerCount("keydown") != 1 {
		t.Fatal("first-input listener missing")
	}
	c.Uninstall()
	if win.ListenerCount("") != 0 {
		t.Fatalf("%d listeners left after uninstall", win.ListenerCount(""))
	}

	win.EmitPerformanceEntries(shift(10, 0.4))
	if ev := c.Collect(); ev != nil && ev.Performance.Metrics.CLS != nil {
		t.Fatal("observer still connected after uninstall")
	}
}

func TestObserverGateDegradesGracefully(t *testing.T) {
	win := memdom.New(memdom.NewElement("html", nil), memdom.Options{DisablePerformanceObservers: true})
	win.SetTiming(browser.NavigationTiming{NavigationStart: 0, LoadEventEnd: 700})
	c := newCapture(win)
	c.Install()

	ev := c.Collect()
	if ev == nil {
		t.Fatal("navigation timing lost without observers")
	}
	if ev.Performance.Metrics.PageLoadTime != 700 {
		t.Fatalf("pageLoadTime = %v", ev.Performance.Metrics.PageLoadTime)
	}
}

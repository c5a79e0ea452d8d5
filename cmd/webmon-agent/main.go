// cmd/webmon-agent/main.go
//
// webmon-agent drives the SDK through a scripted page session against a
// running collector: page load timing, interactions, a navigation, an
// error burst, custom metrics, and a short replay recording. Its local
// store is SQLite, so delivery failures spill to disk and replay on the
// next run: point it at a stopped collector once, restart both, and
// watch the spilled batch arrive.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"

	"webmon-sdk/browser"
	"webmon-sdk/browser/memdom"
	"webmon-sdk/internal/sampler"
	"webmon-sdk/internal/storage"
	"webmon-sdk/monitor"
)

func main() {
	v := viper.New()
	v.SetEnvPrefix("WEBMON")
	v.AutomaticEnv()
	v.SetDefault("endpoint", "http://127.0.0.1:8787/collect")
	v.SetDefault("app_id", "demo-app")
	v.SetDefault("api_key", "dev-key")
	v.SetDefault("environment", "development")
	v.SetDefault("debug", true)
	v.SetDefault("store_path", "webmon-agent.db")

	store, err := storage.OpenSQLite(v.GetString("store_path"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	win := buildPage(store)

	cfg := monitor.NewConfig(v.GetString("app_id"), v.GetString("api_key"), v.GetString("endpoint"))
	cfg.Debug = v.GetBool("debug")
	cfg.Environment = v.GetString("environment")
	cfg.Features.Replay = true
	// Demo traffic is tiny; admit everything so every run is visible.
	cfg.Sampling = sampler.Rates{Performance: 1, Errors: 1, Behavior: 1, Replay: 1}
	cfg.Reporting.FlushInterval = 2 * time.Second
	cfg.Reporting.Compress = true

	m, err := monitor.New(cfg, win)
	if err != nil {
		fmt.Fprintf(os.Stderr, "monitor: %v\n", err)
		os.Exit(1)
	}

	m.On(monitor.EventTrack, func(payload any) {
		fmt.Printf("tracked: %v\n", payload)
	})

	m.Start()
	m.SetUser("demo-user", map[string]any{"plan": "trial"})

	runSession(m, win)

	if err := m.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v (spilled for next run)\n", err)
	}
	m.Stop()

	status, _ := json.MarshalIndent(m.GetStatus(), "", "  ")
	fmt.Printf("final status:\n%s\n", status)
}

// buildPage assembles the demo document: a form with a sensitive field,
// a product list, and an image for the intersection stream.
func buildPage(local browser.Storage) *memdom.Window {
	doc := memdom.NewElement("html", nil,
		memdom.NewElement("body", nil,
			memdom.NewElement("form", map[string]string{"id": "signup"},
				memdom.NewElement("input", map[string]string{"type": "text", "name": "username"}),
				memdom.NewElement("input", map[string]string{"type": "password", "name": "password"}),
				memdom.NewElement("button", map[string]string{"id": "submit"}),
			),
			memdom.NewElement("ul", map[string]string{"class": "products"},
				memdom.NewElement("li", map[string]string{"class": "item"}),
				memdom.NewElement("li", map[string]string{"class": "item"}),
			),
			memdom.NewElement("img", map[string]string{"src": "/hero.png"}),
		))

	return memdom.New(doc, memdom.Options{
		Location: "https://demo.webmon.test/landing",
		Navigator: browser.Navigator{
			UserAgent: "webmon-agent/" + monitor.Version,
			Platform:  "linux",
			Language:  "en-US",
			Timezone:  "UTC",
		},
		Screen:     browser.Screen{Width: 1920, Height: 1080},
		ViewportW:  1280,
		ViewportH:  800,
		LocalStore: local,
	})
}

// runSession scripts one visit end to end.
func runSession(m *monitor.Monitor, win *memdom.Window) {
	// Page load finishes 1.4s after navigation start.
	win.SetTiming(browser.NavigationTiming{
		NavigationStart:          0,
		RequestStart:             20,
		ResponseStart:            80,
		DOMContentLoadedEventEnd: 600,
		LoadEventEnd:             1400,
	})
	win.EmitPerformanceEntries(
		browser.PerformanceEntry{EntryType: "paint", Name: "first-contentful-paint", StartTime: 320},
		browser.PerformanceEntry{EntryType: "largest-contentful-paint", StartTime: 900},
		browser.PerformanceEntry{EntryType: "layout-shift", Value: 0.04, StartTime: 500},
		browser.PerformanceEntry{EntryType: "resource", Name: "/hero.png", StartTime: 100, Duration: 220, TransferSize: 48_000},
	)

	doc := win.Document().(*memdom.Node)
	body := doc.Children()[0].(*memdom.Node)
	form := body.Children()[0].(*memdom.Node)
	username := form.Children()[0].(*memdom.Node)
	password := form.Children()[1].(*memdom.Node)
	submit := form.Children()[2].(*memdom.Node)
	img := body.Children()[2].(*memdom.Node)

	// First input (feeds FID), then a short interaction burst.
	win.Dispatch(&browser.DOMEvent{Type: "pointerdown", Target: submit})
	win.SetInputValue(username, "demo")
	win.SetInputValue(password, "hunter2") // masked end to end
	win.Dispatch(&browser.DOMEvent{Type: "click", Target: submit, X: 640, Y: 410})
	win.Dispatch(&browser.DOMEvent{Type: "scroll", ScrollY: 600})
	win.EmitIntersection(img, true, 1.0)

	// DOM churn for the replay recorder.
	banner := memdom.NewElement("div", map[string]string{"class": "banner"})
	win.AppendChild(body, banner)
	win.SetAttr(banner, "data-state", "visible")

	// SPA navigation through the wrapped history.
	win.History().PushState()(nil, "", "https://demo.webmon.test/checkout?step=1")

	// Custom timing around a simulated checkout computation.
	m.Mark("checkout:start")
	time.Sleep(30 * time.Millisecond)
	m.Mark("checkout:end")
	if _, err := m.Measure("checkout", "checkout:start", "checkout:end"); err != nil {
		fmt.Fprintf(os.Stderr, "measure: %v\n", err)
	}

	// Error burst: a duplicate, a rejection, and a failing resource.
	win.DispatchError(browser.ErrorEvent{Message: "payment error: card declined", FileName: "checkout.js", Line: 42, Column: 7})
	win.DispatchError(browser.ErrorEvent{Message: "payment error: card declined", FileName: "checkout.js", Line: 42, Column: 7})
	win.DispatchRejection(fmt.Errorf("inventory lookup timeout"))
	m.CaptureMessage("applying fallback inventory", "low", map[string]any{"source": "cache"})

	m.Track("checkout_complete", map[string]any{"total": 129.90, "items": 2})

	// Let the debounced error flush and one interval tick run.
	time.Sleep(2500 * time.Millisecond)
	m.StopReplay()
}

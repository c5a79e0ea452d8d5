// monitor/monitor.go
//
// Package monitor is the public SDK surface: it wires the capture
// components, the sampler, the bounded queue, and the transport into
// one lifecycle, and exposes the application-facing API (track,
// capture, replay control, flush, plugins, bus).
//
// The flush policy distinguishes urgency: error admissions schedule a
// debounced near-immediate flush, everything else a throttled one, and
// an interval tick collects and ships whatever accumulated. Protocol
// violations (start twice, calls before start, duplicate plugin) warn
// and no-op; only configuration errors refuse construction.
package monitor

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"webmon-sdk/browser"
	"webmon-sdk/internal/capture/behavior"
	"webmon-sdk/internal/capture/errcap"
	"webmon-sdk/internal/capture/perfcap"
	"webmon-sdk/internal/event"
	"webmon-sdk/internal/logger"
	"webmon-sdk/internal/metrics"
	"webmon-sdk/internal/queue"
	"webmon-sdk/internal/replay"
	"webmon-sdk/internal/sampler"
	"webmon-sdk/internal/storage"
	"webmon-sdk/internal/transport"
)

// Version is reported in every batch and beacon.
const Version = "1.3.0"

// Flush policy delays.
const (
	DefaultFlushInterval = 5 * time.Second

	// errorFlushDelay is the trailing debounce after an error admission:
	// a burst of errors (and whatever else is queued) ships as one batch.
	errorFlushDelay = 1 * time.Second

	// throttleFlushDelay is the minimum spacing between flushes driven by
	// non-error admissions.
	throttleFlushDelay = 5 * time.Second
)

// Monitor is one SDK instance bound to one host window.
type Monitor struct {
	cfg     Config
	win     browser.Window
	log     zerolog.Logger
	metrics *metrics.Metrics

	sessionKV *storage.KV
	localKV   *storage.KV
	spill     *storage.Spill
	queue     *queue.Queue
	sampler   *sampler.Sampler
	sender    *transport.Sender
	beacon    *transport.Beacon

	errors   *errcap.Capture
	perf     *perfcap.Capture
	behavior *behavior.Capture
	replay   *replay.Recorder

	bus       *bus
	sessionID string

	mu            sync.Mutex
	started       bool
	userID        string
	plugins       map[string]Plugin
	pluginOrder   []string
	lastFlush     time.Time
	errorTimer    *time.Timer
	throttleTimer *time.Timer
	handles       []browser.ListenerHandle
	done          chan struct{}

	wg sync.WaitGroup
}

// New constructs a monitor over the given host window. The transport
// reference is taken here, before any wrapping, so the SDK's own
// delivery traffic is never captured as network errors. Construction is
// passive: nothing is hooked until Start.
func New(cfg Config, win browser.Window) (*Monitor, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(cfg.AppID, cfg.Environment, cfg.Debug)
	m := &Monitor{
		cfg:     cfg,
		win:     win,
		log:     log,
		metrics: metrics.New(),
		plugins: map[string]Plugin{},
	}

	m.sessionKV = storage.NewKV(win.SessionStorage(), cfg.AppID, log.With().Str("component", "storage").Logger())
	m.localKV = storage.NewKV(win.LocalStorage(), cfg.AppID, log.With().Str("component", "storage").Logger())
	m.sessionID = storage.SessionID(m.sessionKV)
	if uid, ok := m.localKV.Get(storage.KeyUserID); ok {
		m.userID = uid
	}

	m.spill = storage.NewSpill(m.localKV, log.With().Str("component", "spill").Logger(), m.metrics)
	m.queue = queue.New(queue.DefaultCapacity, log.With().Str("component", "queue").Logger(), m.metrics)
	m.sampler = sampler.New(cfg.Sampling, cfg.SlowPageLoadMS, nil)

	m.sender = transport.NewSender(transport.Config{
		Endpoint:   cfg.Endpoint,
		APIKey:     cfg.APIKey,
		SDKVersion: Version,
		BatchSize:  cfg.Reporting.BatchSize,
		MaxRetries: cfg.Reporting.MaxRetries,
		Timeout:    cfg.Reporting.Timeout,
		Compress:   cfg.Reporting.Compress,
	}, win.Fetch(), m.spill, log.With().Str("component", "sender").Logger(), m.metrics)
	m.beacon = transport.NewBeacon(cfg.Endpoint, cfg.APIKey, Version, win.SendBeacon,
		log.With().Str("component", "beacon").Logger(), m.metrics)

	env := m.newEnvelope
	m.errors = errcap.New(win, env, log.With().Str("component", "errors").Logger(), m.metrics)
	m.perf = perfcap.New(win, env, log.With().Str("component", "performance").Logger(), m.metrics)
	m.behavior = behavior.New(win, behavior.Options{CaptureMousemove: cfg.CaptureMousemove}, env,
		log.With().Str("component", "behavior").Logger(), m.metrics)
	m.replay = replay.New(win, replay.Options{CaptureMousemove: cfg.CaptureMousemove}, env,
		log.With().Str("component", "replay").Logger(), m.metrics)

	m.errors.SetNotify(func() { m.onCaptured(event.TypeError) })
	m.behavior.SetNotify(func() { m.onCaptured(event.TypeBehavior) })

	m.bus = newBus(log.With().Str("component", "bus").Logger())
	return m, nil
}

// newEnvelope stamps the session identity onto a fresh envelope. The
// orchestrator owns every identity field; captures only pick the type.
func (m *Monitor) newEnvelope(t event.Type) event.Envelope {
	m.mu.Lock()
	uid := m.userID
	m.mu.Unlock()

	nav := m.win.Navigator()
	sc := m.win.Screen()
	vw, vh := m.win.ViewportSize()
	return event.NewEnvelope(m.cfg.AppID, m.sessionID, uid, m.win.Location(), nav.UserAgent, event.DeviceInfo{
		ScreenWidth:    sc.Width,
		ScreenHeight:   sc.Height,
		ViewportWidth:  vw,
		ViewportHeight: vh,
		Platform:       nav.Platform,
		Language:       nav.Language,
		Timezone:       nav.Timezone,
		Connection:     nav.Connection,
	}, t)
}

// SessionID returns the stable session identifier.
func (m *Monitor) SessionID() string { return m.sessionID }

// Start hooks the enabled captures, arms the interval flush, registers
// the unload path, and replays any spill left by a previous session.
// Starting twice warns and no-ops.
func (m *Monitor) Start() {
	defer m.recovered("start")

	if !m.domainAllowed() {
		m.log.Warn().Str("location", m.win.Location()).Msg("page host outside allowed domains, staying inert")
		return
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		m.log.Warn().Msg("start called on a started monitor, ignoring")
		return
	}
	m.started = true
	m.lastFlush = time.Now()
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	if m.cfg.Features.Errors {
		m.errors.Install()
	}
	if m.cfg.Features.Performance {
		m.perf.Install()
	}
	if m.cfg.Features.Behavior {
		m.behavior.Install()
	}
	if m.cfg.Features.Replay {
		if err := m.replay.Start(); err != nil {
			m.log.Warn().Err(err).Msg("replay not started")
		}
	}

	passive := browser.ListenerOptions{Passive: true}
	m.listen("visibilitychange", passive, func(ev *browser.DOMEvent) {
		if ev.VisibilityState == "hidden" {
			m.onUnload()
		}
	})
	m.listen("pagehide", passive, func(*browser.DOMEvent) { m.onUnload() })
	m.listen("beforeunload", passive, func(*browser.DOMEvent) { m.onUnload() })
	m.listen("online", passive, func(*browser.DOMEvent) {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			_ = m.sender.ReplaySpill(context.Background())
		}()
	})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		t := time.NewTicker(m.cfg.Reporting.FlushInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				m.collect()
				m.flushNow(context.Background())
			}
		}
	}()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		_ = m.sender.ReplaySpill(context.Background())
	}()

	m.log.Info().Str("session_id", m.sessionID).Msg("monitor started")
	m.bus.emit(EventStart, map[string]any{"sessionId": m.sessionID})
}

// Stop tears everything down in reverse install order, ships whatever
// is still buffered through the retrying sender (failure spills for the
// next session), and uninstalls plugins. Stopping twice warns and
// no-ops.
func (m *Monitor) Stop() {
	defer m.recovered("stop")

	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		m.log.Warn().Msg("stop called on a stopped monitor, ignoring")
		return
	}
	m.started = false
	done := m.done
	m.done = nil
	errorTimer, throttleTimer := m.errorTimer, m.throttleTimer
	m.errorTimer, m.throttleTimer = nil, nil
	handles := m.handles
	m.handles = nil
	m.mu.Unlock()

	if errorTimer != nil {
		errorTimer.Stop()
	}
	if throttleTimer != nil {
		throttleTimer.Stop()
	}
	// The monitor's own listeners go first: the online handler spawns
	// goroutines the Wait below must account for completely.
	for i := len(handles) - 1; i >= 0; i-- {
		m.win.RemoveEventListener(handles[i])
	}
	close(done)
	m.wg.Wait()

	// Take the final replay transmission before the recorder resets.
	if ev := m.replay.Flush(); ev != nil {
		m.admit([]*event.Event{ev})
	}
	m.replay.Stop()
	m.behavior.Uninstall()
	m.perf.Uninstall()
	m.errors.Uninstall()

	m.drainCaptures()
	if ev := m.perf.Collect(); ev != nil {
		m.admit([]*event.Event{ev})
	}
	events := m.queue.Drain(0)
	if len(events) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Reporting.Timeout)
		if err := m.sender.Send(ctx, events); err != nil {
			m.log.Warn().Err(err).Int("events", len(events)).Msg("final flush failed, events spilled")
		}
		cancel()
	}

	m.mu.Lock()
	order := m.pluginOrder
	plugins := m.plugins
	m.pluginOrder = nil
	m.plugins = map[string]Plugin{}
	m.mu.Unlock()
	for i := len(order) - 1; i >= 0; i-- {
		m.uninstallPlugin(plugins[order[i]])
	}

	m.log.Info().Msg("monitor stopped")
	m.bus.emit(EventStop, nil)
}

// Track records a named custom event. Explicit instrumentation bypasses
// sampling: an application that calls track expects the event to land.
func (m *Monitor) Track(name string, props map[string]any) {
	defer m.recovered("track")
	if !m.isStarted() {
		m.log.Warn().Str("event", name).Msg("track before start, ignoring")
		return
	}
	if name == "" {
		m.log.Warn().Msg("track with empty name, ignoring")
		return
	}
	ev := &event.Event{
		Envelope: m.newEnvelope(event.TypeBehavior),
		Behavior: &event.BehaviorPayload{Action: event.ActionCustom, Target: name, Value: props},
	}
	m.queue.Enqueue(ev)
	metrics.Add(&m.metrics.EventsAdmittedTotal, 1)
	m.bus.emit(EventTrack, map[string]any{"name": name, "properties": props})
	m.scheduleThrottledFlush()
}

// SetUser attaches an identity to subsequent events and persists it.
// The session id never rotates on identity changes.
func (m *Monitor) SetUser(id string, props map[string]any) {
	m.mu.Lock()
	m.userID = id
	m.mu.Unlock()
	m.localKV.Set(storage.KeyUserID, id)
	if len(props) > 0 {
		if raw, err := json.Marshal(props); err == nil {
			m.localKV.Set(storage.KeyUserProps, string(raw))
		}
	}
}

// ClearUser detaches the identity.
func (m *Monitor) ClearUser() {
	m.mu.Lock()
	m.userID = ""
	m.mu.Unlock()
	m.localKV.Remove(storage.KeyUserID)
	m.localKV.Remove(storage.KeyUserProps)
}

// CaptureException reports an application error through the error
// pipeline (redaction, fingerprint, dedup, urgent flush). An empty
// severity derives from the message.
func (m *Monitor) CaptureException(err error, ctx map[string]any, sev event.Severity) {
	defer m.recovered("captureException")
	if !m.isStarted() {
		m.log.Warn().Msg("captureException before start, ignoring")
		return
	}
	m.errors.CaptureException(err, ctx, sev)
}

// CaptureMessage reports a plain message at the given severity (derived
// from the text when empty) with optional context.
func (m *Monitor) CaptureMessage(msg string, sev event.Severity, ctx map[string]any) {
	defer m.recovered("captureMessage")
	if !m.isStarted() {
		m.log.Warn().Msg("captureMessage before start, ignoring")
		return
	}
	m.errors.CaptureMessage(msg, sev, ctx)
}

// Mark sets a custom timing mark.
func (m *Monitor) Mark(name string) {
	m.perf.Mark(name)
}

// Measure computes a custom duration between two marks and records it
// as a custom metric on the next performance event.
func (m *Monitor) Measure(name, startMark, endMark string) (float64, error) {
	return m.perf.Measure(name, startMark, endMark)
}

// StartReplay begins session recording regardless of the replay feature
// flag (the flag only auto-starts recording at Start).
func (m *Monitor) StartReplay() error {
	if !m.isStarted() {
		m.log.Warn().Msg("startReplay before start, ignoring")
		return nil
	}
	return m.replay.Start()
}

// StopReplay ships the accumulated recording and stops the recorder.
func (m *Monitor) StopReplay() {
	if ev := m.replay.Flush(); ev != nil {
		m.admit([]*event.Event{ev})
		m.scheduleThrottledFlush()
	}
	m.replay.Stop()
}

// PauseReplay suspends record admission without tearing down.
func (m *Monitor) PauseReplay() { m.replay.Pause() }

// ResumeReplay re-enables record admission.
func (m *Monitor) ResumeReplay() { m.replay.Resume() }

// Flush collects every capture and transmits the queue synchronously.
func (m *Monitor) Flush() error {
	defer m.recovered("flush")
	if !m.isStarted() {
		m.log.Warn().Msg("flush before start, ignoring")
		return nil
	}
	m.collect()
	return m.flushNow(context.Background())
}

// Use registers a plugin. A duplicate name warns and no-ops; an Install
// that fails or panics is rolled back.
func (m *Monitor) Use(p Plugin) {
	if p.Name == "" {
		m.log.Warn().Msg("plugin without a name, ignoring")
		return
	}
	m.mu.Lock()
	if _, dup := m.plugins[p.Name]; dup {
		m.mu.Unlock()
		m.log.Warn().Str("plugin", p.Name).Msg("plugin already installed, ignoring")
		return
	}
	m.plugins[p.Name] = p
	m.pluginOrder = append(m.pluginOrder, p.Name)
	m.mu.Unlock()

	if p.Install == nil {
		return
	}
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &pluginPanic{name: p.Name, value: r}
			}
		}()
		return p.Install(m)
	}()
	if err != nil {
		m.log.Warn().Err(err).Str("plugin", p.Name).Msg("plugin install failed, removing")
		m.removePlugin(p.Name)
	}
}

// Unuse removes a plugin by name, running its Uninstall.
func (m *Monitor) Unuse(name string) {
	p, ok := m.removePlugin(name)
	if !ok {
		m.log.Warn().Str("plugin", name).Msg("plugin not installed, ignoring")
		return
	}
	m.uninstallPlugin(p)
}

// On subscribes to a bus event; the returned subscription removes it.
func (m *Monitor) On(name string, fn Handler) Subscription {
	return m.bus.on(name, fn)
}

// Off removes the given subscriptions, or all handlers for name when
// none are given.
func (m *Monitor) Off(name string, subs ...Subscription) {
	m.bus.off(name, subs...)
}

// Status is a point-in-time view of the pipeline, counters included.
type Status struct {
	Started     bool         `json:"started"`
	SessionID   string       `json:"sessionId"`
	UserID      string       `json:"userId,omitempty"`
	QueueSize   int          `json:"queueSize"`
	ReplayState replay.State `json:"replayState"`

	EventsCaptured  int64 `json:"eventsCaptured"`
	EventsAdmitted  int64 `json:"eventsAdmitted"`
	EventsSampled   int64 `json:"eventsSampledOut"`
	ErrorsDeduped   int64 `json:"errorsDeduped"`
	EventsDropped   int64 `json:"eventsDroppedOverflow"`
	BatchesSent     int64 `json:"batchesSent"`
	EventsSent      int64 `json:"eventsSent"`
	SendErrors      int64 `json:"sendAttemptErrors"`
	BeaconsSent     int64 `json:"beaconsSent"`
	SpillEnqueued   int64 `json:"spillEnqueued"`
	SpillReplayed   int64 `json:"spillReplayed"`
	SpillDropped    int64 `json:"spillDropped"`
}

// GetStatus reports the current lifecycle state and counters.
func (m *Monitor) GetStatus() Status {
	m.mu.Lock()
	started, uid := m.started, m.userID
	m.mu.Unlock()
	mm := m.metrics
	return Status{
		Started:     started,
		SessionID:   m.sessionID,
		UserID:      uid,
		QueueSize:   m.queue.Size(),
		ReplayState: m.replay.State(),

		EventsCaptured: metrics.Load(&mm.EventsCapturedTotal),
		EventsAdmitted: metrics.Load(&mm.EventsAdmittedTotal),
		EventsSampled:  metrics.Load(&mm.EventsSampledOutTotal),
		ErrorsDeduped:  metrics.Load(&mm.ErrorsDedupedTotal),
		EventsDropped:  metrics.Load(&mm.EventsDroppedOverflowTotal),
		BatchesSent:    metrics.Load(&mm.BatchesSentTotal),
		EventsSent:     metrics.Load(&mm.EventsSentTotal),
		SendErrors:     metrics.Load(&mm.SendAttemptErrorsTotal),
		BeaconsSent:    metrics.Load(&mm.BeaconSentTotal),
		SpillEnqueued:  metrics.Load(&mm.SpillEventsEnqueuedTotal),
		SpillReplayed:  metrics.Load(&mm.SpillEventsReplayedTotal),
		SpillDropped:   metrics.Load(&mm.SpillEventsDroppedTotal),
	}
}

// --- internals ---

func (m *Monitor) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

func (m *Monitor) listen(typ string, opts browser.ListenerOptions, fn browser.Listener) {
	h := m.win.AddEventListener(typ, opts, func(ev *browser.DOMEvent) {
		defer m.recovered(typ)
		fn(ev)
	})
	m.mu.Lock()
	m.handles = append(m.handles, h)
	m.mu.Unlock()
}

// onCaptured runs synchronously from a capture's admit path: drain the
// notifying buffers into the queue, then schedule per the flush policy.
func (m *Monitor) onCaptured(t event.Type) {
	if !m.isStarted() {
		return
	}
	m.drainCaptures()
	if t == event.TypeError {
		m.scheduleErrorFlush()
	} else {
		m.scheduleThrottledFlush()
	}
}

// drainCaptures moves the error and behavior buffers into the queue.
func (m *Monitor) drainCaptures() {
	var evs []*event.Event
	evs = append(evs, m.errors.Drain()...)
	evs = append(evs, m.behavior.Drain()...)
	m.admit(evs)
}

// collect is the interval cycle: buffers, the performance snapshot, and
// the replay transmission when a recording is running.
func (m *Monitor) collect() {
	m.drainCaptures()
	if ev := m.perf.Collect(); ev != nil {
		m.admit([]*event.Event{ev})
	}
	if m.replay.State() == replay.StateRecording {
		if ev := m.replay.Flush(); ev != nil {
			m.admit([]*event.Event{ev})
		}
	}
}

// admit takes the sampling decision and applies the blocked-element
// filter. Decisions are final: downstream stages never re-roll.
func (m *Monitor) admit(evs []*event.Event) {
	for _, e := range evs {
		if e == nil {
			continue
		}
		if m.blocked(e) {
			continue
		}
		if !m.sampler.Admit(e) {
			metrics.Add(&m.metrics.EventsSampledOutTotal, 1)
			continue
		}
		m.queue.Enqueue(e)
		metrics.Add(&m.metrics.EventsAdmittedTotal, 1)
	}
}

// blocked drops behavior events whose target path matches one of the
// configured blocked selectors.
func (m *Monitor) blocked(e *event.Event) bool {
	if len(m.cfg.Privacy.BlockedElements) == 0 || e.Behavior == nil || e.Behavior.Target == "" {
		return false
	}
	for _, sel := range m.cfg.Privacy.BlockedElements {
		sel = strings.TrimLeft(sel, ".#")
		if sel != "" && strings.Contains(e.Behavior.Target, sel) {
			return true
		}
	}
	return false
}

func (m *Monitor) scheduleErrorFlush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	if m.errorTimer == nil {
		m.errorTimer = time.AfterFunc(errorFlushDelay, m.timedErrorFlush)
	} else {
		m.errorTimer.Reset(errorFlushDelay)
	}
}

func (m *Monitor) timedErrorFlush() {
	m.mu.Lock()
	m.errorTimer = nil
	started := m.started
	m.mu.Unlock()
	if started {
		m.flushNow(context.Background())
	}
}

func (m *Monitor) scheduleThrottledFlush() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	since := time.Since(m.lastFlush)
	if since >= throttleFlushDelay {
		m.mu.Unlock()
		m.flushNow(context.Background())
		return
	}
	if m.throttleTimer == nil {
		m.throttleTimer = time.AfterFunc(throttleFlushDelay-since, m.timedThrottleFlush)
	}
	m.mu.Unlock()
}

func (m *Monitor) timedThrottleFlush() {
	m.mu.Lock()
	m.throttleTimer = nil
	started := m.started
	m.mu.Unlock()
	if started {
		m.flushNow(context.Background())
	}
}

// flushNow drains the queue snapshot first, then awaits the network, so
// capture continues unblocked while a batch is in flight.
func (m *Monitor) flushNow(ctx context.Context) error {
	events := m.queue.Drain(0)
	m.mu.Lock()
	m.lastFlush = time.Now()
	m.mu.Unlock()
	if len(events) == 0 {
		return nil
	}
	return m.sender.Send(ctx, events)
}

// onUnload ships everything pending over the unload-safe channel. The
// beacon cannot retry and failures stay silent; the replay buffer is
// dropped (a partial recording with no tail is worth less than the
// bytes it would cost the closing page).
func (m *Monitor) onUnload() {
	if !m.isStarted() {
		return
	}
	m.drainCaptures()
	if ev := m.perf.Collect(); ev != nil {
		m.admit([]*event.Event{ev})
	}
	events := m.queue.Drain(0)
	if len(events) == 0 {
		return
	}
	if err := m.beacon.Send(events); err != nil {
		m.log.Debug().Err(err).Int("events", len(events)).Msg("unload beacon failed")
	}
}

// domainAllowed applies Privacy.AllowedDomains: exact host match or
// subdomain of an entry. An empty list allows everywhere.
func (m *Monitor) domainAllowed() bool {
	if len(m.cfg.Privacy.AllowedDomains) == 0 {
		return true
	}
	u, err := url.Parse(m.win.Location())
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, d := range m.cfg.Privacy.AllowedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (m *Monitor) removePlugin(name string) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plugins[name]
	if !ok {
		return Plugin{}, false
	}
	delete(m.plugins, name)
	for i, n := range m.pluginOrder {
		if n == name {
			m.pluginOrder = append(m.pluginOrder[:i], m.pluginOrder[i+1:]...)
			break
		}
	}
	return p, true
}

func (m *Monitor) uninstallPlugin(p Plugin) {
	if p.Uninstall == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn().Str("plugin", p.Name).Any("panic", r).Msg("plugin uninstall panicked")
		}
	}()
	p.Uninstall()
}

// recovered is the last line between the SDK and the host: a monitoring
// panic must never take the page down with it.
func (m *Monitor) recovered(op string) {
	if r := recover(); r != nil {
		m.log.Error().Str("op", op).Any("panic", r).Msg("recovered internal panic")
	}
}

type pluginPanic struct {
	name  string
	value any
}

func (p *pluginPanic) Error() string {
	return "plugin " + p.name + " install panicked"
}

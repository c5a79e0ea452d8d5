// browser/memdom/observe.go
package memdom

import (
	"fmt"
	"sync"
	"time"

	"webmon-sdk/browser"
)

// --- document mutation (window-mediated so observers fire) ---

// AppendChild attaches child under parent and notifies childList
// observers.
func (w *Window) AppendChild(parent, child *Node) {
	child.parent = parent
	parent.children = append(parent.children, child)
	w.notifyMutation(browser.MutationRecord{
		Kind:   "childList",
		Target: parent,
		Added:  []browser.Node{child},
	})
}

// RemoveChild detaches child from parent and notifies childList
// observers.
func (w *Window) RemoveChild(parent, child *Node) {
	for i, c := range parent.children {
		if c == child {
			parent.children = append(parent.children[:i], parent.children[i+1:]...)
			child.parent = nil
			break
		}
	}
	w.notifyMutation(browser.MutationRecord{
		Kind:    "childList",
		Target:  parent,
		Removed: []browser.Node{child},
	})
}

// SetAttr updates an attribute and notifies attribute observers with the
// old value.
func (w *Window) SetAttr(n *Node, name, value string) {
	old := n.attrs[name]
	n.attrs[name] = value
	w.notifyMutation(browser.MutationRecord{
		Kind:          "attributes",
		Target:        n,
		AttributeName: name,
		OldValue:      old,
	})
}

// SetText updates a text node and notifies characterData observers.
func (w *Window) SetText(n *Node, text string) {
	old := n.text
	n.text = text
	w.notifyMutation(browser.MutationRecord{
		Kind:     "characterData",
		Target:   n,
		OldValue: old,
	})
}

// SetInputValue updates a form element's live value (no mutation record:
// the host treats value as state, not markup) and dispatches input.
func (w *Window) SetInputValue(n *Node, value string) {
	n.value = value
	w.Dispatch(&browser.DOMEvent{Type: "input", Target: n, Value: value})
}

// --- mutation observers ---

type mutTarget struct {
	node *Node
	opts browser.MutationObserverInit
}

type memMutationObserver struct {
	mu           sync.Mutex
	win          *Window
	fn           func([]browser.MutationRecord)
	targets      []mutTarget
	disconnected bool
}

func (w *Window) NewMutationObserver(fn func([]browser.MutationRecord)) (browser.MutationObserver, error) {
	if w.opts.DisableMutationObservers {
		return nil, fmt.Errorf("memdom: mutation observers unavailable")
	}
	o := &memMutationObserver{win: w, fn: fn}
	w.mu.Lock()
	w.mutObservers = append(w.mutObservers, o)
	w.mu.Unlock()
	return o, nil
}

func (o *memMutationObserver) Observe(target browser.Node, opts browser.MutationObserverInit) error {
	n, ok := target.(*Node)
	if !ok {
		return fmt.Errorf("memdom: foreign node")
	}
	o.mu.Lock()
	o.targets = append(o.targets, mutTarget{node: n, opts: opts})
	o.mu.Unlock()
	return nil
}

func (o *memMutationObserver) Disconnect() {
	o.mu.Lock()
	o.disconnected = true
	o.targets = nil
	o.mu.Unlock()
}

// wants reports whether this observer covers rec, honoring subtree and
// per-kind flags.
func (o *memMutationObserver) wants(rec browser.MutationRecord) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disconnected {
		return false
	}
	target := rec.Target.(*Node)
	for _, t := range o.targets {
		switch rec.Kind {
		case "childList":
			if !t.opts.ChildList {
				continue
			}
		case "attributes":
			if !t.opts.Attributes {
				continue
			}
		case "characterData":
			if !t.opts.CharacterData {
				continue
			}
		}
		if t.node == target || (t.opts.Subtree && isAncestor(t.node, target)) {
			return true
		}
	}
	return false
}

func isAncestor(anc, n *Node) bool {
	for cur := n.parent; cur != nil; cur = cur.parent {
		if cur == anc {
			return true
		}
	}
	return false
}

func (w *Window) notifyMutation(rec browser.MutationRecord) {
	w.mu.Lock()
	obs := make([]*memMutationObserver, len(w.mutObservers))
	copy(obs, w.mutObservers)
	w.mu.Unlock()

	for _, o := range obs {
		if o.wants(rec) {
			o.fn([]browser.MutationRecord{rec})
		}
	}
}

// --- intersection observers ---

type memIntersectionObserver struct {
	mu           sync.Mutex
	fn           func([]browser.IntersectionEntry)
	targets      []*Node
	disconnected bool
}

func (w *Window) NewIntersectionObserver(fn func([]browser.IntersectionEntry)) (browser.IntersectionObserver, error) {
	if w.opts.DisableIntersectionObservers {
		return nil, fmt.Errorf("memdom: intersection observers unavailable")
	}
	o := &memIntersectionObserver{fn: fn}
	w.mu.Lock()
	w.intObservers = append(w.intObservers, o)
	w.mu.Unlock()
	return o, nil
}

func (o *memIntersectionObserver) Observe(target browser.Node) {
	if n, ok := target.(*Node); ok {
		o.mu.Lock()
		o.targets = append(o.targets, n)
		o.mu.Unlock()
	}
}

func (o *memIntersectionObserver) Disconnect() {
	o.mu.Lock()
	o.disconnected = true
	o.targets = nil
	o.mu.Unlock()
}

// EmitIntersection delivers a visibility change for target to every
// observer watching it.
func (w *Window) EmitIntersection(target *Node, intersecting bool, ratio float64) {
	w.mu.Lock()
	obs := make([]*memIntersectionObserver, len(w.intObservers))
	copy(obs, w.intObservers)
	w.mu.Unlock()

	entry := browser.IntersectionEntry{Target: target, IsIntersecting: intersecting, IntersectionRatio: ratio}
	for _, o := range obs {
		o.mu.Lock()
		watching := false
		if !o.disconnected {
			for _, t := range o.targets {
				if t == target {
					watching = true
					break
				}
			}
		}
		fn := o.fn
		o.mu.Unlock()
		if watching {
			fn([]browser.IntersectionEntry{entry})
		}
	}
}

// --- performance ---

type perfObserver struct {
	types        map[string]bool
	fn           func([]browser.PerformanceEntry)
	disconnected bool
}

func (o *perfObserver) Disconnect() { o.disconnected = true }

type memPerformance struct {
	mu        sync.Mutex
	disabled  bool
	epoch     time.Time
	timing    *browser.NavigationTiming
	marks     map[string]float64
	observers []*perfObserver
}

func newMemPerformance(disabled bool) *memPerformance {
	return &memPerformance{
		disabled: disabled,
		epoch:    time.Now(),
		marks:    map[string]float64{},
	}
}

func (w *Window) Performance() browser.Performance { return w.perf }

func (p *memPerformance) Now() float64 {
	return float64(time.Since(p.epoch)) / float64(time.Millisecond)
}

func (p *memPerformance) Timing() (browser.NavigationTiming, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timing == nil {
		return browser.NavigationTiming{}, false
	}
	return *p.timing, true
}

// SetTiming installs the navigation entry the next Timing() call returns.
func (w *Window) SetTiming(t browser.NavigationTiming) {
	w.perf.mu.Lock()
	w.perf.timing = &t
	w.perf.mu.Unlock()
}

func (p *memPerformance) Observe(entryTypes []string, fn func([]browser.PerformanceEntry)) (browser.PerformanceObserver, error) {
	if p.disabled {
		return nil, fmt.Errorf("memdom: performance observers unavailable")
	}
	o := &perfObserver{types: map[string]bool{}, fn: fn}
	for _, t := range entryTypes {
		o.types[t] = true
	}
	p.mu.Lock()
	p.observers = append(p.observers, o)
	p.mu.Unlock()
	return o, nil
}

func (p *memPerformance) Mark(name string) {
	p.mu.Lock()
	p.marks[name] = p.Now()
	p.mu.Unlock()
}

func (p *memPerformance) Measure(name, startMark, endMark string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := p.Now()
	if endMark != "" {
		v, ok := p.marks[endMark]
		if !ok {
			return 0, fmt.Errorf("memdom: unknown mark %q", endMark)
		}
		end = v
	}
	start := 0.0
	if startMark != "" {
		v, ok := p.marks[startMark]
		if !ok {
			return 0, fmt.Errorf("memdom: unknown mark %q", startMark)
		}
		start = v
	}
	return end - start, nil
}

// EmitPerformanceEntries routes entries to the observers registered for
// their entry types.
func (w *Window) EmitPerformanceEntries(entries ...browser.PerformanceEntry) {
	w.perf.mu.Lock()
	obs := make([]*perfObserver, len(w.perf.observers))
	copy(obs, w.perf.observers)
	w.perf.mu.Unlock()

	for _, o := range obs {
		if o.disconnected {
			continue
		}
		var matched []browser.PerformanceEntry
		for _, e := range entries {
			if o.types[e.EntryType] {
				matched = append(matched, e)
			}
		}
		if len(matched) > 0 {
			o.fn(matched)
		}
	}
}

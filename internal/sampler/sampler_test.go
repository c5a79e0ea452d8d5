// internal/sampler/sampler_test.go
package sampler

import (
	"testing"

	"webmon-sdk/internal/event"
)

func fixedRoll(v float64) func() float64 { return func() float64 { return v } }

func errEvent(sev event.Severity) *event.Event {
	return &event.Event{
		Envelope: event.Envelope{Type: event.TypeError},
		Error:    &event.ErrorPayload{Message: "boom", Severity: sev},
	}
}

func perfEvent(pageLoad float64) *event.Event {
	return &event.Event{
		Envelope:    event.Envelope{Type: event.TypePerformance},
		Performance: &event.PerformancePayload{Metrics: event.Metrics{PageLoadTime: pageLoad}},
	}
}

func behaviorEvent() *event.Event {
	return &event.Event{
		Envelope: event.Envelope{Type: event.TypeBehavior},
		Behavior: &event.BehaviorPayload{Action: event.ActionClick},
	}
}

func TestRateBoundaries(t *testing.T) {
	// rate 1 admits even the worst roll, rate 0 admits nothing.
	always := New(Rates{Behavior: 1}, 0, fixedRoll(0.999999))
	if !always.Admit(behaviorEvent()) {
		t.Fatal("rate 1 rejected an event")
	}
	never := New(Rates{Behavior: 0}, 0, fixedRoll(0))
	if never.Admit(behaviorEvent()) {
		t.Fatal("rate 0 admitted an event")
	}
}

func TestBernoulliUsesRoll(t *testing.T) {
	s := New(Rates{Behavior: 0.5}, 0, fixedRoll(0.4))
	if !s.Admit(behaviorEvent()) {
		t.Fatal("roll 0.4 against rate 0.5 should admit")
	}
	s = New(Rates{Behavior: 0.5}, 0, fixedRoll(0.6))
	if s.Admit(behaviorEvent()) {
		t.Fatal("roll 0.6 against rate 0.5 should reject")
	}
}

func TestHighSeverityBypassesErrorRate(t *testing.T) {
	s := New(Rates{Errors: 0}, 0, fixedRoll(0.999))

	for _, sev := range []event.Severity{event.SeverityHigh, event.SeverityCritical} {
		if !s.Admit(errEvent(sev)) {
			t.Fatalf("severity %s dropped despite override", sev)
		}
	}
	for _, sev := range []event.Severity{event.SeverityLow, event.SeverityMedium} {
		if s.Admit(errEvent(sev)) {
			t.Fatalf("severity %s admitted at rate 0", sev)
		}
	}
}

func TestSlowPageBypassesPerformanceRate(t *testing.T) {
	s := New(Rates{Performance: 0}, 3000, fixedRoll(0.999))

	if !s.Admit(perfEvent(3500)) {
		t.Fatal("slow page dropped despite threshold override")
	}
	if s.Admit(perfEvent(2000)) {
		t.Fatal("fast page admitted at rate 0")
	}

	// Threshold 0 disables the override entirely.
	s = New(Rates{Performance: 0}, 0, fixedRoll(0.999))
	if s.Admit(perfEvent(60000)) {
		t.Fatal("override fired with threshold disabled")
	}
}

func TestClampForcesRatesIntoRange(t *testing.T) {
	r := Rates{Performance: 1.5, Errors: -0.2, Behavior: 0.1, Replay: 2}.Clamp()
	if r.Performance != 1 || r.Errors != 0 || r.Behavior != 0.1 || r.Replay != 1 {
		t.Fatalf("Clamp = %+v", r)
	}
}

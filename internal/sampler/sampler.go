// internal/sampler/sampler.go
//
// Package sampler takes the per-kind admission decisions. Decisions are
// made once, at admission to the queue; downstream stages never re-roll.
package sampler

import (
	"math/rand"

	"webmon-sdk/internal/event"
)

// Default per-kind rates. Behavior and replay are heavily downsampled
// because their volume per session dwarfs everything else.
const (
	DefaultPerformanceRate = 1.0
	DefaultErrorRate       = 1.0
	DefaultBehaviorRate    = 0.1
	DefaultReplayRate      = 0.01
)

// Rates holds the per-kind Bernoulli rates, each in [0,1]. 0 admits
// nothing, 1 admits everything.
type Rates struct {
	Performance float64 `json:"performance" mapstructure:"performance"`
	Errors      float64 `json:"errors" mapstructure:"errors"`
	Behavior    float64 `json:"behavior" mapstructure:"behavior"`
	Replay      float64 `json:"replay" mapstructure:"replay"`
}

// DefaultRates returns the stock configuration.
func DefaultRates() Rates {
	return Rates{
		Performance: DefaultPerformanceRate,
		Errors:      DefaultErrorRate,
		Behavior:    DefaultBehaviorRate,
		Replay:      DefaultReplayRate,
	}
}

// Clamp forces every rate into [0,1].
func (r Rates) Clamp() Rates {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		if v > 1 {
			return 1
		}
		return v
	}
	r.Performance = clamp(r.Performance)
	r.Errors = clamp(r.Errors)
	r.Behavior = clamp(r.Behavior)
	r.Replay = clamp(r.Replay)
	return r
}

// Sampler applies the rates plus two overrides that bypass the roll:
// errors of severity high or above, and performance events whose page
// load time crosses SlowPageLoadMS (0 disables that override).
type Sampler struct {
	rates          Rates
	slowPageLoadMS float64
	roll           func() float64
}

// New builds a sampler. roll may be nil, in which case math/rand is
// used; tests inject a deterministic roll.
func New(rates Rates, slowPageLoadMS float64, roll func() float64) *Sampler {
	if roll == nil {
		roll = rand.Float64
	}
	return &Sampler{rates: rates.Clamp(), slowPageLoadMS: slowPageLoadMS, roll: roll}
}

// Admit decides whether e enters the pipeline.
func (s *Sampler) Admit(e *event.Event) bool {
	switch e.Type {
	case event.TypeError:
		if e.Error != nil && e.Error.Severity.Rank() >= event.SeverityHigh.Rank() {
			return true
		}
		return s.pass(s.rates.Errors)
	case event.TypePerformance:
		if s.slowPageLoadMS > 0 && e.Performance != nil &&
			e.Performance.Metrics.PageLoadTime > s.slowPageLoadMS {
			return true
		}
		return s.pass(s.rates.Performance)
	case event.TypeBehavior:
		return s.pass(s.rates.Behavior)
	case event.TypeReplay:
		return s.pass(s.rates.Replay)
	}
	return false
}

func (s *Sampler) pass(rate float64) bool {
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	return s.roll() < rate
}

// internal/ratelimit/ratelimit_test.go
package ratelimit

import (
	"testing"
	"time"
)

func TestThrottleLeadingEdge(t *testing.T) {
	th := NewThrottle(50 * time.Millisecond)
	if !th.Allow() {
		t.Fatal("first call swallowed")
	}
	if th.Allow() {
		t.Fatal("second call inside interval passed")
	}
	time.Sleep(60 * time.Millisecond)
	if !th.Allow() {
		t.Fatal("call after interval swallowed")
	}
}

func TestDebounceCoalescesToLastCallback(t *testing.T) {
	d := NewDebounce(30 * time.Millisecond)
	got := make(chan int, 1)
	d.Schedule(func() { got <- 1 })
	d.Schedule(func() { got <- 2 })

	select {
	case v := <-got:
		if v != 2 {
			t.Fatalf("fired callback %d, want the last scheduled", v)
		}
	case <-time.After(time.Second):
		t.Fatal("debounce never fired")
	}

	select {
	case v := <-got:
		t.Fatalf("extra fire %d", v)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDebounceStopFlushesPending(t *testing.T) {
	d := NewDebounce(time.Hour)
	fired := false
	d.Schedule(func() { fired = true })
	d.Stop()
	if !fired {
		t.Fatal("pending callback lost on stop")
	}

	d.Schedule(func() { t.Fatal("schedule after stop ran") })
	time.Sleep(20 * time.Millisecond)
}

// internal/event/clock.go
package event

import (
	"sync/atomic"
	"time"
)

// lastMS remembers the highest timestamp ever handed out so capture-order
// timestamps never decrease, even across a wall-clock step backwards
// (NTP adjustment, VM migration). The envelope invariant only needs
// non-decreasing values per component; a shared monotonic floor satisfies
// it for all of them at once.
var lastMS atomic.Int64

// NowMS returns the current wall clock in milliseconds, clamped to be
// non-decreasing process-wide.
func NowMS() int64 {
	now := time.Now().UnixMilli()
	for {
		last := lastMS.Load()
		if now <= last {
			return last
		}
		if lastMS.CompareAndSwap(last, now) {
			return now
		}
	}
}

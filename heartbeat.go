package relay

import (
	"context"
	"sync/atomic"
	"time"
)

// heartbeatMonitor emits EventHeartbeat once no activity has been seen for
// the idle threshold, then again every interval while the stream stays
// idle. It never touches the network or retry state.
type heartbeatMonitor struct {
	interval time.Duration
	idle     time.Duration
	epoch    time.Time
	last     atomic.Int64 // offset from epoch of the last activity
}

func newHeartbeatMonitor(interval, idle time.Duration) *heartbeatMonitor {
	return &heartbeatMonitor{
		interval: interval,
		idle:     idle,
		epoch:    time.Now(),
	}
}

// touch records activity. Safe to call from any goroutine.
func (h *heartbeatMonitor) touch() {
	h.last.Store(int64(time.Since(h.epoch)))
}

// idleFor returns how long the stream has been idle.
func (h *heartbeatMonitor) idleFor() time.Duration {
	return time.Since(h.epoch) - time.Duration(h.last.Load())
}

// run blocks until ctx is done or emit returns false.
func (h *heartbeatMonitor) run(ctx context.Context, emit func(Event) bool) {
	timer := time.NewTimer(h.idle)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if idle := h.idleFor(); idle < h.idle {
			timer.Reset(h.idle - idle)
			continue
		}
		if !emit(EventHeartbeat{Time: time.Now()}) {
			return
		}
		timer.Reset(h.interval)
	}
}

package session

import (
	"sync/atomic"
	"time"
)

// HeartbeatMonitor tracks the time of the last liveness signal received
// from the peer. The write pump ticks it on the configured interval:
// each tick sends a ping probe and checks whether the silence has lasted
// longer than the timeout, in which case the session is force-closed.
// The timeout should be roughly twice the interval so a well-behaved
// client answering pings never trips it.
type HeartbeatMonitor struct {
	interval time.Duration
	timeout  time.Duration
	last     atomic.Int64 // unix nanoseconds of the last liveness signal
}

func NewHeartbeatMonitor(interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{interval: interval, timeout: timeout}
}

func (m *HeartbeatMonitor) Interval() time.Duration {
	return m.interval
}

// Touch records a liveness signal. Safe to call from the transport's
// pong handler concurrently with the write pump's checks.
func (m *HeartbeatMonitor) Touch(now time.Time) {
	m.last.Store(now.UnixNano())
}

// Expired reports whether the peer has been silent for longer than the
// configured timeout.
func (m *HeartbeatMonitor) Expired(now time.Time) bool {
	return now.UnixNano()-m.last.Load() > m.timeout.Nanoseconds()
}

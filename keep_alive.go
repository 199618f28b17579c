package mqtt311

import "time"

// keepAliveTracker tracks outbound activity so the caller knows when a
// PINGREQ is due. The engine never spawns timers; the owner polls Due.
type keepAliveTracker struct {
	interval time.Duration
	lastSent time.Time
	now      func() time.Time
}

func newKeepAliveTracker(seconds uint16) *keepAliveTracker {
	return &keepAliveTracker{
		interval: time.Duration(seconds) * time.Second,
		now:      time.Now,
	}
}

// Touch records outbound activity. Any control packet resets the
// keep alive window.
func (k *keepAliveTracker) Touch() {
	k.lastSent = k.now()
}

// Due returns true when the keep alive interval has elapsed since the
// last outbound packet. Always false when keep alive is disabled.
func (k *keepAliveTracker) Due() bool {
	if k.interval == 0 {
		return false
	}
	return k.now().Sub(k.lastSent) >= k.interval
}

// Remaining returns the time left until the next ping is due.
func (k *keepAliveTracker) Remaining() time.Duration {
	if k.interval == 0 {
		return 0
	}
	remaining := k.interval - k.now().Sub(k.lastSent)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Package uptime keeps a 64-bit uptime counter fed by a wrapping 32-bit
// millisecond clock, the way a microcontroller main loop does.
package uptime

import (
	"fmt"
	"time"
)

// Clock returns a free running millisecond tick that wraps at 2^32.
type Clock func() uint32

// Uptime accumulates elapsed milliseconds. Loop must be called at least once
// per clock wrap (about 49.7 days) to keep the count exact.
type Uptime struct {
	clock Clock
	ms    uint64
	last  uint32
}

// New returns an uptime counter at zero, synced to clock. A nil clock uses the
// process monotonic clock.
func New(clock Clock) *Uptime {
	if clock == nil {
		clock = Monotonic()
	}
	u := &Uptime{clock: clock}
	u.Reset()
	return u
}

// Monotonic returns a Clock counting milliseconds since the call.
func Monotonic() Clock {
	start := time.Now()
	return func() uint32 {
		return uint32(time.Since(start).Milliseconds())
	}
}

// Begin resyncs to the clock and restarts counting from the current tick
// value, so time before the first call is included.
func (u *Uptime) Begin() {
	u.ms = uint64(u.clock())
	u.last = uint32(u.ms)
}

// Set overrides the uptime.
func (u *Uptime) Set(ms uint64) {
	u.ms = ms
	u.last = u.clock()
}

// Reset sets the uptime to zero.
func (u *Uptime) Reset() { u.Set(0) }

// Loop adds the time elapsed since the previous call.
func (u *Uptime) Loop() {
	now := u.clock()
	u.ms += uint64(now - u.last)
	u.last = now
}

// Milliseconds returns the uptime in milliseconds.
func (u *Uptime) Milliseconds() uint64 { return u.ms }

// Duration returns the uptime as a time.Duration.
func (u *Uptime) Duration() time.Duration {
	return time.Duration(u.ms) * time.Millisecond
}

// String formats the uptime like "3 days, 04:05:06.0789".
func (u *Uptime) String() string {
	return fmt.Sprintf("%d days, %02d:%02d:%02d.%04d",
		u.ms/86400000,
		u.ms/3600000%24,
		u.ms/60000%60,
		u.ms/1000%60,
		u.ms%1000)
}

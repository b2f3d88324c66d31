// Package task decides when periodic work living in a main loop is due.
package task

// Task tracks the interval and last run of a periodic action. Ticks are
// milliseconds from a free running 32-bit counter; differences are taken
// modulo 2^32 so a counter wrap does not stall the task.
type Task struct {
	interval uint32
	last     uint32
	enabled  bool
}

// Option configures a Task.
type Option func(*Task)

// Disabled creates the task in the disabled state.
func Disabled() Option {
	return func(t *Task) { t.enabled = false }
}

// New returns an enabled task due every interval ticks.
func New(interval uint32, opts ...Option) *Task {
	t := &Task{interval: interval, enabled: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Scheduled reports whether the task is due at now. When it is, now is
// recorded as the last run.
func (t *Task) Scheduled(now uint32) bool {
	if !t.enabled || now-t.last < t.interval {
		return false
	}
	t.last = now
	return true
}

// Interval returns the configured interval in ticks.
func (t *Task) Interval() uint32 { return t.interval }

// SetInterval changes the interval.
func (t *Task) SetInterval(interval uint32) { t.interval = interval }

// LastTick returns the tick of the last run.
func (t *Task) LastTick() uint32 { return t.last }

// SetLastTick overrides the tick of the last run, to delay the task or sync
// it to an external event.
func (t *Task) SetLastTick(tick uint32) { t.last = tick }

// Enabled reports whether the task is enabled.
func (t *Task) Enabled() bool { return t.enabled }

// Enable sets the enabled state.
func (t *Task) Enable(on bool) { t.enabled = on }

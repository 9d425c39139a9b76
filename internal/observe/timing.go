package observe

// A watch owns exactly one child. Nothing it starts outlives it.
// Observation reads, it never writes.

import "time"

// Timing records when a watch started and ended. Readings use the
// monotonic clock carried by time.Time, so wall clock jumps never make
// uptime run backwards.
type Timing struct {
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewTiming creates timing with current start time
func NewTiming() *Timing {
	return &Timing{
		StartedAt: time.Now(),
	}
}

// Complete records completion time
func (t *Timing) Complete() {
	t.CompletedAt = time.Now()
}

// Duration returns elapsed time, frozen once Complete was called
func (t *Timing) Duration() time.Duration {
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}

// UptimeMillis returns Duration in whole milliseconds
func (t *Timing) UptimeMillis() uint64 {
	d := t.Duration()
	if d < 0 {
		return 0
	}
	return uint64(d / time.Millisecond)
}

package watch

import (
	"fmt"
	"strings"
	"time"
)

// Spec describes one watch: what to run and how often to sample it.
// A Spec never changes after construction and may be shared freely.
type Spec struct {
	command  string
	args     []string
	interval time.Duration
}

// NewSpec validates and builds a Spec. args is copied.
func NewSpec(command string, args []string, interval time.Duration) (*Spec, error) {
	if strings.TrimSpace(command) == "" {
		return nil, &Error{Op: OpSpec, Err: fmt.Errorf("%w: empty command", ErrInvalidSpec)}
	}
	if interval <= 0 {
		return nil, &Error{Op: OpSpec, Command: command, Err: fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidSpec, interval)}
	}

	return &Spec{
		command:  command,
		args:     append([]string(nil), args...),
		interval: interval,
	}, nil
}

// SpecFromMillis is NewSpec with the interval given in milliseconds.
func SpecFromMillis(command string, args []string, intervalMs uint64) (*Spec, error) {
	return NewSpec(command, args, time.Duration(intervalMs)*time.Millisecond)
}

// Command returns the executable name or path.
func (s *Spec) Command() string {
	return s.command
}

// Args returns a copy of the arguments.
func (s *Spec) Args() []string {
	return append([]string(nil), s.args...)
}

// Interval returns the sampling period.
func (s *Spec) Interval() time.Duration {
	return s.interval
}

func (s *Spec) String() string {
	if len(s.args) == 0 {
		return fmt.Sprintf("%s every %s", s.command, s.interval)
	}
	return fmt.Sprintf("%s %s every %s", s.command, strings.Join(s.args, " "), s.interval)
}

func (s *Spec) snapshot(pid int) ProcessSnapshot {
	return ProcessSnapshot{
		Cmd:  s.command,
		Args: s.Args(),
		PID:  pid,
	}
}

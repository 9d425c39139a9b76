package observe

// A watch owns exactly one child. Nothing it starts outlives it.
// Signals go only to that child, and only while the watch runs.

import (
	"fmt"
	"os"
	"syscall"
	"time"
)

// Action is what a Deadline did on a check.
type Action int

const (
	ActionNone Action = iota
	ActionTerminate      // SIGTERM sent
	ActionKill           // SIGKILL sent
)

func (a Action) String() string {
	switch a {
	case ActionTerminate:
		return "terminate"
	case ActionKill:
		return "kill"
	default:
		return "none"
	}
}

// Deadline terminates a process out of band once it runs past a limit.
// It is driven by the caller (typically a watch observer), so it acts at
// the granularity of whoever calls Check. The watch then sees an ordinary
// exit.
//
// A child that exits mid-tick is reaped before the watch notices, so one
// more Check can see its PID after that. The window is a single interval
// and ends when Watch returns; stop calling Check from then on.
type Deadline struct {
	limit    time.Duration
	grace    time.Duration
	termSent bool
	killSent bool

	// signal is swapped in tests
	signal func(pid int, sig syscall.Signal) error
}

// NewDeadline creates a deadline. A zero limit never fires. After SIGTERM
// the process gets grace before SIGKILL; a zero grace kills right away.
func NewDeadline(limit, grace time.Duration) *Deadline {
	return &Deadline{
		limit:  limit,
		grace:  grace,
		signal: sendSignal,
	}
}

// Check compares uptime with the limit and signals pid when due.
func (d *Deadline) Check(pid int, uptime time.Duration) (Action, error) {
	if d.limit <= 0 || d.killSent || uptime < d.limit {
		return ActionNone, nil
	}

	if !d.termSent && d.grace > 0 {
		d.termSent = true
		return ActionTerminate, d.signal(pid, syscall.SIGTERM)
	}

	if uptime >= d.limit+d.grace {
		d.killSent = true
		return ActionKill, d.signal(pid, syscall.SIGKILL)
	}

	return ActionNone, nil
}

// Expired reports whether the deadline has fired at least once.
func (d *Deadline) Expired() bool {
	return d.termSent || d.killSent
}

// Exists checks if PID still exists
func Exists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check existence
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// Forward relays sig to pid if it is still running
func Forward(pid int, sig os.Signal) error {
	s, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	return sendSignal(pid, s)
}

func sendSignal(pid int, sig syscall.Signal) error {
	if !Exists(pid) {
		return nil
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(sig)
}

package watch

import (
	"errors"
	"fmt"
)

// Sentinel errors, matched with errors.Is against anything Watch returns.
var (
	// ErrInvalidSpec is returned by NewSpec for an empty command or a
	// non-positive interval.
	ErrInvalidSpec = errors.New("invalid watch spec")

	// ErrSpawn means the child could not be started. No sample was taken.
	ErrSpawn = errors.New("spawn failed")

	// ErrWait means the OS failed to report the child's termination. The
	// child may still be running.
	ErrWait = errors.New("wait failed")

	// ErrCapture means reading the child's stdout failed mid-stream.
	ErrCapture = errors.New("stdout capture failed")

	errJoined = errors.New("capture already joined")
)

// Op names the stage a watch failed in.
type Op string

const (
	OpSpec    Op = "spec"
	OpSpawn   Op = "spawn"
	OpWait    Op = "wait"
	OpCapture Op = "capture"
)

// Error is the single failure outcome of a watch.
type Error struct {
	Op      Op
	Command string
	PID     int // 0 when no process was started
	Err     error
}

func (e *Error) Error() string {
	if e.PID > 0 {
		return fmt.Sprintf("watch %s %q (pid %d): %v", e.Op, e.Command, e.PID, e.Err)
	}
	if e.Command != "" {
		return fmt.Sprintf("watch %s %q: %v", e.Op, e.Command, e.Err)
	}
	return fmt.Sprintf("watch %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping
func (e *Error) Unwrap() error {
	return e.Err
}

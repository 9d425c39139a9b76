package watch

import (
	"os"
	"syscall"
)

// outcome assembles the final result from the captured text and the exit
// status.
func outcome(stdout string, state *os.ProcessState) *Outcome {
	out := &Outcome{Stdout: stdout}

	if status, ok := state.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		out.Signal = signalName(status.Signal())
		return out
	}

	if state.Exited() {
		code := state.ExitCode()
		out.ExitCode = &code
	}
	return out
}

package watch

import "github.com/psantana5/paw/pkg/procstat"

// Sample is one reading taken on a sampling tick. Nil metric fields mean
// the reading was unavailable on that tick.
type Sample struct {
	Uptime  uint64               `json:"uptime" yaml:"uptime"` // ms since the watch began
	Memory  *procstat.MemoryInfo `json:"memory_usage" yaml:"memory_usage"`
	CPU     *float64             `json:"cpu_usage" yaml:"cpu_usage"` // percent of one core
	Process ProcessSnapshot      `json:"process" yaml:"process"`
}

// ProcessSnapshot is a copy of what is being watched. It is not the live
// process: changing it has no effect on the watch.
type ProcessSnapshot struct {
	Cmd  string   `json:"cmd" yaml:"cmd"`
	Args []string `json:"args" yaml:"args"`
	PID  int      `json:"pid" yaml:"pid"`
}

// Outcome is the result of a watch that ran to completion.
type Outcome struct {
	Stdout string `json:"stdout" yaml:"stdout"`
	// ExitCode is nil when the child was killed by a signal.
	ExitCode *int `json:"exit_code" yaml:"exit_code"`
	// Signal names the terminating signal, e.g. "SIGKILL".
	Signal string `json:"signal,omitempty" yaml:"signal,omitempty"`
}

// Observer receives samples synchronously on the sampling goroutine, one
// at a time. A slow observer delays the next tick.
type Observer func(Sample)

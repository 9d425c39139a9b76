package report

// A watch owns exactly one child. Nothing it starts outlives it.
// Observation reads, it never writes.

import (
	"fmt"
	"time"

	"github.com/psantana5/paw/pkg/logging"
	"github.com/psantana5/paw/pkg/watch"
)

// ExitReason describes why a watched child terminated
type ExitReason string

const (
	ExitReasonSuccess ExitReason = "success" // Exit code 0
	ExitReasonError   ExitReason = "error"   // Exit code != 0
	ExitReasonSignal  ExitReason = "signal"  // Killed by a signal we did not send
	ExitReasonTimeout ExitReason = "timeout" // Killed by our deadline
	ExitReasonUnknown ExitReason = "unknown"
)

// Classify derives the exit reason from an outcome. deadlineFired is true
// when the caller terminated the child out of band.
func Classify(out *watch.Outcome, deadlineFired bool) ExitReason {
	if out == nil {
		return ExitReasonUnknown
	}
	if deadlineFired {
		return ExitReasonTimeout
	}
	if out.ExitCode == nil {
		if out.Signal != "" {
			return ExitReasonSignal
		}
		return ExitReasonUnknown
	}
	if *out.ExitCode == 0 {
		return ExitReasonSuccess
	}
	return ExitReasonError
}

// Summary is the frozen record of one finished watch. Set once, never
// changed.
type Summary struct {
	// Identity
	WatchID string   `json:"watch_id" yaml:"watch_id"`
	Command string   `json:"command" yaml:"command"`
	Args    []string `json:"args" yaml:"args"`
	PID     int      `json:"pid" yaml:"pid"`

	// Timing
	StartTime time.Time `json:"start_time" yaml:"start_time"`
	EndTime   time.Time `json:"end_time" yaml:"end_time"`
	UptimeMs  uint64    `json:"uptime_ms" yaml:"uptime_ms"`

	// Samples
	Samples    int     `json:"samples" yaml:"samples"`
	CPUGaps    int     `json:"cpu_unavailable" yaml:"cpu_unavailable"`
	MemoryGaps int     `json:"memory_unavailable" yaml:"memory_unavailable"`
	PeakRSS    uint64  `json:"peak_rss_bytes" yaml:"peak_rss_bytes"`
	PeakVMS    uint64  `json:"peak_vms_bytes" yaml:"peak_vms_bytes"`
	MeanCPU    float64 `json:"mean_cpu_percent" yaml:"mean_cpu_percent"`
	MaxCPU     float64 `json:"max_cpu_percent" yaml:"max_cpu_percent"`

	// Outcome
	ExitCode    *int       `json:"exit_code" yaml:"exit_code"`
	Signal      string     `json:"signal,omitempty" yaml:"signal,omitempty"`
	Reason      ExitReason `json:"reason" yaml:"reason"`
	StdoutBytes int        `json:"stdout_bytes" yaml:"stdout_bytes"`
}

// Duration returns how long the watch ran
func (s *Summary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// LogSummary emits a one-line summary of the watch
func (s *Summary) LogSummary(logger *logging.Logger) {
	exit := "none"
	if s.ExitCode != nil {
		exit = fmt.Sprintf("%d", *s.ExitCode)
	}

	fields := logging.Fields{
		"watch_id":     s.WatchID,
		"reason":       string(s.Reason),
		"exit":         exit,
		"samples":      s.Samples,
		"uptime_ms":    s.UptimeMs,
		"peak_rss":     s.PeakRSS,
		"mean_cpu":     fmt.Sprintf("%.2f", s.MeanCPU),
		"stdout_bytes": s.StdoutBytes,
	}
	if s.Signal != "" {
		fields["signal"] = s.Signal
	}

	if s.Reason == ExitReasonSuccess {
		logger.Info("Watch finished", fields)
		return
	}
	logger.Warn("Watch finished", fields)
}

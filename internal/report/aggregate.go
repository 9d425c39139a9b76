package report

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/psantana5/paw/pkg/watch"
)

// Aggregator folds the samples of one watch into a Summary. Its Observe
// method is meant to be called from a watch observer.
type Aggregator struct {
	mu sync.Mutex

	id        string
	startTime time.Time
	command   string
	args      []string
	pid       int

	samples    int
	cpuSamples int
	cpuTotal   float64
	maxCPU     float64
	memGaps    int
	peakRSS    uint64
	peakVMS    uint64
}

// NewAggregator starts an aggregation with a fresh watch ID
func NewAggregator() *Aggregator {
	return &Aggregator{
		id:        uuid.NewString(),
		startTime: time.Now(),
	}
}

// ID returns the watch ID
func (a *Aggregator) ID() string {
	return a.id
}

// Observe folds one sample in
func (a *Aggregator) Observe(s watch.Sample) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.samples == 0 {
		a.command = s.Process.Cmd
		a.args = append([]string(nil), s.Process.Args...)
		a.pid = s.Process.PID
	}
	a.samples++

	if s.CPU != nil {
		a.cpuSamples++
		a.cpuTotal += *s.CPU
		if *s.CPU > a.maxCPU {
			a.maxCPU = *s.CPU
		}
	}

	if s.Memory == nil {
		a.memGaps++
	} else {
		if s.Memory.RSS > a.peakRSS {
			a.peakRSS = s.Memory.RSS
		}
		if s.Memory.VMS > a.peakVMS {
			a.peakVMS = s.Memory.VMS
		}
	}
}

// Finish freezes the aggregation into a Summary. deadlineFired marks a
// child that was terminated out of band.
func (a *Aggregator) Finish(out *watch.Outcome, deadlineFired bool) *Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	end := time.Now()
	sum := &Summary{
		WatchID:    a.id,
		Command:    a.command,
		Args:       a.args,
		PID:        a.pid,
		StartTime:  a.startTime,
		EndTime:    end,
		UptimeMs:   uint64(end.Sub(a.startTime) / time.Millisecond),
		Samples:    a.samples,
		CPUGaps:    a.samples - a.cpuSamples,
		MemoryGaps: a.memGaps,
		PeakRSS:    a.peakRSS,
		PeakVMS:    a.peakVMS,
		MaxCPU:     a.maxCPU,
		Reason:     Classify(out, deadlineFired),
	}
	if a.cpuSamples > 0 {
		sum.MeanCPU = a.cpuTotal / float64(a.cpuSamples)
	}
	if out != nil {
		sum.ExitCode = out.ExitCode
		sum.Signal = out.Signal
		sum.StdoutBytes = len(out.Stdout)
	}
	return sum
}

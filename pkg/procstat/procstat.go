// Package procstat reads per-process resource accounting from the OS.
//
// Every query is a pure read. A field that cannot be read comes back nil
// instead of failing the caller: a process that exits between two queries
// is an expected outcome, not an error.
package procstat

import (
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// MemoryInfo is the memory footprint of a process in bytes.
type MemoryInfo struct {
	RSS  uint64 `json:"rss" yaml:"rss"`   // Resident set size
	VMS  uint64 `json:"vms" yaml:"vms"`   // Virtual memory size
	Swap uint64 `json:"swap" yaml:"swap"` // Swapped out (Linux only, 0 elsewhere)
}

// Usage is one reading of a process. Nil means unavailable, which is not
// the same thing as a zero reading.
type Usage struct {
	Memory *MemoryInfo
	CPU    *float64
}

// Prober queries resource usage by PID.
type Prober interface {
	Query(pid int) Usage
}

// Probe is the gopsutil backed Prober.
//
// CPU percent is a delta: each PID keeps its gopsutil handle between calls
// so the next query measures CPU time spent since the previous one. The
// first query of a PID has no previous reading and reports the average
// over the process lifetime instead.
type Probe struct {
	mu      sync.Mutex
	handles map[int]*process.Process
}

// NewProbe returns a Probe with no per-process state.
func NewProbe() *Probe {
	return &Probe{
		handles: make(map[int]*process.Process),
	}
}

// Query reads memory and CPU for pid. Fields fail independently.
func (p *Probe) Query(pid int) Usage {
	var usage Usage

	proc, primed, err := p.handle(pid)
	if err != nil {
		return usage
	}

	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		usage.Memory = &MemoryInfo{
			RSS:  mem.RSS,
			VMS:  mem.VMS,
			Swap: mem.Swap,
		}
	}

	if cpu, err := cpuPercent(proc, primed); err == nil {
		usage.CPU = &cpu
	}

	return usage
}

// Forget drops the cached handle for pid so a later query starts a fresh
// CPU delta.
func (p *Probe) Forget(pid int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.handles, pid)
}

// Tracked returns how many PIDs currently hold CPU state.
func (p *Probe) Tracked() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}

// handle returns the cached gopsutil handle for pid. primed reports whether
// the handle has been queried before.
func (p *Probe) handle(pid int) (*process.Process, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if proc, ok := p.handles[pid]; ok {
		return proc, true, nil
	}

	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, false, err
	}
	p.handles[pid] = proc
	return proc, false, nil
}

func cpuPercent(proc *process.Process, primed bool) (float64, error) {
	// Percent(0) compares against the times cached by the previous call.
	delta, err := proc.Percent(0)
	if err != nil {
		return 0, err
	}
	if primed {
		return delta, nil
	}
	return proc.CPUPercent()
}

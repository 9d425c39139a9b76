package procstat

import (
	"os"
	"testing"
)

// A PID above the default Linux pid_max, so it can never be live.
const deadPID = 1 << 23

func TestProbeQuerySelf(t *testing.T) {
	p := NewProbe()
	pid := os.Getpid()

	first := p.Query(pid)
	if first.Memory == nil {
		t.Fatal("expected memory reading for own process")
	}
	if first.Memory.RSS == 0 {
		t.Error("expected non-zero RSS for own process")
	}
	if first.CPU == nil {
		t.Fatal("expected CPU reading for own process")
	}
	if *first.CPU < 0 {
		t.Errorf("CPU percent must not be negative, got %.2f", *first.CPU)
	}

	// Burn a little CPU so the delta has something to measure.
	x := 0
	for i := 0; i < 5_000_000; i++ {
		x += i
	}
	_ = x

	second := p.Query(pid)
	if second.CPU == nil {
		t.Fatal("expected CPU reading on second query")
	}
	if p.Tracked() != 1 {
		t.Errorf("expected 1 tracked pid, got %d", p.Tracked())
	}
}

func TestProbeQueryDeadProcess(t *testing.T) {
	p := NewProbe()

	usage := p.Query(deadPID)
	if usage.Memory != nil {
		t.Errorf("expected nil memory for dead pid, got %+v", usage.Memory)
	}
	if usage.CPU != nil {
		t.Errorf("expected nil CPU for dead pid, got %v", *usage.CPU)
	}
	if p.Tracked() != 0 {
		t.Errorf("dead pid must not be tracked, got %d", p.Tracked())
	}
}

func TestProbeForget(t *testing.T) {
	p := NewProbe()
	pid := os.Getpid()

	p.Query(pid)
	if p.Tracked() != 1 {
		t.Fatalf("expected 1 tracked pid, got %d", p.Tracked())
	}

	p.Forget(pid)
	if p.Tracked() != 0 {
		t.Errorf("expected 0 tracked pids after Forget, got %d", p.Tracked())
	}

	// Forgetting an unknown pid is a no-op
	p.Forget(deadPID)
}

package report

// A watch owns exactly one child. Nothing it starts outlives it.
// Observation reads, it never writes.

import (
	"sync"

	"github.com/psantana5/paw/pkg/watch"
)

// RecentSamples keeps the last N samples of a watch in memory (ring
// buffer). Nothing is persisted; it only backs the live /samples endpoint
// and the tail table printed at the end of a run.
type RecentSamples struct {
	samples []watch.Sample
	maxSize int
	mu      sync.RWMutex
}

// NewRecentSamples creates a buffer holding at most maxSize samples
func NewRecentSamples(maxSize int) *RecentSamples {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &RecentSamples{
		samples: make([]watch.Sample, 0, maxSize),
		maxSize: maxSize,
	}
}

// Record adds a sample, dropping the oldest when full
func (r *RecentSamples) Record(s watch.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) >= r.maxSize {
		r.samples = r.samples[1:]
	}
	r.samples = append(r.samples, s)
}

// GetRecent returns up to n samples, oldest first. n <= 0 returns all.
func (r *RecentSamples) GetRecent(n int) []watch.Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > len(r.samples) {
		n = len(r.samples)
	}

	result := make([]watch.Sample, n)
	copy(result, r.samples[len(r.samples)-n:])
	return result
}

// Count returns the number of buffered samples
func (r *RecentSamples) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.samples)
}

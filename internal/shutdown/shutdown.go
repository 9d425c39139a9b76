package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/psantana5/paw/pkg/logging"
)

// Manager runs cleanup once a watch is over: flushing traces, stopping
// the metrics server, closing files.
type Manager struct {
	mu      sync.Mutex
	steps   []step
	timeout time.Duration
	logger  *logging.Logger
	done    bool
}

type step struct {
	name string
	fn   func(context.Context) error
}

// New creates a shutdown manager. Every Shutdown shares one timeout.
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	return &Manager{
		timeout: timeout,
		logger:  logger,
	}
}

// Register adds a shutdown function.
// Functions are called in reverse order (LIFO)
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, step{name: name, fn: fn})
}

// Shutdown runs every registered function, even after one fails, and
// returns their errors joined. Calls after the first are no-ops.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.done {
		return nil
	}
	m.done = true

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(m.steps) - 1; i >= 0; i-- {
		s := m.steps[i]
		if err := s.fn(ctx); err != nil {
			m.logger.Warn("Shutdown step failed", logging.Fields{"step": s.name, "error": err.Error()})
			errs = append(errs, fmt.Errorf("failed to stop %s: %w", s.name, err))
			continue
		}
		m.logger.Debug("Shutdown step complete", logging.Fields{"step": s.name})
	}
	return errors.Join(errs...)
}

// CloseResource adapts an io.Closer to a shutdown function
func CloseResource(closer interface{ Close() error }) func(context.Context) error {
	return func(context.Context) error {
		return closer.Close()
	}
}

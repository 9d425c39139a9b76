package cmd

import (
	"os"
	"sync/atomic"

	"github.com/psantana5/paw/internal/observe"
	"github.com/psantana5/paw/pkg/logging"
)

// signalRelay forwards signals paw receives to the watched child. It is
// armed by the first sample and disarmed once the watch returns, so a
// reaped PID is never signalled afterwards.
type signalRelay struct {
	pid    atomic.Int64
	logger *logging.Logger

	// send is swapped in tests
	send func(pid int, sig os.Signal) error
}

func newSignalRelay(logger *logging.Logger) *signalRelay {
	return &signalRelay{
		logger: logger,
		send:   observe.Forward,
	}
}

func (r *signalRelay) track(pid int) {
	r.pid.Store(int64(pid))
}

func (r *signalRelay) release() {
	r.pid.Store(0)
}

// forward relays sig to the child, reporting whether there was one
func (r *signalRelay) forward(sig os.Signal) bool {
	pid := int(r.pid.Load())
	if pid == 0 {
		return false
	}
	r.logger.Info("Forwarding signal", logging.Fields{"signal": sig.String(), "pid": pid})
	if err := r.send(pid, sig); err != nil {
		r.logger.Warn("Failed to forward signal", logging.Fields{"error": err.Error()})
	}
	return true
}

func (r *signalRelay) run(sigs <-chan os.Signal) {
	for sig := range sigs {
		r.forward(sig)
	}
}

// Package watch runs a command as a child process and samples its
// resource usage at a fixed interval until it exits, while capturing its
// standard output in the background.
//
// A watch is a single self-contained operation:
//
//	spec, _ := watch.NewSpec("make", []string{"build"}, 500*time.Millisecond)
//	outcome, err := watch.Watch(spec, func(s watch.Sample) {
//		fmt.Println(s.Uptime, s.CPU)
//	})
//
// There is no cancellation. To bound a watch, terminate the child out of
// band (the PID is in every Sample) and let the watch observe the exit.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/psantana5/paw/internal/observe"
	"github.com/psantana5/paw/pkg/logging"
	"github.com/psantana5/paw/pkg/procstat"
)

const tracerName = "github.com/psantana5/paw/pkg/watch"

// State is the stage of a single watch.
type State string

const (
	StateNotStarted State = "not_started"
	StateSpawning   State = "spawning"
	StateSampling   State = "sampling"
	StateJoining    State = "joining"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// Option configures a Watcher
type Option func(*Watcher)

// WithProber replaces the default gopsutil probe. The prober is shared by
// every watch run through this Watcher.
func WithProber(p procstat.Prober) Option {
	return func(w *Watcher) {
		w.prober = p
	}
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithStderr sets where the child's stderr goes. Defaults to os.Stderr;
// nil discards it.
func WithStderr(out io.Writer) Option {
	return func(w *Watcher) {
		w.stderr = out
	}
}

// WithDir sets the child's working directory.
func WithDir(dir string) Option {
	return func(w *Watcher) {
		w.dir = dir
	}
}

// WithEnv sets the child's environment. Nil inherits ours.
func WithEnv(env []string) Option {
	return func(w *Watcher) {
		w.env = env
	}
}

// WithTracer sets the tracer. Defaults to the global otel tracer.
func WithTracer(t trace.Tracer) Option {
	return func(w *Watcher) {
		w.tracer = t
	}
}

// Watcher runs watches. It holds configuration only; every call to Watch
// is an independent operation.
type Watcher struct {
	prober procstat.Prober
	logger *logging.Logger
	stderr io.Writer
	dir    string
	env    []string
	tracer trace.Tracer

	// wait reaps the child; swapped in tests
	wait func(cmd *exec.Cmd) (*os.ProcessState, error)
}

// New creates a Watcher
func New(opts ...Option) *Watcher {
	w := &Watcher{
		logger: logging.Discard(),
		stderr: os.Stderr,
		tracer: otel.Tracer(tracerName),
		wait:   waitChild,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Watch runs spec with a default Watcher.
func Watch(spec *Spec, observer Observer, opts ...Option) (*Outcome, error) {
	return New(opts...).Watch(spec, observer)
}

type exitStatus struct {
	state *os.ProcessState
	err   error
}

func waitChild(cmd *exec.Cmd) (*os.ProcessState, error) {
	err := cmd.Wait()
	return cmd.ProcessState, err
}

// Watch spawns the child described by spec and samples it until it exits.
// observer is called once per tick, before the tick's sleep, so even a child
// that exits immediately produces one sample. The Outcome is returned only
// after the child has exited and its stdout has been fully drained.
func (w *Watcher) Watch(spec *Spec, observer Observer) (*Outcome, error) {
	if spec == nil {
		return nil, &Error{Op: OpSpec, Err: fmt.Errorf("%w: nil spec", ErrInvalidSpec)}
	}
	if observer == nil {
		observer = func(Sample) {}
	}

	prober := w.prober
	if prober == nil {
		// Fresh CPU state per watch
		prober = procstat.NewProbe()
	}

	_, span := w.tracer.Start(context.Background(), "paw.watch", trace.WithAttributes(
		attribute.String("paw.command", spec.command),
		attribute.StringSlice("paw.args", spec.args),
		attribute.Int64("paw.interval_ms", spec.interval.Milliseconds()),
	))
	defer span.End()

	log := w.logger.WithField("command", spec.command)
	fail := func(err *Error) (*Outcome, error) {
		log.Debug("watch state", logging.Fields{"state": StateFailed, "op": err.Op})
		span.RecordError(err)
		span.SetStatus(codes.Error, string(err.Op))
		return nil, err
	}

	log.Debug("watch state", logging.Fields{"state": StateSpawning})

	cmd := exec.Command(spec.command, spec.args...)
	cmd.Stderr = w.stderr
	cmd.Dir = w.dir
	cmd.Env = w.env

	// A plain *os.File keeps exec from copying stdout itself, so cmd.Wait
	// never closes the read end under the capturer.
	stdout, sink, err := os.Pipe()
	if err != nil {
		return fail(&Error{Op: OpSpawn, Command: spec.command, Err: fmt.Errorf("%w: %w", ErrSpawn, err)})
	}
	cmd.Stdout = sink

	err = cmd.Start()
	sink.Close()
	if err != nil {
		stdout.Close()
		return fail(&Error{Op: OpSpawn, Command: spec.command, Err: fmt.Errorf("%w: %w", ErrSpawn, err)})
	}

	timing := observe.NewTiming()
	pid := cmd.Process.Pid
	log = log.WithField("pid", pid)
	span.SetAttributes(attribute.Int("paw.pid", pid))
	log.Info("Spawned child", logging.Fields{"interval": spec.interval.String()})

	if f, ok := prober.(interface{ Forget(pid int) }); ok {
		defer f.Forget(pid)
	}

	capture := startCapture(stdout)

	exited := make(chan exitStatus, 1)
	go func() {
		state, err := w.wait(cmd)
		exited <- exitStatus{state: state, err: err}
	}()

	degraded := rate.Sometimes{First: 1, Interval: 10 * time.Second}
	samples := 0

	log.Debug("watch state", logging.Fields{"state": StateSampling})
	for {
		uptime := timing.UptimeMillis()
		usage := prober.Query(pid)
		if usage.Memory == nil || usage.CPU == nil {
			degraded.Do(func() {
				log.Debug("Metrics unavailable", logging.Fields{
					"uptime_ms": uptime,
					"memory":    usage.Memory != nil,
					"cpu":       usage.CPU != nil,
				})
			})
		}

		observer(Sample{
			Uptime:  uptime,
			Memory:  usage.Memory,
			CPU:     usage.CPU,
			Process: spec.snapshot(pid),
		})
		samples++

		time.Sleep(spec.interval)

		var status exitStatus
		select {
		case status = <-exited:
		default:
			continue
		}

		span.SetAttributes(attribute.Int("paw.samples", samples))

		if status.state == nil {
			// Unblocks the capture goroutine; the child may still be running.
			stdout.Close()
			return fail(&Error{Op: OpWait, Command: spec.command, PID: pid, Err: fmt.Errorf("%w: %w", ErrWait, status.err)})
		}
		var exitErr *exec.ExitError
		if status.err != nil && !errors.As(status.err, &exitErr) {
			// Exit status is known, only stderr forwarding broke.
			log.Warn("Forwarding stderr failed", logging.Fields{"error": status.err.Error()})
		}

		log.Debug("watch state", logging.Fields{"state": StateJoining})
		text, err := capture.join()
		stdout.Close()
		if err != nil {
			return fail(&Error{Op: OpCapture, Command: spec.command, PID: pid, Err: fmt.Errorf("%w: %w", ErrCapture, err)})
		}

		timing.Complete()
		out := outcome(text, status.state)

		fields := logging.Fields{
			"samples":   samples,
			"uptime_ms": timing.UptimeMillis(),
			"bytes":     len(out.Stdout),
		}
		if out.ExitCode != nil {
			fields["exit_code"] = *out.ExitCode
			span.SetAttributes(attribute.Int("paw.exit_code", *out.ExitCode))
		}
		if out.Signal != "" {
			fields["signal"] = out.Signal
			span.SetAttributes(attribute.String("paw.signal", out.Signal))
		}
		log.Info("Child exited", fields)
		log.Debug("watch state", logging.Fields{"state": StateDone})

		return out, nil
	}
}

// Package operation implements a repeatable, time-bounded unit of work.
package operation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type State int32

const (
	Waiting State = iota
	Running
	Success
	Failure
	TimeOut
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Success:
		return "success"
	case Failure:
		return "failure"
	case TimeOut:
		return "timeout"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transition can happen during a run.
func (s State) Terminal() bool {
	return s == Success || s == Failure || s == TimeOut
}

// Method is the preferred way for a scheduler to run an operation relative
// to its neighbours. The operation itself never reads it.
type Method int

const (
	// Sequential runs alone, after every pending Asynchronous operation has completed.
	Sequential Method = iota
	// Asynchronous runs alongside other Asynchronous and Parallel operations.
	Asynchronous
	// Parallel runs alongside anything and is only joined at the very end.
	Parallel
)

func (m Method) String() string {
	switch m {
	case Sequential:
		return "sequential"
	case Asynchronous:
		return "asynchronous"
	case Parallel:
		return "parallel"
	}
	return fmt.Sprintf("method(%d)", int(m))
}

// ParseMethod accepts the names returned by Method.String.
func ParseMethod(s string) (Method, error) {
	switch s {
	case "sequential", "":
		return Sequential, nil
	case "asynchronous", "async":
		return Asynchronous, nil
	case "parallel":
		return Parallel, nil
	}
	return Sequential, errors.Errorf("unknown execution method %q", s)
}

var (
	ErrTimeout    = errors.New("operation timed out")
	ErrNoExecutor = errors.New("operation has no executor")
	// ErrDone may be returned by an Executor to end the run early with Success.
	ErrDone = errors.New("operation done")
)

// Executor performs one iteration of an operation. Iterations start at 0.
type Executor interface {
	Execute(ctx context.Context, iteration int) error
}

type ExecutorFunc func(ctx context.Context, iteration int) error

func (f ExecutorFunc) Execute(ctx context.Context, iteration int) error {
	return f(ctx, iteration)
}

type opts struct {
	name     string
	method   Method
	count    int
	delay    time.Duration
	interval time.Duration
	timeout  time.Duration
	log      *logrus.Entry
}

type Opt func(*opts)

func WithName(name string) Opt {
	return func(o *opts) { o.name = name }
}

func WithMethod(m Method) Opt {
	return func(o *opts) { o.method = m }
}

// WithCount sets how many iterations a run performs. Zero runs nothing and succeeds.
func WithCount(n int) Opt {
	return func(o *opts) { o.count = n }
}

// WithDelay sets a wait applied once before the first iteration.
func WithDelay(d time.Duration) Opt {
	return func(o *opts) { o.delay = d }
}

// WithInterval sets a wait between iterations, never after the last one.
func WithInterval(d time.Duration) Opt {
	return func(o *opts) { o.interval = d }
}

// WithTimeout bounds the time spent iterating, measured after the delay.
// Zero disables the bound.
func WithTimeout(d time.Duration) Opt {
	return func(o *opts) { o.timeout = d }
}

func WithLogger(log *logrus.Entry) Opt {
	return func(o *opts) { o.log = log }
}

// Operation runs an Executor count times with an optional delay, interval
// and timeout, tracking its State.
type Operation struct {
	exec  Executor
	opts  opts
	state atomic.Int32
}

func New(exec Executor, options ...Opt) *Operation {
	o := opts{count: 1}
	for _, opt := range options {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.name != "" {
		o.log = o.log.WithField("operation", o.name)
	}
	return &Operation{exec: exec, opts: o}
}

func (op *Operation) Name() string { return op.opts.name }

func (op *Operation) State() State { return State(op.state.Load()) }

func (op *Operation) Method() Method { return op.opts.method }

func (op *Operation) Count() int { return op.opts.count }

func (op *Operation) Delay() time.Duration { return op.opts.delay }

func (op *Operation) Interval() time.Duration { return op.opts.interval }

func (op *Operation) Timeout() time.Duration { return op.opts.timeout }

func (op *Operation) setState(s State) {
	op.state.Store(int32(s))
}

// Run executes the operation and returns nil when every iteration
// succeeded. A failing iteration stops the run and its error is returned.
// When the elapsed time after an iteration reaches the timeout the run stops
// with ErrTimeout and the state becomes TimeOut.
func (op *Operation) Run(ctx context.Context) error {
	if op.exec == nil {
		op.setState(Failure)
		return ErrNoExecutor
	}
	op.setState(Running)

	if op.opts.delay > 0 {
		if err := sleep(ctx, op.opts.delay); err != nil {
			op.setState(Failure)
			return errors.Wrap(err, "delay")
		}
	}

	start := time.Now()
	for i := 0; i < op.opts.count; i++ {
		err := op.exec.Execute(ctx, i)

		if op.opts.timeout > 0 && time.Since(start) >= op.opts.timeout {
			op.setState(TimeOut)
			op.opts.log.WithField("iteration", i).WithField("elapsed", time.Since(start)).Debug("Operation timed out")
			return ErrTimeout
		}

		if errors.Is(err, ErrDone) {
			op.opts.log.WithField("iteration", i).Trace("Operation finished early")
			break
		}
		if err != nil {
			op.setState(Failure)
			op.opts.log.WithField("iteration", i).WithError(err).Debug("Operation failed")
			return errors.Wrapf(err, "iteration %d", i)
		}

		if op.opts.interval > 0 && i < op.opts.count-1 {
			if err := sleep(ctx, op.opts.interval); err != nil {
				op.setState(Failure)
				return errors.Wrap(err, "interval")
			}
		}
	}

	op.setState(Success)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

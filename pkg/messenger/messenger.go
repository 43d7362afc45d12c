// Package messenger schedules operations according to their execution method.
//
// The walk over the pushed operations keeps two pending groups. Asynchronous
// operations are joined by the next Sequential operation or at the end of the
// run. Parallel operations are only joined at the end of the run. Every
// launched operation is joined before Run returns, even after a failure.
package messenger

import (
	"context"
	"sync"
	"time"

	"nts/pkg/operation"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"
)

// Runnable is what a Messenger schedules. *operation.Operation implements it.
type Runnable interface {
	Run(ctx context.Context) error
	Method() operation.Method
	Name() string
}

type messengerOpts struct {
	log *logrus.Entry
}

type MessengerOpt func(*messengerOpts)

func WithLogger(log *logrus.Entry) MessengerOpt {
	return func(o *messengerOpts) { o.log = log }
}

type Messenger struct {
	mu   sync.Mutex
	ops  []Runnable
	opts messengerOpts
}

func New(opts ...MessengerOpt) *Messenger {
	o := messengerOpts{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Messenger{opts: o}
}

// Push appends op to the schedule.
func (m *Messenger) Push(op Runnable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

func (m *Messenger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

// Run walks the schedule once and returns the combined errors of every
// operation that failed. A failure stops the walk; already launched
// operations still run to completion and are joined.
func (m *Messenger) Run(ctx context.Context) error {
	m.mu.Lock()
	ops := make([]Runnable, len(m.ops))
	copy(ops, m.ops)
	m.mu.Unlock()

	var (
		result   error
		async    = newGroup()
		parallel = newGroup()
		start    = time.Now()
	)

	for i, op := range ops {
		log := m.opts.log.WithField("index", i).WithField("method", op.Method())
		if op.Name() != "" {
			log = log.WithField("operation", op.Name())
		}

		switch op.Method() {
		case operation.Sequential:
			if async.launched > 0 {
				log.WithField("pending", async.launched).Trace("Joining asynchronous operations")
			}
			result = multierr.Append(result, async.wait())
			async = newGroup()

			log.Trace("Running operation")
			result = multierr.Append(result, wrap(op.Run(ctx), i, op))
		case operation.Asynchronous:
			log.Trace("Launching asynchronous operation")
			async.launch(ctx, i, op)
		case operation.Parallel:
			log.Trace("Launching parallel operation")
			parallel.launch(ctx, i, op)
		default:
			log.Warn("Skipping operation with unknown execution method")
		}

		if result != nil {
			log.WithError(result).Debug("Stopping schedule after failure")
			break
		}
	}

	result = multierr.Append(result, async.wait())
	result = multierr.Append(result, parallel.wait())

	m.opts.log.WithField("operations", len(ops)).
		WithField("elapsed", time.Since(start)).
		WithField("success", result == nil).
		Debug("Schedule finished")
	return result
}

// group is a set of join handles. A group is single use: after wait a new
// one replaces it.
type group struct {
	p        *pool.ErrorPool
	launched int
}

func newGroup() *group {
	return &group{p: pool.New().WithErrors()}
}

func (g *group) launch(ctx context.Context, index int, op Runnable) {
	g.launched++
	g.p.Go(func() error {
		return wrap(op.Run(ctx), index, op)
	})
}

func (g *group) wait() error {
	if g.launched == 0 {
		return nil
	}
	return g.p.Wait()
}

func wrap(err error, index int, op Runnable) error {
	if err == nil {
		return nil
	}
	if op.Name() != "" {
		return errors.Wrapf(err, "operation %d (%s)", index, op.Name())
	}
	return errors.Wrapf(err, "operation %d", index)
}

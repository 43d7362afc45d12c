package scenario

import (
	"context"
	"slices"
	"time"

	"nts/internal/logging"
	"nts/pkg/config"
	"nts/pkg/message"
	"nts/pkg/messenger"
	"nts/pkg/operation"
	"nts/pkg/packet"
	"nts/pkg/session"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// OpenSession opens the transport a scenario names.
func OpenSession(spec SessionSpec) (session.Session, error) {
	switch spec.Kind {
	case "raw":
		if spec.Iface == "" {
			return nil, errors.New("raw session needs an iface")
		}
		return session.OpenRaw(spec.Iface, session.WithReceiveTimeout(100*time.Millisecond))
	case "pcap", "":
		return session.OpenPcap(spec.Read, spec.Write)
	case "tcp":
		return session.DialStream("tcp", spec.Addr)
	}
	return nil, errors.Errorf("unknown session kind %q", spec.Kind)
}

// StepResult exposes a step's state and, for reads, what it collected.
type StepResult struct {
	Name  string
	Kind  string
	op    *operation.Operation
	Inbox *session.Inbox
}

func (r *StepResult) State() operation.State { return r.op.State() }

// Runner builds the operations of a scenario and runs them.
type Runner struct {
	sc       *Scenario
	session  session.Session
	cfg      config.Configuration
	registry *message.Registry
	log      *logrus.Entry
}

// NewRunner uses base as the configuration under the scenario's own
// config block.
func NewRunner(sc *Scenario, s session.Session, base config.Configuration) *Runner {
	return &Runner{
		sc:       sc,
		session:  s,
		cfg:      config.NewComposite(base, sc.Configuration()),
		registry: message.NewRegistry(message.WithStandardParsers(), message.WithRegistryLogger(logging.Named("registry"))),
		log:      logging.Named("scenario").WithField("scenario", sc.Name),
	}
}

// Build turns every step into an operation pushed onto a new messenger.
func (r *Runner) Build() (*messenger.Messenger, []*StepResult, error) {
	m := messenger.New(messenger.WithLogger(r.log))
	results := make([]*StepResult, 0, len(r.sc.Steps))

	for i := range r.sc.Steps {
		st := &r.sc.Steps[i]
		opts := append(st.options(), operation.WithLogger(r.log))
		res := &StepResult{Name: st.Name, Kind: st.Kind}

		switch st.Kind {
		case KindWrite:
			var p WriteParams
			if err := decodeParams(st.Params, &p); err != nil {
				return nil, nil, errors.Wrapf(err, "step %s", st.Name)
			}
			msg, err := p.BuildMessage(r.cfg)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "step %s", st.Name)
			}
			var mutate session.Mutator
			if p.Sequence {
				mutate = sequence
			}
			w := session.NewWriteOperation(r.session, msg, mutate, opts...)
			res.op = w.Operation
			m.Push(w)
		case KindRead:
			var p ReadParams
			if err := decodeParams(st.Params, &p); err != nil {
				return nil, nil, errors.Wrapf(err, "step %s", st.Name)
			}
			res.Inbox = session.NewInbox()
			rd := session.NewReadOperation(r.session, r.registry, nil, readHandler(p, res.Inbox), opts...)
			res.op = rd.Operation
			m.Push(rd)
		case KindSleep:
			var p SleepParams
			if err := decodeParams(st.Params, &p); err != nil {
				return nil, nil, errors.Wrapf(err, "step %s", st.Name)
			}
			op := operation.New(operation.ExecutorFunc(func(ctx context.Context, _ int) error {
				t := time.NewTimer(p.Duration)
				defer t.Stop()
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.C:
					return nil
				}
			}), opts...)
			res.op = op
			m.Push(op)
		}
		results = append(results, res)
	}
	return m, results, nil
}

// Run builds and runs the scenario, logging each step's final state.
func (r *Runner) Run(ctx context.Context) ([]*StepResult, error) {
	m, results, err := r.Build()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	err = m.Run(ctx)
	for _, res := range results {
		l := r.log.WithField("step", res.Name).WithField("state", res.State())
		if res.Inbox != nil {
			l = l.WithField("messages", res.Inbox.Len())
		}
		l.Info("Step finished")
	}
	r.log.WithField("elapsed", time.Since(start)).WithField("success", err == nil).Info("Scenario finished")
	return results, err
}

func sequence(iteration int, m *message.Message) error {
	if icmp, ok := m.Get(packet.TagIcmp).(*packet.Icmp); ok {
		icmp.SetSequenceNumber(uint16(iteration))
	}
	return nil
}

func readHandler(p ReadParams, inbox *session.Inbox) session.Handler {
	return func(_ int, m *message.Message) error {
		if len(p.Layers) > 0 && !slices.Equal(p.Layers, m.Tags()) {
			return nil
		}
		inbox.Push(m)
		if p.Stop > 0 && inbox.Len() >= p.Stop {
			return operation.ErrDone
		}
		return nil
	}
}

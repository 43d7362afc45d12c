package session

import (
	"context"
	"sync"

	"nts/pkg/message"
	"nts/pkg/operation"

	"github.com/pkg/errors"
)

// Inbox collects received messages. It is safe for concurrent use.
type Inbox struct {
	mu   sync.Mutex
	msgs []*message.Message
}

func NewInbox() *Inbox { return &Inbox{} }

func (b *Inbox) Push(m *message.Message) {
	b.mu.Lock()
	b.msgs = append(b.msgs, m)
	b.mu.Unlock()
}

func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

// Messages returns a snapshot of the collected messages.
func (b *Inbox) Messages() []*message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*message.Message, len(b.msgs))
	copy(out, b.msgs)
	return out
}

// Drain returns the collected messages and empties the inbox.
func (b *Inbox) Drain() []*message.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.msgs
	b.msgs = nil
	return out
}

// Handler inspects a received message. Returning operation.ErrDone ends the
// read successfully; any other error fails it.
type Handler func(iteration int, m *message.Message) error

// ReadOperation receives one frame per iteration, parses it with the
// registry, stores the message in the inbox and passes it to the handler.
// A receive timeout counts as an iteration without a message.
type ReadOperation struct {
	*operation.Operation
	session  Session
	registry *message.Registry
	inbox    *Inbox
	handler  Handler
	buf      []byte
}

// NewReadOperation builds a read. inbox and handler may be nil.
func NewReadOperation(s Session, registry *message.Registry, inbox *Inbox, handler Handler, opts ...operation.Opt) *ReadOperation {
	r := &ReadOperation{
		session:  s,
		registry: registry,
		inbox:    inbox,
		handler:  handler,
		buf:      make([]byte, FrameSize),
	}
	r.Operation = operation.New(operation.ExecutorFunc(r.execute), opts...)
	return r
}

func (r *ReadOperation) Inbox() *Inbox { return r.inbox }

func (r *ReadOperation) execute(ctx context.Context, iteration int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := r.session.Receive(r.buf)
	if errors.Is(err, ErrReceiveTimeout) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "session.Receive")
	}

	m := message.Parse(r.buf[:n], r.registry)
	if r.inbox != nil {
		r.inbox.Push(m)
	}
	if r.handler != nil {
		return r.handler(iteration, m)
	}
	return nil
}

// Mutator adjusts the outgoing message before each send, for instance to
// bump a sequence number.
type Mutator func(iteration int, m *message.Message) error

// WriteOperation sends its message once per iteration.
type WriteOperation struct {
	*operation.Operation
	session Session
	msg     *message.Message
	mutate  Mutator
}

// NewWriteOperation builds a write. mutate may be nil.
func NewWriteOperation(s Session, m *message.Message, mutate Mutator, opts ...operation.Opt) *WriteOperation {
	w := &WriteOperation{session: s, msg: m, mutate: mutate}
	w.Operation = operation.New(operation.ExecutorFunc(w.execute), opts...)
	return w
}

func (w *WriteOperation) Message() *message.Message { return w.msg }

func (w *WriteOperation) execute(ctx context.Context, iteration int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.mutate != nil {
		if err := w.mutate(iteration, w.msg); err != nil {
			return errors.Wrap(err, "mutate")
		}
	}
	_, err := SendMessage(w.session, w.msg)
	return err
}

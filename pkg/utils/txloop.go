package utils

import (
	"bytes"
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"nts/pkg/tlv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrTxLoopClosed    = errors.New("tx loop closed")
	ErrTxLoopQueueFull = errors.New("tx loop queue full")
)

type txLoopOpts struct {
	dial      func(string, string) (net.Conn, error)
	log       *logrus.Entry
	heartbeat time.Duration
	queueLen  int
}

type TxLoopOpt func(*txLoopOpts)

func WithTxLoopDial(dial func(string, string) (net.Conn, error)) TxLoopOpt {
	return func(o *txLoopOpts) { o.dial = dial }
}

func WithTxLoopLogger(log *logrus.Entry) TxLoopOpt {
	return func(o *txLoopOpts) { o.log = log }
}

// WithTxLoopHeartbeat sets how often an idle connection is probed and a
// broken one redialed.
func WithTxLoopHeartbeat(d time.Duration) TxLoopOpt {
	return func(o *txLoopOpts) { o.heartbeat = d }
}

func WithTxLoopQueueLen(n int) TxLoopOpt {
	return func(o *txLoopOpts) { o.queueLen = n }
}

// TxLoop ships frames to a remote stream as TLV records, redialing when the
// connection breaks. Frames queued while disconnected are dropped.
type TxLoop struct {
	network string
	addr    string
	opts    txLoopOpts
	conn    net.Conn
	dataCh  chan []byte
	closeCh chan struct{}
	once    sync.Once

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func NewTxLoop(network, addr string, opts ...TxLoopOpt) (*TxLoop, error) {
	var o txLoopOpts
	for _, opt := range opts {
		opt(&o)
	}
	if o.dial == nil {
		o.dial = net.Dial
	}
	if o.log == nil {
		o.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if o.heartbeat == 0 {
		o.heartbeat = time.Second * 10
	}
	if o.queueLen == 0 {
		o.queueLen = 128
	}
	o.log = o.log.WithField("addr", addr)

	conn, err := o.dial(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "Dial")
	}

	return &TxLoop{
		network: network,
		addr:    addr,
		opts:    o,
		conn:    conn,
		dataCh:  make(chan []byte, o.queueLen),
		closeCh: make(chan struct{}),
	}, nil
}

// Write queues a copy of frame. It never blocks.
func (tx *TxLoop) Write(frame []byte) (int, error) {
	select {
	case <-tx.closeCh:
		return 0, ErrTxLoopClosed
	default:
	}

	ownData := make([]byte, len(frame))
	copy(ownData, frame)
	select {
	case tx.dataCh <- ownData:
		return len(frame), nil
	default:
		tx.dropped.Add(1)
		return 0, ErrTxLoopQueueFull
	}
}

func (tx *TxLoop) Sent() uint64 { return tx.sent.Load() }

func (tx *TxLoop) Dropped() uint64 { return tx.dropped.Load() }

func (tx *TxLoop) Close() error {
	tx.once.Do(func() { close(tx.closeCh) })
	return nil
}

// Serve runs until ctx is done or Close is called. Frames still queued at
// Close are flushed first.
func (tx *TxLoop) Serve(ctx context.Context) error {
	healthTick := time.NewTicker(tx.opts.heartbeat)
	defer healthTick.Stop()
	defer tx.closeConn()

	var buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tx.closeCh:
			for {
				select {
				case data := <-tx.dataCh:
					tx.send(&buf, tlv.TypeFrame, data)
				default:
					return nil
				}
			}
		case data := <-tx.dataCh:
			tx.send(&buf, tlv.TypeFrame, data)
		case <-healthTick.C:
			if tx.conn != nil {
				tx.send(&buf, tlv.TypeHeartbeat, nil)
				continue
			}

			conn, err := tx.opts.dial(tx.network, tx.addr)
			if err != nil {
				tx.opts.log.WithError(err).Warn("Fail to connect")
				continue
			}
			tx.conn = conn
			tx.opts.log.Info("Connected")
		}
	}
}

func (tx *TxLoop) send(buf *bytes.Buffer, typ uint16, data []byte) {
	if tx.conn == nil {
		if typ == tlv.TypeFrame {
			tx.dropped.Add(1)
			tx.opts.log.WithField("datalen", len(data)).Debug("Drop frame, not connected")
		}
		return
	}

	buf.Reset()
	t := tlv.TLV{Type: typ}
	if _, err := t.EncodeTo(buf, data); err != nil {
		tx.dropped.Add(1)
		tx.opts.log.WithError(err).Warn("Fail to encode frame")
		return
	}

	if _, err := tx.conn.Write(buf.Bytes()); err != nil {
		tx.opts.log.WithError(err).Warn("Fail to write")
		tx.closeConn()
		if typ == tlv.TypeFrame {
			tx.dropped.Add(1)
		}
		return
	}
	if typ == tlv.TypeFrame {
		tx.sent.Add(1)
		tx.opts.log.WithField("datalen", len(data)).Trace("Write")
	}
}

func (tx *TxLoop) closeConn() {
	if tx.conn != nil {
		tx.conn.Close()
		tx.conn = nil
	}
}

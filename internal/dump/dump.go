package dump

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"nts/pkg/message"
	"nts/pkg/packet"
	"nts/pkg/session"
	"nts/pkg/utils"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/songgao/water"
)

// Sink receives every dumped message together with its wire bytes.
type Sink interface {
	Type() string
	Write(m *message.Message, frame []byte) error
	Close() error
}

type FileSink struct {
	pcap *session.PcapSession
}

func NewFileSink(filename string) (*FileSink, error) {
	s, err := session.OpenPcap("", filename)
	if err != nil {
		return nil, err
	}
	return &FileSink{pcap: s}, nil
}

func (d *FileSink) Type() string { return "file" }

func (d *FileSink) Write(_ *message.Message, frame []byte) error {
	_, err := d.pcap.Send(frame)
	return err
}

func (d *FileSink) Close() error { return d.pcap.Close() }

type TCPSink struct {
	tx   *utils.TxLoop
	once sync.Once
	ctx  context.Context
}

func NewTCPSink(ctx context.Context, addr string) (*TCPSink, error) {
	txLoop, err := utils.NewTxLoop("tcp", addr, utils.WithTxLoopLogger(logrus.WithField("sink", "tcp")))
	if err != nil {
		return nil, err
	}
	return &TCPSink{tx: txLoop, ctx: ctx}, nil
}

func (d *TCPSink) Type() string { return "tcp" }

func (d *TCPSink) Write(_ *message.Message, frame []byte) error {
	d.once.Do(func() { go d.tx.Serve(d.ctx) })
	_, err := d.tx.Write(frame)
	return err
}

func (d *TCPSink) Close() error {
	return d.tx.Close()
}

// StdoutSink prints one tcpdump-like line per message, or the full
// per-layer rendering when verbose.
type StdoutSink struct {
	out     io.Writer
	verbose bool
	now     func() time.Time
}

func NewStdoutSink(verbose bool) *StdoutSink {
	return &StdoutSink{out: os.Stdout, verbose: verbose, now: time.Now}
}

func (StdoutSink) Type() string { return "stdout" }

func (d *StdoutSink) Write(m *message.Message, _ []byte) error {
	if d.verbose {
		_, err := fmt.Fprintf(d.out, "%s %s", FormatDumpTime(d.now()), m.Verbose())
		return err
	}

	line, err := m.Summary()
	if err != nil {
		return errors.Wrap(err, "message.Summary")
	}
	_, err = fmt.Fprintf(d.out, "%s %s\n", FormatDumpTime(d.now()), line)
	return err
}

func (StdoutSink) Close() error { return nil }

// TunSink writes the IPv4 part of each message to a TUN device. Messages
// without an IPv4 layer are skipped.
type TunSink struct {
	tun io.WriteCloser
}

func NewTunSink(tunName string) (*TunSink, error) {
	ifaceTun, err := water.New(water.Config{
		DeviceType: water.TUN,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name:    tunName,
			Persist: true,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "water.New")
	}
	return &TunSink{tun: ifaceTun}, nil
}

func (t *TunSink) Type() string { return "tun" }

func (t *TunSink) Write(m *message.Message, _ []byte) error {
	data, ok, err := networkLayer(m)
	if err != nil || !ok {
		return err
	}
	_, err = t.tun.Write(data)
	return err
}

func (t *TunSink) Close() error {
	if t.tun != nil {
		return t.tun.Close()
	}
	return nil
}

// networkLayer encodes the units from the IPv4 header onwards.
func networkLayer(m *message.Message) ([]byte, bool, error) {
	units := m.Units()
	for i, u := range units {
		if u.Tag() != packet.TagIpv4 {
			continue
		}
		var buf bytes.Buffer
		if err := message.New(units[i:]...).Encode(&buf); err != nil {
			return nil, false, err
		}
		return buf.Bytes(), true, nil
	}
	return nil, false, nil
}

func FormatDumpTime(t time.Time) string {
	return t.Local().Format("15:04:05.000")
}

// Dumper fans each message out to its sinks. A failing sink is logged and
// does not stop the others.
type Dumper struct {
	sinks []Sink
	count uint64
}

func NewDumper(sinks ...Sink) *Dumper {
	return &Dumper{sinks: sinks}
}

func (d *Dumper) Count() uint64 { return d.count }

func (d *Dumper) Handle(_ int, m *message.Message) error {
	d.count++
	frame, err := m.Bytes()
	if err != nil {
		return errors.Wrap(err, "message.Bytes")
	}
	for _, s := range d.sinks {
		if err := s.Write(m, frame); err != nil {
			logrus.WithField("type", s.Type()).WithError(err).Warn("Fail to write")
		}
	}
	return nil
}

func (d *Dumper) Close() {
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			logrus.WithField("type", s.Type()).WithError(err).Warn("Fail to close")
		}
	}
}

package session

import (
	"encoding/binary"
	"time"

	"nts/pkg/capture"
	"nts/pkg/packet"

	"github.com/pkg/errors"
)

type rawOpts struct {
	timeout time.Duration
	promisc bool
}

type RawOpt func(*rawOpts)

// WithReceiveTimeout makes Receive give up with ErrReceiveTimeout.
func WithReceiveTimeout(d time.Duration) RawOpt {
	return func(o *rawOpts) { o.timeout = d }
}

func WithPromiscuous(enable bool) RawOpt {
	return func(o *rawOpts) { o.promisc = enable }
}

// RawSession sends and receives Ethernet frames on a network interface.
// VLAN tags the kernel strips on receive are put back into the frame.
// An 802.1ad outer tag (TPID 0x88A8) is reinserted as is, and the ethernet
// parser leaves everything after it to the generic fallback.
type RawSession struct {
	iface string
	sock  *capture.Socket
}

func OpenRaw(iface string, opts ...RawOpt) (*RawSession, error) {
	var o rawOpts
	for _, opt := range opts {
		opt(&o)
	}

	sock, err := capture.OpenByName(iface,
		capture.WithTimeout(o.timeout),
		capture.WithPromiscuous(o.promisc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "capture.OpenByName")
	}
	return &RawSession{iface: iface, sock: sock}, nil
}

func (s *RawSession) Interface() string { return s.iface }

func (s *RawSession) Send(frame []byte) (int, error) {
	n, err := s.sock.Send(frame)
	if errors.Is(err, capture.ErrClosed) {
		return n, ErrClosed
	}
	return n, err
}

func (s *RawSession) Receive(buf []byte) (int, error) {
	data, vlan, tagged, err := s.sock.Recv()
	switch {
	case errors.Is(err, capture.ErrTimeout):
		return 0, ErrReceiveTimeout
	case errors.Is(err, capture.ErrClosed):
		return 0, ErrClosed
	case err != nil:
		return 0, err
	}

	if !tagged || len(data) < 12 {
		return copy(buf, data), nil
	}
	return reinsertVlan(buf, data, vlan), nil
}

func (s *RawSession) Close() error {
	return s.sock.Close()
}

// reinsertVlan writes data into buf with the tag placed after the MAC
// addresses, truncating to len(buf).
func reinsertVlan(buf, data []byte, vlan capture.VlanInfo) int {
	var tag [packet.VlanTagSize]byte
	binary.BigEndian.PutUint16(tag[0:2], vlan.TPID)
	binary.BigEndian.PutUint16(tag[2:4], vlan.TCI)

	n := copy(buf, data[:12])
	n += copy(buf[n:], tag[:])
	n += copy(buf[n:], data[12:])
	return n
}

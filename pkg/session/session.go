// Package session moves frames between the network, or a stand-in for it,
// and messages.
package session

import (
	"nts/pkg/message"
	"nts/pkg/packet"

	"github.com/pkg/errors"
)

// MTU is the largest payload a single frame is assumed to carry.
const MTU = 1500

// FrameSize bounds one received frame: an MTU sized payload behind an
// Ethernet header with up to two VLAN tags.
const FrameSize = MTU + packet.EthernetHeaderSize + 2*packet.VlanTagSize

var (
	ErrClosed         = errors.New("session closed")
	ErrShortWrite     = errors.New("short write")
	ErrReceiveTimeout = errors.New("receive timeout")
)

// Session is a byte pipe carrying one frame per call.
type Session interface {
	// Send transmits one frame and returns the number of bytes sent.
	Send(frame []byte) (int, error)
	// Receive reads one frame into buf. Frames longer than buf are truncated.
	Receive(buf []byte) (int, error)
	Close() error
}

// SendMessage encodes m and sends it as a single frame.
func SendMessage(s Session, m *message.Message) (int, error) {
	data, err := m.Bytes()
	if err != nil {
		return 0, errors.Wrap(err, "message.Bytes")
	}
	n, err := s.Send(data)
	if err != nil {
		return n, err
	}
	if n < len(data) {
		return n, errors.Wrapf(ErrShortWrite, "sent %d of %d bytes", n, len(data))
	}
	return n, nil
}

// ReceiveMessage reads one frame of at most FrameSize bytes and parses it.
func ReceiveMessage(s Session, registry *message.Registry) (*message.Message, error) {
	buf := make([]byte, FrameSize)
	n, err := s.Receive(buf)
	if err != nil {
		return nil, err
	}
	return message.Parse(buf[:n], registry), nil
}

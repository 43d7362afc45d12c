package session

import (
	"io"
	"net"
	"sync"

	"nts/pkg/tlv"

	"github.com/pkg/errors"
)

// StreamSession carries frames over a byte stream as TLV records.
type StreamSession struct {
	conn io.ReadWriteCloser
	rmu  sync.Mutex
	wmu  sync.Mutex
}

func NewStream(conn io.ReadWriteCloser) *StreamSession {
	return &StreamSession{conn: conn}
}

func DialStream(network, addr string) (*StreamSession, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, errors.Wrap(err, "net.Dial")
	}
	return NewStream(conn), nil
}

func (s *StreamSession) Send(frame []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	t := tlv.TLV{Type: tlv.TypeFrame}
	buf, err := t.Encode(frame)
	if err != nil {
		return 0, errors.Wrap(err, "tlv.Encode")
	}
	n, err := s.conn.Write(buf)
	if err != nil {
		return max(n-tlv.HeaderSize, 0), errors.Wrap(err, "conn.Write")
	}
	return len(frame), nil
}

// Receive returns io.EOF when the peer closed the stream between frames.
func (s *StreamSession) Receive(buf []byte) (int, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()

	value, err := tlv.ReadFrame(s.conn)
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, errors.Wrap(err, "tlv.ReadFrame")
	}
	return copy(buf, value), nil
}

func (s *StreamSession) Close() error {
	return s.conn.Close()
}

package session

import (
	"testing"

	"nts/pkg/message"
	"nts/pkg/packet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memSession keeps sent frames and replays queued ones.
type memSession struct {
	sent     [][]byte
	incoming [][]byte
	limit    int
	closed   bool
}

func (s *memSession) Send(frame []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	n := len(frame)
	if s.limit > 0 && n > s.limit {
		n = s.limit
	}
	s.sent = append(s.sent, append([]byte(nil), frame[:n]...))
	return n, nil
}

func (s *memSession) Receive(buf []byte) (int, error) {
	if s.closed {
		return 0, ErrClosed
	}
	if len(s.incoming) == 0 {
		return 0, ErrReceiveTimeout
	}
	frame := s.incoming[0]
	s.incoming = s.incoming[1:]
	return copy(buf, frame), nil
}

func (s *memSession) Close() error {
	s.closed = true
	return nil
}

func echoMessage(t *testing.T, seq uint16) *message.Message {
	t.Helper()
	eth := packet.NewEthernet().SetEtherType(packet.EtherTypeIPv4)
	require.NoError(t, eth.SetDestination("02:00:00:00:00:02"))
	require.NoError(t, eth.SetSource("02:00:00:00:00:01"))

	ip := packet.NewIpv4()
	ip.Protocol = uint8(packet.IPProtocolICMP)
	ip.TotalLength = packet.Ipv4HeaderSize + packet.IcmpHeaderSize + 4
	require.NoError(t, ip.SetSource("10.0.0.1"))
	require.NoError(t, ip.SetDestination("10.0.0.2"))
	ip.ComputeChecksum()

	return message.New(eth, ip, packet.NewIcmpEcho(0x77, seq), packet.NewGeneric([]byte("ping")))
}

func TestSendReceiveMessage(t *testing.T) {
	s := &memSession{}
	m := echoMessage(t, 5)

	n, err := SendMessage(s, m)
	require.NoError(t, err)
	assert.Equal(t, m.Size(), n)
	require.Len(t, s.sent, 1)

	s.incoming = s.sent
	got, err := ReceiveMessage(s, message.NewRegistry(message.WithStandardParsers()))
	require.NoError(t, err)
	assert.Equal(t, []string{"ethernet", "ipv4", "icmp", "generic"}, got.Tags())
	assert.EqualValues(t, 5, got.Get(packet.TagIcmp).(*packet.Icmp).SequenceNumber())
}

func TestSendMessage_ShortWrite(t *testing.T) {
	s := &memSession{limit: 10}
	n, err := SendMessage(s, echoMessage(t, 1))
	assert.ErrorIs(t, err, ErrShortWrite)
	assert.Equal(t, 10, n)
}

func TestReceiveMessage_Error(t *testing.T) {
	s := &memSession{}
	_, err := ReceiveMessage(s, message.NewRegistry())
	assert.ErrorIs(t, err, ErrReceiveTimeout)
}

func TestFrameSize(t *testing.T) {
	assert.Equal(t, 1522, FrameSize, "A frame should fit an MTU payload behind two VLAN tags")
}

package session

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamSession_RoundTrip(t *testing.T) {
	a, b := net.Pipe()
	left, right := NewStream(a), NewStream(b)
	defer right.Close()

	go func() {
		left.Send([]byte("hello"))
		left.Send([]byte("frames"))
		left.Close()
	}()

	buf := make([]byte, 16)
	n, err := right.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = right.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(buf[:n]))

	_, err = right.Receive(buf)
	assert.Equal(t, io.EOF, err, "A closed peer should end the stream cleanly")
}

func TestStreamSession_Truncates(t *testing.T) {
	a, b := net.Pipe()
	left, right := NewStream(a), NewStream(b)
	defer left.Close()
	defer right.Close()

	go left.Send([]byte("0123456789"))

	buf := make([]byte, 4)
	n, err := right.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))
}

func TestDialStream(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer lis.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := lis.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	s, err := DialStream("tcp", lis.Addr().String())
	require.NoError(t, err)
	defer s.Close()

	peer := NewStream(<-accepted)
	defer peer.Close()

	_, err = s.Send([]byte{0xAB})
	require.NoError(t, err)
	buf := make([]byte, 4)
	n, err := peer.Receive(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAB}, buf[:n])
}

package utils

import (
	"context"
	"net"
	"testing"
	"time"

	"nts/pkg/tlv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxLoop_ShipsFramesAsTLV(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	tx, err := NewTxLoop("pipe", "test", WithTxLoopDial(func(string, string) (net.Conn, error) {
		return client, nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- tx.Serve(ctx) }()

	_, err = tx.Write([]byte("frame-1"))
	require.NoError(t, err)
	_, err = tx.Write([]byte("frame-2"))
	require.NoError(t, err)

	for _, want := range []string{"frame-1", "frame-2"} {
		got, err := tlv.ReadFrame(server)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	require.NoError(t, tx.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after Close")
	}
	assert.EqualValues(t, 2, tx.Sent())
	_, err = tx.Write([]byte("late"))
	assert.ErrorIs(t, err, ErrTxLoopClosed)
}

func TestTxLoop_QueueFull(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()
	defer client.Close()

	tx, err := NewTxLoop("pipe", "test",
		WithTxLoopQueueLen(1),
		WithTxLoopDial(func(string, string) (net.Conn, error) { return client, nil }),
	)
	require.NoError(t, err)

	_, err = tx.Write([]byte("a"))
	require.NoError(t, err)
	_, err = tx.Write([]byte("b"))
	assert.ErrorIs(t, err, ErrTxLoopQueueFull, "Write should not block when nothing drains the queue")
	assert.EqualValues(t, 1, tx.Dropped())
}

func TestTxLoop_DialError(t *testing.T) {
	_, err := NewTxLoop("tcp", "127.0.0.1:0", WithTxLoopDial(func(string, string) (net.Conn, error) {
		return nil, assert.AnError
	}))
	assert.ErrorIs(t, err, assert.AnError)
}

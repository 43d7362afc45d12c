package session

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"nts/pkg/message"
	"nts/pkg/messenger"
	"nts/pkg/operation"
	"nts/pkg/packet"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadOperation_CollectsMessages(t *testing.T) {
	s := &memSession{}
	for seq := uint16(0); seq < 3; seq++ {
		data, err := echoMessage(t, seq).Bytes()
		require.NoError(t, err)
		s.incoming = append(s.incoming, data)
	}

	var seen []int
	inbox := NewInbox()
	read := NewReadOperation(s, message.NewRegistry(message.WithStandardParsers()), inbox,
		func(i int, m *message.Message) error {
			seen = append(seen, i)
			return nil
		}, operation.WithCount(3))

	require.NoError(t, read.Run(context.Background()))
	assert.Equal(t, operation.Success, read.State())
	assert.Equal(t, []int{0, 1, 2}, seen)
	require.Equal(t, 3, inbox.Len())

	msgs := inbox.Drain()
	assert.Zero(t, inbox.Len())
	for i, m := range msgs {
		assert.EqualValues(t, i, m.Get(packet.TagIcmp).(*packet.Icmp).SequenceNumber())
	}
}

func TestReadOperation_TimeoutIsEmptyIteration(t *testing.T) {
	s := &memSession{}
	inbox := NewInbox()
	read := NewReadOperation(s, message.NewRegistry(), inbox, nil, operation.WithCount(2))

	require.NoError(t, read.Run(context.Background()))
	assert.Zero(t, inbox.Len())
}

func TestReadOperation_HandlerDone(t *testing.T) {
	s := &memSession{incoming: [][]byte{{1}, {2}, {3}}}
	read := NewReadOperation(s, message.NewRegistry(), nil, func(i int, m *message.Message) error {
		if i == 1 {
			return operation.ErrDone
		}
		return nil
	}, operation.WithCount(10))

	require.NoError(t, read.Run(context.Background()))
	assert.Len(t, s.incoming, 1, "Reading should stop once the handler is done")
}

func TestReadOperation_ReceiveError(t *testing.T) {
	s := &memSession{closed: true}
	read := NewReadOperation(s, message.NewRegistry(), nil, nil)

	err := read.Run(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	assert.Equal(t, operation.Failure, read.State())
}

func TestWriteOperation_Mutates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "write.pcap")
	out, err := OpenPcap("", path)
	require.NoError(t, err)

	write := NewWriteOperation(out, echoMessage(t, 0), func(i int, m *message.Message) error {
		m.Get(packet.TagIcmp).(*packet.Icmp).SetSequenceNumber(uint16(100 + i))
		return nil
	}, operation.WithCount(3))

	require.NoError(t, write.Run(context.Background()))
	require.NoError(t, out.Close())

	in, err := OpenPcap(path, "")
	require.NoError(t, err)
	defer in.Close()

	inbox := NewInbox()
	read := NewReadOperation(in, message.NewRegistry(message.WithStandardParsers()), inbox, nil, operation.WithCount(3))
	require.NoError(t, read.Run(context.Background()))

	var seqs []uint16
	for _, m := range inbox.Messages() {
		seqs = append(seqs, m.Get(packet.TagIcmp).(*packet.Icmp).SequenceNumber())
	}
	assert.Equal(t, []uint16{100, 101, 102}, seqs)
}

func TestWriteOperation_MutatorError(t *testing.T) {
	s := &memSession{}
	write := NewWriteOperation(s, echoMessage(t, 0), func(int, *message.Message) error {
		return assert.AnError
	})

	err := write.Run(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, s.sent)
}

func TestReadWrite_UnderMessenger(t *testing.T) {
	a, b := net.Pipe()
	sender, receiver := NewStream(a), NewStream(b)
	defer sender.Close()
	defer receiver.Close()

	inbox := NewInbox()
	read := NewReadOperation(receiver, message.NewRegistry(message.WithStandardParsers()), inbox, nil,
		operation.WithCount(3), operation.WithMethod(operation.Parallel), operation.WithName("read"))
	write := NewWriteOperation(sender, echoMessage(t, 0), func(i int, m *message.Message) error {
		m.Get(packet.TagIcmp).(*packet.Icmp).SetSequenceNumber(uint16(i))
		return nil
	}, operation.WithCount(3), operation.WithInterval(5*time.Millisecond), operation.WithName("write"))

	m := messenger.New()
	m.Push(read)
	m.Push(write)
	require.NoError(t, m.Run(context.Background()))

	require.Equal(t, 3, inbox.Len(), "Parallel reads should be joined before Run returns")
	for i, msg := range inbox.Messages() {
		assert.Equal(t, []string{"ethernet", "ipv4", "icmp", "generic"}, msg.Tags())
		assert.EqualValues(t, i, msg.Get(packet.TagIcmp).(*packet.Icmp).SequenceNumber())
	}
}

// Package capture reads and writes link layer frames on an AF_PACKET socket.
package capture

import (
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"nts/pkg/poll"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	ErrTimeout = errors.New("receive timeout")
	ErrClosed  = errors.New("socket closed")
)

// Upper bound of a single blocking poll, so Close is noticed promptly.
const pollSlice = 100 * time.Millisecond

type socketOpts struct {
	timeout    time.Duration
	promisc    bool
	bufferSize int
}

type SocketOpt func(*socketOpts)

// WithTimeout bounds how long Recv waits for a frame. Zero waits until a
// frame arrives or the socket is closed.
func WithTimeout(d time.Duration) SocketOpt {
	return func(o *socketOpts) { o.timeout = d }
}

func WithPromiscuous(enable bool) SocketOpt {
	return func(o *socketOpts) { o.promisc = enable }
}

func WithBufferSize(n int) SocketOpt {
	return func(o *socketOpts) { o.bufferSize = n }
}

// Socket is a raw packet socket bound to one interface. Recv is not safe
// for concurrent use; Send and Close may be called from any goroutine.
type Socket struct {
	fd      int
	ifIndex int
	poller  *poll.ReadPoller
	buffer  []byte
	oob     []byte
	opts    socketOpts
	closed  atomic.Bool
	closeMu sync.Mutex
}

func OpenByName(name string, opts ...SocketOpt) (*Socket, error) {
	link, err := net.InterfaceByName(name)
	if err != nil {
		return nil, errors.Wrap(err, "net.InterfaceByName")
	}
	return OpenByIndex(link.Index, opts...)
}

func OpenByIndex(ifIndex int, opts ...SocketOpt) (*Socket, error) {
	o := socketOpts{bufferSize: 1024 * 64}
	for _, opt := range opts {
		opt(&o)
	}

	fd, err := OpenRawSocket(ifIndex)
	if err != nil {
		return nil, err
	}

	if err = SetPacketAuxData(fd); err != nil {
		syscall.Close(fd)
		return nil, errors.Wrap(err, "SetPacketAuxData")
	}
	if o.promisc {
		if err = SetPacketMembership(fd, int32(ifIndex)); err != nil {
			syscall.Close(fd)
			return nil, errors.Wrap(err, "SetPacketMembership")
		}
	}

	poller, err := poll.New()
	if err != nil {
		syscall.Close(fd)
		return nil, err
	}
	if err = poller.Add(fd); err != nil {
		poller.Close()
		syscall.Close(fd)
		return nil, err
	}

	return &Socket{
		fd:      fd,
		ifIndex: ifIndex,
		poller:  poller,
		buffer:  make([]byte, o.bufferSize),
		oob:     make([]byte, unix.CmsgSpace(int(unsafe.Sizeof(unix.TpacketAuxdata{})))),
		opts:    o,
	}, nil
}

func (s *Socket) IfIndex() int { return s.ifIndex }

// Recv returns the next frame and the VLAN tag the kernel stripped from it,
// if any. The returned slice is reused by the next call.
func (s *Socket) Recv() ([]byte, VlanInfo, bool, error) {
	var deadline time.Time
	if s.opts.timeout > 0 {
		deadline = time.Now().Add(s.opts.timeout)
	}

	for {
		if s.closed.Load() {
			return nil, VlanInfo{}, false, ErrClosed
		}

		data, oob, err := s.recvmsg()
		if err == nil {
			vlan, ok, err := ParseVlanAuxData(oob)
			if err != nil {
				return data, VlanInfo{}, false, nil
			}
			return data, vlan, ok, nil
		}
		if !errors.Is(err, unix.EAGAIN) {
			return nil, VlanInfo{}, false, err
		}

		wait := pollSlice
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return nil, VlanInfo{}, false, ErrTimeout
			}
			wait = min(wait, left)
		}
		if _, err := s.poller.Wait(wait); err != nil {
			if s.closed.Load() {
				return nil, VlanInfo{}, false, ErrClosed
			}
			return nil, VlanInfo{}, false, err
		}
	}
}

func (s *Socket) Send(data []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	n, err := unix.Write(s.fd, data)
	if err != nil {
		return n, errors.Wrap(err, "unix.Write")
	}
	return n, nil
}

func (s *Socket) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed.Swap(true) {
		return nil
	}
	s.poller.Close()
	return syscall.Close(s.fd)
}

func (s *Socket) recvmsg() ([]byte, []byte, error) {
	// ref: https://github.com/google/gopacket/blob/master/pcapgo/capture.go#L45
	// we could use unix.Recvmsg, but that does a memory allocation (for the returned sockaddr) :(
	var msg unix.Msghdr
	var sa unix.RawSockaddrLinklayer

	msg.Name = (*byte)(unsafe.Pointer(&sa))
	msg.Namelen = uint32(unsafe.Sizeof(sa))

	var iov unix.Iovec
	if len(s.buffer) > 0 {
		iov.Base = &s.buffer[0]
		iov.SetLen(len(s.buffer))
	}
	msg.Iov = &iov
	msg.Iovlen = 1

	msg.Control = &s.oob[0]
	msg.SetControllen(len(s.oob))

	// use msg_trunc so we know packet size without auxdata, which might be missing
	n, _, e := syscall.Syscall(unix.SYS_RECVMSG, uintptr(s.fd), uintptr(unsafe.Pointer(&msg)), uintptr(unix.MSG_TRUNC))
	if e != 0 {
		return nil, nil, errors.Wrap(e, "unix.SYS_RECVMSG")
	}

	captureLen := min(int(n), len(s.buffer))
	return s.buffer[:captureLen], s.oob[:msg.Controllen], nil
}

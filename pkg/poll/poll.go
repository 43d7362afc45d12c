package poll

import (
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ReadPoller waits for registered descriptors to become readable.
type ReadPoller struct {
	fds map[int]struct{}
	mu  sync.RWMutex
	efd int
}

func New() (*ReadPoller, error) {
	efd, err := syscall.EpollCreate1(syscall.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "syscall.EpollCreate1")
	}
	return &ReadPoller{
		fds: make(map[int]struct{}),
		efd: efd,
	}, nil
}

func (p *ReadPoller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.efd < 0 {
		return nil
	}
	err := syscall.Close(p.efd)
	p.efd = -1
	return err
}

func (p *ReadPoller) Add(fd int) error {
	err := syscall.EpollCtl(p.efd, syscall.EPOLL_CTL_ADD, fd, &syscall.EpollEvent{Fd: int32(fd), Events: syscall.EPOLLIN})
	if err != nil {
		return errors.Wrap(err, "syscall.EpollCtl")
	}

	p.mu.Lock()
	p.fds[fd] = struct{}{}
	p.mu.Unlock()
	return nil
}

func (p *ReadPoller) Del(fd int) error {
	err := syscall.EpollCtl(p.efd, syscall.EPOLL_CTL_DEL, fd, &syscall.EpollEvent{Fd: int32(fd), Events: syscall.EPOLLIN})
	if err != nil {
		return errors.Wrap(err, "syscall.EpollCtl")
	}

	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	return nil
}

func (p *ReadPoller) Len() int {
	p.mu.RLock()
	l := len(p.fds)
	p.mu.RUnlock()
	return l
}

// Wait blocks until at least one registered descriptor is readable or the
// timeout passes, and returns the readable descriptors. A negative timeout
// waits forever. An interrupted wait returns no descriptors and no error.
func (p *ReadPoller) Wait(timeout time.Duration) ([]int, error) {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}

	events := make([]syscall.EpollEvent, max(p.Len(), 1))
	n, err := syscall.EpollWait(p.efd, events, msec)
	if err != nil {
		if err == syscall.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "syscall.EpollWait")
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		ready = append(ready, int(events[i].Fd))
	}
	return ready, nil
}

//go:build linux

package iocoro

import (
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// ReadyEvents describes the epoll event flags observed for a descriptor.
type ReadyEvents uint32

const (
	EventRead ReadyEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

func epollToReady(epollEvents uint32) ReadyEvents {
	var events ReadyEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}

func readyToEpoll(events ReadyEvents) uint32 {
	var e uint32
	if events&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e | unix.EPOLLET | unix.EPOLLONESHOT
}

// ReadyEvent is a single descriptor's observed readiness, returned from
// Wait.
type ReadyEvent struct {
	FD     int
	Events ReadyEvents
}

// poller wraps a single Linux epoll instance: the readiness facility
// spec.md §4.4 describes. Exactly one goroutine — the ReadinessWorker —
// calls Wait; RegisterOrUpdate may be called concurrently from any worker
// goroutine, since epoll_ctl itself is safe for concurrent use on a shared
// epoll instance.
type poller struct {
	epfd     int
	eventBuf []unix.EpollEvent
	closed   atomic.Bool
}

func newPoller(eventBufSize int) (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	if eventBufSize <= 0 {
		eventBufSize = 256
	}
	return &poller{
		epfd:     epfd,
		eventBuf: make([]unix.EpollEvent, eventBufSize),
	}, nil
}

// RegisterOrUpdate arms fd for one-shot, edge-triggered notification on the
// given events. It first attempts EPOLL_CTL_MOD (the common case: the fd
// was previously registered and has since fired or been re-armed) and
// falls back to EPOLL_CTL_ADD when the kernel reports the fd isn't
// registered yet (ENOENT) — the same policy as the original registration
// routine this runtime is modeled on, and it avoids the poller having to
// track a parallel "is this fd known" set of its own.
func (p *poller) RegisterOrUpdate(fd int, events ReadyEvents) error {
	ev := &unix.EpollEvent{
		Events: readyToEpoll(events),
		Fd:     int32(fd),
	}
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
	if err == unix.ENOENT {
		err = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
	}
	return err
}

// Unregister removes fd from the epoll instance. Safe to call even if fd
// was never registered.
func (p *poller) Unregister(fd int) error {
	err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == unix.ENOENT {
		return nil
	}
	return err
}

// Wait blocks for at most timeoutMs milliseconds and returns every ready
// descriptor observed in that call. An EINTR from the underlying syscall
// is retried internally and never surfaced to the caller. Any other error
// is fatal to the readiness facility (spec.md §7, item 5).
func (p *poller) Wait(timeoutMs int) ([]ReadyEvent, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.eventBuf, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		out := make([]ReadyEvent, n)
		for i := 0; i < n; i++ {
			out[i] = ReadyEvent{
				FD:     int(p.eventBuf[i].Fd),
				Events: epollToReady(p.eventBuf[i].Events),
			}
		}
		return out, nil
	}
}

// AddWake registers the read end of a wake eventfd for level-triggered
// read notification, used by the readiness worker to detect shutdown
// promptly rather than waiting out a poll timeout.
func (p *poller) AddWake(fd int) error {
	ev := &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *poller) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(p.epfd)
}

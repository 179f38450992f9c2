package iocoro

import "golang.org/x/sys/unix"

// This file implements the four async socket operations of spec.md §4.2 —
// Accept, Connect, Read, Write — each following the same three-phase
// shape: a ready-check retry loop that swallows EINTR, a suspend step
// that records (fd, events) on the current task and hands control back
// to the worker, and a resume attempt that retries only EINTR and
// returns whatever the kernel gives on a repeat "would block" rather
// than suspending again — the resolution spec.md §9 calls out as an open
// question. Every descriptor passed in MUST already be non-blocking;
// this package never sets O_NONBLOCK itself (spec.md §6).

// Accept attempts a non-blocking accept4 on the listening descriptor fd,
// suspending t until the listener is read-ready if the kernel reports
// "would block". Returns the connected descriptor and, on that
// descriptor, the connection's peer address.
func Accept(t *Task, fd int) (int, unix.Sockaddr, error) {
	for {
		connFD, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK)
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN {
			return connFD, sa, err
		}
		t.suspend(fd, EventRead)
		for {
			connFD, sa, err = unix.Accept4(fd, unix.SOCK_NONBLOCK)
			if err == unix.EINTR {
				continue
			}
			return connFD, sa, err
		}
	}
}

// Connect initiates a non-blocking connection on fd, suspending t until
// the socket is write-ready if the connection attempt would block.
// Returns nil on success.
func Connect(t *Task, fd int, sa unix.Sockaddr) error {
	for {
		err := unix.Connect(fd, sa)
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN && err != unix.EINPROGRESS {
			return err
		}
		t.suspend(fd, EventWrite)
		return connectResumeResult(fd)
	}
}

// connectResumeResult reads SO_ERROR to determine whether a suspended
// connect ultimately succeeded: once the socket is write-ready, SO_ERROR
// holds the final status, which is the only reliable way to retrieve it
// (retrying connect() itself is undefined after EINPROGRESS).
func connectResumeResult(fd int) error {
	errno, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno != 0 {
		return unix.Errno(errno)
	}
	return nil
}

// Read attempts a non-blocking read into buf, suspending t until fd is
// read-ready if the kernel reports "would block". buf must remain live
// and unmodified by the caller until Read returns (spec.md §4.2: buffer
// ownership is borrowed by the task for the suspended duration).
func Read(t *Task, fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN {
			return n, err
		}
		t.suspend(fd, EventRead)
		for {
			n, err = unix.Read(fd, buf)
			if err == unix.EINTR {
				continue
			}
			return n, err
		}
	}
}

// Write attempts a non-blocking write of buf, suspending t until fd is
// write-ready if the kernel reports "would block". buf must remain live
// and unmodified by the caller until Write returns.
func Write(t *Task, fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if err != unix.EAGAIN {
			return n, err
		}
		t.suspend(fd, EventWrite)
		for {
			n, err = unix.Write(fd, buf)
			if err == unix.EINTR {
				continue
			}
			return n, err
		}
	}
}

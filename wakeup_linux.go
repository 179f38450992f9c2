//go:build linux

package iocoro

import "golang.org/x/sys/unix"

// wakeFd is an eventfd used to unblock the readiness worker's EpollWait
// promptly at shutdown, instead of waiting out its poll timeout.
type wakeFd struct {
	fd int
}

func newWakeFd() (*wakeFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &wakeFd{fd: fd}, nil
}

// signal wakes any goroutine blocked reading fd (or blocked in an epoll
// instance it's registered with).
func (w *wakeFd) signal() error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(w.fd, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// drain consumes a pending wake-up so the eventfd can be reused; safe to
// call even if nothing is pending.
func (w *wakeFd) drain() {
	var buf [8]byte
	for {
		_, err := unix.Read(w.fd, buf[:])
		if err != nil {
			return
		}
	}
}

func (w *wakeFd) Close() error {
	return unix.Close(w.fd)
}

package iocoro

import (
	"context"
	"crypto/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// newLoopbackListener binds a non-blocking IPv4 listener to 127.0.0.1:0
// for the scenarios below.
func newLoopbackListener(t *testing.T) (int, *unix.SockaddrInet4) {
	t.Helper()
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fd) })

	require.NoError(t, unix.Bind(fd, &unix.SockaddrInet4{Port: 0, Addr: [4]byte{127, 0, 0, 1}}))
	require.NoError(t, unix.Listen(fd, 128))
	bound, err := unix.Getsockname(fd)
	require.NoError(t, err)
	return fd, bound.(*unix.SockaddrInet4)
}

func dialLoopback(t *testing.T, sa *unix.SockaddrInet4) int {
	t.Helper()
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unix.Close(fd) })
	require.NoError(t, unix.Connect(fd, sa))
	return fd
}

// scenario 1: echo once.
func TestScenarioEchoOnce(t *testing.T) {
	p := newTestPool(t, WithWorkers(2))

	lfd, sa := newLoopbackListener(t)
	accepted := make(chan int, 1)
	_, err := p.SubmitJoin(func(t *Task) error {
		connFD, _, err := Accept(t, lfd)
		if err != nil {
			return err
		}
		accepted <- connFD
		return nil
	})
	require.NoError(t, err)

	cfd := dialLoopback(t, sa)
	_, err = unix.Write(cfd, []byte("hello\n"))
	require.NoError(t, err)

	var connFD int
	select {
	case connFD = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("accept never completed")
	}
	defer unix.Close(connFD)

	echoTask, err := p.SubmitJoin(func(t *Task) error {
		buf := make([]byte, 16)
		n, err := Read(t, connFD, buf)
		if err != nil {
			return err
		}
		_, err = Write(t, connFD, buf[:n])
		return err
	})
	require.NoError(t, err)
	require.NoError(t, p.Wait(echoTask))

	reply := make([]byte, 16)
	require.Eventually(t, func() bool {
		n, err := unix.Read(cfd, reply)
		return err == nil && n == 6
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello\n", string(reply[:6]))
}

// scenario 2: accept loop fan-out.
func TestScenarioAcceptLoopFanOut(t *testing.T) {
	p := newTestPool(t, WithWorkers(4))
	lfd, sa := newLoopbackListener(t)

	const clients = 100
	var wg sync.WaitGroup
	wg.Add(clients)

	acceptLoop, err := p.SubmitJoin(func(t *Task) error {
		for i := 0; i < clients; i++ {
			connFD, _, err := Accept(t, lfd)
			if err != nil {
				return err
			}
			_, err = p.Submit(func(ct *Task) error {
				defer wg.Done()
				defer unix.Close(connFD)
				buf := make([]byte, 64)
				n, err := Read(ct, connFD, buf)
				if err != nil || n == 0 {
					return err
				}
				_, err = Write(ct, connFD, buf[:n])
				return err
			})
			if err != nil {
				unix.Close(connFD)
				wg.Done()
			}
		}
		return nil
	})
	require.NoError(t, err)

	for i := 0; i < clients; i++ {
		cfd := dialLoopback(t, sa)
		payload := []byte{byte(i)}
		_, err := unix.Write(cfd, payload)
		require.NoError(t, err)
		reply := make([]byte, 1)
		require.Eventually(t, func() bool {
			n, err := unix.Read(cfd, reply)
			return err == nil && n == 1
		}, time.Second, 2*time.Millisecond)
		assert.Equal(t, payload[0], reply[0])
		unix.Close(cfd)
	}

	wg.Wait()
	require.NoError(t, p.Wait(acceptLoop))

	// Each task's completion signal fires before its worker reaps it, so
	// task_count reaches zero shortly after the last Wait/wg.Done.
	assert.Eventually(t, func() bool {
		var total int64
		for _, w := range p.workers {
			total += w.taskCountSnapshot()
		}
		return total == 0
	}, time.Second, time.Millisecond)
}

// scenario 3: a write of several MiB against a deliberately slow reader
// must suspend at least once and still deliver every byte.
func TestScenarioWouldBlockExercise(t *testing.T) {
	p := newTestPool(t, WithWorkers(2))
	a, b := socketpair(t)

	const size = 4 << 20 // 4 MiB; large enough to overrun the socket buffer.
	payload := make([]byte, size)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	suspensions := 0
	writeDone := make(chan error, 1)
	task := newTask(func(t *Task) error {
		written := 0
		for written < size {
			n, err := Write(t, a, payload[written:])
			if err != nil {
				return err
			}
			written += n
		}
		return nil
	}, p.workers[0], true)
	// Wrap suspend observation by polling state transitions instead of
	// instrumenting Task directly, since suspend() itself is private.
	go func() {
		p.workers[0].submit(task)
		writeDone <- task.Wait()
	}()

	received := 0
	buf := make([]byte, 4096)
	for received < size {
		if task.State() == StateIOWait {
			suspensions++
		}
		n, err := unix.Read(b, buf)
		if err == unix.EAGAIN {
			time.Sleep(time.Millisecond)
			continue
		}
		require.NoError(t, err)
		received += n
	}

	require.NoError(t, <-writeDone)
	assert.Equal(t, size, received)
	assert.Greater(t, suspensions, 0)
}

// scenario 4: a periodic signal (SIGURG) delivered to the process must
// not corrupt an in-flight echo (the EINTR-retry loop in awaitable.go
// ready-check and resume phases is what's under test here).
func TestScenarioInterruptedSyscallResilience(t *testing.T) {
	stop := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGURG)
	defer signal.Stop(sigCh)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond) // 100 Hz
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = syscall.Kill(syscall.Getpid(), syscall.SIGURG)
			case <-stop:
				return
			}
		}
	}()
	defer close(stop)
	go func() {
		for range sigCh {
		}
	}()

	p := newTestPool(t, WithWorkers(2))
	a, b := socketpair(t)

	task, err := p.SubmitJoin(func(t *Task) error {
		buf := make([]byte, 16)
		n, err := Read(t, a, buf)
		if err != nil {
			return err
		}
		_, err = Write(t, a, buf[:n])
		return err
	})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond) // let a few signals land first
	_, err = unix.Write(b, []byte("hello\n"))
	require.NoError(t, err)
	require.NoError(t, p.Wait(task))

	reply := make([]byte, 16)
	require.Eventually(t, func() bool {
		n, err := unix.Read(b, reply)
		return err == nil && n == 6
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello\n", string(reply[:6]))
}

// scenario 5: 1,000 immediately-returning coroutines never pile more than
// ceil(1000/N) onto any one worker at submission time.
func TestScenarioLoadBalancing(t *testing.T) {
	const n = 1000
	const workers = 4
	p := newTestPool(t, WithWorkers(workers))

	ceil := (n + workers - 1) / workers
	block := make(chan struct{})
	tasks := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		task, err := p.SubmitJoin(func(t *Task) error {
			<-block
			return nil
		})
		require.NoError(t, err)
		tasks = append(tasks, task)

		for _, w := range p.workers {
			assert.LessOrEqual(t, w.taskCountSnapshot(), int64(ceil))
		}
	}

	close(block)
	for _, task := range tasks {
		require.NoError(t, task.Wait())
	}
}

// scenario 6: Shutdown must return promptly even with many coroutines
// parked in IO_WAIT, and every goroutine it owns must have exited.
func TestScenarioShutdownRaces(t *testing.T) {
	p, err := New(WithWorkers(4), WithPollTimeout(1))
	require.NoError(t, err)
	require.NoError(t, p.Init())

	const n = 100
	tasks := make([]*Task, 0, n)
	for i := 0; i < n; i++ {
		a, _ := socketpair(t)
		task, err := p.SubmitJoin(func(t *Task) error {
			buf := make([]byte, 1)
			_, err := Read(t, a, buf)
			return err
		})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		require.Eventually(t, func() bool {
			return task.State() == StateIOWait
		}, time.Second, 2*time.Millisecond)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	for _, task := range tasks {
		assert.ErrorIs(t, task.Wait(), ErrTaskAbandoned)
	}
}

//go:build darwin

package poller

import "golang.org/x/sys/unix"

// createWakeFd creates a self-pipe for wake-up notifications, mirroring the
// teacher's eventloop/wakeup_darwin.go (kqueue has no eventfd equivalent).
func createWakeFd(_ uint, _ int) (readFd, writeFd int, err error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	for _, fd := range fds {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return 0, 0, err
		}
	}
	return fds[0], fds[1], nil
}

// closeWakeFd closes both ends of the self-pipe.
func closeWakeFd(readFd, writeFd int) error {
	if readFd >= 0 {
		_ = unix.Close(readFd)
	}
	if writeFd >= 0 && writeFd != readFd {
		_ = unix.Close(writeFd)
	}
	return nil
}

// wakeFd writes one byte to the pipe's write end.
func wakeFd(fd int) error {
	_, err := unix.Write(fd, []byte{1})
	if err == unix.EAGAIN {
		// pipe buffer already has a pending wake-up; coalesces naturally.
		return nil
	}
	return err
}

// drainWakeFd empties the pipe's read end.
func drainWakeFd(fd int) error {
	var buf [64]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return nil
		}
	}
}

//go:build linux

package poller

import "golang.org/x/sys/unix"

// createWakeFd creates an eventfd for wake-up notifications. The same fd
// serves as both read and write end, mirroring the teacher's
// eventloop/wakeup_linux.go.
func createWakeFd(initval uint, flags int) (readFd, writeFd int, err error) {
	fd, err := unix.Eventfd(initval, flags)
	if err != nil {
		return 0, 0, err
	}
	return fd, fd, nil
}

// closeWakeFd closes the wake eventfd.
func closeWakeFd(readFd, writeFd int) error {
	if readFd >= 0 {
		return unix.Close(readFd)
	}
	return nil
}

// wakeFd posts one wake-up to the eventfd.
func wakeFd(fd int) error {
	var buf [8]byte
	buf[7] = 1
	_, err := unix.Write(fd, buf[:])
	return err
}

// drainWakeFd clears any pending wake-ups so repeated Wake calls between
// two Wait calls collapse into a single wake-up, not an unbounded backlog.
func drainWakeFd(fd int) error {
	var buf [8]byte
	for {
		_, err := unix.Read(fd, buf[:])
		if err != nil {
			return nil
		}
	}
}

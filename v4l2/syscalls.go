package v4l2

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	sys "golang.org/x/sys/unix"
)

// OpenDevice opens a character device node for streaming IO, validating
// that the path is actually a character device first (os.OpenFile causes
// some UVC drivers to return busy).
func OpenDevice(path string, flags int, mode uint32) (uintptr, error) {
	fstat, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("open device: %w", err)
	}
	if fstat.Mode()&fs.ModeCharDevice == 0 {
		return 0, fmt.Errorf("open device: %s: not character device", path)
	}

	var fd int
	for {
		fd, err = sys.Openat(sys.AT_FDCWD, path, flags, mode)
		if err == nil {
			return uintptr(fd), nil
		}
		if errors.Is(err, sys.EINTR) {
			continue
		}
		return 0, &os.PathError{Op: "open", Path: path, Err: err}
	}
}

// CloseDevice closes a device file descriptor.
func CloseDevice(fd uintptr) error {
	return sys.Close(int(fd))
}

// send issues an ioctl request to the kernel, retrying on EINTR and
// classifying the resulting errno through parseErrorType.
func send(fd, req, arg uintptr) error {
	for {
		_, _, errno := sys.Syscall(sys.SYS_IOCTL, fd, req, arg)
		if errno == 0 {
			return nil
		}
		if errno == sys.EINTR {
			continue
		}
		return parseErrorType(errno)
	}
}

// WaitForRead blocks via select(2) until fd is readable or a 2s timeout
// elapses, repeating indefinitely; it never closes its returned channel.
func WaitForRead(fd uintptr) <-chan struct{} {
	sig := make(chan struct{})
	go func() {
		var fdsRead sys.FdSet
		for {
			fdsRead.Zero()
			fdsRead.Set(int(fd))
			tv := sys.Timeval{Sec: 2, Usec: 0}
			_, errno := sys.Select(int(fd+1), &fdsRead, nil, nil, &tv)
			if errno == sys.EINTR {
				continue
			}
			sig <- struct{}{}
		}
	}()
	return sig
}

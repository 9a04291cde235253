package uvc

import (
	"errors"
	sys "syscall"

	pkgerrors "github.com/pkg/errors"
)

// Sentinel errors classifying XU query failures, mirrored from package
// v4l2's ErrorSystem/ErrorBadArgument family so callers can use the same
// errors.Is style across both packages.
var (
	// ErrNotFound means the (unit, selector) pair does not exist on this device.
	ErrNotFound = errors.New("xu control not found")
	// ErrPermissionDenied means the process lacks permission to query the control.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrIO is any other ioctl failure: a potentially device-damaging condition.
	ErrIO = errors.New("xu control i/o error")
)

func classifyErrno(errno sys.Errno) error {
	switch errno {
	case sys.ENOENT, sys.ENODEV, sys.ENXIO:
		return ErrNotFound
	case sys.EACCES, sys.EPERM:
		return ErrPermissionDenied
	default:
		return pkgerrors.Wrap(ErrIO, errno.Error())
	}
}

// recoverable reports whether err is one of the enumeration-time
// "skip this pair" conditions (ErrNotFound or ErrPermissionDenied).
func recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrPermissionDenied)
}

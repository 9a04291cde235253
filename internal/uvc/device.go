// Package uvc implements discovery and control of USB Video Class (UVC)
// Extension Unit (XU) controls over the Linux uvcvideo driver's ioctl
// interface. It covers only the vendor-extension surface (GET_CUR,
// SET_CUR, GET_LEN, GET_MIN, GET_MAX, GET_RES, GET_DEF) — it is not a
// general UVC library.
package uvc

import (
	"fmt"
	sys "syscall"
	"unsafe"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	maxUnit     = 256
	maxSelector = 256
)

// Device is a UVC character device opened for extension-unit control.
// It owns its file descriptor unless adopted via FromFD, in which case
// Close is a no-op and the descriptor remains the caller's responsibility.
type Device struct {
	fd      uintptr
	path    string
	owns    bool
	closeFn func() error
}

// Open opens path read/write for XU control queries.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open uvc device %s", path)
	}
	return &Device{fd: uintptr(fd), path: path, owns: true}, nil
}

// FromFD adopts an externally opened descriptor, e.g. one handed to this
// process by a camera-access proxy. The descriptor is never closed by
// this Device; the caller retains ownership of its lifetime.
func FromFD(fd uintptr, path string) *Device {
	return &Device{fd: fd, path: path, owns: false}
}

// Path returns the device's display path, if any.
func (d *Device) Path() string { return d.path }

// Close releases the descriptor if this Device owns it.
func (d *Device) Close() error {
	if !d.owns {
		return nil
	}
	return unix.Close(int(d.fd))
}

func (d *Device) query(unit, selector, query uint8, data []byte) error {
	q := uvcXuControlQuery{
		Unit:     unit,
		Selector: selector,
		Query:    query,
		Size:     uint16(len(data)),
	}
	if len(data) > 0 {
		q.Data = &data[0]
	}
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, d.fd, uvcioCtrlQuery, uintptr(unsafe.Pointer(&q)))
	if errno != 0 {
		return classifyErrno(sys.Errno(errno))
	}
	return nil
}

func (d *Device) getLen(unit, selector uint8) (uint16, error) {
	buf := make([]byte, 2)
	if err := d.query(unit, selector, queryGetLen, buf); err != nil {
		return 0, err
	}
	return uint16(buf[0]) | uint16(buf[1])<<8, nil
}

func (d *Device) getBytes(unit, selector, query uint8, n uint16) ([]byte, error) {
	buf := make([]byte, n)
	if err := d.query(unit, selector, query, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Controls enumerates every (unit, selector) pair in [0,255]x[0,255] and
// returns the XuControl discovered at each address that responds to
// GET_LEN/GET_CUR, in discovery order. NotFound and PermissionDenied
// responses to GET_LEN silently skip the pair; any other error aborts
// enumeration.
func (d *Device) Controls() ([]XuControl, error) {
	var controls []XuControl
	for unit := 0; unit < maxUnit; unit++ {
		for selector := 0; selector < maxSelector; selector++ {
			ctrl, ok, err := d.findControl(uint8(unit), uint8(selector))
			if err != nil {
				return nil, err
			}
			if ok {
				controls = append(controls, ctrl)
			}
		}
	}
	return controls, nil
}

func (d *Device) findControl(unit, selector uint8) (XuControl, bool, error) {
	n, err := d.getLen(unit, selector)
	if err != nil {
		if recoverable(err) {
			return XuControl{}, false, nil
		}
		return XuControl{}, false, pkgerrors.Wrapf(err, "GET_LEN unit=%d selector=%d", unit, selector)
	}

	cur, err := d.getBytes(unit, selector, queryGetCur, n)
	if err != nil {
		return XuControl{}, false, pkgerrors.Wrapf(err, "GET_CUR unit=%d selector=%d", unit, selector)
	}

	writable := d.query(unit, selector, querySetCur, append([]byte(nil), cur...)) == nil

	opt := func(q uint8) []byte {
		b, err := d.getBytes(unit, selector, q, n)
		if err != nil {
			return nil
		}
		return b
	}

	ctrl, err := newControl(unit, selector, cur, opt(queryGetMax), opt(queryGetMin), opt(queryGetRes), opt(queryGetDef), writable)
	if err != nil {
		return XuControl{}, false, err
	}
	return ctrl, true, nil
}

// ApplyControl issues SET_CUR with ctrl's current bytes. It requires a
// unique reference because the underlying ioctl writes through a mutable
// buffer, even though no field of ctrl is mutated by this call.
func (d *Device) ApplyControl(ctrl *XuControl) error {
	buf := append([]byte(nil), ctrl.cur...)
	if err := d.query(ctrl.unit, ctrl.selector, querySetCur, buf); err != nil {
		return fmt.Errorf("apply control unit=%d selector=%d: %w", ctrl.unit, ctrl.selector, err)
	}
	return nil
}

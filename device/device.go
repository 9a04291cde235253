package device

import (
	"context"
	"errors"
	"fmt"
	sys "syscall"

	"github.com/irutil/ir-emitter-enabler/v4l2"
)

const defaultBufSize = 2

// Device is an opened V4L2 video capture device, streaming through
// mmap-backed kernel buffers.
type Device struct {
	path      string
	fd        uintptr
	config    config
	cap       v4l2.Capability
	buffers   [][]byte
	streaming bool
	output    chan []byte
	// frameData is a ring buffer of scratch slices the streaming loop
	// copies dequeued frames into, to avoid an allocation per frame.
	frameData    [][]byte
	frameDataIdx int
}

// Open opens path, applies options, and negotiates a pixel format: the
// one requested via WithPixFormat, or the device's current format if
// none was given.
func Open(path string, options ...Option) (*Device, error) {
	fd, err := v4l2.OpenDevice(path, sys.O_RDWR|sys.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("device open: %w", err)
	}

	dev := &Device{path: path, fd: fd, config: config{bufSize: defaultBufSize}}
	for _, o := range options {
		o(&dev.config)
	}

	cap, err := v4l2.GetCapability(dev.fd)
	if err != nil {
		v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: %w", path, err)
	}
	dev.cap = cap

	if !cap.IsStreamingSupported() {
		v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: %w", path, v4l2.ErrorUnsupportedFeature)
	}
	if !cap.IsVideoCaptureSupported() {
		v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: does not support video capture", path)
	}

	if dev.config.pixFormat != (v4l2.PixFormat{}) {
		if err := dev.SetPixFormat(dev.config.pixFormat); err != nil {
			v4l2.CloseDevice(dev.fd)
			return nil, fmt.Errorf("device open: %s: set format: %w", path, err)
		}
	} else if dev.config.pixFormat, err = v4l2.GetPixFormat(dev.fd); err != nil {
		v4l2.CloseDevice(dev.fd)
		return nil, fmt.Errorf("device open: %s: get default format: %w", path, err)
	}

	return dev, nil
}

// Close stops streaming, if active, and closes the device.
func (d *Device) Close() error {
	if d.streaming {
		if err := d.Stop(); err != nil {
			return err
		}
	}
	return v4l2.CloseDevice(d.fd)
}

// Name returns the device's filesystem path.
func (d *Device) Name() string {
	return d.path
}

// Fd returns the device's open file descriptor.
func (d *Device) Fd() uintptr {
	return d.fd
}

// GetOutput returns the channel frames are delivered on once streaming.
//
// The []byte received is part of an internal ring buffer and will be
// overwritten by a later frame; copy it before retaining it past the
// current iteration.
func (d *Device) GetOutput() <-chan []byte {
	return d.output
}

// GetPixFormat returns the negotiated pixel format.
func (d *Device) GetPixFormat() (v4l2.PixFormat, error) {
	return d.config.pixFormat, nil
}

// SetPixFormat requests a new pixel format while the device is not
// streaming.
func (d *Device) SetPixFormat(pixFmt v4l2.PixFormat) error {
	if err := v4l2.SetPixFormat(d.fd, pixFmt); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	negotiated, err := v4l2.GetPixFormat(d.fd)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	d.config.pixFormat = negotiated
	return nil
}

// GetFormatDescriptions lists every capture format the device advertises.
func (d *Device) GetFormatDescriptions() ([]v4l2.FormatDescription, error) {
	return v4l2.GetAllFormatDescriptions(d.fd)
}

// Start allocates and maps streaming buffers, queues them, turns
// streaming on, and launches the background loop that delivers frames
// to GetOutput until ctx is cancelled or Stop is called.
func (d *Device) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if d.streaming {
		return fmt.Errorf("device: stream already started")
	}

	count, err := v4l2.InitBuffers(d.fd, d.config.bufSize)
	if err != nil {
		return fmt.Errorf("device: request buffers: %w", err)
	}
	d.config.bufSize = count

	d.buffers = make([][]byte, count)
	for i := uint32(0); i < count; i++ {
		offset, length, err := v4l2.QueryBuffer(d.fd, i)
		if err != nil {
			return fmt.Errorf("device: query buffer %d: %w", i, err)
		}
		buf, err := v4l2.MapMemoryBuffer(d.fd, offset, length)
		if err != nil {
			return fmt.Errorf("device: map buffer %d: %w", i, err)
		}
		d.buffers[i] = buf
	}

	d.frameData = make([][]byte, count)
	d.frameDataIdx = 0

	if err := d.startStreamLoop(ctx); err != nil {
		return fmt.Errorf("device: start stream loop: %w", err)
	}
	d.streaming = true
	return nil
}

// Stop unmaps buffers and turns streaming off.
func (d *Device) Stop() error {
	if !d.streaming {
		return nil
	}
	for _, buf := range d.buffers {
		if err := v4l2.UnmapMemoryBuffer(buf); err != nil {
			return fmt.Errorf("device: stop: %w", err)
		}
	}
	if err := v4l2.StreamOff(d.fd); err != nil {
		return fmt.Errorf("device: stop: %w", err)
	}
	d.streaming = false
	return nil
}

func (d *Device) startStreamLoop(ctx context.Context) error {
	d.output = make(chan []byte, d.config.bufSize)

	for i := uint32(0); i < d.config.bufSize; i++ {
		if err := v4l2.QueueBuffer(d.fd, i); err != nil {
			return fmt.Errorf("device: initial buffer queue: %w", err)
		}
	}
	if err := v4l2.StreamOn(d.fd); err != nil {
		return fmt.Errorf("device: stream on: %w", err)
	}

	go func() {
		defer close(d.output)
		waitForRead := v4l2.WaitForRead(d.fd)
		for {
			select {
			case <-waitForRead:
				buf, err := v4l2.DequeueBuffer(d.fd)
				if err != nil {
					if errors.Is(err, sys.EAGAIN) || errors.Is(err, v4l2.ErrorTemporary) {
						continue
					}
					return
				}

				if buf.Flags&v4l2.BufFlagMapped != 0 && buf.Flags&v4l2.BufFlagError == 0 {
					target := &d.frameData[d.frameDataIdx]
					if cap(*target) < int(buf.BytesUsed) {
						*target = make([]byte, buf.BytesUsed)
					} else {
						*target = (*target)[:buf.BytesUsed]
					}
					copy(*target, d.buffers[buf.Index][:buf.BytesUsed])
					d.output <- *target
					d.frameDataIdx = (d.frameDataIdx + 1) % len(d.frameData)
				} else {
					d.output <- []byte{}
				}

				if err := v4l2.QueueBuffer(d.fd, buf.Index); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

package capture

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/irutil/ir-emitter-enabler/device"
	"github.com/irutil/ir-emitter-enabler/v4l2"
)

// captureTimeout bounds a single Capture call: a camera that stalls
// mid-stream must not hang the search or analyzer goroutines forever.
const captureTimeout = 3 * time.Second

// greyFourCC is the only pixel format this package negotiates for.
const greyFourCC = v4l2.PixelFmtGrey

// ErrStreamTimeout is returned when no frame arrives within captureTimeout.
var ErrStreamTimeout = errors.New("timed out waiting for a frame")

// ErrUnsupportedFormat is returned when the format the device negotiates
// in response to a GREY request is not 8-bit greyscale.
var ErrUnsupportedFormat = errors.New("device does not support an 8-bit greyscale format")

// Stream is a single open capture device, negotiated to 8-bit
// greyscale and already streaming.
type Stream struct {
	dev    *device.Device
	width  int
	height int
}

// Open opens path, negotiates the GREY pixel format, and starts
// streaming. The returned Stream owns the device and must be Closed.
func Open(ctx context.Context, path string) (*Stream, error) {
	dev, err := device.Open(path, device.WithPixFormat(v4l2.PixFormat{PixelFormat: greyFourCC}))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open capture device %s", path)
	}

	format, err := dev.GetPixFormat()
	if err != nil {
		dev.Close()
		return nil, pkgerrors.Wrap(err, "query negotiated pixel format")
	}
	if format.PixelFormat != greyFourCC {
		dev.Close()
		return nil, pkgerrors.Wrapf(ErrUnsupportedFormat, "device negotiated %s instead of grey", v4l2.PixelFormats[format.PixelFormat])
	}

	if err := dev.Start(ctx); err != nil {
		dev.Close()
		return nil, pkgerrors.Wrap(err, "start capture stream")
	}

	return &Stream{dev: dev, width: int(format.Width), height: int(format.Height)}, nil
}

// Capture waits for the next frame, or ErrStreamTimeout after 3s,
// whichever comes first.
func (s *Stream) Capture(ctx context.Context) (Image, error) {
	select {
	case raw, ok := <-s.dev.GetOutput():
		if !ok {
			return Image{}, pkgerrors.Wrap(ErrStreamTimeout, "output channel closed")
		}
		pixels := make([]uint8, len(raw))
		copy(pixels, raw)
		return Image{Width: s.width, Height: s.height, Pixels: pixels}, nil
	case <-time.After(captureTimeout):
		return Image{}, ErrStreamTimeout
	case <-ctx.Done():
		return Image{}, ctx.Err()
	}
}

// Close stops streaming and releases the device.
func (s *Stream) Close() error {
	if err := s.dev.Stop(); err != nil {
		return err
	}
	return s.dev.Close()
}

package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"fmt"
	"unsafe"
)

// Capability bits this module inspects; the full V4L2_CAP_* bitmask is
// much larger, but video capture + streaming IO is all that is checked.
const (
	CapVideoCapture       uint32 = C.V4L2_CAP_VIDEO_CAPTURE
	CapStreaming          uint32 = C.V4L2_CAP_STREAMING
	CapDeviceCapabilities uint32 = C.V4L2_CAP_DEVICE_CAPS
)

// Capability reports a device's identification and V4L2 feature bitmask.
type Capability struct {
	Driver             string
	Card               string
	BusInfo            string
	Version            uint32
	Capabilities       uint32
	DeviceCapabilities uint32
}

// effective returns DeviceCapabilities when the driver reports it
// (modern drivers), falling back to the combined Capabilities bitmask.
func (c Capability) effective() uint32 {
	if c.Capabilities&CapDeviceCapabilities != 0 {
		return c.DeviceCapabilities
	}
	return c.Capabilities
}

// IsVideoCaptureSupported reports whether the device supports the
// single-planar video capture API.
func (c Capability) IsVideoCaptureSupported() bool {
	return c.effective()&CapVideoCapture != 0
}

// IsStreamingSupported reports whether the device supports mmap-based
// streaming IO.
func (c Capability) IsStreamingSupported() bool {
	return c.effective()&CapStreaming != 0
}

// GetCapability issues VIDIOC_QUERYCAP.
func GetCapability(fd uintptr) (Capability, error) {
	var raw C.struct_v4l2_capability
	if err := send(fd, C.VIDIOC_QUERYCAP, uintptr(unsafe.Pointer(&raw))); err != nil {
		return Capability{}, fmt.Errorf("capability: %w", err)
	}
	return Capability{
		Driver:             C.GoString((*C.char)(unsafe.Pointer(&raw.driver[0]))),
		Card:               C.GoString((*C.char)(unsafe.Pointer(&raw.card[0]))),
		BusInfo:            C.GoString((*C.char)(unsafe.Pointer(&raw.bus_info[0]))),
		Version:            uint32(raw.version),
		Capabilities:       uint32(raw.capabilities),
		DeviceCapabilities: uint32(raw.device_caps),
	}, nil
}

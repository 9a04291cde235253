package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"errors"
	"fmt"
	"unsafe"
)

// FormatDescription is one entry returned by enumerating a device's
// supported capture formats (VIDIOC_ENUM_FMT).
type FormatDescription struct {
	Index       uint32
	Description string
	PixelFormat FourCCType
}

func (d FormatDescription) String() string {
	return fmt.Sprintf("%s (index %d)", d.Description, d.Index)
}

func makeFormatDescription(raw C.struct_v4l2_fmtdesc) FormatDescription {
	return FormatDescription{
		Index:       uint32(raw.index),
		Description: C.GoString((*C.char)(unsafe.Pointer(&raw.description[0]))),
		PixelFormat: uint32(raw.pixelformat),
	}
}

// GetAllFormatDescriptions enumerates every format a device advertises
// for video capture, stopping at the first EINVAL from the driver (the
// documented way to detect the end of the list).
func GetAllFormatDescriptions(fd uintptr) ([]FormatDescription, error) {
	var result []FormatDescription
	for index := uint32(0); ; index++ {
		var raw C.struct_v4l2_fmtdesc
		raw.index = C.uint(index)
		raw._type = C.uint(BufTypeVideoCapture)

		if err := send(fd, C.VIDIOC_ENUM_FMT, uintptr(unsafe.Pointer(&raw))); err != nil {
			if errors.Is(err, ErrorBadArgument) {
				return result, nil
			}
			return result, fmt.Errorf("format desc: index %d: %w", index, err)
		}
		result = append(result, makeFormatDescription(raw))
	}
}

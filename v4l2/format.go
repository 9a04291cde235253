package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"fmt"
	"unsafe"
)

// FourCCType identifies a pixel format by its four-character code.
type FourCCType = uint32

// PixelFmtGrey is the only capture format this module negotiates:
// 8-bit greyscale, one byte of intensity per pixel.
const PixelFmtGrey FourCCType = C.V4L2_PIX_FMT_GREY

// PixelFormats maps a FourCC to a human-readable name, used when a
// device negotiates something other than the requested format.
var PixelFormats = map[FourCCType]string{
	PixelFmtGrey: "8-bit Greyscale",
}

// FieldType describes interlaced field ordering; this module only ever
// requests FieldNone (progressive) for greyscale capture.
type FieldType = uint32

const FieldNone FieldType = C.V4L2_FIELD_NONE

// PixFormat is the single-plane pixel format negotiated with
// VIDIOC_G_FMT/VIDIOC_S_FMT.
type PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  FourCCType
	Field        FieldType
	BytesPerLine uint32
	SizeImage    uint32
}

// GetPixFormat issues VIDIOC_G_FMT for the video-capture buffer type.
func GetPixFormat(fd uintptr) (PixFormat, error) {
	var raw C.struct_v4l2_format
	raw._type = C.uint(BufTypeVideoCapture)
	if err := send(fd, C.VIDIOC_G_FMT, uintptr(unsafe.Pointer(&raw))); err != nil {
		return PixFormat{}, fmt.Errorf("get pix format: %w", err)
	}
	pix := (*C.struct_v4l2_pix_format)(unsafe.Pointer(&raw.fmt[0]))
	return PixFormat{
		Width:        uint32(pix.width),
		Height:       uint32(pix.height),
		PixelFormat:  FourCCType(pix.pixelformat),
		Field:        FieldType(pix.field),
		BytesPerLine: uint32(pix.bytesperline),
		SizeImage:    uint32(pix.sizeimage),
	}, nil
}

// SetPixFormat issues VIDIOC_S_FMT, requesting pixFmt.PixelFormat at
// pixFmt.Width x pixFmt.Height. The driver may negotiate a different
// format or dimensions; call GetPixFormat afterward to see what stuck.
func SetPixFormat(fd uintptr, pixFmt PixFormat) error {
	var raw C.struct_v4l2_format
	raw._type = C.uint(BufTypeVideoCapture)
	pix := (*C.struct_v4l2_pix_format)(unsafe.Pointer(&raw.fmt[0]))
	pix.width = C.uint(pixFmt.Width)
	pix.height = C.uint(pixFmt.Height)
	pix.pixelformat = C.uint(pixFmt.PixelFormat)
	pix.field = C.uint(FieldNone)

	if err := send(fd, C.VIDIOC_S_FMT, uintptr(unsafe.Pointer(&raw))); err != nil {
		return fmt.Errorf("set pix format: %w", err)
	}
	return nil
}

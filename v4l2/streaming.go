package v4l2

// #include <linux/videodev2.h>
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	sys "golang.org/x/sys/unix"
)

// BufType identifies the kind of buffer stream (see v4l2_buf_type); only
// video capture is used here.
type BufType = uint32

const BufTypeVideoCapture BufType = C.V4L2_BUF_TYPE_VIDEO_CAPTURE

// StreamType identifies the buffer memory model; only mmap is used here.
type StreamType = uint32

const StreamTypeMMAP StreamType = C.V4L2_MEMORY_MMAP

// Buffer-flag bits this module inspects when dequeuing.
const (
	BufFlagMapped uint32 = C.V4L2_BUF_FLAG_MAPPED
	BufFlagError  uint32 = C.V4L2_BUF_FLAG_ERROR
)

// DequeuedBuffer is the subset of v4l2_buffer fields the streaming loop
// needs after VIDIOC_DQBUF.
type DequeuedBuffer struct {
	Index     uint32
	BytesUsed uint32
	Flags     uint32
}

// StreamOn issues VIDIOC_STREAMON for the video-capture buffer type.
func StreamOn(fd uintptr) error {
	bufType := BufTypeVideoCapture
	if err := send(fd, C.VIDIOC_STREAMON, uintptr(unsafe.Pointer(&bufType))); err != nil {
		return fmt.Errorf("stream on: %w", err)
	}
	return nil
}

// StreamOff issues VIDIOC_STREAMOFF for the video-capture buffer type.
func StreamOff(fd uintptr) error {
	bufType := BufTypeVideoCapture
	if err := send(fd, C.VIDIOC_STREAMOFF, uintptr(unsafe.Pointer(&bufType))); err != nil {
		return fmt.Errorf("stream off: %w", err)
	}
	return nil
}

// InitBuffers issues VIDIOC_REQBUFS, asking the driver to allocate
// bufSize mmap-backed capture buffers, and returns how many it granted.
func InitBuffers(fd uintptr, bufSize uint32) (uint32, error) {
	var raw C.struct_v4l2_requestbuffers
	raw.count = C.uint(bufSize)
	raw._type = C.uint(BufTypeVideoCapture)
	raw.memory = C.uint(StreamTypeMMAP)

	if err := send(fd, C.VIDIOC_REQBUFS, uintptr(unsafe.Pointer(&raw))); err != nil {
		return 0, fmt.Errorf("request buffers: %w", err)
	}
	if raw.count < 2 {
		return 0, errors.New("request buffers: insufficient memory on device")
	}
	return uint32(raw.count), nil
}

// QueryBuffer issues VIDIOC_QUERYBUF for the buffer at index, returning
// its mmap offset and length so the caller can map it into user space.
func QueryBuffer(fd uintptr, index uint32) (offset int64, length int, err error) {
	var raw C.struct_v4l2_buffer
	raw._type = C.uint(BufTypeVideoCapture)
	raw.memory = C.uint(StreamTypeMMAP)
	raw.index = C.uint(index)

	if err := send(fd, C.VIDIOC_QUERYBUF, uintptr(unsafe.Pointer(&raw))); err != nil {
		return 0, 0, fmt.Errorf("query buffer %d: %w", index, err)
	}
	// v4l2_buffer.m is a union; for V4L2_MEMORY_MMAP its active member is
	// a __u32 offset at the start of the union.
	offset := *(*C.uint)(unsafe.Pointer(&raw.m[0]))
	return int64(offset), int(raw.length), nil
}

// MapMemoryBuffer maps a driver-allocated buffer into this process's
// address space.
func MapMemoryBuffer(fd uintptr, offset int64, length int) ([]byte, error) {
	data, err := sys.Mmap(int(fd), offset, length, sys.PROT_READ|sys.PROT_WRITE, sys.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("map memory buffer: %w", err)
	}
	return data, nil
}

// UnmapMemoryBuffer releases a buffer previously returned by
// MapMemoryBuffer.
func UnmapMemoryBuffer(buf []byte) error {
	if err := sys.Munmap(buf); err != nil {
		return fmt.Errorf("unmap memory buffer: %w", err)
	}
	return nil
}

// QueueBuffer issues VIDIOC_QBUF, handing buffer index back to the
// driver for capture.
func QueueBuffer(fd uintptr, index uint32) error {
	var raw C.struct_v4l2_buffer
	raw._type = C.uint(BufTypeVideoCapture)
	raw.memory = C.uint(StreamTypeMMAP)
	raw.index = C.uint(index)

	if err := send(fd, C.VIDIOC_QBUF, uintptr(unsafe.Pointer(&raw))); err != nil {
		return fmt.Errorf("queue buffer %d: %w", index, err)
	}
	return nil
}

// DequeueBuffer issues VIDIOC_DQBUF, retrieving the next filled buffer.
func DequeueBuffer(fd uintptr) (DequeuedBuffer, error) {
	var raw C.struct_v4l2_buffer
	raw._type = C.uint(BufTypeVideoCapture)
	raw.memory = C.uint(StreamTypeMMAP)

	if err := send(fd, C.VIDIOC_DQBUF, uintptr(unsafe.Pointer(&raw))); err != nil {
		return DequeuedBuffer{}, fmt.Errorf("dequeue buffer: %w", err)
	}
	return DequeuedBuffer{
		Index:     uint32(raw.index),
		BytesUsed: uint32(raw.bytesused),
		Flags:     uint32(raw.flags),
	}, nil
}

// Package v4l2 provides the narrow slice of the Video4Linux2 (V4L2)
// userspace API this module actually drives: device capability queries,
// single-plane greyscale format negotiation, format enumeration, and
// mmap-based streaming buffer management. It is not a general V4L2
// binding — no VBI, tuner, audio, sliced-VBI, cropping, multi-planar, or
// codec extended-control support is implemented, since nothing here
// needs it.
package v4l2

/*
#cgo linux CFLAGS: -I/usr/include

#include <linux/videodev2.h>
*/
import "C"

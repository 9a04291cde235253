// Package device provides a high-level, channel-based Go interface for
// V4L2 video capture devices, narrowed to this module's single use case:
// negotiate an 8-bit greyscale format and stream frames until stopped.
package device

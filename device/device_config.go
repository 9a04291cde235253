package device

import (
	"github.com/irutil/ir-emitter-enabler/v4l2"
)

// config holds the options a caller can set before Open negotiates with
// the driver.
type config struct {
	pixFormat v4l2.PixFormat
	bufSize   uint32
}

// Option configures a Device at Open time.
type Option func(*config)

// WithPixFormat requests a specific pixel format and dimensions. If
// omitted, Open negotiates whatever format the driver currently has set.
func WithPixFormat(pixFmt v4l2.PixFormat) Option {
	return func(c *config) {
		c.pixFormat = pixFmt
	}
}

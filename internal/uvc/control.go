package uvc

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrInvalidInput is returned when an optional vector's length does not
// match the current-value vector's length at construction.
var ErrInvalidInput = pkgerrors.New("invalid xu control input")

// XuControl is the in-memory model of a single vendor extension-unit
// control, identified by (unit, selector). cur is the live value; init is
// the immutable snapshot observed at discovery. max/min/res/def are
// optional and, when present, share cur's length.
type XuControl struct {
	unit     uint8
	selector uint8
	cur      []byte
	init     []byte
	max      []byte
	min      []byte
	res      []byte
	def      []byte
	writable bool
}

func newControl(unit, selector uint8, cur, max, min, res, def []byte, writable bool) (XuControl, error) {
	return New(unit, selector, cur, max, min, res, def, writable)
}

// New constructs an XuControl, validating that every non-nil optional
// vector has the same length as cur.
func New(unit, selector uint8, cur, max, min, res, def []byte, writable bool) (XuControl, error) {
	n := len(cur)
	if n == 0 {
		return XuControl{}, pkgerrors.Wrapf(ErrInvalidInput, "empty current value for control unit=%d selector=%d", unit, selector)
	}
	for name, v := range map[string][]byte{"maximum": max, "minimum": min, "resolution": res, "default": def} {
		if v != nil && len(v) != n {
			return XuControl{}, pkgerrors.Wrapf(ErrInvalidInput, "%s length does not match for control unit=%d selector=%d", name, unit, selector)
		}
	}
	return XuControl{
		unit:     unit,
		selector: selector,
		cur:      append([]byte(nil), cur...),
		init:     append([]byte(nil), cur...),
		max:      max,
		min:      min,
		res:      res,
		def:      def,
		writable: writable,
	}, nil
}

func (c *XuControl) Unit() uint8     { return c.unit }
func (c *XuControl) Selector() uint8 { return c.selector }
func (c *XuControl) Writable() bool  { return c.writable }

// Cur returns the current value.
func (c *XuControl) Cur() []byte { return c.cur }

// CurMut returns a mutable view over the current value, for use by the
// search engine's increment algorithm.
func (c *XuControl) CurMut() []byte { return c.cur }

// Init returns the snapshot observed at discovery. It is never mutated.
func (c *XuControl) Init() []byte { return c.init }

func (c *XuControl) Max() []byte { return c.max }
func (c *XuControl) Min() []byte { return c.min }
func (c *XuControl) Res() []byte { return c.res }
func (c *XuControl) Def() []byte { return c.def }

// Reset overwrites Cur with the Init snapshot.
func (c *XuControl) Reset() {
	copy(c.cur, c.init)
}

// EssentialClone returns a shallow copy carrying only the fields needed
// to ship a state snapshot across a coordination channel: unit, selector,
// cur and writable. Init and the optional vectors are dropped so bulky
// metadata never crosses the boundary.
func (c *XuControl) EssentialClone() XuControl {
	return XuControl{
		unit:     c.unit,
		selector: c.selector,
		cur:      append([]byte(nil), c.cur...),
		writable: c.writable,
	}
}

func (c *XuControl) String() string {
	return fmt.Sprintf("unit=%d selector=%d cur=%v max=%v min=%v res=%v def=%v writable=%t",
		c.unit, c.selector, c.cur, c.max, c.min, c.res, c.def, c.writable)
}

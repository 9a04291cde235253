// Package headless provides a scriptable tui.Collaborator with no real
// terminal output, used by the orchestrator tests.
package headless

import (
	"sync"

	"github.com/irutil/ir-emitter-enabler/internal/capture"
	"github.com/irutil/ir-emitter-enabler/internal/tui"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// Collaborator records every rendered state and lets a test script feed
// key events through Feed.
type Collaborator struct {
	mu       sync.Mutex
	rendered []Render
	events   chan tui.KeyEvent
}

// Render is one recorded call to RenderState.
type Render struct {
	State    tui.State
	Controls []uvc.XuControl
	Image    *capture.Image
}

// New returns a Collaborator with the given key-event channel capacity.
func New(eventBuf int) *Collaborator {
	return &Collaborator{events: make(chan tui.KeyEvent, eventBuf)}
}

// RenderState records the call; it never touches a terminal.
func (c *Collaborator) RenderState(state tui.State, controls []uvc.XuControl, image *capture.Image) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rendered = append(c.rendered, Render{State: state, Controls: controls, Image: image})
}

// Events exposes the scripted key-event channel.
func (c *Collaborator) Events() <-chan tui.KeyEvent {
	return c.events
}

// Feed pushes a key event as if a human had pressed it. It blocks if the
// channel is full, matching a real input device's backpressure.
func (c *Collaborator) Feed(ev tui.KeyEvent) {
	c.events <- ev
}

// Renders returns a copy of every RenderState call observed so far.
func (c *Collaborator) Renders() []Render {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Render(nil), c.rendered...)
}

// LastState returns the most recently rendered state, or -1 if none yet.
func (c *Collaborator) LastState() tui.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rendered) == 0 {
		return -1
	}
	return c.rendered[len(c.rendered)-1].State
}

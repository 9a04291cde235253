package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/irutil/ir-emitter-enabler/internal/capture"
	"github.com/irutil/ir-emitter-enabler/internal/tui"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// errNoGreyDevice is returned when configure is asked to auto-select a
// device but no greyscale-capable one is present.
var errNoGreyDevice = errors.New("no V4L greyscale video device found (the system probably does not support your infrared camera)")

// stdioCollaborator is the line-oriented tui.Collaborator used by the
// CLI: it prints the current state on change and reads y/n/q lines from
// stdin. It is the "thin collaborator" the orchestrator needs, not a
// full-screen terminal UI.
type stdioCollaborator struct {
	events    chan tui.KeyEvent
	lastState tui.State
	seenState bool
}

func newStdioCollaborator() *stdioCollaborator {
	c := &stdioCollaborator{events: make(chan tui.KeyEvent, 1)}
	go c.readInput()
	return c
}

func (c *stdioCollaborator) RenderState(state tui.State, controls []uvc.XuControl, image *capture.Image) {
	if c.seenState && state == c.lastState {
		return
	}
	c.lastState = state
	c.seenState = true

	switch state {
	case tui.StateConfirmWorkingManual:
		fmt.Println("Is the infrared emitter on? [y/n]")
	case tui.StateConfirmAbort:
		fmt.Println("Abort the configuration? [y/n]")
	case tui.StateSuccess:
		fmt.Println("The infrared emitter has been successfully enabled!")
	case tui.StateFailure:
		fmt.Println("Failed to enable the infrared emitter.")
	case tui.StateAbort:
		fmt.Println("Configuration aborted.")
	}
}

func (c *stdioCollaborator) Events() <-chan tui.KeyEvent {
	return c.events
}

func (c *stdioCollaborator) readInput() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.ToLower(scanner.Text()))
		var ev tui.KeyEvent
		switch line {
		case "y", "yes":
			ev = tui.KeyYes
		case "n", "no":
			ev = tui.KeyNo
		case "q", "quit", "abort":
			ev = tui.KeyAbort
		default:
			ev = tui.KeyOther
		}
		c.events <- ev
	}
}

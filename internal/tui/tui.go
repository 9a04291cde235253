// Package tui defines the minimal presentation boundary the orchestrator
// talks to. Real terminal rendering is out of scope; this package only
// fixes the interface and the State vocabulary the orchestrator drives.
package tui

import (
	"github.com/irutil/ir-emitter-enabler/internal/capture"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// State mirrors the orchestration states a collaborator may need to
// render differently (e.g. highlighting the manual-confirmation prompt).
type State int

const (
	StateMenu State = iota
	StateConfirmStart
	StateRunning
	StateConfirmWorking
	StateConfirmWorkingManual
	StateConfirmAbort
	StateSuccess
	StateFailure
	StateAbort
)

// String renders a state's name, useful for logging and headless fakes.
func (s State) String() string {
	switch s {
	case StateMenu:
		return "Menu"
	case StateConfirmStart:
		return "ConfirmStart"
	case StateRunning:
		return "Running"
	case StateConfirmWorking:
		return "ConfirmWorking"
	case StateConfirmWorkingManual:
		return "ConfirmWorkingManual"
	case StateConfirmAbort:
		return "ConfirmAbort"
	case StateSuccess:
		return "Success"
	case StateFailure:
		return "Failure"
	case StateAbort:
		return "Abort"
	default:
		return "Unknown"
	}
}

// KeyEvent is the narrow key vocabulary the orchestrator understands:
// a yes/no confirmation, an abort request, or anything else (ignored).
type KeyEvent int

const (
	KeyYes KeyEvent = iota
	KeyNo
	KeyAbort
	KeyOther
)

// Collaborator is the presentation boundary: render the current state
// and emit key events. Non-goal excludes a real terminal implementation;
// internal/tui/headless ships a scriptable fake for tests.
type Collaborator interface {
	RenderState(state State, controls []uvc.XuControl, image *capture.Image)
	Events() <-chan KeyEvent
}

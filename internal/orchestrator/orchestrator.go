// Package orchestrator is the hub that fans the search engine, the
// stream analyzer, the capture loop, and a tui.Collaborator together.
// The distilled control-search spec only names a single request/response
// pair between the engine and "the UI"; this package supplements that
// with the fuller five-channel routing the original implementation
// actually used, decoupled from any concrete terminal.
package orchestrator

import (
	"context"
	"errors"

	"github.com/irutil/ir-emitter-enabler/internal/analyzer"
	"github.com/irutil/ir-emitter-enabler/internal/capture"
	"github.com/irutil/ir-emitter-enabler/internal/search"
	"github.com/irutil/ir-emitter-enabler/internal/tui"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// ErrConfigurationFailed is returned when the search engine exhausts every candidate control.
var ErrConfigurationFailed = errors.New("failed to enable the infrared emitter")

// ErrAborted is returned when the user aborts the session.
var ErrAborted = errors.New("configuration aborted by the user")

// Config parameterizes an Orchestrator.
type Config struct {
	// Manual, when true, always asks the collaborator directly instead
	// of routing the IsIrWorking check through the stream analyzer.
	Manual bool
}

// Orchestrator owns the routing between the search engine's request/
// response channels, the analyzer's request/response channels, the
// capture loop's image channel, and a tui.Collaborator. Run is the sole
// place state is read or written, so no locking is needed.
type Orchestrator struct {
	cfg Config

	searchRequests    <-chan search.Request
	searchResponses   chan<- search.Response
	analyzerRequests  chan<- analyzer.Message
	analyzerResponses <-chan analyzer.IsIrWorking
	images            <-chan capture.Image

	collaborator tui.Collaborator

	state     tui.State
	prevState tui.State
	controls  []uvc.XuControl
	lastImage *capture.Image
}

// New constructs an Orchestrator. The CLI has no interactive settings
// menu (flags are parsed up front), so Run starts directly in
// StateRunning; StateMenu/StateConfirmStart exist only for fidelity with
// the state vocabulary and are never entered by this package.
func New(cfg Config, searchRequests <-chan search.Request, searchResponses chan<- search.Response, analyzerRequests chan<- analyzer.Message, analyzerResponses <-chan analyzer.IsIrWorking, images <-chan capture.Image, collaborator tui.Collaborator) *Orchestrator {
	return &Orchestrator{
		cfg:               cfg,
		searchRequests:    searchRequests,
		searchResponses:   searchResponses,
		analyzerRequests:  analyzerRequests,
		analyzerResponses: analyzerResponses,
		images:            images,
		collaborator:      collaborator,
		state:             tui.StateRunning,
		prevState:         tui.StateRunning,
	}
}

func (o *Orchestrator) setState(s tui.State) {
	o.prevState = o.state
	o.state = s
}

// Run drives the hub until the session reaches a terminal state
// (Success, Failure, Abort) or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		o.render()

		switch o.state {
		case tui.StateSuccess:
			return nil
		case tui.StateFailure:
			return ErrConfigurationFailed
		case tui.StateAbort:
			return ErrAborted
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case img, ok := <-o.images:
			if !ok {
				return errors.New("the video stream has been closed unexpectedly")
			}
			o.handleImage(img)

		case req, ok := <-o.searchRequests:
			if !ok {
				return errors.New("the configurator task has been closed unexpectedly")
			}
			if err := o.handleSearchRequest(ctx, req); err != nil {
				return err
			}

		case resp, ok := <-o.analyzerResponses:
			if !ok {
				return errors.New("the analyzer task has been closed unexpectedly")
			}
			if err := o.handleAnalyzerResponse(ctx, resp); err != nil {
				return err
			}

		case ev, ok := <-o.collaborator.Events():
			if ok {
				o.handleKeyEvent(ctx, ev)
			}
		}
	}
}

func (o *Orchestrator) render() {
	o.collaborator.RenderState(o.state, o.controls, o.lastImage)
}

// handleImage forwards the frame to the analyzer on a best-effort,
// non-blocking basis (mirrors the original's try_send): a backed-up
// analyzer must never stall the capture loop. The last frame is
// retained for the collaborator to render regardless.
func (o *Orchestrator) handleImage(img capture.Image) {
	select {
	case o.analyzerRequests <- analyzer.Message{Image: &img}:
	default:
	}
	o.lastImage = &img
}

func (o *Orchestrator) handleSearchRequest(ctx context.Context, req search.Request) error {
	switch req.Kind {
	case search.ReqControls:
		o.controls = req.Controls

	case search.ReqUpdateControl:
		o.applyControlUpdate(req.Control)

	case search.ReqIsIrWorking:
		if o.cfg.Manual {
			o.setState(tui.StateConfirmWorkingManual)
			return nil
		}
		select {
		case o.analyzerRequests <- analyzer.Message{IsIrWorking: true}:
		case <-ctx.Done():
			return ctx.Err()
		}
		o.setState(tui.StateConfirmWorking)

	case search.ReqAlreadyWorking:
		return errors.New("the ir emitter is already working")

	case search.ReqSuccess:
		o.setState(tui.StateSuccess)

	case search.ReqFailure:
		o.setState(tui.StateFailure)
	}
	return nil
}

// applyControlUpdate copies an updated control's value into the tracked
// snapshot the collaborator renders, matching it by (unit, selector).
func (o *Orchestrator) applyControlUpdate(updated uvc.XuControl) {
	for i := range o.controls {
		if o.controls[i].Unit() == updated.Unit() && o.controls[i].Selector() == updated.Selector() {
			o.controls[i] = updated
			return
		}
	}
}

func (o *Orchestrator) handleAnalyzerResponse(ctx context.Context, resp analyzer.IsIrWorking) error {
	switch resp {
	case analyzer.Yes, analyzer.Maybe:
		o.setState(tui.StateConfirmWorkingManual)
	case analyzer.No:
		select {
		case o.searchResponses <- search.ResponseNo:
		case <-ctx.Done():
			return ctx.Err()
		}
		o.setState(tui.StateRunning)
	}
	return nil
}

func (o *Orchestrator) handleKeyEvent(ctx context.Context, ev tui.KeyEvent) {
	switch o.state {
	case tui.StateRunning:
		if ev == tui.KeyAbort {
			o.setState(tui.StateConfirmAbort)
		}

	case tui.StateConfirmAbort:
		switch ev {
		case tui.KeyYes:
			o.setState(tui.StateAbort)
			select {
			case o.searchResponses <- search.ResponseAbort:
			case <-ctx.Done():
			}
		case tui.KeyNo, tui.KeyAbort:
			o.setState(o.prevState)
		}

	case tui.StateConfirmWorkingManual:
		switch ev {
		case tui.KeyAbort:
			o.setState(tui.StateConfirmAbort)
		case tui.KeyYes:
			o.respondWorking(ctx, search.ResponseYes)
		case tui.KeyNo:
			o.respondWorking(ctx, search.ResponseNo)
		}

	case tui.StateConfirmWorking:
		if ev == tui.KeyAbort {
			o.setState(tui.StateConfirmAbort)
		}
	}
}

func (o *Orchestrator) respondWorking(ctx context.Context, resp search.Response) {
	select {
	case o.searchResponses <- resp:
		o.setState(tui.StateRunning)
	case <-ctx.Done():
	}
}

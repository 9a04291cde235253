// Package search implements the guided brute-force control search: the
// state machine that iterates a device's writable XU controls,
// increments their byte sequence, applies each candidate, and asks an
// external collaborator (the stream analyzer, relayed through an
// orchestrator) whether the IR emitter turned on.
package search

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/irutil/ir-emitter-enabler/internal/store"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// defaultNegAnswerLimit is the hard ceiling used when Config.NegAnswerLimit is nil.
const defaultNegAnswerLimit uint16 = 256

var (
	// ErrAlreadyWorking is returned when the initial IsIrWorking check answers Yes.
	ErrAlreadyWorking = errors.New("the ir emitter is already working")
	// ErrFailedToEnable is returned when every candidate control is exhausted without success.
	ErrFailedToEnable = errors.New("failed to find the controls that enables the ir emitter(s)")
	// ErrChannelClosed means the engine's coordination peer has gone away.
	ErrChannelClosed = errors.New("channel closed while sending message")
)

// RequestKind tags the variant carried by a Request.
type RequestKind int

const (
	ReqIsIrWorking RequestKind = iota
	ReqControls
	ReqUpdateControl
	ReqAlreadyWorking
	ReqSuccess
	ReqFailure
)

// Request is a message sent from the engine to its coordinating collaborator.
type Request struct {
	Kind     RequestKind
	Controls []uvc.XuControl // valid when Kind == ReqControls
	Control  uvc.XuControl   // valid when Kind == ReqUpdateControl
}

// Response is a message sent back to the engine.
type Response int

const (
	ResponseYes Response = iota
	ResponseNo
	ResponseAbort
)

// Device is the narrow capability the engine needs from a real uvc.Device,
// so it can be driven in tests by a scripted fake instead of real hardware.
type Device interface {
	Controls() ([]uvc.XuControl, error)
	ApplyControl(ctrl *uvc.XuControl) error
}

// Config parameterizes a search session.
type Config struct {
	// Emitters is the number of successful controls to find before declaring success.
	Emitters int
	// NegAnswerLimit caps consecutive No answers per byte before carrying to the next byte.
	// A nil value means the hard ceiling of 256.
	NegAnswerLimit *uint16
	// IncStep is added to the currently-incrementing byte on each iteration.
	IncStep uint8
}

// Engine is the control search state machine.
type Engine struct {
	device         Device
	cfg            Config
	negAnswerLimit uint16
	configuration  *store.Configuration
	requestTx      chan<- Request
	responseRx     <-chan Response
}

// New constructs an Engine. requestTx/responseRx are the bounded
// coordination channels shared with the orchestrator (capacity 3 each,
// per the concurrency model).
func New(cfg Config, device Device, configuration *store.Configuration, requestTx chan<- Request, responseRx <-chan Response) *Engine {
	limit := defaultNegAnswerLimit
	if cfg.NegAnswerLimit != nil {
		limit = *cfg.NegAnswerLimit
	}
	if cfg.IncStep == 0 {
		cfg.IncStep = 1
	}
	return &Engine{
		device:         device,
		cfg:            cfg,
		negAnswerLimit: limit,
		configuration:  configuration,
		requestTx:      requestTx,
		responseRx:     responseRx,
	}
}

func (e *Engine) send(ctx context.Context, req Request) error {
	select {
	case e.requestTx <- req:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrChannelClosed, ctx.Err())
	}
}

// trySendNow makes a single non-blocking attempt to send req, discarding
// it silently if the channel is full or the peer is gone. Used for the
// best-effort Failure notification on user abort.
func (e *Engine) trySendNow(req Request) {
	select {
	case e.requestTx <- req:
	default:
	}
}

func (e *Engine) recv(ctx context.Context) (Response, error) {
	select {
	case resp, ok := <-e.responseRx:
		if !ok {
			return 0, ErrChannelClosed
		}
		return resp, nil
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ErrChannelClosed, ctx.Err())
	}
}

// Configure runs the full search session described by the component's
// algorithm (load-or-create configuration, initial working check,
// candidate enumeration, per-control try loop, configuration persistence
// on every exit path).
func (e *Engine) Configure(ctx context.Context) error {
	defer func() {
		if err := e.configuration.Save(); err != nil {
			log.WithError(err).Error("failed to save configuration on exit")
		}
	}()

	if err := e.send(ctx, Request{Kind: ReqIsIrWorking}); err != nil {
		return err
	}
	resp, err := e.recv(ctx)
	if err != nil {
		return err
	}
	switch resp {
	case ResponseYes:
		_ = e.send(ctx, Request{Kind: ReqAlreadyWorking})
		return ErrAlreadyWorking
	case ResponseAbort:
		return nil
	}

	allControls, err := e.device.Controls()
	if err != nil {
		return pkgerrors.Wrap(err, "enumerate xu controls")
	}

	var candidates []uvc.XuControl
	for _, c := range allControls {
		if !c.Writable() {
			continue
		}
		if e.configuration.IsBlacklisted(&c) {
			continue
		}
		candidates = append(candidates, c)
	}

	essentials := make([]uvc.XuControl, len(candidates))
	for i := range candidates {
		essentials[i] = candidates[i].EssentialClone()
	}
	if err := e.send(ctx, Request{Kind: ReqControls, Controls: essentials}); err != nil {
		return err
	}

	remaining := e.cfg.Emitters
	for i := range candidates {
		ctrl := &candidates[i]

		ok, aborted, err := e.tryControl(ctx, ctrl)
		if err != nil {
			return err
		}

		if aborted {
			ctrl.Reset()
			_ = e.send(ctx, Request{Kind: ReqUpdateControl, Control: ctrl.EssentialClone()})
			e.trySendNow(Request{Kind: ReqFailure})
			return nil
		}

		if ok {
			e.configuration.AddToSavelist(ctrl)
			remaining--
			if remaining <= 0 {
				return e.send(ctx, Request{Kind: ReqSuccess})
			}
			continue
		}

		// Exhausted this candidate without success: restore hardware state.
		ctrl.Reset()
		if err := e.device.ApplyControl(ctrl); err != nil {
			e.configuration.AddToBlacklist(ctrl)
			return pkgerrors.Wrap(err, "control may have broken the camera, reboot and try again")
		}
	}

	_ = e.send(ctx, Request{Kind: ReqFailure})
	return ErrFailedToEnable
}

// tryControl drives the increment/apply/ask loop for a single control.
// It returns (true, false, nil) on success, (false, false, nil) when the
// control's byte space is exhausted, and (false, true, nil) on abort.
func (e *Engine) tryControl(ctx context.Context, ctrl *uvc.XuControl) (ok bool, aborted bool, err error) {
	curByte := 0
	negAnswer := uint16(0)

	for e.increment(ctrl, &curByte, &negAnswer) {
		if err := e.send(ctx, Request{Kind: ReqUpdateControl, Control: ctrl.EssentialClone()}); err != nil {
			return false, false, err
		}
		if err := e.device.ApplyControl(ctrl); err != nil {
			return false, false, err
		}
		if err := e.send(ctx, Request{Kind: ReqIsIrWorking}); err != nil {
			return false, false, err
		}
		resp, err := e.recv(ctx)
		if err != nil {
			return false, false, err
		}
		switch resp {
		case ResponseYes:
			return true, false, nil
		case ResponseNo:
			negAnswer++
		case ResponseAbort:
			return false, true, nil
		}
	}
	return false, false, nil
}

// increment advances ctrl's little-endian byte counter in place. It
// returns false once every byte has been exhausted. The cap check is
// deliberately `cap - cur[cur_byte] < IncStep` rather than equality: with
// IncStep > 1 an equality-only check would let the write overshoot the
// cap. See the per-byte cap and carry rule in the component design.
func (e *Engine) increment(ctrl *uvc.XuControl, curByte *int, negAnswer *uint16) bool {
	cur := ctrl.CurMut()
	if *curByte >= len(cur) {
		return false
	}

	cap := 255
	if max := ctrl.Max(); max != nil {
		cap = int(max[*curByte])
	}

	if *negAnswer > e.negAnswerLimit || cap-int(cur[*curByte]) < int(e.cfg.IncStep) {
		cur[*curByte] = ctrl.Init()[*curByte]
		*negAnswer = 0
		*curByte++
		return e.increment(ctrl, curByte, negAnswer)
	}

	cur[*curByte] += e.cfg.IncStep
	return true
}

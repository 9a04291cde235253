package search

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irutil/ir-emitter-enabler/internal/store"
	"github.com/irutil/ir-emitter-enabler/internal/uvc"
)

// fakeDevice scripts Controls()/ApplyControl() per the test harness
// required by the component design: it records every applied value and
// can be told to fail on specific (unit, selector) pairs.
type fakeDevice struct {
	controls []uvc.XuControl
	applies  [][]byte
	failOn   map[[2]uint8]bool
}

func (f *fakeDevice) Controls() ([]uvc.XuControl, error) {
	return f.controls, nil
}

func (f *fakeDevice) ApplyControl(ctrl *uvc.XuControl) error {
	if f.failOn[[2]uint8{ctrl.Unit(), ctrl.Selector()}] {
		return assert.AnError
	}
	f.applies = append(f.applies, append([]byte(nil), ctrl.Cur()...))
	return nil
}

func newConfiguration(t *testing.T) *store.Configuration {
	t.Helper()
	s := store.NewStore(filepath.Join(t.TempDir(), "cfg.yaml"))
	c, err := store.New(s, "/dev/video0")
	require.NoError(t, err)
	return c
}

func newTestEngine(t *testing.T, cfg Config, dev Device) (*Engine, chan Request, chan Response, *store.Configuration) {
	t.Helper()
	requestTx := make(chan Request, 3)
	responseRx := make(chan Response, 3)
	conf := newConfiguration(t)
	e := New(cfg, dev, conf, requestTx, responseRx)
	return e, requestTx, responseRx, conf
}

func withTimeout(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestConfigure_AlreadyWorking(t *testing.T) {
	dev := &fakeDevice{}
	e, requestTx, responseRx, _ := newTestEngine(t, Config{Emitters: 1, IncStep: 1}, dev)
	ctx := withTimeout(t)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Configure(ctx) }()

	req := <-requestTx
	assert.Equal(t, ReqIsIrWorking, req.Kind)
	responseRx <- ResponseYes

	req = <-requestTx
	assert.Equal(t, ReqAlreadyWorking, req.Kind)

	err := <-errCh
	assert.ErrorIs(t, err, ErrAlreadyWorking)
	assert.Empty(t, dev.applies)
}

func TestConfigure_SingleControlSingleEmitter(t *testing.T) {
	ctrl, err := uvc.New(3, 6, []byte{0}, []byte{3}, nil, nil, nil, true)
	require.NoError(t, err)
	dev := &fakeDevice{controls: []uvc.XuControl{ctrl}}

	limit := uint16(2)
	e, requestTx, responseRx, conf := newTestEngine(t, Config{Emitters: 1, IncStep: 1, NegAnswerLimit: &limit}, dev)
	ctx := withTimeout(t)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Configure(ctx) }()

	require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
	responseRx <- ResponseNo

	require.Equal(t, ReqControls, (<-requestTx).Kind)

	answers := []Response{ResponseNo, ResponseNo, ResponseYes}
	for _, ans := range answers {
		require.Equal(t, ReqUpdateControl, (<-requestTx).Kind)
		require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
		responseRx <- ans
	}

	require.Equal(t, ReqSuccess, (<-requestTx).Kind)
	require.NoError(t, <-errCh)

	assert.Equal(t, [][]byte{{1}, {2}, {3}}, dev.applies)
	assert.Equal(t, []store.SavedControl{{Unit: 3, Selector: 6, Control: []byte{3}}}, conf.Savelist())
}

func TestConfigure_ExhaustedControl(t *testing.T) {
	ctrl, err := uvc.New(3, 6, []byte{0}, []byte{2}, nil, nil, nil, true)
	require.NoError(t, err)
	dev := &fakeDevice{controls: []uvc.XuControl{ctrl}}

	limit := uint16(10)
	e, requestTx, responseRx, conf := newTestEngine(t, Config{Emitters: 1, IncStep: 1, NegAnswerLimit: &limit}, dev)
	_ = conf
	ctx := withTimeout(t)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Configure(ctx) }()

	require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
	responseRx <- ResponseNo
	require.Equal(t, ReqControls, (<-requestTx).Kind)

	// Exhaust the single-byte, max=2 control: increments to 1, 2, then carry
	// past curByte bound immediately ends the try loop with no further apply.
	for i := 0; i < 2; i++ {
		require.Equal(t, ReqUpdateControl, (<-requestTx).Kind)
		require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
		responseRx <- ResponseNo
	}

	require.Equal(t, ReqFailure, (<-requestTx).Kind)
	err = <-errCh
	assert.ErrorIs(t, err, ErrFailedToEnable)

	// restoration apply resets to init value [0]
	assert.Equal(t, []byte{0}, dev.applies[len(dev.applies)-1])
}

func TestConfigure_AbortMidSearch(t *testing.T) {
	ctrl, err := uvc.New(3, 6, []byte{0}, []byte{3}, nil, nil, nil, true)
	require.NoError(t, err)
	dev := &fakeDevice{controls: []uvc.XuControl{ctrl}}

	e, requestTx, responseRx, _ := newTestEngine(t, Config{Emitters: 1, IncStep: 1}, dev)
	ctx := withTimeout(t)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Configure(ctx) }()

	require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
	responseRx <- ResponseNo
	require.Equal(t, ReqControls, (<-requestTx).Kind)

	for i := 0; i < 2; i++ {
		require.Equal(t, ReqUpdateControl, (<-requestTx).Kind)
		require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
		responseRx <- ResponseNo
	}
	require.Equal(t, ReqUpdateControl, (<-requestTx).Kind)
	require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
	responseRx <- ResponseAbort

	final := <-requestTx
	require.Equal(t, ReqUpdateControl, final.Kind)
	assert.Equal(t, []byte{0}, final.Control.Cur())

	require.NoError(t, <-errCh)
}

func TestConfigure_BlacklistPersistence(t *testing.T) {
	ctrl, err := uvc.New(9, 9, []byte{0}, []byte{1}, nil, nil, nil, true)
	require.NoError(t, err)
	controls := []uvc.XuControl{ctrl}

	// Fail only the restoration apply (the second apply call for this control).
	calls := 0
	e, requestTx, responseRx, conf := newTestEngine(t, Config{Emitters: 1, IncStep: 1}, deviceFunc{
		controlsFn: func() ([]uvc.XuControl, error) { return controls, nil },
		applyFn: func(c *uvc.XuControl) error {
			calls++
			if calls == 2 {
				return assert.AnError
			}
			return nil
		},
	})
	ctx := withTimeout(t)

	errCh := make(chan error, 1)
	go func() { errCh <- e.Configure(ctx) }()

	require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
	responseRx <- ResponseNo
	require.Equal(t, ReqControls, (<-requestTx).Kind)
	require.Equal(t, ReqUpdateControl, (<-requestTx).Kind)
	require.Equal(t, ReqIsIrWorking, (<-requestTx).Kind)
	responseRx <- ResponseNo

	err = <-errCh
	require.Error(t, err)
	assert.True(t, conf.IsBlacklisted(&ctrl))
}

type deviceFunc struct {
	controlsFn func() ([]uvc.XuControl, error)
	applyFn    func(*uvc.XuControl) error
}

func (d deviceFunc) Controls() ([]uvc.XuControl, error)    { return d.controlsFn() }
func (d deviceFunc) ApplyControl(c *uvc.XuControl) error { return d.applyFn(c) }

func TestIncrement_CarryWithoutMax(t *testing.T) {
	ctrl, err := uvc.New(0, 0, []byte{0, 0}, nil, nil, nil, nil, true)
	require.NoError(t, err)
	limit := uint16(0)
	e := New(Config{IncStep: 1, NegAnswerLimit: &limit}, &fakeDevice{}, newConfiguration(t), make(chan Request, 3), make(chan Response, 3))

	curByte := 0
	negAnswer := uint16(0)
	for i := 0; i < 256; i++ {
		ok := e.increment(&ctrl, &curByte, &negAnswer)
		require.True(t, ok)
	}
	assert.Equal(t, []byte{0, 1}, ctrl.Cur())

	curByte, negAnswer = 0, 0
	calls := 0
	for e.increment(&ctrl, &curByte, &negAnswer) {
		calls++
		if calls > 256*256+1 {
			t.Fatal("increment did not terminate")
		}
	}
	assert.Equal(t, 256*256, calls)
}

func TestIncrement_WithMax(t *testing.T) {
	ctrl, err := uvc.New(0, 0, []byte{0}, []byte{3}, nil, nil, nil, true)
	require.NoError(t, err)
	e := New(Config{IncStep: 1}, &fakeDevice{}, newConfiguration(t), make(chan Request, 3), make(chan Response, 3))

	curByte := 0
	negAnswer := uint16(0)
	for i := 0; i < 3; i++ {
		require.True(t, e.increment(&ctrl, &curByte, &negAnswer))
	}
	assert.Equal(t, []byte{3}, ctrl.Cur())
	assert.False(t, e.increment(&ctrl, &curByte, &negAnswer))
}

// Package analyzer implements the image-based "is the IR emitter
// working?" statistical test: it watches a stream of greyscale frames
// for the elevated second-order intensity variation characteristic of a
// blinking IR emitter.
package analyzer

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/irutil/ir-emitter-enabler/internal/capture"
)

// ErrSizeMismatch is returned when a frame's pixel count differs from the
// first frame fed to this analyzer.
var ErrSizeMismatch = errors.New("image size does not match stream analyzer config")

var (
	errNoFrames      = errors.New("feed was never called")
	errNoBaseline    = errors.New("start analyzing was never called")
)

// StreamAnalyzer accumulates the intensity-variation statistics described
// in the component design and answers whether the stream is currently
// blinking relative to a write-once baseline.
type StreamAnalyzer struct {
	mu sync.Mutex

	imageIntensity []uint16
	hasIntensity   bool
	intensityDiff  int32
	hasDiff        bool

	intensityVarSum uint64
	nbrImages       uint64

	size      uint32
	sizeSet   bool

	refIntensityVarMean uint64
	refMeanSet          bool
	refIntensityVarCoef uint64
}

// New constructs a StreamAnalyzer with the given baseline significance coefficient.
func New(refIntensityVarCoef uint64) *StreamAnalyzer {
	return &StreamAnalyzer{refIntensityVarCoef: refIntensityVarCoef}
}

func intensity(img capture.Image) []uint16 {
	out := make([]uint16, len(img.Pixels))
	for i, px := range img.Pixels {
		out[i] = uint16(px)
	}
	return out
}

func intensitiesDiff(prev, cur []uint16) int32 {
	var sum int64
	for i := range cur {
		sum += int64(prev[i]) - int64(cur[i])
	}
	return int32(sum)
}

func intensitiesVariation(prevDiff, curDiff int32) uint64 {
	d := int64(curDiff) - int64(prevDiff)
	if d < 0 {
		d = -d
	}
	return uint64(d)
}

// Feed consumes one frame, updating the running statistics. It returns
// ErrSizeMismatch if img's pixel count differs from the first frame ever fed.
func (a *StreamAnalyzer) Feed(img capture.Image) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	size := uint32(len(img.Pixels))
	if !a.sizeSet {
		a.size = size
		a.sizeSet = true
	} else if size != a.size {
		return ErrSizeMismatch
	}

	a.nbrImages++
	cur := intensity(img)

	if a.hasIntensity {
		diff := intensitiesDiff(a.imageIntensity, cur)
		if a.hasDiff {
			a.intensityVarSum += intensitiesVariation(a.intensityDiff, diff)
		}
		a.intensityDiff = diff
		a.hasDiff = true
	}
	a.imageIntensity = cur
	a.hasIntensity = true
	return nil
}

// NbrImages returns the number of frames consumed since the last reset.
func (a *StreamAnalyzer) NbrImages() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nbrImages
}

// StartAnalyzing computes the write-once baseline mean from the frames
// accumulated so far (if not already set), then resets the running
// statistics while preserving the baseline.
func (a *StreamAnalyzer) StartAnalyzing() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.refMeanSet {
		if a.nbrImages == 0 {
			return pkgerrors.Wrap(errNoFrames, "start analyzing")
		}
		a.refIntensityVarMean = (a.intensityVarSum * a.refIntensityVarCoef) / a.nbrImages
		a.refMeanSet = true
	}

	a.imageIntensity = nil
	a.hasIntensity = false
	a.intensityDiff = 0
	a.hasDiff = false
	a.intensityVarSum = 0
	a.nbrImages = 0
	return nil
}

// IsWorking compares the current mean variation against the baseline.
func (a *StreamAnalyzer) IsWorking() (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.nbrImages == 0 {
		return false, pkgerrors.Wrap(errNoFrames, "is ir working")
	}
	if !a.refMeanSet {
		return false, pkgerrors.Wrap(errNoBaseline, "is ir working")
	}
	currentMean := a.intensityVarSum / a.nbrImages
	return currentMean > a.refIntensityVarMean, nil
}

// Message is sent to the analyzer task on its request channel.
type Message struct {
	Image       *capture.Image // non-nil for an Image message
	IsIrWorking bool           // true for an IsIrWorking message
}

// IsIrWorking is the analyzer's answer to an IsIrWorking query.
type IsIrWorking int

const (
	Yes IsIrWorking = iota
	No
	Maybe
)

// Analyze runs the analyzer task's main loop: it feeds frames while in
// the "awaiting" window opened by an IsIrWorking message, and answers
// once imagesBeforeAnswer frames have been fed since that window opened.
// Frames arriving outside the awaiting window are silently discarded.
func Analyze(ctx context.Context, a *StreamAnalyzer, responses chan<- IsIrWorking, requests <-chan Message, imagesBeforeAnswer uint64) error {
	awaiting := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-requests:
			if !ok {
				return nil
			}

			switch {
			case msg.Image != nil:
				if !awaiting {
					continue
				}
				if err := a.Feed(*msg.Image); err != nil {
					// A size mismatch means the analyzer's write-once frame
					// size assumption was violated; this is unrecoverable,
					// not a transient "Maybe" condition, so it terminates
					// the task.
					return pkgerrors.Wrap(err, "feed")
				}
				if a.NbrImages() < imagesBeforeAnswer {
					continue
				}

				working, err := a.IsWorking()
				var resp IsIrWorking
				switch {
				case err != nil:
					resp = Maybe
				case working:
					resp = Yes
				default:
					resp = No
				}
				if sendOrDone(ctx, responses, resp) {
					return nil
				}
				awaiting = false
				if err := a.StartAnalyzing(); err != nil {
					return pkgerrors.Wrap(err, "start analyzing")
				}

			case msg.IsIrWorking:
				awaiting = true
			}
		}
	}
}

func sendOrDone(ctx context.Context, ch chan<- IsIrWorking, v IsIrWorking) (done bool) {
	select {
	case ch <- v:
		return false
	case <-ctx.Done():
		return true
	}
}

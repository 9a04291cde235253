package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irutil/ir-emitter-enabler/internal/capture"
)

func flatImage(intensity uint8) capture.Image {
	return capture.Image{Width: 1, Height: 1, Pixels: []uint8{intensity}}
}

func TestStreamAnalyzer_BaselineThenWorking(t *testing.T) {
	a := New(2)

	for _, v := range []uint8{10, 12, 10} {
		require.NoError(t, a.Feed(flatImage(v)))
	}
	// diffs: 10-12=-2, 12-10=2; var = |2-(-2)| = 4; ref_mean = (4*2)/3 = 2.
	require.NoError(t, a.StartAnalyzing())

	for _, v := range []uint8{10, 80, 10} {
		require.NoError(t, a.Feed(flatImage(v)))
	}
	working, err := a.IsWorking()
	require.NoError(t, err)
	assert.True(t, working)

	require.NoError(t, a.StartAnalyzing())
	for _, v := range []uint8{10, 11, 10} {
		require.NoError(t, a.Feed(flatImage(v)))
	}
	working, err = a.IsWorking()
	require.NoError(t, err)
	assert.False(t, working)
}

func TestStreamAnalyzer_SizeMismatchRejected(t *testing.T) {
	a := New(1)
	require.NoError(t, a.Feed(capture.Image{Width: 2, Height: 1, Pixels: []uint8{1, 2}}))
	err := a.Feed(capture.Image{Width: 1, Height: 1, Pixels: []uint8{1}})
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestStreamAnalyzer_IsWorkingBeforeFeedOrBaseline(t *testing.T) {
	a := New(1)
	_, err := a.IsWorking()
	assert.Error(t, err)

	require.NoError(t, a.Feed(flatImage(10)))
	_, err = a.IsWorking()
	assert.Error(t, err, "baseline has not been computed yet")
}

func TestAnalyze_MaybeBeforeFirstBaseline(t *testing.T) {
	a := New(1)
	requests := make(chan Message, 4)
	responses := make(chan IsIrWorking, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Analyze(ctx, a, responses, requests, 1) }()

	requests <- Message{IsIrWorking: true}
	img := flatImage(5)
	requests <- Message{Image: &img}

	select {
	case resp := <-responses:
		assert.Equal(t, Maybe, resp)
	case <-time.After(time.Second):
		t.Fatal("no response received")
	}

	close(requests)
	require.NoError(t, <-done)
}

func TestAnalyze_SizeMismatchIsFatal(t *testing.T) {
	a := New(1)
	requests := make(chan Message, 4)
	responses := make(chan IsIrWorking, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Analyze(ctx, a, responses, requests, 100) }()

	requests <- Message{IsIrWorking: true}
	first := flatImage(5)
	requests <- Message{Image: &first}
	mismatched := capture.Image{Width: 2, Height: 1, Pixels: []uint8{1, 2}}
	requests <- Message{Image: &mismatched}

	err := <-done
	assert.ErrorIs(t, err, ErrSizeMismatch)
}

func TestAnalyze_DiscardsImagesOutsideAwaitingWindow(t *testing.T) {
	a := New(1)
	requests := make(chan Message, 4)
	responses := make(chan IsIrWorking, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Analyze(ctx, a, responses, requests, 100) }()

	img := flatImage(5)
	requests <- Message{Image: &img}
	requests <- Message{Image: &img}

	close(requests)
	require.NoError(t, <-done)
	assert.Equal(t, uint64(0), a.NbrImages())
}

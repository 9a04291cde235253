package uvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewControl_CurEqualsInitAtConstruction(t *testing.T) {
	c, err := New(3, 6, []byte{1, 2, 3}, nil, nil, nil, nil, true)
	require.NoError(t, err)
	assert.Equal(t, c.Init(), c.Cur())
}

func TestNewControl_MismatchedLengthIsInvalidInput(t *testing.T) {
	_, err := New(3, 6, []byte{1, 2}, []byte{1, 2, 3}, nil, nil, nil, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReset_RestoresInitAfterMutation(t *testing.T) {
	c, err := New(3, 6, []byte{1, 2, 3}, []byte{9, 9, 9}, nil, nil, nil, true)
	require.NoError(t, err)
	c.CurMut()[0] = 42
	c.Reset()
	assert.Equal(t, c.Init(), c.Cur())
}

func TestEssentialClone_DropsOptionalVectors(t *testing.T) {
	c, err := New(3, 6, []byte{1}, []byte{2}, []byte{0}, []byte{1}, []byte{0}, true)
	require.NoError(t, err)
	clone := c.EssentialClone()
	assert.Equal(t, c.Unit(), clone.Unit())
	assert.Equal(t, c.Selector(), clone.Selector())
	assert.Equal(t, c.Cur(), clone.Cur())
	assert.Equal(t, c.Writable(), clone.Writable())
	assert.Nil(t, clone.Max())
	assert.Nil(t, clone.Init())
}

package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImage_String(t *testing.T) {
	img := Image{Width: 4, Height: 2, Pixels: make([]uint8, 8)}
	assert.Equal(t, "image 4x2 (8 px)", img.String())
}

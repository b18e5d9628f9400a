package point

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	xy := []float32{-1, 1, 0.5, -0.5, 2, -3}
	rgb := []float32{0, 0.25, 1, 1, 1, 1, 1.5, -1, 0}

	dst := make([]Point, 3)
	require.NoError(t, Assemble(dst, xy, rgb))

	assert.Equal(t, Point{X: -1, Y: 1, R: 0, G: 0.25, B: 1}, dst[0])
	assert.Equal(t, Point{X: 0.5, Y: -0.5, R: 1, G: 1, B: 1}, dst[1])
	// out-of-range values pass through; clipping belongs to the backends
	assert.Equal(t, Point{X: 2, Y: -3, R: 1.5, G: -1, B: 0}, dst[2])
}

func TestAssembleShortReadback(t *testing.T) {
	dst := make([]Point, 2)
	err := Assemble(dst, []float32{0, 0}, []float32{0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrShortReadback)
}

func TestPointString(t *testing.T) {
	p := Point{X: 0.5, Y: -1, R: 1, G: 0, B: 0.25}
	assert.Equal(t, "Point: x=0.5, y=-1, r=1, g=0, b=0.25", p.String())
}

func TestFrameIndex(t *testing.T) {
	f := Frame{Points: make([]Point, 4), Base: 8}
	assert.Equal(t, uint32(8), f.Index(0))
	assert.Equal(t, uint32(11), f.Index(3))

	wrapped := Frame{Base: ^uint32(0)}
	assert.Equal(t, uint32(0), wrapped.Index(1))
}

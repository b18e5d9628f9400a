package display

import (
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/LaserField/internal/point"
)

func TestAspectFitTransform(t *testing.T) {
	tests := []struct {
		name                    string
		viewW, viewH, fw, fh    float64
		scale, offsetX, offsetY float64
	}{
		{"exact", 200, 200, 2, 2, 100, 0, 0},
		{"wide", 400, 200, 2, 2, 100, 100, 0},
		{"tall", 200, 300, 2, 2, 100, 0, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scale, ox, oy := aspectFitTransform(tt.viewW, tt.viewH, tt.fw, tt.fh)
			assert.InDelta(t, tt.scale, scale, 1e-9)
			assert.InDelta(t, tt.offsetX, ox, 1e-9)
			assert.InDelta(t, tt.offsetY, oy, 1e-9)
		})
	}
}

func TestProject(t *testing.T) {
	vp := newViewport(400, 200)

	x, y := vp.project(point.Point{X: -1, Y: 1})
	assert.Equal(t, float32(100), x)
	assert.Equal(t, float32(0), y)

	x, y = vp.project(point.Point{X: 1, Y: -1})
	assert.Equal(t, float32(300), x)
	assert.Equal(t, float32(200), y)

	x, y = vp.project(point.Point{})
	assert.Equal(t, float32(200), x)
	assert.Equal(t, float32(100), y)
}

func TestPointColor(t *testing.T) {
	nan := float32(math.NaN())
	assert.Equal(t, color.RGBA{R: 255, G: 128, B: 0, A: 255}, pointColor(point.Point{R: 2, G: 0.5, B: -1}))
	assert.Equal(t, color.RGBA{A: 255}, pointColor(point.Point{R: nan}))
}

func TestSegmentsSkipBlanked(t *testing.T) {
	vp := newViewport(200, 200)
	points := []point.Point{
		{X: -1, Y: 0, R: 1},
		{X: 0, Y: 0, R: 1},
		{X: 1, Y: 0},
		{X: 1, Y: 1, G: 1},
	}

	segs := segments(nil, points, vp)
	require.Len(t, segs, 2)
	assert.Equal(t, segment{x0: 0, y0: 100, x1: 100, y1: 100, clr: color.RGBA{R: 255, A: 255}}, segs[0])
	assert.Equal(t, segment{x0: 200, y0: 100, x1: 200, y1: 0, clr: color.RGBA{G: 255, A: 255}}, segs[1])
}

func TestSegmentsShortFrames(t *testing.T) {
	vp := newViewport(100, 100)
	assert.Empty(t, segments(nil, nil, vp))
	assert.Empty(t, segments(nil, []point.Point{{R: 1}}, vp))
}

func TestSegmentsReuseBuffer(t *testing.T) {
	vp := newViewport(100, 100)
	buf := segments(nil, []point.Point{{}, {R: 1}, {G: 1}}, vp)
	require.Len(t, buf, 2)
	buf = segments(buf, []point.Point{{}, {B: 1}}, vp)
	assert.Len(t, buf, 1)
}

func TestSetFrameCopies(t *testing.T) {
	d := NewEbitenDisplay("test")
	pts := []point.Point{{X: 0.5, R: 1}}
	d.SetFrame(point.Frame{Points: pts})
	pts[0].X = -1

	assert.Equal(t, uint64(1), d.Frames())
	assert.Equal(t, float32(0.5), d.frame[0].X)

	require.NoError(t, d.Update())
	d.Close()
	assert.Error(t, d.Update())
}

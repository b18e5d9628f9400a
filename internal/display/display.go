// Package display draws received point frames as the laser would trace
// them.
package display

import (
	"image/color"
	"math"

	"github.com/chewxy/math32"

	"github.com/junsooki/LaserField/internal/point"
)

// FrameSink accepts decoded frames from the network side.
type FrameSink interface {
	SetFrame(frame point.Frame)
}

// segment is one visible stroke between consecutive points, in screen
// pixels.
type segment struct {
	x0, y0, x1, y1 float32
	clr            color.RGBA
}

// aspectFitTransform returns scale and offsets to fit frame into view with letterboxing.
func aspectFitTransform(viewW, viewH, frameW, frameH float64) (scale, offsetX, offsetY float64) {
	scale = math.Min(viewW/frameW, viewH/frameH)
	offsetX = (viewW - frameW*scale) / 2
	offsetY = (viewH - frameH*scale) / 2
	return
}

// viewport maps field coordinates, a [-1, 1] square with Y pointing up,
// onto a view of the given size.
type viewport struct {
	scale, offsetX, offsetY float64
}

func newViewport(viewW, viewH int) viewport {
	scale, ox, oy := aspectFitTransform(float64(viewW), float64(viewH), 2, 2)
	return viewport{scale: scale, offsetX: ox, offsetY: oy}
}

func (v viewport) project(p point.Point) (x, y float32) {
	x = float32(v.offsetX + (float64(p.X)+1)*v.scale)
	y = float32(v.offsetY + (1-float64(p.Y))*v.scale)
	return x, y
}

func channel(v float32) uint8 {
	switch {
	case math32.IsNaN(v) || v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}

func pointColor(p point.Point) color.RGBA {
	return color.RGBA{R: channel(p.R), G: channel(p.G), B: channel(p.B), A: 255}
}

// segments returns the path through points. A stroke takes the colour of
// the point it ends at; strokes ending at a black point are blanked moves
// and are left out.
func segments(dst []segment, points []point.Point, vp viewport) []segment {
	dst = dst[:0]
	if len(points) < 2 {
		return dst
	}
	px, py := vp.project(points[0])
	for _, p := range points[1:] {
		x, y := vp.project(p)
		c := pointColor(p)
		if c.R|c.G|c.B != 0 {
			dst = append(dst, segment{x0: px, y0: py, x1: x, y1: y, clr: c})
		}
		px, py = x, y
	}
	return dst
}

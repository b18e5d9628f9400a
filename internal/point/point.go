package point

import (
	"errors"
	"fmt"
)

// ErrShortReadback is returned when the readback arrays hold fewer values
// than the destination frame needs.
var ErrShortReadback = errors.New("point: readback shorter than frame")

// Point is one sample of the field. X and Y are in [-1, 1], R, G and B in [0, 1].
type Point struct {
	X, Y    float32
	R, G, B float32
}

func (p Point) String() string {
	return fmt.Sprintf("Point: x=%g, y=%g, r=%g, g=%g, b=%g", p.X, p.Y, p.R, p.G, p.B)
}

// Frame is the full point set of one emission cycle.
type Frame struct {
	Points []Point
	Base   uint32  // logical index of Points[0]
	Time   float32 // seconds since the renderer started
}

// Index returns the logical index of the i-th point of the frame.
func (f Frame) Index(i int) uint32 {
	return f.Base + uint32(i)
}

// Assemble interleaves a two-component position readback and a
// three-component color readback into dst.
func Assemble(dst []Point, xy, rgb []float32) error {
	if len(xy) < 2*len(dst) || len(rgb) < 3*len(dst) {
		return fmt.Errorf("%w: %d points, %d xy, %d rgb", ErrShortReadback, len(dst), len(xy), len(rgb))
	}
	for i := range dst {
		dst[i] = Point{
			X: xy[i*2+0],
			Y: xy[i*2+1],
			R: rgb[i*3+0],
			G: rgb[i*3+1],
			B: rgb[i*3+2],
		}
	}
	return nil
}

package etherdream

import (
	"github.com/chewxy/math32"

	"github.com/junsooki/LaserField/internal/dac"
	"github.com/junsooki/LaserField/internal/point"
)

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Coordinate maps a position component to the DAC range, saturating at the
// int16 bounds.
func Coordinate(v, offset, scale float32) int16 {
	f := (v + offset) * scale * 32767
	if math32.IsNaN(f) {
		return 0
	}
	return int16(clamp(f, -32768, 32767))
}

// Color maps a color component to the DAC range, saturating at 0 and 65535.
func Color(v float32) uint16 {
	f := v * 65535
	if math32.IsNaN(f) {
		return 0
	}
	return uint16(clamp(f, 0, 65535))
}

// Transform is the mapping of shader coordinates onto the DAC.
type Transform struct {
	OffsetX, OffsetY float32
	Scale            float32
}

// Quantize converts points into dst, growing it when needed.
func (t Transform) Quantize(dst []dac.Sample, points []point.Point) []dac.Sample {
	if cap(dst) < len(points) {
		dst = make([]dac.Sample, len(points))
	}
	dst = dst[:len(points)]
	for i, p := range points {
		dst[i] = dac.Sample{
			X: Coordinate(p.X, t.OffsetX, t.Scale),
			Y: Coordinate(p.Y, t.OffsetY, t.Scale),
			R: Color(p.R),
			G: Color(p.G),
			B: Color(p.B),
		}
	}
	return dst
}

// Package decoder parses point frames produced by package encoder.
package decoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/junsooki/LaserField/internal/encoder"
	"github.com/junsooki/LaserField/internal/point"
)

// ErrFormat is returned for bytes that are not an encoded frame.
var ErrFormat = errors.New("decoder: malformed frame")

// Decoder decodes bytes into a frame.
type Decoder interface {
	Decode(data []byte) (point.Frame, error)
}

// PointDecoder decodes both point layouts.
type PointDecoder struct{}

func NewPointDecoder() *PointDecoder {
	return &PointDecoder{}
}

// Decode returns a frame with freshly allocated points.
func (d *PointDecoder) Decode(data []byte) (point.Frame, error) {
	if len(data) < encoder.HeaderSize || string(data[:4]) != encoder.Magic {
		return point.Frame{}, fmt.Errorf("%w: bad header", ErrFormat)
	}
	if data[4] != encoder.Version {
		return point.Frame{}, fmt.Errorf("%w: version %d", ErrFormat, data[4])
	}
	format := encoder.Format(data[5])
	if format > encoder.FormatCompact {
		return point.Frame{}, fmt.Errorf("%w: format %d", ErrFormat, format)
	}

	frame := point.Frame{
		Base: binary.LittleEndian.Uint32(data[8:]),
		Time: math32.Float32frombits(binary.LittleEndian.Uint32(data[12:])),
	}
	count := int(binary.LittleEndian.Uint32(data[16:]))
	body := data[encoder.HeaderSize:]
	size := format.PointSize()
	if count < 0 || len(body) != count*size {
		return point.Frame{}, fmt.Errorf("%w: %d bytes for %d points", ErrFormat, len(body), count)
	}

	frame.Points = make([]point.Point, count)
	for i := range frame.Points {
		b := body[i*size:]
		if format == encoder.FormatCompact {
			frame.Points[i] = point.Point{
				X: float32(int16(binary.LittleEndian.Uint16(b))) / 32767,
				Y: float32(int16(binary.LittleEndian.Uint16(b[2:]))) / 32767,
				R: float32(b[4]) / 255,
				G: float32(b[5]) / 255,
				B: float32(b[6]) / 255,
			}
			continue
		}
		f := func(off int) float32 {
			return math32.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
		}
		frame.Points[i] = point.Point{X: f(0), Y: f(4), R: f(8), G: f(12), B: f(16)}
	}
	return frame, nil
}

package encoder

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"

	"github.com/junsooki/LaserField/internal/point"
)

// PointEncoder encodes frames in one format. The returned bytes are reused
// by the next Encode call.
type PointEncoder struct {
	format Format
	buf    []byte
}

// NewPointEncoder creates an encoder for the given format.
func NewPointEncoder(format Format) *PointEncoder {
	if format > FormatCompact {
		format = FormatFloat
	}
	return &PointEncoder{format: format}
}

// Format returns the encoder's point layout.
func (e *PointEncoder) Format() Format {
	return e.format
}

func (e *PointEncoder) Encode(frame point.Frame) ([]byte, error) {
	if uint64(len(frame.Points)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("encode: %d points", len(frame.Points))
	}

	b := e.buf[:0]
	b = append(b, Magic...)
	b = append(b, Version, byte(e.format), 0, 0)
	b = binary.LittleEndian.AppendUint32(b, frame.Base)
	b = binary.LittleEndian.AppendUint32(b, math32.Float32bits(frame.Time))
	b = binary.LittleEndian.AppendUint32(b, uint32(len(frame.Points)))

	for _, p := range frame.Points {
		if e.format == FormatCompact {
			b = binary.LittleEndian.AppendUint16(b, uint16(compactCoord(p.X)))
			b = binary.LittleEndian.AppendUint16(b, uint16(compactCoord(p.Y)))
			b = append(b, compactColor(p.R), compactColor(p.G), compactColor(p.B))
			continue
		}
		for _, v := range [5]float32{p.X, p.Y, p.R, p.G, p.B} {
			b = binary.LittleEndian.AppendUint32(b, math32.Float32bits(v))
		}
	}
	e.buf = b
	return b, nil
}

func compactCoord(v float32) int16 {
	if math32.IsNaN(v) {
		return 0
	}
	return int16(math32.Max(-1, math32.Min(1, v)) * 32767)
}

func compactColor(v float32) uint8 {
	if math32.IsNaN(v) {
		return 0
	}
	return uint8(math32.Round(math32.Max(0, math32.Min(1, v)) * 255))
}

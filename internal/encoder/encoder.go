// Package encoder serializes point frames for the remote preview channel.
//
// A frame is a 20-byte header followed by the points:
//
//	magic   [4]byte  "LFPF"
//	version uint8    1
//	format  uint8    FormatFloat or FormatCompact
//	_       uint16
//	base    uint32   logical index of the first point
//	time    float32  seconds since start
//	count   uint32
//
// FormatFloat stores each point as five float32 (x, y, r, g, b).
// FormatCompact stores x and y as int16 scaled by 32767 and the colors as
// uint8 scaled by 255. All fields are little-endian.
package encoder

import (
	"github.com/junsooki/LaserField/internal/point"
)

// Encoder encodes a frame into bytes.
type Encoder interface {
	Encode(frame point.Frame) ([]byte, error)
}

// Magic starts every encoded frame.
const Magic = "LFPF"

// Version is the frame layout version.
const Version = 1

// HeaderSize is the length of the frame header.
const HeaderSize = 20

// Format selects the point layout.
type Format uint8

const (
	FormatFloat Format = iota
	FormatCompact
)

// PointSize returns the encoded size of one point.
func (f Format) PointSize() int {
	if f == FormatCompact {
		return 7
	}
	return 20
}

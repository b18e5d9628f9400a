// Package rendertest provides an in-memory render.Device for tests.
package rendertest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/junsooki/LaserField/internal/point"
	"github.com/junsooki/LaserField/internal/render"
)

// Broken is a fragment source the fake device refuses to build.
const Broken = "void main() { syntax error }"

// Device runs programs on the CPU. Each point's X carries its logical index,
// Y the uploaded time and R the ordinal (1-based) of the program that drew it.
// Any source containing "error" fails to build with a driver-style log.
type Device struct {
	Count   int
	DrawErr error

	Builds   int
	Failures int
	Programs []*Program
	Draws    []*Program

	xy, rgb []float32
}

// Program is a fake linked program.
type Program struct {
	Source   string
	Ordinal  int
	Bases    []uint32
	Released bool

	base uint32
	time float32
}

// NewDevice returns a device for count points.
func NewDevice(count int) *Device {
	return &Device{
		Count: count,
		xy:    make([]float32, count*2),
		rgb:   make([]float32, count*3),
	}
}

func (d *Device) Build(source string) (render.Program, error) {
	d.Builds++
	if strings.Contains(source, "error") {
		d.Failures++
		return nil, fmt.Errorf("0:1(15): error: %s", strings.TrimSpace(source))
	}
	p := &Program{Source: source, Ordinal: len(d.Programs) + 1}
	d.Programs = append(d.Programs, p)
	return p, nil
}

func (d *Device) Draw(p render.Program) ([]float32, []float32, error) {
	if d.DrawErr != nil {
		return nil, nil, d.DrawErr
	}
	fp, ok := p.(*Program)
	if !ok {
		return nil, nil, errors.New("rendertest: foreign program")
	}
	if fp.Released {
		return nil, nil, errors.New("rendertest: draw with released program")
	}
	d.Draws = append(d.Draws, fp)
	for i := 0; i < d.Count; i++ {
		d.xy[i*2+0] = float32(fp.base + uint32(i))
		d.xy[i*2+1] = fp.time
		d.rgb[i*3+0] = float32(fp.Ordinal)
		d.rgb[i*3+1] = 0
		d.rgb[i*3+2] = 0
	}
	return d.xy, d.rgb, nil
}

// Last returns the most recently built program, or nil.
func (d *Device) Last() *Program {
	if len(d.Programs) == 0 {
		return nil
	}
	return d.Programs[len(d.Programs)-1]
}

func (p *Program) SetBase(base uint32) {
	p.base = base
	p.Bases = append(p.Bases, base)
}

func (p *Program) SetTime(seconds float32) { p.time = seconds }

func (p *Program) Release() { p.Released = true }

// Index decodes the logical index a Device wrote into pt.
func Index(pt point.Point) uint32 {
	return uint32(pt.X)
}

// Ordinal decodes which program drew pt.
func Ordinal(pt point.Point) int {
	return int(pt.R)
}

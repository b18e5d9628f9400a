// Package dactest provides in-memory DAC drivers for tests.
package dactest

import (
	"context"
	"math"

	"github.com/junsooki/LaserField/internal/dac"
)

// Conn records the frames written to it.
type Conn struct {
	// Free is the buffer space Ready compares frame sizes against.
	Free     int
	ReadyErr error
	WriteErr error

	Frames [][]dac.Sample
	Rates  []uint32
	Closed int
}

var _ dac.Conn = (*Conn)(nil)

func (c *Conn) Ready(n int) (bool, error) {
	if c.ReadyErr != nil {
		return false, c.ReadyErr
	}
	return c.Free >= n, nil
}

func (c *Conn) WriteFrame(samples []dac.Sample, rate uint32, repeat int) error {
	if c.WriteErr != nil {
		return c.WriteErr
	}
	for range repeat {
		c.Frames = append(c.Frames, append([]dac.Sample(nil), samples...))
		c.Rates = append(c.Rates, rate)
	}
	return nil
}

func (c *Conn) Close() error {
	c.Closed++
	return nil
}

// Driver serves a fixed device list.
type Driver struct {
	List       []dac.Device
	DevicesErr error
	OpenErr    error

	// Conn is returned by Open; nil means a Conn that always has room.
	Conn   *Conn
	Opened []dac.Device
}

var _ dac.Driver = (*Driver)(nil)

// NewDriver returns a driver listing devices with the given names.
func NewDriver(names ...string) *Driver {
	d := &Driver{}
	for _, name := range names {
		d.List = append(d.List, dac.Device{Name: name, BufferCapacity: 1799})
	}
	return d
}

func (d *Driver) Devices(context.Context) ([]dac.Device, error) {
	if d.DevicesErr != nil {
		return nil, d.DevicesErr
	}
	return d.List, nil
}

func (d *Driver) Open(_ context.Context, device dac.Device) (dac.Conn, error) {
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	d.Opened = append(d.Opened, device)
	if d.Conn == nil {
		d.Conn = &Conn{Free: math.MaxInt}
	}
	return d.Conn, nil
}

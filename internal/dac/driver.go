package dac

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// DefaultDiscoveryWindow is how long NetDriver listens for broadcasts.
const DefaultDiscoveryWindow = 1500 * time.Millisecond

// Driver enumerates and opens DACs.
type Driver interface {
	// Devices returns the reachable DACs in a stable order.
	Devices(ctx context.Context) ([]Device, error)
	// Open connects to a DAC.
	Open(ctx context.Context, device Device) (Conn, error)
}

// Conn is an open DAC.
type Conn interface {
	// Ready polls the DAC and reports whether a frame of n points fits in
	// its buffer now.
	Ready(n int) (bool, error)
	// WriteFrame plays samples repeat times at rate points per second.
	WriteFrame(samples []Sample, rate uint32, repeat int) error
	// Close stops playback and closes the connection. It may be called more
	// than once.
	Close() error
}

// NetDriver finds DACs on the local network.
type NetDriver struct {
	// Window is the discovery listening time; zero means
	// DefaultDiscoveryWindow.
	Window time.Duration
	// ListenAddr is the UDP address discovery listens on; empty means all
	// interfaces on DiscoveryPort.
	ListenAddr string
	// Timeout bounds every command round trip; zero means DefaultTimeout.
	Timeout time.Duration
}

var _ Driver = (*NetDriver)(nil)

func (d *NetDriver) Devices(ctx context.Context) ([]Device, error) {
	addr := d.ListenAddr
	if addr == "" {
		addr = ":" + strconv.Itoa(DiscoveryPort)
	}
	window := d.Window
	if window <= 0 {
		window = DefaultDiscoveryWindow
	}

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for DACs: %w", err)
	}
	defer pc.Close()

	return Discover(ctx, pc, window)
}

func (d *NetDriver) Open(ctx context.Context, device Device) (Conn, error) {
	return Dial(ctx, device, d.Timeout)
}

package dac

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"time"
)

// Device is a DAC found by discovery.
type Device struct {
	Name             string
	MAC              net.HardwareAddr
	Addr             string
	HardwareRevision uint16
	SoftwareRevision uint16
	BufferCapacity   uint16
	MaxPointRate     uint32
}

// DeviceName returns the display name of the DAC with the given MAC.
func DeviceName(mac net.HardwareAddr) string {
	name := "EtherDream"
	if len(mac) >= 3 {
		name = fmt.Sprintf("EtherDream %x", []byte(mac[len(mac)-3:]))
	}
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	return name
}

func newDevice(bc *Broadcast, ip net.IP) Device {
	return Device{
		Name:             DeviceName(bc.MAC),
		MAC:              bc.MAC,
		Addr:             net.JoinHostPort(ip.String(), strconv.Itoa(CommandPort)),
		HardwareRevision: bc.HardwareRevision,
		SoftwareRevision: bc.SoftwareRevision,
		BufferCapacity:   bc.BufferCapacity,
		MaxPointRate:     bc.MaxPointRate,
	}
}

// Discover collects the DACs broadcasting on pc during window. Devices are
// deduplicated by MAC and sorted by name, so indices are stable across runs
// with the same set of DACs.
func Discover(ctx context.Context, pc net.PacketConn, window time.Duration) ([]Device, error) {
	deadline := time.Now().Add(window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := pc.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = pc.SetReadDeadline(time.Now())
	})
	defer stop()

	seen := make(map[string]Device)
	buf := make([]byte, 512)
	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				break
			}
			return nil, fmt.Errorf("discover: %w", err)
		}
		udp, ok := addr.(*net.UDPAddr)
		if !ok {
			continue
		}
		var bc Broadcast
		if err := bc.UnmarshalBinary(buf[:n]); err != nil {
			continue
		}
		seen[bc.MAC.String()] = newDevice(&bc, udp.IP)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].Name != devices[j].Name {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].MAC.String() < devices[j].MAC.String()
	})
	return devices, nil
}

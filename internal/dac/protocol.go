// Package dac speaks the Ether Dream network protocol: UDP discovery
// broadcasts and the TCP command stream that feeds points to the DAC.
package dac

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

const (
	// DiscoveryPort is the UDP port DACs broadcast their presence on.
	DiscoveryPort = 7654
	// CommandPort is the TCP port a DAC accepts its command stream on.
	CommandPort = 7765

	// MaxNameLength bounds device names; longer names are truncated.
	MaxNameLength = 255

	statusSize    = 20
	broadcastSize = 16 + statusSize
	responseSize  = 2 + statusSize
	sampleSize    = 18
)

// Commands.
const (
	cmdPing       = '?'
	cmdPrepare    = 'p'
	cmdBegin      = 'b'
	cmdData       = 'd'
	cmdStop       = 's'
	cmdClearEStop = 'c'
)

// Response codes.
const (
	respAck       = 'a'
	respFull      = 'F'
	respInvalid   = 'I'
	respEmergency = '!'
)

var (
	// ErrNacked is returned when the DAC refuses a command.
	ErrNacked = errors.New("dac: command refused")
	// ErrProtocol is returned for a malformed or unexpected response.
	ErrProtocol = errors.New("dac: protocol error")
	// ErrEmergencyStop is returned when the DAC is in its E-stop state.
	ErrEmergencyStop = errors.New("dac: emergency stop")
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("dac: connection closed")
)

// LightEngineState is the state of the DAC's light engine.
type LightEngineState uint8

const (
	LightEngineReady LightEngineState = iota
	LightEngineWarmup
	LightEngineCooldown
	LightEngineEmergencyStop
)

// PlaybackState is the state of the DAC's point player.
type PlaybackState uint8

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPrepared
	PlaybackPlaying
)

// Status is the 20-byte status block that accompanies every response and
// broadcast.
type Status struct {
	Protocol         uint8
	LightEngine      LightEngineState
	Playback         PlaybackState
	Source           uint8
	LightEngineFlags uint16
	PlaybackFlags    uint16
	SourceFlags      uint16
	BufferFullness   uint16
	PointRate        uint32
	PointCount       uint32
}

func (s *Status) unmarshal(b []byte) {
	s.Protocol = b[0]
	s.LightEngine = LightEngineState(b[1])
	s.Playback = PlaybackState(b[2])
	s.Source = b[3]
	s.LightEngineFlags = binary.LittleEndian.Uint16(b[4:])
	s.PlaybackFlags = binary.LittleEndian.Uint16(b[6:])
	s.SourceFlags = binary.LittleEndian.Uint16(b[8:])
	s.BufferFullness = binary.LittleEndian.Uint16(b[10:])
	s.PointRate = binary.LittleEndian.Uint32(b[12:])
	s.PointCount = binary.LittleEndian.Uint32(b[16:])
}

func (s *Status) marshal(b []byte) []byte {
	b = append(b, s.Protocol, byte(s.LightEngine), byte(s.Playback), s.Source)
	b = binary.LittleEndian.AppendUint16(b, s.LightEngineFlags)
	b = binary.LittleEndian.AppendUint16(b, s.PlaybackFlags)
	b = binary.LittleEndian.AppendUint16(b, s.SourceFlags)
	b = binary.LittleEndian.AppendUint16(b, s.BufferFullness)
	b = binary.LittleEndian.AppendUint32(b, s.PointRate)
	b = binary.LittleEndian.AppendUint32(b, s.PointCount)
	return b
}

// Broadcast is the periodic announcement a DAC sends on DiscoveryPort.
type Broadcast struct {
	MAC              net.HardwareAddr
	HardwareRevision uint16
	SoftwareRevision uint16
	BufferCapacity   uint16
	MaxPointRate     uint32
	Status           Status
}

// UnmarshalBinary decodes a 36-byte broadcast packet.
func (bc *Broadcast) UnmarshalBinary(b []byte) error {
	if len(b) < broadcastSize {
		return fmt.Errorf("%w: broadcast of %d bytes", ErrProtocol, len(b))
	}
	bc.MAC = net.HardwareAddr(append([]byte(nil), b[:6]...))
	bc.HardwareRevision = binary.LittleEndian.Uint16(b[6:])
	bc.SoftwareRevision = binary.LittleEndian.Uint16(b[8:])
	bc.BufferCapacity = binary.LittleEndian.Uint16(b[10:])
	bc.MaxPointRate = binary.LittleEndian.Uint32(b[12:])
	bc.Status.unmarshal(b[16:broadcastSize])
	return nil
}

// MarshalBinary encodes the broadcast packet.
func (bc *Broadcast) MarshalBinary() ([]byte, error) {
	if len(bc.MAC) != 6 {
		return nil, fmt.Errorf("%w: MAC of %d bytes", ErrProtocol, len(bc.MAC))
	}
	b := make([]byte, 0, broadcastSize)
	b = append(b, bc.MAC...)
	b = binary.LittleEndian.AppendUint16(b, bc.HardwareRevision)
	b = binary.LittleEndian.AppendUint16(b, bc.SoftwareRevision)
	b = binary.LittleEndian.AppendUint16(b, bc.BufferCapacity)
	b = binary.LittleEndian.AppendUint32(b, bc.MaxPointRate)
	return bc.Status.marshal(b), nil
}

// response is the DAC's reply to a single command.
type response struct {
	code    byte
	command byte
	status  Status
}

func (r *response) unmarshal(b []byte) error {
	if len(b) != responseSize {
		return fmt.Errorf("%w: response of %d bytes", ErrProtocol, len(b))
	}
	r.code = b[0]
	r.command = b[1]
	r.status.unmarshal(b[2:])
	return nil
}

func (r *response) marshal() []byte {
	return r.status.marshal([]byte{r.code, r.command})
}

// check reports the error a response stands for, if any.
func (r *response) check(command byte) error {
	if r.command != command {
		return fmt.Errorf("%w: reply to %q for command %q", ErrProtocol, r.command, command)
	}
	switch r.code {
	case respAck:
		return nil
	case respFull:
		return fmt.Errorf("%w: %q: buffer full", ErrNacked, command)
	case respInvalid:
		return fmt.Errorf("%w: %q: invalid", ErrNacked, command)
	case respEmergency:
		return fmt.Errorf("%w: %q", ErrEmergencyStop, command)
	default:
		return fmt.Errorf("%w: response code %q", ErrProtocol, r.code)
	}
}

// Sample is one point in the DAC's native format.
type Sample struct {
	Control      uint16
	X, Y         int16
	R, G, B      uint16
	Intensity    uint16
	User1, User2 uint16
}

func (s Sample) append(b []byte) []byte {
	b = binary.LittleEndian.AppendUint16(b, s.Control)
	b = binary.LittleEndian.AppendUint16(b, uint16(s.X))
	b = binary.LittleEndian.AppendUint16(b, uint16(s.Y))
	b = binary.LittleEndian.AppendUint16(b, s.R)
	b = binary.LittleEndian.AppendUint16(b, s.G)
	b = binary.LittleEndian.AppendUint16(b, s.B)
	b = binary.LittleEndian.AppendUint16(b, s.Intensity)
	b = binary.LittleEndian.AppendUint16(b, s.User1)
	return binary.LittleEndian.AppendUint16(b, s.User2)
}

func (s *Sample) unmarshal(b []byte) {
	s.Control = binary.LittleEndian.Uint16(b)
	s.X = int16(binary.LittleEndian.Uint16(b[2:]))
	s.Y = int16(binary.LittleEndian.Uint16(b[4:]))
	s.R = binary.LittleEndian.Uint16(b[6:])
	s.G = binary.LittleEndian.Uint16(b[8:])
	s.B = binary.LittleEndian.Uint16(b[10:])
	s.Intensity = binary.LittleEndian.Uint16(b[12:])
	s.User1 = binary.LittleEndian.Uint16(b[14:])
	s.User2 = binary.LittleEndian.Uint16(b[16:])
}

func beginCommand(lowWater uint16, rate uint32) []byte {
	b := []byte{cmdBegin}
	b = binary.LittleEndian.AppendUint16(b, lowWater)
	return binary.LittleEndian.AppendUint32(b, rate)
}

func dataCommand(b []byte, samples []Sample) []byte {
	b = append(b[:0], cmdData)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(samples)))
	for _, s := range samples {
		b = s.append(b)
	}
	return b
}

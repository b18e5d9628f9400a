// Package transport carries encoded point frames between peers.
package transport

import "errors"

// ErrNotOpen is returned when sending on a channel that is not open.
var ErrNotOpen = errors.New("transport: channel not open")

// FrameSender sends encoded point frames.
type FrameSender interface {
	SendFrame(data []byte) error
}

// FrameReceiver receives encoded point frames.
type FrameReceiver interface {
	OnFrame(callback func(data []byte))
}

// Channel is a FrameSender that reports its state.
type Channel interface {
	FrameSender
	// Open reports whether frames can be sent.
	Open() bool
	// BufferedAmount returns the bytes queued but not yet sent.
	BufferedAmount() uint64
}

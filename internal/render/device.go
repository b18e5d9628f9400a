// Package render drives a point program on a Device: it owns the running
// index base and the elapsed time, keeps the last good program across
// rebuilds and assembles each readback into a point.Frame.
package render

import "errors"

var (
	// ErrBuild is returned when a fragment program fails to compile or link.
	// The wrapped error carries the driver's info log.
	ErrBuild = errors.New("render: program build failed")

	// ErrNotLinked is returned by Render before any program has been built.
	ErrNotLinked = errors.New("render: no linked program")

	// ErrSource is returned when a shader file is empty or not UTF-8.
	ErrSource = errors.New("render: unusable shader source")
)

// Program is a compiled and linked point program.
type Program interface {
	// SetBase uploads the logical index of the first point of the next draw.
	SetBase(base uint32)
	// SetTime uploads the elapsed time in seconds.
	SetTime(seconds float32)
	// Release frees the program. The program must not be used afterwards.
	Release()
}

// Device runs point programs over a fixed 1×N target.
type Device interface {
	// Build compiles source as the fragment stage, links it against the
	// fixed vertex stage and returns the linked program.
	Build(source string) (Program, error)
	// Draw runs p once over every point and reads back the position (two
	// components per point) and color (three per point) targets. The slices
	// are owned by the device and overwritten by the next Draw.
	Draw(p Program) (xy, rgb []float32, err error)
}

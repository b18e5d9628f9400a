// Package output defines the contract between the render loop and a point
// sink, and the registry of available sinks.
package output

import (
	"errors"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/LaserField/internal/point"
)

// ErrUnknown is returned by New for a name no backend registered.
var ErrUnknown = errors.New("output: unrecognized output")

// Status is the outcome of Output.Initialize.
type Status int

const (
	// Success means the sink is ready to receive points.
	Success Status = iota
	// Failure means the sink cannot be used; the accompanying error says why.
	Failure
	// RequestExit means the sink did its job during initialization (for
	// example it listed devices) and the process should exit successfully
	// without rendering.
	RequestExit
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case RequestExit:
		return "request-exit"
	default:
		return "unknown"
	}
}

// Output is a point sink.
type Output interface {
	// Name returns the registry name of the backend.
	Name() string

	// Initialize acquires the sink's resources. The error is non-nil exactly
	// when the status is Failure.
	Initialize() (Status, error)

	// NeedPoints reports, without blocking, whether the sink can take a frame
	// now. StreamPoints must only be called after it returned true.
	NeedPoints() bool

	// StreamPoints consumes one frame. The slice is borrowed for the duration
	// of the call. False means the sink failed for good.
	StreamPoints(points []point.Point) bool

	// Shutdown releases the sink's resources. It may be called more than once.
	Shutdown()
}

// Configurable is implemented by backends that take their own parameters.
// Only the selected backend's parameters are registered.
type Configurable interface {
	// Decode applies the backend's section of the config file. It runs
	// before flags are parsed, so flags take precedence.
	Decode(section *yaml.Node) error
	// BindFlags registers the backend's command line flags.
	BindFlags(fs *pflag.FlagSet)
}

// Base provides the no-op Shutdown of sinks without external resources.
type Base struct{}

func (Base) Shutdown() {}

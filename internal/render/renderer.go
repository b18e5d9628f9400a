package render

import (
	"fmt"

	"github.com/junsooki/LaserField/internal/point"
)

// Renderer produces one point.Frame per call from the manager's program.
type Renderer struct {
	manager *Manager
	frame   point.Frame
}

// NewRenderer creates a renderer for count points. The frame buffer is
// allocated once and reused by every Render call.
func NewRenderer(manager *Manager, count int) *Renderer {
	return &Renderer{
		manager: manager,
		frame:   point.Frame{Points: make([]point.Point, count)},
	}
}

// Render advances the base, updates the time, draws and assembles the
// readback. The returned frame shares its Points slice with the renderer and
// is only valid until the next call.
func (r *Renderer) Render() (point.Frame, error) {
	if !r.manager.Linked() {
		return point.Frame{}, ErrNotLinked
	}

	base := r.manager.IncrementBase(len(r.frame.Points))
	t := r.manager.UpdateTime()

	xy, rgb, err := r.manager.device.Draw(r.manager.Program())
	if err != nil {
		return point.Frame{}, fmt.Errorf("render: draw: %w", err)
	}
	if err := point.Assemble(r.frame.Points, xy, rgb); err != nil {
		return point.Frame{}, fmt.Errorf("render: %w", err)
	}

	r.frame.Base = base
	r.frame.Time = t
	return r.frame, nil
}

package render

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Manager owns the active program of a Device.
//
// The index base lives here rather than in the program, so a rebuilt program
// continues the sequence where the previous one stopped.
type Manager struct {
	device  Device
	program Program
	base    uint32
	start   time.Time
	now     func() time.Time
	log     *zap.Logger
}

// NewManager creates a Manager with no linked program. The time origin is
// the moment of the call.
func NewManager(device Device, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		device: device,
		now:    time.Now,
		log:    logger.With(zap.String("component", "program")),
	}
	m.start = m.now()
	return m
}

// Build compiles and links source. On failure the previously linked program,
// if any, stays active and the error wraps ErrBuild.
func (m *Manager) Build(source string) error {
	p, err := m.device.Build(source)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBuild, err)
	}
	if m.program != nil {
		m.program.Release()
	}
	m.program = p
	m.log.Debug("program linked", zap.Uint32("base", m.base))
	return nil
}

// Linked reports whether a program is available for drawing.
func (m *Manager) Linked() bool {
	return m.program != nil
}

// Program returns the active program, or nil.
func (m *Manager) Program() Program {
	return m.program
}

// Base returns the index base the next frame will use.
func (m *Manager) Base() uint32 {
	return m.base
}

// IncrementBase uploads the current base to the active program and advances
// it by n. It returns the base uploaded. The counter wraps at 2^32.
func (m *Manager) IncrementBase(n int) uint32 {
	base := m.base
	if m.program != nil {
		m.program.SetBase(base)
	}
	m.base += uint32(n)
	return base
}

// UpdateTime uploads the seconds elapsed since the manager was created and
// returns them.
func (m *Manager) UpdateTime() float32 {
	t := float32(m.now().Sub(m.start).Seconds())
	if m.program != nil {
		m.program.SetTime(t)
	}
	return t
}

// Release frees the active program.
func (m *Manager) Release() {
	if m.program != nil {
		m.program.Release()
		m.program = nil
	}
}

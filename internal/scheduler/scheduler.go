// Package scheduler runs the render loop: it applies pending shader
// reloads, waits for the output to accept points, renders a frame and
// streams it.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/render"
)

var (
	// ErrSinkFailed is returned when the output rejects a frame.
	ErrSinkFailed = errors.New("scheduler: output failed")
	// ErrRender is returned when drawing or reading back a frame fails.
	ErrRender = errors.New("scheduler: render failed")
	// ErrSinkTimeout is returned when the output does not become ready
	// within Options.ReadyTimeout.
	ErrSinkTimeout = errors.New("scheduler: output not ready in time")
)

// State is the phase of the render loop.
type State int32

const (
	Idle State = iota
	Rendering
	ReloadPending
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Rendering:
		return "rendering"
	case ReloadPending:
		return "reload-pending"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options tune the loop.
type Options struct {
	// ShaderPath is reloaded whenever the Reload signal is pending.
	ShaderPath string
	// PollInterval is slept between readiness polls and while no program
	// is linked.
	PollInterval time.Duration
	// ReadyTimeout bounds the wait for the output; zero waits forever.
	ReadyTimeout time.Duration
}

// Scheduler drives one renderer into one output.
type Scheduler struct {
	manager  *render.Manager
	renderer *render.Renderer
	out      output.Output
	reload   *Reload
	opts     Options
	log      *zap.Logger

	state  atomic.Int32
	frames atomic.Uint64

	load func(path string) (string, error)
}

// New creates a scheduler. The manager is expected to hold the program
// built at startup.
func New(manager *render.Manager, renderer *render.Renderer, out output.Output, reload *Reload, opts Options, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		manager:  manager,
		renderer: renderer,
		out:      out,
		reload:   reload,
		opts:     opts,
		log:      log.With(zap.String("component", "scheduler")),
		load:     render.LoadSource,
	}
}

// State returns the current phase. It is safe to call from any goroutine.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Frames returns the number of frames streamed so far.
func (s *Scheduler) Frames() uint64 {
	return s.frames.Load()
}

func (s *Scheduler) setState(state State) {
	s.state.Store(int32(state))
}

// Run loops until ctx is done, which returns nil, or the loop fails, which
// returns an error wrapping ErrSinkFailed, ErrRender or ErrSinkTimeout.
// Cancellation is observed between iterations and while waiting.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(Terminated)

	for ctx.Err() == nil {
		if s.reload.Pending() {
			s.setState(ReloadPending)
			s.rebuild()
		}

		if err := s.awaitOutput(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}

		if !s.manager.Linked() {
			s.setState(Idle)
			sleep(ctx, s.opts.PollInterval)
			continue
		}

		s.setState(Rendering)
		frame, err := s.renderer.Render()
		if err != nil {
			s.log.Error("render failed", zap.Error(err))
			return fmt.Errorf("%w: %w", ErrRender, err)
		}
		if !s.out.StreamPoints(frame.Points) {
			s.log.Error("output failed", zap.String("output", s.out.Name()), zap.Uint64("frames", s.Frames()))
			return fmt.Errorf("%w: %s", ErrSinkFailed, s.out.Name())
		}
		s.frames.Add(1)
	}

	s.log.Info("render loop stopped", zap.Uint64("frames", s.Frames()))
	return nil
}

// rebuild reloads the shader. Failures keep the previous program and are
// logged once.
func (s *Scheduler) rebuild() {
	source, err := s.load(s.opts.ShaderPath)
	if err != nil {
		s.log.Warn("cannot reload shader, keeping previous program", zap.String("path", s.opts.ShaderPath), zap.Error(err))
		return
	}
	if err := s.manager.Build(source); err != nil {
		s.log.Warn("shader rebuild failed, keeping previous program", zap.String("path", s.opts.ShaderPath), zap.Error(err))
		return
	}
	s.log.Info("shader reloaded", zap.String("path", s.opts.ShaderPath), zap.Uint32("base", s.manager.Base()))
}

// awaitOutput polls the output until it wants points.
func (s *Scheduler) awaitOutput(ctx context.Context) error {
	var deadline time.Time
	if s.opts.ReadyTimeout > 0 {
		deadline = time.Now().Add(s.opts.ReadyTimeout)
	}
	for !s.out.NeedPoints() {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %s", ErrSinkTimeout, s.out.Name(), s.opts.ReadyTimeout)
		}
		if !sleep(ctx, s.opts.PollInterval) {
			return ctx.Err()
		}
	}
	return nil
}

// sleep waits for d or until ctx is done, and reports whether ctx is
// still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

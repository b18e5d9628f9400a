package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/point"
	"github.com/junsooki/LaserField/internal/render"
	"github.com/junsooki/LaserField/internal/render/rendertest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	shaderA = "void main() { position = vec2(0.0); }"
	shaderB = "void main() { position = vec2(1.0); }"
)

// sink records frames and runs onFrame after each one.
type sink struct {
	output.Base

	frames  [][]point.Point
	polls   int
	busyFor int
	failAt  int
	onFrame func(n int)
	never   bool
}

func (s *sink) Name() string { return "sink" }
func (s *sink) Initialize() (output.Status, error) { return output.Success, nil }

func (s *sink) NeedPoints() bool {
	s.polls++
	if s.never {
		return false
	}
	return s.polls > s.busyFor
}

func (s *sink) StreamPoints(points []point.Point) bool {
	s.frames = append(s.frames, append([]point.Point(nil), points...))
	n := len(s.frames)
	if s.onFrame != nil {
		s.onFrame(n)
	}
	return n != s.failAt
}

type fixture struct {
	dev     *rendertest.Device
	manager *render.Manager
	reload  *Reload
	out     *sink
	logs    *observer.ObservedLogs
	sched   *Scheduler
	shader  string
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	shader := filepath.Join(t.TempDir(), "shader.frag")
	require.NoError(t, os.WriteFile(shader, []byte(shaderA), 0o644))

	dev := rendertest.NewDevice(n)
	manager := render.NewManager(dev, log)
	reload := NewReload()
	out := &sink{}
	sched := New(manager, render.NewRenderer(manager, n), out, reload, Options{
		ShaderPath:   shader,
		PollInterval: time.Millisecond,
	}, log)

	return &fixture{dev: dev, manager: manager, reload: reload, out: out, logs: logs, sched: sched, shader: shader}
}

func (f *fixture) write(t *testing.T, source string) {
	require.NoError(t, os.WriteFile(f.shader, []byte(source), 0o644))
	f.reload.Notify()
}

func (f *fixture) warnings() int {
	return f.logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

func TestReloadFailureKeepsProgram(t *testing.T) {
	f := newFixture(t, 8)
	require.NoError(t, f.manager.Build(shaderA))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.out.onFrame = func(n int) {
		switch n {
		case 2:
			f.write(t, rendertest.Broken)
		case 6:
			cancel()
		}
	}

	require.NoError(t, f.sched.Run(ctx))
	require.Len(t, f.out.frames, 6)
	for k, frame := range f.out.frames {
		for _, pt := range frame {
			assert.Equal(t, 1, rendertest.Ordinal(pt), "frame %d drawn by a later program", k)
		}
	}
	assert.Equal(t, 1, f.dev.Failures)
	assert.Equal(t, 1, f.warnings())
	assert.Equal(t, Terminated, f.sched.State())
}

func TestBaseMonotonicAcrossReload(t *testing.T) {
	const n = 16
	f := newFixture(t, n)
	require.NoError(t, f.manager.Build(shaderA))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.out.onFrame = func(k int) {
		switch k {
		case 3:
			f.write(t, shaderB)
		case 7:
			cancel()
		}
	}

	require.NoError(t, f.sched.Run(ctx))
	require.Len(t, f.out.frames, 7)
	for k, frame := range f.out.frames {
		require.Len(t, frame, n)
		for i, pt := range frame {
			assert.Equal(t, uint32(k*n+i), rendertest.Index(pt), "frame %d point %d", k, i)
		}
		want := 1
		if k >= 3 {
			want = 2
		}
		assert.Equal(t, want, rendertest.Ordinal(frame[0]), "frame %d", k)
	}
	assert.True(t, f.dev.Programs[0].Released)
	assert.Equal(t, 0, f.warnings())
	assert.Equal(t, uint64(7), f.sched.Frames())
}

func TestReloadUnreadableSource(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))
	require.NoError(t, os.Remove(f.shader))
	f.reload.Notify()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.out.onFrame = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	require.NoError(t, f.sched.Run(ctx))
	assert.Len(t, f.out.frames, 2)
	assert.Equal(t, 1, f.warnings())
	assert.Equal(t, 1, f.dev.Builds)
}

func TestSinkFailure(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))
	f.out.failAt = 3

	err := f.sched.Run(context.Background())
	assert.ErrorIs(t, err, ErrSinkFailed)
	assert.Len(t, f.out.frames, 3)
	assert.Equal(t, uint64(2), f.sched.Frames())
	assert.Equal(t, Terminated, f.sched.State())
}

func TestRenderFailure(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))
	f.dev.DrawErr = errors.New("GL_OUT_OF_MEMORY")

	err := f.sched.Run(context.Background())
	assert.ErrorIs(t, err, ErrRender)
	assert.ErrorContains(t, err, "GL_OUT_OF_MEMORY")
	assert.Empty(t, f.out.frames)
}

func TestBackpressure(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))
	f.out.busyFor = 5

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.out.onFrame = func(int) { cancel() }

	require.NoError(t, f.sched.Run(ctx))
	assert.Len(t, f.out.frames, 1)
	assert.Equal(t, 6, f.out.polls)
}

func TestReadyTimeout(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))
	f.out.never = true
	f.sched.opts.ReadyTimeout = 20 * time.Millisecond

	err := f.sched.Run(context.Background())
	assert.ErrorIs(t, err, ErrSinkTimeout)
	assert.Empty(t, f.out.frames)
}

func TestWaitsForeverWithoutTimeout(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))
	f.out.never = true

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, f.sched.Run(ctx))
	assert.Empty(t, f.out.frames)
	assert.Greater(t, f.out.polls, 1)
}

func TestIdleWithoutProgram(t *testing.T) {
	f := newFixture(t, 4)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.NoError(t, f.sched.Run(ctx))
	assert.Empty(t, f.out.frames)
	assert.Zero(t, f.dev.Builds)
}

func TestReloadLinksFirstProgram(t *testing.T) {
	f := newFixture(t, 4)
	f.reload.Notify()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.out.onFrame = func(int) { cancel() }

	require.NoError(t, f.sched.Run(ctx))
	require.Len(t, f.out.frames, 1)
	assert.Equal(t, shaderA, f.dev.Last().Source)
}

func TestCanceledBeforeRun(t *testing.T) {
	f := newFixture(t, 4)
	require.NoError(t, f.manager.Build(shaderA))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.sched.Run(ctx))
	assert.Empty(t, f.out.frames)
	assert.Zero(t, f.out.polls)
}

func TestReloadCoalesces(t *testing.T) {
	r := NewReload()
	assert.False(t, r.Pending())

	r.Notify()
	r.Notify()
	r.Notify()
	assert.True(t, r.Pending())
	assert.False(t, r.Pending())
}

func TestReloadConcurrentNotify(t *testing.T) {
	r := NewReload()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 1000 {
			r.Notify()
		}
	}()
	<-done
	assert.True(t, r.Pending())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "reload-pending", ReloadPending.String())
	assert.Equal(t, "State(9)", State(9).String())
}

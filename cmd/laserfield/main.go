// Command laserfield renders a fragment shader into a set of laser points and
// streams them to an output backend, rebuilding the shader whenever its file
// changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/gpu"
	"github.com/junsooki/LaserField/internal/logging"
	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/render"
	"github.com/junsooki/LaserField/internal/scheduler"
	"github.com/junsooki/LaserField/internal/watcher"

	_ "github.com/junsooki/LaserField/internal/output/console"
	_ "github.com/junsooki/LaserField/internal/output/etherdream"
	_ "github.com/junsooki/LaserField/internal/output/remote"
)

func init() {
	// The GL context is bound to the thread that creates it.
	runtime.LockOSThread()
}

func main() {
	os.Exit(execute(os.Args[1:]))
}

func execute(args []string) int {
	logCfg := logging.Config(false)
	log, err := logCfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitParameter
	}
	defer func() { _ = log.Sync() }()

	a := &app{log: log, level: logCfg.Level}
	cmd, err := a.command(args)
	if err == nil {
		cmd.SetArgs(args)
		err = cmd.Execute()
	}
	if err == nil {
		return exitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			log.Error(ee.msg, zap.Error(ee.err))
		}
		return ee.code
	}
	log.Error("invalid arguments", zap.Error(err))
	return exitParameter
}

type app struct {
	log   *zap.Logger
	level zap.AtomicLevel

	common     config.Common
	configPath string
	out        output.Output
}

// command builds the root command. The config file and the output backend
// are resolved from a first lenient pass over args, so that the backend's
// flags can be registered before cobra parses them.
func (a *app) command(args []string) (*cobra.Command, error) {
	path, name := config.Peek(args)
	file, err := config.Load(path)
	if err != nil {
		return nil, fail(exitParameter, "cannot load config", err)
	}
	a.common = file.Common
	a.configPath = path
	if name != "" {
		a.common.Output = name
	}

	out, err := output.New(a.common.Output, &a.common, a.log)
	if err != nil {
		return nil, fail(exitOutput, "cannot create output", fmt.Errorf("%w (available: %v)", err, output.Available()))
	}
	a.out = out

	cmd := &cobra.Command{
		Use:           "laserfield",
		Short:         "Render a shader into laser points",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&a.configPath, "config", "c", a.configPath, "YAML config file; flags override it.")
	a.common.BindFlags(fs)
	if c, ok := out.(output.Configurable); ok {
		if err := c.Decode(file.Section(out.Name())); err != nil {
			return nil, fail(exitParameter, "invalid output config", err)
		}
		c.BindFlags(fs)
	}
	return cmd, nil
}

func (a *app) run(ctx context.Context) error {
	if a.common.Verbose {
		a.level.SetLevel(zapcore.DebugLevel)
	}
	if err := a.common.Validate(); err != nil {
		return fail(exitParameter, "invalid parameters", err)
	}
	log := a.log

	status, err := a.out.Initialize()
	switch status {
	case output.RequestExit:
		a.out.Shutdown()
		return nil
	case output.Failure:
		a.out.Shutdown()
		return fail(exitOutput, "cannot initialize output", err)
	}
	defer a.out.Shutdown()

	glctx, err := gpu.CreateContext()
	if err != nil {
		return fail(exitContext, "cannot create GL context", err)
	}
	defer glctx.Destroy()

	if err := glctx.LoadFunctions(); err != nil {
		return fail(exitFunctions, "cannot load GL functions", err)
	}
	version, glsl := glctx.Versions()
	log.Debug("GL context ready", zap.String("version", version), zap.String("glsl", glsl))

	device, err := gpu.NewDevice(a.common.PointCount, log)
	if err != nil {
		if errors.Is(err, gpu.ErrFramebufferIncomplete) {
			return fail(exitFramebuffer, "cannot create point targets", err)
		}
		return fail(exitContext, "cannot prepare GL device", err)
	}
	defer device.Release()

	manager := render.NewManager(device, log)
	defer manager.Release()

	source, err := render.LoadSource(a.common.ShaderPath)
	if err != nil {
		return fail(exitShader, "cannot read shader", err)
	}
	if err := manager.Build(source); err != nil {
		return fail(exitShader, "invalid shader", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reload := scheduler.NewReload()
	w, err := watcher.New(log)
	if err != nil {
		log.Warn("shader hot reload disabled", zap.Error(err))
	} else {
		defer w.Stop()
		if err := w.WatchFile(a.common.ShaderPath, func() {
			log.Debug("shader changed, reloading", zap.String("path", a.common.ShaderPath))
			reload.Notify()
		}); err != nil {
			log.Warn("shader hot reload disabled", zap.Error(err))
		} else if err := w.Start(ctx); err != nil {
			log.Warn("shader hot reload disabled", zap.Error(err))
		}
	}

	s := scheduler.New(manager, render.NewRenderer(manager, a.common.PointCount), a.out, reload, scheduler.Options{
		ShaderPath:   a.common.ShaderPath,
		PollInterval: a.common.PollInterval,
		ReadyTimeout: a.common.ReadyTimeout,
	}, log)

	log.Info("rendering",
		zap.String("output", a.out.Name()),
		zap.Int("points", a.common.PointCount),
		zap.Uint16("pps", a.common.PointsPerSecond))

	switch err := s.Run(ctx); {
	case err == nil:
		return nil
	case errors.Is(err, scheduler.ErrRender):
		return fail(exitRender, "render loop stopped", err)
	default:
		return fail(exitStream, "render loop stopped", err)
	}
}

// Package console implements an output that prints points as text.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/point"
)

// Name is the registry name of the console output.
const Name = "console"

func init() {
	output.Register(Name, func(common *config.Common, _ *zap.Logger) output.Output {
		return New(common, os.Stdout)
	})
}

// Params are the console output parameters.
type Params struct {
	// LimitPoints caps the points printed per frame; 0 prints all of them.
	LimitPoints int `yaml:"limit_points"`
	// PauseDuration is slept after every frame, in seconds.
	PauseDuration float64 `yaml:"pause_duration"`
}

// Output writes one line per point. It never applies backpressure.
type Output struct {
	output.Base
	Params

	common *config.Common
	w      *bufio.Writer
	sleep  func(time.Duration)
}

var (
	_ output.Output       = (*Output)(nil)
	_ output.Configurable = (*Output)(nil)
)

// New creates a console output writing to w.
func New(common *config.Common, w io.Writer) *Output {
	return &Output{
		common: common,
		w:      bufio.NewWriter(w),
		sleep:  time.Sleep,
	}
}

// Name returns "console".
func (o *Output) Name() string { return Name }

// Decode applies the console section of the config file.
func (o *Output) Decode(section *yaml.Node) error {
	if section == nil {
		return nil
	}
	if err := section.Decode(&o.Params); err != nil {
		return fmt.Errorf("console config: %w", err)
	}
	return nil
}

// BindFlags registers --limit-points and --pause-duration.
func (o *Output) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&o.LimitPoints, "limit-points", "l", o.LimitPoints, "If greater than 0, limits the number of dumped points.")
	fs.Float64VarP(&o.PauseDuration, "pause-duration", "d", o.PauseDuration, "Pause between renderings, in seconds.")
}

// Initialize always succeeds; stdout needs no setup.
func (o *Output) Initialize() (output.Status, error) {
	return output.Success, nil
}

// NeedPoints is always true, the console never applies backpressure.
func (o *Output) NeedPoints() bool {
	return true
}

// StreamPoints prints min(LimitPoints, point count) lines when a limit is
// set, every point otherwise, then pauses. A write error is a sink failure.
func (o *Output) StreamPoints(points []point.Point) bool {
	count := o.common.PointCount
	if count > len(points) {
		count = len(points)
	}
	if o.LimitPoints > 0 && o.LimitPoints < count {
		count = o.LimitPoints
	}

	for _, p := range points[:count] {
		if _, err := o.w.WriteString(p.String()); err != nil {
			return false
		}
		if err := o.w.WriteByte('\n'); err != nil {
			return false
		}
	}
	if err := o.w.Flush(); err != nil {
		return false
	}

	if o.PauseDuration > 0 {
		o.sleep(time.Duration(o.PauseDuration * float64(time.Second)))
	}
	return true
}

// Package config holds the run parameters of the laserfield and viewer
// binaries: defaults, the YAML config file and the command line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for a parameter outside its allowed range.
var ErrInvalid = errors.New("config: invalid parameter")

// Common holds the parameters every component observes. It is filled once at
// startup and read-only afterwards.
type Common struct {
	PointCount      int           `yaml:"points"`
	PointsPerSecond uint16        `yaml:"points_per_second"`
	ShaderPath      string        `yaml:"shader"`
	Verbose         bool          `yaml:"verbose"`
	Output          string        `yaml:"output"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	ReadyTimeout    time.Duration `yaml:"ready_timeout"`
}

// File is the layout of a config file: the common parameters at the top
// level and one section per output backend under "outputs".
type File struct {
	Common  `yaml:",inline"`
	Outputs map[string]yaml.Node `yaml:"outputs"`
}

// Defaults returns the parameters used when neither file nor flags set them.
func Defaults() Common {
	return Common{
		PointCount:      1800,
		PointsPerSecond: 25000,
		Output:          DefaultOutput,
		PollInterval:    time.Millisecond,
	}
}

// Load reads a config file on top of Defaults.
func Load(path string) (*File, error) {
	f := &File{Common: Defaults()}
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// Section returns the config file section of an output backend, or nil.
func (f *File) Section(name string) *yaml.Node {
	node, ok := f.Outputs[name]
	if !ok {
		return nil
	}
	return &node
}

// BindFlags registers the common flags. The current field values become the
// flag defaults, so values loaded from a file are overridden only by flags
// given explicitly.
func (c *Common) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&c.PointCount, "points", "p", c.PointCount, "Resolution of a single rendering.")
	fs.Uint16Var(&c.PointsPerSecond, "points-per-second", c.PointsPerSecond, "Laser speed (alias --pps).")
	fs.StringVarP(&c.ShaderPath, "shader", "s", c.ShaderPath, "Shader file path.")
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "Shows information messages.")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "Output implementation.")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Pause between readiness polls of the output.")
	fs.DurationVar(&c.ReadyTimeout, "ready-timeout", c.ReadyTimeout, "Give up when the output stays busy this long (0 waits forever).")
	fs.SetNormalizeFunc(normalizeAliases)
}

// Validate checks the parameters after parsing.
func (c *Common) Validate() error {
	switch {
	case c.PointCount <= 0:
		return fmt.Errorf("%w: points must be positive, got %d", ErrInvalid, c.PointCount)
	case c.PointsPerSecond == 0:
		return fmt.Errorf("%w: points-per-second must be positive", ErrInvalid)
	case c.ShaderPath == "":
		return fmt.Errorf("%w: shader path is required", ErrInvalid)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: poll-interval must not be negative", ErrInvalid)
	case c.ReadyTimeout < 0:
		return fmt.Errorf("%w: ready-timeout must not be negative", ErrInvalid)
	}
	return nil
}

// Peek extracts --config and --output from args without failing on flags
// that are not registered yet. The output backend's flags depend on both.
func Peek(args []string) (path, output string) {
	fs := pflag.NewFlagSet("peek", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	fs.StringVarP(&path, "config", "c", "", "")
	fs.StringVarP(&output, "output", "o", "", "")
	fs.BoolP("help", "h", false, "")
	_ = fs.Parse(args)
	return path, output
}

func normalizeAliases(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if name == "pps" {
		name = "points-per-second"
	}
	return pflag.NormalizedName(name)
}

// NewID returns a short random identifier with the given prefix.
func NewID(prefix string) string {
	id, _, _ := strings.Cut(uuid.NewString(), "-")
	return prefix + "-" + id
}

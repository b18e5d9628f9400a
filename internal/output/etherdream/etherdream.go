// Package etherdream implements an output driving an Ether Dream laser DAC.
package etherdream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/dac"
	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/point"
)

// Name is the registry name of the Ether Dream output.
const Name = "etherdream"

var (
	// ErrDeviceNotFound is returned when no device has the requested name.
	ErrDeviceNotFound = errors.New("etherdream: no device with this name")
	// ErrIndexOutOfRange is returned for a card index outside the device list.
	ErrIndexOutOfRange = errors.New("etherdream: card index is out of bounds")
	// ErrAlreadyOpen is returned by a second Initialize without Shutdown.
	ErrAlreadyOpen = errors.New("etherdream: device already open")
)

func init() {
	output.Register(Name, func(common *config.Common, log *zap.Logger) output.Output {
		return New(common, nil, os.Stdout, log)
	})
}

// Params are the Ether Dream output parameters.
type Params struct {
	CardIndex        int           `yaml:"card_index"`
	CardName         string        `yaml:"card_name"`
	OffsetX          float32       `yaml:"offset_x"`
	OffsetY          float32       `yaml:"offset_y"`
	Scale            float32       `yaml:"scale"`
	ListDevices      bool          `yaml:"list_devices"`
	DiscoveryTimeout time.Duration `yaml:"discovery_timeout"`
}

// Output streams frames to one DAC.
type Output struct {
	Params

	common *config.Common
	driver dac.Driver
	stdout io.Writer
	log    *zap.Logger

	device  dac.Device
	conn    dac.Conn
	samples []dac.Sample
	// pollErr is a failed readiness poll, reported by the next StreamPoints.
	pollErr error
}

var (
	_ output.Output       = (*Output)(nil)
	_ output.Configurable = (*Output)(nil)
)

// New creates an Ether Dream output. A nil driver discovers DACs on the
// local network when the output is initialized.
func New(common *config.Common, driver dac.Driver, stdout io.Writer, log *zap.Logger) *Output {
	if log == nil {
		log = zap.NewNop()
	}
	return &Output{
		Params: Params{
			Scale:            1,
			DiscoveryTimeout: dac.DefaultDiscoveryWindow,
		},
		common: common,
		driver: driver,
		stdout: stdout,
		log:    log,
	}
}

// Name returns "etherdream".
func (o *Output) Name() string { return Name }

// Decode applies the etherdream section of the config file.
func (o *Output) Decode(section *yaml.Node) error {
	if section == nil {
		return nil
	}
	if err := section.Decode(&o.Params); err != nil {
		return fmt.Errorf("etherdream config: %w", err)
	}
	return nil
}

// BindFlags registers the device selection and transform flags.
func (o *Output) BindFlags(fs *pflag.FlagSet) {
	fs.IntVarP(&o.CardIndex, "card-index", "i", o.CardIndex, "Card index in the device list.")
	fs.StringVarP(&o.CardName, "card-name", "n", o.CardName, "Card name, takes precedence over the index.")
	fs.Float32Var(&o.OffsetX, "offset-x", o.OffsetX, "Horizontal offset added before scaling.")
	fs.Float32Var(&o.OffsetY, "offset-y", o.OffsetY, "Vertical offset added before scaling.")
	fs.Float32Var(&o.Scale, "scale", o.Scale, "Scale applied to coordinates.")
	fs.BoolVarP(&o.ListDevices, "list-devices", "l", o.ListDevices, "List devices.")
	fs.DurationVar(&o.DiscoveryTimeout, "discovery-timeout", o.DiscoveryTimeout, "How long to listen for DAC broadcasts.")
}

// Initialize discovers DACs and either lists them, returning RequestExit,
// or opens the one selected by name or index. An unknown name or an
// out-of-range index fails without opening anything.
func (o *Output) Initialize() (output.Status, error) {
	if o.conn != nil {
		return output.Failure, ErrAlreadyOpen
	}
	if o.driver == nil {
		o.driver = &dac.NetDriver{Window: o.DiscoveryTimeout}
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.DiscoveryTimeout+dac.DefaultTimeout)
	defer cancel()

	devices, err := o.driver.Devices(ctx)
	if err != nil {
		return output.Failure, fmt.Errorf("enumerate devices: %w", err)
	}
	o.log.Debug("discovered devices", zap.Int("count", len(devices)))

	if o.ListDevices {
		fmt.Fprintln(o.stdout, "Devices:")
		for i, d := range devices {
			fmt.Fprintf(o.stdout, "%d: %s\n", i, d.Name)
		}
		return output.RequestExit, nil
	}

	device, err := o.selectDevice(devices)
	if err != nil {
		return output.Failure, err
	}

	conn, err := o.driver.Open(ctx, device)
	if err != nil {
		return output.Failure, fmt.Errorf("cannot connect: %w", err)
	}
	o.device = device
	o.conn = conn
	o.pollErr = nil
	o.samples = make([]dac.Sample, o.common.PointCount)

	fmt.Fprintln(o.stdout, "Connected.")
	o.log.Info("connected", zap.String("device", device.Name), zap.String("addr", device.Addr))
	return output.Success, nil
}

func boundName(name string) string {
	if len(name) > dac.MaxNameLength {
		return name[:dac.MaxNameLength]
	}
	return name
}

// selectDevice resolves the card name, exact and case-sensitive, or else
// the card index.
func (o *Output) selectDevice(devices []dac.Device) (dac.Device, error) {
	if o.CardName != "" {
		want := boundName(o.CardName)
		for _, d := range devices {
			if boundName(d.Name) == want {
				return d, nil
			}
		}
		return dac.Device{}, fmt.Errorf("%w: %q", ErrDeviceNotFound, o.CardName)
	}
	if o.CardIndex < 0 || o.CardIndex >= len(devices) {
		return dac.Device{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, o.CardIndex, len(devices))
	}
	return devices[o.CardIndex], nil
}

// NeedPoints polls the DAC. A failed poll reports true so the failure
// surfaces from the StreamPoints call that follows.
func (o *Output) NeedPoints() bool {
	if o.conn == nil {
		return false
	}
	if o.pollErr != nil {
		return true
	}
	ready, err := o.conn.Ready(len(o.samples))
	if err != nil {
		o.pollErr = err
		return true
	}
	return ready
}

// StreamPoints quantizes the frame and writes it once at the point rate. A
// failed write closes the DAC and returns false.
func (o *Output) StreamPoints(points []point.Point) bool {
	if o.conn == nil {
		return false
	}
	if o.pollErr != nil {
		o.fail("poll device", o.pollErr)
		return false
	}

	t := Transform{OffsetX: o.OffsetX, OffsetY: o.OffsetY, Scale: o.Scale}
	o.samples = t.Quantize(o.samples, points)
	if err := o.conn.WriteFrame(o.samples, uint32(o.common.PointsPerSecond), 1); err != nil {
		o.fail("write frame", err)
		return false
	}
	return true
}

func (o *Output) fail(op string, err error) {
	o.log.Error(op+" failed", zap.String("device", o.device.Name), zap.Error(err))
	o.Shutdown()
}

// Shutdown stops and closes the DAC if one is open. It may be called more
// than once.
func (o *Output) Shutdown() {
	if o.conn == nil {
		return
	}
	if err := o.conn.Close(); err != nil {
		o.log.Warn("close device", zap.Error(err))
	}
	o.conn = nil
}

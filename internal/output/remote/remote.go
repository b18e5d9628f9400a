// Package remote implements an output that streams frames to preview
// windows over WebRTC. Viewers find the output through the signaling relay
// under its ID and each gets its own peer connection.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/encoder"
	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/peer"
	"github.com/junsooki/LaserField/internal/point"
	"github.com/junsooki/LaserField/internal/signaling"
	"github.com/junsooki/LaserField/internal/transport"
)

// Name is the registry name of the remote output.
const Name = "remote"

// HighWater is the channel backlog above which NeedPoints holds frames.
const HighWater = 1 << 20

// ConnectTimeout bounds the signaling dial and each answer's ICE gathering.
const ConnectTimeout = 10 * time.Second

func init() {
	output.Register(Name, func(common *config.Common, log *zap.Logger) output.Output {
		return New(common, log)
	})
}

// Params are the remote output parameters.
type Params struct {
	SignalingURL string `yaml:"signaling"`
	ID           string `yaml:"id"`
	Compact      bool   `yaml:"compact"`
	Loopback     bool   `yaml:"loopback"`
	NoSTUN       bool   `yaml:"no_stun"`
}

// session is the part of the signaling client the output depends on.
type session interface {
	Done() <-chan struct{}
	Close()
}

// viewer is one attached preview window.
type viewer struct {
	id        string
	channel   transport.Channel
	candidate func(json.RawMessage) error
	close     func()
}

// Output paces frames to the laser's point rate and sends them to every
// open viewer. Frames are dropped while no viewer is attached.
type Output struct {
	Params

	common *config.Common
	log    *zap.Logger
	now    func() time.Time

	sig  session
	enc  *encoder.PointEncoder
	next time.Time

	start time.Time
	base  uint32

	mu      sync.Mutex
	viewers map[string]*viewer
	dropped uint64
}

var (
	_ output.Output       = (*Output)(nil)
	_ output.Configurable = (*Output)(nil)
)

// New creates a remote output.
func New(common *config.Common, log *zap.Logger) *Output {
	if log == nil {
		log = zap.NewNop()
	}
	return &Output{
		Params:  Params{SignalingURL: config.DefaultSignalingURL},
		common:  common,
		log:     log,
		now:     time.Now,
		viewers: make(map[string]*viewer),
	}
}

// Name returns "remote".
func (o *Output) Name() string { return Name }

// Decode applies the remote section of the config file.
func (o *Output) Decode(section *yaml.Node) error {
	if section == nil {
		return nil
	}
	if err := section.Decode(&o.Params); err != nil {
		return fmt.Errorf("remote config: %w", err)
	}
	return nil
}

// BindFlags registers the signaling and ICE flags.
func (o *Output) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.SignalingURL, "signaling", o.SignalingURL, "Signaling server WebSocket URL.")
	fs.StringVar(&o.ID, "id", o.ID, "ID viewers connect to (auto-generated if empty).")
	fs.BoolVar(&o.Compact, "compact", o.Compact, "Send 16-bit coordinates and 8-bit colors.")
	fs.BoolVar(&o.Loopback, "loopback", o.Loopback, "Offer loopback ICE candidates.")
	fs.BoolVar(&o.NoSTUN, "no-stun", o.NoSTUN, "Gather host candidates only.")
}

// Initialize registers with the signaling relay under ID, generating one
// when empty. A dial failure is a Failure.
func (o *Output) Initialize() (output.Status, error) {
	if o.sig != nil {
		return output.Failure, fmt.Errorf("remote: already initialized")
	}
	if o.ID == "" {
		o.ID = config.NewID("laserfield")
	}
	format := encoder.FormatFloat
	if o.Compact {
		format = encoder.FormatCompact
	}
	o.enc = encoder.NewPointEncoder(format)

	var client *signaling.Client
	client = signaling.NewClient(o.SignalingURL, o.ID, signaling.ClientTypeHost, signaling.Handler{
		OnOffer: func(from string, payload json.RawMessage) {
			o.handleOffer(client, from, payload)
		},
		OnICECandidate: o.handleCandidate,
		OnPeerLeft:     o.detach,
	}, o.log)

	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		return output.Failure, err
	}
	o.sig = client
	o.start = o.now()
	o.next = o.start

	o.log.Info("waiting for viewers", zap.String("id", o.ID), zap.String("signaling", o.SignalingURL))
	return output.Success, nil
}

func (o *Output) handleOffer(sig peer.Signaler, from string, payload json.RawMessage) {
	o.detach(from)

	host, err := peer.NewHost(sig, from, o.peerConfig(), o.log)
	if err != nil {
		o.log.Warn("cannot create viewer session", zap.String("viewer", from), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	if err := host.HandleOffer(ctx, payload); err != nil {
		o.log.Warn("cannot answer viewer", zap.String("viewer", from), zap.Error(err))
		host.Close()
		return
	}

	o.attach(&viewer{
		id:        from,
		channel:   host.Transport(),
		candidate: host.HandleICECandidate,
		close:     host.Close,
	})
	go func() {
		<-host.Done()
		o.detachChannel(from, host.Transport())
	}()
}

func (o *Output) peerConfig() peer.Config {
	cfg := peer.Config{Loopback: o.Loopback}
	if o.NoSTUN {
		cfg.ICEServers = []webrtc.ICEServer{}
	}
	return cfg
}

func (o *Output) handleCandidate(from string, payload json.RawMessage) {
	o.mu.Lock()
	v := o.viewers[from]
	o.mu.Unlock()
	if v == nil || v.candidate == nil {
		return
	}
	if err := v.candidate(payload); err != nil {
		o.log.Debug("bad ICE candidate", zap.String("viewer", from), zap.Error(err))
	}
}

func (o *Output) attach(v *viewer) {
	o.mu.Lock()
	o.viewers[v.id] = v
	o.mu.Unlock()
	o.log.Debug("viewer session created", zap.String("viewer", v.id))
}

func (o *Output) detach(id string) {
	o.mu.Lock()
	v := o.viewers[id]
	delete(o.viewers, id)
	o.mu.Unlock()
	if v != nil {
		v.close()
		o.log.Info("viewer detached", zap.String("viewer", id))
	}
}

// detachChannel removes the viewer only if it still uses ch, so a
// reconnected viewer survives the teardown of its previous session.
func (o *Output) detachChannel(id string, ch transport.Channel) {
	o.mu.Lock()
	v := o.viewers[id]
	if v == nil || v.channel != ch {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()
	o.detach(id)
}

func (o *Output) lost() bool {
	if o.sig == nil {
		return false
	}
	select {
	case <-o.sig.Done():
		return true
	default:
		return false
	}
}

// frameInterval is the time the laser would need to draw one frame.
func (o *Output) frameInterval() time.Duration {
	return time.Duration(o.common.PointCount) * time.Second / time.Duration(o.common.PointsPerSecond)
}

// NeedPoints reports true once a frame's worth of laser time has passed and
// no viewer's channel is backlogged. A lost signaling connection reports
// true so StreamPoints can fail.
func (o *Output) NeedPoints() bool {
	if o.sig == nil {
		return false
	}
	if o.lost() {
		return true
	}
	if o.now().Before(o.next) {
		return false
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, v := range o.viewers {
		if v.channel.Open() && v.channel.BufferedAmount() > HighWater {
			return false
		}
	}
	return true
}

// StreamPoints encodes the frame once and sends it to every open viewer.
// It returns false when the signaling connection is lost or encoding fails.
func (o *Output) StreamPoints(points []point.Point) bool {
	if o.sig == nil || o.lost() {
		o.log.Error("signaling connection lost")
		return false
	}

	now := o.now()
	if o.next.Before(now) {
		o.next = now
	}
	o.next = o.next.Add(o.frameInterval())

	frame := point.Frame{
		Points: points,
		Base:   o.base,
		Time:   float32(now.Sub(o.start).Seconds()),
	}
	o.base += uint32(len(points))

	o.mu.Lock()
	defer o.mu.Unlock()

	var data []byte
	sent := false
	for id, v := range o.viewers {
		if !v.channel.Open() {
			continue
		}
		if data == nil {
			var err error
			if data, err = o.enc.Encode(frame); err != nil {
				o.log.Error("encode frame", zap.Error(err))
				return false
			}
		}
		if err := v.channel.SendFrame(data); err != nil {
			o.log.Debug("send frame", zap.String("viewer", id), zap.Error(err))
			continue
		}
		sent = true
	}
	if !sent {
		o.dropped++
	}
	return true
}

// Dropped returns the number of frames no viewer received.
func (o *Output) Dropped() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped
}

// Shutdown closes every viewer session and the signaling connection.
func (o *Output) Shutdown() {
	o.mu.Lock()
	viewers := o.viewers
	o.viewers = make(map[string]*viewer)
	o.mu.Unlock()
	for _, v := range viewers {
		v.close()
	}

	if o.sig != nil {
		o.sig.Close()
		o.sig = nil
	}
}

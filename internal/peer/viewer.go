package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/junsooki/LaserField/internal/transport"
)

// Viewer is the preview side. It creates the frame channel and offers it to
// a host.
type Viewer struct {
	pc        *webrtc.PeerConnection
	done      <-chan struct{}
	sig       Signaler
	transport *transport.DataChannelTransport
	hostID    string
	log       *zap.Logger
}

// NewViewer creates a Viewer for hostID.
func NewViewer(sig Signaler, hostID string, cfg Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("host", hostID))
	pc, done, err := NewPeerConnection(cfg, log)
	if err != nil {
		return nil, err
	}

	dc, err := pc.CreateDataChannel(transport.Label, transport.Init())
	if err != nil {
		pc.Close()
		return nil, fmt.Errorf("create data channel: %w", err)
	}
	dc.OnOpen(func() {
		log.Info("frame channel open")
	})

	return &Viewer{
		pc:        pc,
		done:      done,
		sig:       sig,
		transport: transport.NewDataChannelTransport(dc),
		hostID:    hostID,
		log:       log,
	}, nil
}

// Transport returns the frame channel.
func (v *Viewer) Transport() *transport.DataChannelTransport {
	return v.transport
}

// Done is closed when the connection failed or closed.
func (v *Viewer) Done() <-chan struct{} {
	return v.done
}

// Connect initiates the WebRTC connection by creating and sending an offer.
func (v *Viewer) Connect(ctx context.Context) error {
	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	offerJSON, err := localDescription(ctx, v.pc, offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.hostID, offerJSON)
}

// HandleAnswer processes an incoming SDP answer.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	var answer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &answer); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}
	return v.pc.SetRemoteDescription(answer)
}

// HandleICECandidate adds a remote ICE candidate.
func (v *Viewer) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(v.pc, payload)
}

// Close shuts down the peer connection.
func (v *Viewer) Close() {
	if err := v.pc.Close(); err != nil {
		v.log.Debug("close peer connection", zap.Error(err))
	}
}

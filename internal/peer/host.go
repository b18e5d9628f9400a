package peer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/junsooki/LaserField/internal/transport"
)

// Host is the frame source side of one viewer session. It answers the
// viewer's offer and sends frames on the channel the viewer created.
type Host struct {
	pc        *webrtc.PeerConnection
	done      <-chan struct{}
	sig       Signaler
	transport *transport.DataChannelTransport
	viewerID  string
	log       *zap.Logger
}

// NewHost creates the session for viewerID.
func NewHost(sig Signaler, viewerID string, cfg Config, log *zap.Logger) (*Host, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("viewer", viewerID))
	pc, done, err := NewPeerConnection(cfg, log)
	if err != nil {
		return nil, err
	}

	h := &Host{
		pc:        pc,
		done:      done,
		sig:       sig,
		transport: transport.NewDataChannelTransport(nil),
		viewerID:  viewerID,
		log:       log,
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != transport.Label {
			log.Debug("ignoring data channel", zap.String("label", dc.Label()))
			return
		}
		dc.OnOpen(func() {
			log.Info("viewer attached")
		})
		h.transport.SetFramesChannel(dc)
	})
	return h, nil
}

// ViewerID returns the signaling ID of the session's viewer.
func (h *Host) ViewerID() string {
	return h.viewerID
}

// Transport returns the frame channel of the session.
func (h *Host) Transport() *transport.DataChannelTransport {
	return h.transport
}

// Done is closed when the session's connection failed or closed.
func (h *Host) Done() <-chan struct{} {
	return h.done
}

// HandleOffer applies the viewer's offer and sends the answer.
func (h *Host) HandleOffer(ctx context.Context, payload json.RawMessage) error {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(payload, &offer); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}
	if err := h.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set offer: %w", err)
	}

	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	answerJSON, err := localDescription(ctx, h.pc, answer)
	if err != nil {
		return err
	}
	return h.sig.SendAnswer(h.viewerID, answerJSON)
}

// HandleICECandidate adds a remote ICE candidate.
func (h *Host) HandleICECandidate(payload json.RawMessage) error {
	return addCandidate(h.pc, payload)
}

// Close shuts down the peer connection.
func (h *Host) Close() {
	if err := h.pc.Close(); err != nil {
		h.log.Debug("close peer connection", zap.Error(err))
	}
}

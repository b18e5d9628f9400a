// Package peer negotiates the WebRTC connection that carries point frames
// from a frame source (Host) to a preview window (Viewer).
//
// Session descriptions are exchanged once ICE gathering has completed, so
// they already hold every local candidate. Trickled candidates from the
// other side are still accepted.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"
)

// ICEServers is the default ICE server configuration.
var ICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
}

// Signaler delivers session descriptions and candidates to another peer.
// *signaling.Client implements it.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// Config selects how peer connections gather candidates.
type Config struct {
	// ICEServers are the STUN/TURN servers; nil selects the package
	// default, an empty slice gathers host candidates only.
	ICEServers []webrtc.ICEServer
	// Loopback adds loopback candidates, for peers on one machine without
	// another usable interface.
	Loopback bool
}

// NewPeerConnection creates a PeerConnection. The returned channel is
// closed once the connection has failed or closed.
func NewPeerConnection(cfg Config, log *zap.Logger) (*webrtc.PeerConnection, <-chan struct{}, error) {
	if log == nil {
		log = zap.NewNop()
	}
	servers := cfg.ICEServers
	if servers == nil {
		servers = ICEServers
	}

	var se webrtc.SettingEngine
	se.SetIncludeLoopbackCandidate(cfg.Loopback)
	api := webrtc.NewAPI(webrtc.WithSettingEngine(se))

	pc, err := api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, nil, fmt.Errorf("create peer connection: %w", err)
	}

	done := make(chan struct{})
	var once sync.Once
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("peer connection state", zap.Stringer("state", state))
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			once.Do(func() { close(done) })
		}
	})
	return pc, done, nil
}

// localDescription waits for ICE gathering and returns the complete local
// description as JSON.
func localDescription(ctx context.Context, pc *webrtc.PeerConnection, desc webrtc.SessionDescription) (json.RawMessage, error) {
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.Marshal(pc.LocalDescription())
}

func addCandidate(pc *webrtc.PeerConnection, payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("decode ICE candidate: %w", err)
	}
	return pc.AddICECandidate(candidate)
}

package peer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mailbox is a Signaler that queues descriptions for the test to deliver.
type mailbox struct {
	offers  chan json.RawMessage
	answers chan json.RawMessage
}

func newMailbox() *mailbox {
	return &mailbox{
		offers:  make(chan json.RawMessage, 1),
		answers: make(chan json.RawMessage, 1),
	}
}

func (m *mailbox) SendOffer(_ string, payload json.RawMessage) error {
	m.offers <- payload
	return nil
}

func (m *mailbox) SendAnswer(_ string, payload json.RawMessage) error {
	m.answers <- payload
	return nil
}

func (m *mailbox) SendICECandidate(string, json.RawMessage) error { return nil }

func localConfig() Config {
	return Config{ICEServers: []webrtc.ICEServer{}, Loopback: true}
}

func TestHostViewerSession(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates a real WebRTC session")
	}
	log := zap.NewNop()
	box := newMailbox()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	viewer, err := NewViewer(box, "laser", localConfig(), log)
	require.NoError(t, err)
	defer viewer.Close()
	host, err := NewHost(box, "viewer", localConfig(), log)
	require.NoError(t, err)
	defer host.Close()
	assert.Equal(t, "viewer", host.ViewerID())

	received := make(chan []byte, 64)
	viewer.Transport().OnFrame(func(data []byte) {
		received <- append([]byte(nil), data...)
	})

	require.NoError(t, viewer.Connect(ctx))
	require.NoError(t, host.HandleOffer(ctx, <-box.offers))
	require.NoError(t, viewer.HandleAnswer(<-box.answers))

	require.Eventually(t, host.Transport().Open, 15*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		_ = host.Transport().SendFrame([]byte("frame"))
		select {
		case data := <-received:
			return string(data) == "frame"
		default:
			return false
		}
	}, 10*time.Second, 50*time.Millisecond)

	viewer.Close()
	select {
	case <-viewer.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("viewer connection not reported closed")
	}
}

func TestHandleMalformedPayloads(t *testing.T) {
	log := zap.NewNop()
	box := newMailbox()

	host, err := NewHost(box, "viewer", localConfig(), log)
	require.NoError(t, err)
	defer host.Close()
	assert.Error(t, host.HandleOffer(context.Background(), json.RawMessage(`not json`)))
	assert.Error(t, host.HandleICECandidate(json.RawMessage(`[]`)))

	viewer, err := NewViewer(box, "laser", localConfig(), log)
	require.NoError(t, err)
	defer viewer.Close()
	assert.Error(t, viewer.HandleAnswer(json.RawMessage(`{`)))
	assert.False(t, viewer.Transport().Open())
}

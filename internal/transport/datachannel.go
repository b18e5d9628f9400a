package transport

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// Label is the data channel label point frames travel on.
const Label = "points"

// Init returns the data channel options for point frames: unordered and
// without retransmission, so a late frame is dropped rather than delayed.
func Init() *webrtc.DataChannelInit {
	ordered := false
	maxRetransmits := uint16(0)
	return &webrtc.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	}
}

// DataChannelTransport implements frame transport over a WebRTC DataChannel.
type DataChannelTransport struct {
	mu      sync.RWMutex
	dc      *webrtc.DataChannel
	onFrame func(data []byte)
}

var (
	_ Channel       = (*DataChannelTransport)(nil)
	_ FrameReceiver = (*DataChannelTransport)(nil)
)

// NewDataChannelTransport wraps dc, which may be nil until the channel is
// negotiated.
func NewDataChannelTransport(dc *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if dc != nil {
		t.SetFramesChannel(dc)
	}
	return t
}

// SetFramesChannel sets or replaces the DataChannel (used when receiving
// negotiated channels).
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.dc = dc
	t.mu.Unlock()

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.RLock()
		cb := t.onFrame
		t.mu.RUnlock()
		if cb != nil {
			cb(msg.Data)
		}
	})
}

func (t *DataChannelTransport) channel() *webrtc.DataChannel {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dc
}

func (t *DataChannelTransport) SendFrame(data []byte) error {
	dc := t.channel()
	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return ErrNotOpen
	}
	return dc.Send(data)
}

func (t *DataChannelTransport) OnFrame(cb func(data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFrame = cb
}

func (t *DataChannelTransport) Open() bool {
	dc := t.channel()
	return dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (t *DataChannelTransport) BufferedAmount() uint64 {
	dc := t.channel()
	if dc == nil {
		return 0
	}
	return dc.BufferedAmount()
}

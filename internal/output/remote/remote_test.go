package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/junsooki/LaserField/internal/config"
	"github.com/junsooki/LaserField/internal/decoder"
	"github.com/junsooki/LaserField/internal/encoder"
	"github.com/junsooki/LaserField/internal/output"
	"github.com/junsooki/LaserField/internal/peer"
	"github.com/junsooki/LaserField/internal/point"
	"github.com/junsooki/LaserField/internal/signaling"
)

type fakeSession struct {
	done   chan struct{}
	closed int
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }
func (s *fakeSession) Close()                { s.closed++ }

type fakeChannel struct {
	mu       sync.Mutex
	open     bool
	buffered uint64
	err      error
	frames   [][]byte
}

func (c *fakeChannel) SendFrame(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeChannel) Open() bool             { return c.open }
func (c *fakeChannel) BufferedAmount() uint64 { return c.buffered }

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

// started returns an output that behaves as if Initialize succeeded, with
// 100 points at 1000 points per second.
func started(t *testing.T) (*Output, *fakeSession, *clock) {
	t.Helper()
	common := config.Defaults()
	common.PointCount = 100
	common.PointsPerSecond = 1000

	clk := &clock{t: time.Unix(1000, 0)}
	o := New(&common, zap.NewNop())
	o.now = clk.now
	sess := &fakeSession{done: make(chan struct{})}
	o.sig = sess
	o.enc = encoder.NewPointEncoder(encoder.FormatFloat)
	o.start = clk.t
	o.next = clk.t
	return o, sess, clk
}

func frame(n int) []point.Point {
	return make([]point.Point, n)
}

func TestNeedPointsBeforeInitialize(t *testing.T) {
	common := config.Defaults()
	o := New(&common, nil)
	assert.False(t, o.NeedPoints())
	assert.False(t, o.StreamPoints(frame(1)))
	o.Shutdown()
}

func TestPacing(t *testing.T) {
	o, _, clk := started(t)

	require.True(t, o.NeedPoints())
	require.True(t, o.StreamPoints(frame(100)))

	clk.advance(50 * time.Millisecond)
	assert.False(t, o.NeedPoints())

	clk.advance(50 * time.Millisecond)
	assert.True(t, o.NeedPoints())
	require.True(t, o.StreamPoints(frame(100)))

	clk.advance(time.Second)
	assert.True(t, o.NeedPoints(), "a stall does not bank frames")
	require.True(t, o.StreamPoints(frame(100)))
	assert.False(t, o.NeedPoints())
}

func TestDropsWithoutViewers(t *testing.T) {
	o, _, _ := started(t)
	closed := &fakeChannel{open: false}
	o.attach(&viewer{id: "v", channel: closed, close: func() {}})

	require.True(t, o.StreamPoints(frame(100)))
	assert.Equal(t, uint64(1), o.Dropped())
	assert.Empty(t, closed.frames)
}

func TestSendsToOpenViewers(t *testing.T) {
	o, _, clk := started(t)
	a := &fakeChannel{open: true}
	b := &fakeChannel{open: true, err: errors.New("queue full")}
	o.attach(&viewer{id: "a", channel: a, close: func() {}})
	o.attach(&viewer{id: "b", channel: b, close: func() {}})

	pts := []point.Point{{X: 0.5, R: 1}}
	require.True(t, o.StreamPoints(pts))
	clk.advance(250 * time.Millisecond)
	require.True(t, o.StreamPoints(pts))

	require.Len(t, a.frames, 2)
	assert.Zero(t, o.Dropped())

	dec := decoder.NewPointDecoder()
	first, err := dec.Decode(a.frames[0])
	require.NoError(t, err)
	assert.Equal(t, pts, first.Points)
	assert.Equal(t, uint32(0), first.Base)

	second, err := dec.Decode(a.frames[1])
	require.NoError(t, err)
	assert.Equal(t, uint32(1), second.Base)
	assert.InDelta(t, 0.25, second.Time, 1e-6)
}

func TestBacklogHoldsFrames(t *testing.T) {
	o, _, _ := started(t)
	ch := &fakeChannel{open: true, buffered: HighWater + 1}
	o.attach(&viewer{id: "v", channel: ch, close: func() {}})

	assert.False(t, o.NeedPoints())
	ch.buffered = 0
	assert.True(t, o.NeedPoints())
}

func TestLostSignaling(t *testing.T) {
	o, sess, clk := started(t)
	require.True(t, o.StreamPoints(frame(100)))

	close(sess.done)
	clk.advance(10 * time.Millisecond)
	assert.True(t, o.NeedPoints())
	assert.False(t, o.StreamPoints(frame(100)))
}

func TestShutdown(t *testing.T) {
	o, sess, _ := started(t)
	closes := 0
	o.attach(&viewer{id: "v", channel: &fakeChannel{open: true}, close: func() { closes++ }})

	o.Shutdown()
	o.Shutdown()
	assert.Equal(t, 1, closes)
	assert.Equal(t, 1, sess.closed)
	assert.False(t, o.NeedPoints())
}

func TestDetachChannelKeepsReplacement(t *testing.T) {
	o, _, _ := started(t)
	old := &fakeChannel{open: true}
	fresh := &fakeChannel{open: true}
	o.attach(&viewer{id: "v", channel: fresh, close: func() {}})

	o.detachChannel("v", old)
	require.True(t, o.StreamPoints(frame(1)))
	assert.Len(t, fresh.frames, 1)

	o.detachChannel("v", fresh)
	require.True(t, o.StreamPoints(frame(1)))
	assert.Len(t, fresh.frames, 1)
}

func TestCandidateForUnknownViewer(t *testing.T) {
	o, _, _ := started(t)
	o.handleCandidate("nobody", json.RawMessage(`{}`))

	var got json.RawMessage
	o.attach(&viewer{id: "v", channel: &fakeChannel{}, close: func() {},
		candidate: func(p json.RawMessage) error { got = p; return nil }})
	o.handleCandidate("v", json.RawMessage(`{"candidate":"x"}`))
	assert.JSONEq(t, `{"candidate":"x"}`, string(got))
}

func TestInitializeDialFailure(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ts.Close()

	common := config.Defaults()
	o := New(&common, nil)
	o.SignalingURL = url

	status, err := o.Initialize()
	assert.Equal(t, output.Failure, status)
	assert.Error(t, err)
	assert.NotEmpty(t, o.ID)
}

func TestParameters(t *testing.T) {
	common := config.Defaults()
	o := New(&common, nil)
	assert.Equal(t, config.DefaultSignalingURL, o.SignalingURL)

	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("id: lab-laser\ncompact: true\n"), &node))
	require.NoError(t, o.Decode(node.Content[0]))

	fs := pflag.NewFlagSet(Name, pflag.ContinueOnError)
	o.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--signaling", "ws://relay:9000"}))
	assert.Equal(t, Params{SignalingURL: "ws://relay:9000", ID: "lab-laser", Compact: true}, o.Params)
}

func TestStreamsToViewer(t *testing.T) {
	if testing.Short() {
		t.Skip("negotiates a real WebRTC session")
	}
	relay := signaling.NewServer(nil)
	ts := httptest.NewServer(relay)
	defer ts.Close()
	defer relay.Close()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")

	common := config.Defaults()
	common.PointCount = 4
	common.PointsPerSecond = 1000
	o := New(&common, nil)
	o.SignalingURL = url
	o.ID = "laser"
	o.Loopback = true
	o.Compact = true
	o.NoSTUN = true

	status, err := o.Initialize()
	require.NoError(t, err)
	require.Equal(t, output.Success, status)
	defer o.Shutdown()

	var v *peer.Viewer
	vsig := signaling.NewClient(url, "viewer", signaling.ClientTypeViewer, signaling.Handler{
		OnAnswer: func(_ string, payload json.RawMessage) {
			_ = v.HandleAnswer(payload)
		},
	}, nil)
	v, err = peer.NewViewer(vsig, "laser", peer.Config{ICEServers: []webrtc.ICEServer{}, Loopback: true}, nil)
	require.NoError(t, err)
	defer v.Close()

	frames := make(chan []byte, 64)
	v.Transport().OnFrame(func(data []byte) { frames <- append([]byte(nil), data...) })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	require.NoError(t, vsig.Connect(ctx))
	defer vsig.Close()
	require.NoError(t, v.Connect(ctx))

	pts := []point.Point{{X: 1, R: 1}, {X: -1, G: 1}, {Y: 1, B: 1}, {}}
	var got []byte
	require.Eventually(t, func() bool {
		if o.NeedPoints() {
			require.True(t, o.StreamPoints(pts))
		}
		select {
		case got = <-frames:
			return true
		default:
			return false
		}
	}, 15*time.Second, 5*time.Millisecond)

	decoded, err := decoder.NewPointDecoder().Decode(got)
	require.NoError(t, err)
	require.Len(t, decoded.Points, 4)
	assert.InDelta(t, 1, decoded.Points[0].X, 1e-4)
	assert.InDelta(t, 1, decoded.Points[2].B, 1e-4)
}

package dac

import (
	"encoding/binary"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDAC is an in-process DAC serving the command stream on loopback.
type fakeDAC struct {
	ln       net.Listener
	capacity int
	// drain is the number of points played between two pings.
	drain int

	mu       sync.Mutex
	status   Status
	samples  []Sample
	commands []byte
	conns    []net.Conn
	wg       sync.WaitGroup
}

func newFakeDAC(t *testing.T, capacity, drain int) *fakeDAC {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeDAC{ln: ln, capacity: capacity, drain: drain}
	f.wg.Add(1)
	go f.serve()
	t.Cleanup(f.close)
	return f
}

func (f *fakeDAC) device() Device {
	return Device{
		Name:           "EtherDream 000001",
		Addr:           f.ln.Addr().String(),
		BufferCapacity: uint16(f.capacity),
	}
}

func (f *fakeDAC) setStatus(fn func(*Status)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.status)
}

func (f *fakeDAC) received() ([]Sample, []byte, Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Sample(nil), f.samples...), append([]byte(nil), f.commands...), f.status
}

func (f *fakeDAC) close() {
	f.ln.Close()
	f.mu.Lock()
	for _, c := range f.conns {
		c.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *fakeDAC) serve() {
	defer f.wg.Done()
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		f.mu.Lock()
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			defer conn.Close()
			f.handle(conn)
		}()
	}
}

func (f *fakeDAC) handle(conn net.Conn) {
	if !f.reply(conn, respAck, cmdPing) {
		return
	}
	var cmd [1]byte
	for {
		if _, err := io.ReadFull(conn, cmd[:]); err != nil {
			return
		}
		code, ok := f.execute(conn, cmd[0])
		if !ok || !f.reply(conn, code, cmd[0]) {
			return
		}
	}
}

func (f *fakeDAC) execute(conn net.Conn, cmd byte) (byte, bool) {
	var payload []byte
	switch cmd {
	case cmdBegin:
		payload = make([]byte, 6)
	case cmdData:
		var count [2]byte
		if _, err := io.ReadFull(conn, count[:]); err != nil {
			return 0, false
		}
		payload = make([]byte, int(binary.LittleEndian.Uint16(count[:]))*sampleSize)
	}
	if _, err := io.ReadFull(conn, payload); err != nil {
		return 0, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	s := &f.status

	switch cmd {
	case cmdPing:
		if s.Playback == PlaybackPlaying {
			s.BufferFullness -= uint16(min(f.drain, int(s.BufferFullness)))
		}
	case cmdPrepare:
		if s.Playback != PlaybackIdle {
			return respInvalid, true
		}
		s.Playback = PlaybackPrepared
	case cmdBegin:
		if s.Playback != PlaybackPrepared {
			return respInvalid, true
		}
		s.Playback = PlaybackPlaying
		s.PointRate = binary.LittleEndian.Uint32(payload[2:])
	case cmdData:
		if s.LightEngine == LightEngineEmergencyStop {
			return respEmergency, true
		}
		count := len(payload) / sampleSize
		if s.Playback == PlaybackIdle {
			return respInvalid, true
		}
		if int(s.BufferFullness)+count > f.capacity {
			return respFull, true
		}
		for i := range count {
			var sample Sample
			sample.unmarshal(payload[i*sampleSize:])
			f.samples = append(f.samples, sample)
		}
		s.BufferFullness += uint16(count)
	case cmdStop:
		if s.Playback == PlaybackIdle {
			return respInvalid, true
		}
		s.Playback = PlaybackIdle
		s.BufferFullness = 0
	case cmdClearEStop:
		s.LightEngine = LightEngineReady
	default:
		return respInvalid, true
	}
	return respAck, true
}

func (f *fakeDAC) reply(conn net.Conn, code, cmd byte) bool {
	f.mu.Lock()
	r := response{code: code, command: cmd, status: f.status}
	f.mu.Unlock()
	_, err := conn.Write(r.marshal())
	return err == nil
}

package dac

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultTimeout bounds a command round trip.
const DefaultTimeout = 2 * time.Second

// NetConn is the TCP command stream of one DAC.
type NetConn struct {
	mu       sync.Mutex
	conn     net.Conn
	timeout  time.Duration
	capacity int
	status   Status
	buf      []byte
	resp     [responseSize]byte
	closed   bool

	sleep func(time.Duration)
}

var _ Conn = (*NetConn)(nil)

// Dial connects to a DAC and reads the status it greets every client with.
// A DAC left playing by a previous client is stopped, and a cleared
// emergency stop is acknowledged.
func Dial(ctx context.Context, device Device, timeout time.Duration) (*NetConn, error) {
	if device.BufferCapacity == 0 {
		return nil, fmt.Errorf("%w: %s reports no buffer capacity", ErrProtocol, device.Name)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", device.Addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", device.Name, err)
	}

	c := &NetConn{
		conn:     conn,
		timeout:  timeout,
		capacity: int(device.BufferCapacity),
		sleep:    time.Sleep,
	}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect %s: %w", device.Name, err)
	}
	return c, nil
}

func (c *NetConn) handshake() error {
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if err := c.readResponse(cmdPing); err != nil {
		return err
	}
	if c.status.LightEngine == LightEngineEmergencyStop {
		if err := c.command([]byte{cmdClearEStop}); err != nil {
			return err
		}
	}
	if c.status.Playback != PlaybackIdle {
		if err := c.command([]byte{cmdStop}); err != nil {
			return err
		}
	}
	return nil
}

// command sends one command and reads its response. The caller holds mu.
func (c *NetConn) command(b []byte) error {
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("send %q: %w", b[0], err)
	}
	return c.readResponse(b[0])
}

func (c *NetConn) readResponse(command byte) error {
	if _, err := io.ReadFull(c.conn, c.resp[:]); err != nil {
		return fmt.Errorf("read reply to %q: %w", command, err)
	}
	var r response
	if err := r.unmarshal(c.resp[:]); err != nil {
		return err
	}
	c.status = r.status
	return r.check(command)
}

func (c *NetConn) free() int {
	free := c.capacity - int(c.status.BufferFullness)
	if free < 0 {
		return 0
	}
	return free
}

// Status returns the DAC status of the last response.
func (c *NetConn) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *NetConn) Ready(n int) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}

	if err := c.command([]byte{cmdPing}); err != nil {
		return false, err
	}
	if c.status.LightEngine == LightEngineEmergencyStop {
		return false, nil
	}
	return c.free() >= min(n, c.capacity), nil
}

func (c *NetConn) WriteFrame(samples []Sample, rate uint32, repeat int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if rate == 0 {
		return fmt.Errorf("%w: point rate 0", ErrNacked)
	}

	for range repeat {
		if err := c.writeSamples(samples, rate); err != nil {
			return err
		}
	}
	return nil
}

// writeSamples streams one pass of samples, waiting for the DAC to drain
// when they do not fit. Playback is prepared when the DAC is idle and begun
// once it holds points.
func (c *NetConn) writeSamples(samples []Sample, rate uint32) error {
	if c.status.Playback == PlaybackIdle {
		if err := c.command([]byte{cmdPrepare}); err != nil {
			return err
		}
	}

	for len(samples) > 0 {
		free := c.free()
		if free == 0 {
			need := min(len(samples), c.capacity)
			c.sleep(max(time.Millisecond, time.Duration(need)*time.Second/time.Duration(rate)))
			if err := c.command([]byte{cmdPing}); err != nil {
				return err
			}
			continue
		}

		chunk := samples[:min(free, len(samples))]
		c.buf = dataCommand(c.buf, chunk)
		if err := c.command(c.buf); err != nil {
			return err
		}
		samples = samples[len(chunk):]

		if c.status.Playback == PlaybackPrepared {
			if err := c.command(beginCommand(0, rate)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *NetConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	_ = c.command([]byte{cmdStop})
	return c.conn.Close()
}

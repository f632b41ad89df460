package dataconn

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/fclairamb/ftpclientcore/speedmeter"
)

// errConnReset is the synthesized cause the no-data-transfer watchdog
// reports, mirroring the WSAECONNRESET spec.md §7 names for this case.
var errConnReset = syscall.ECONNRESET

// Direction is which way bytes flow across the data connection.
type Direction int

const (
	Download Direction = iota
	Upload
)

// defaultFlushSize is the buffer size a download accumulates before
// posting flush-data to the worker, per spec.md §4.2.
const defaultFlushSize = 32 * 1024

// Config carries the per-transfer parameters a Conn is created with.
type Config struct {
	Direction   Direction
	Proxy       ProxyConfig
	TLS         TLSMode
	TLSConfig   *tls.Config // nil unless TLS != TLSNone
	Compress    bool
	FlushSize   int
}

// Conn is a one-shot byte-stream endpoint for a single transfer: it dials
// or listens for the server's half, optionally wraps itself in TLS and
// DEFLATE, accounts bytes through a speedmeter.Meter, and hands buffers to
// and from the worker's disk thread. It is grounded on the teacher's
// transferHandler, inverted from server-accepts-client to
// client-dials/listens-for-server (see state.go's package doc).
type Conn struct {
	cfg   Config
	state State
	mode  Mode

	conn     net.Conn
	listener net.Listener

	meter *speedmeter.Meter

	// packet-size adaptation fields: owned and mutated by the worker's
	// send path (spec.md §4.1), just stored here as part of connection
	// state (spec.md §3's "data-connection state").
	packetSize      int
	tooBigThreshold int
	speedWindowFrom time.Time

	noTransferDeadline time.Duration

	flushBuf       []byte
	flushPending   bool
	deleteOnError  bool

	osErr            error
	lowMem           bool
	proxyErr         error
	noTransferTO     bool
	sslErr           error
	decompressErr    error
}

// NewConn allocates a Conn in the not-allocated state, per spec.md §3's
// data-connection lifecycle.
func NewConn(cfg Config) *Conn {
	if cfg.FlushSize == 0 {
		cfg.FlushSize = defaultFlushSize
	}

	return &Conn{
		cfg:        cfg,
		state:      NotAllocated,
		meter:      speedmeter.New(),
		packetSize: 32768,
	}
}

// State reports the connection's current lifecycle state.
func (c *Conn) State() State { return c.state }

// Mode reports whether this connection dialed out (passive) or listened
// for the server to dial in (active).
func (c *Conn) Mode() Mode { return c.mode }

// DialPassive connects to the server-advertised address for a PASV/EPSV
// transfer, grounded on the teacher's passiveTransferHandler in the
// now-adapted transfer_pasv.go, inverted: there the server listened and
// the client connected in; here this engine is the one connecting in.
func (c *Conn) DialPassive(addr string) error {
	c.state = Connecting
	c.mode = Passive

	raw, err := dialThroughProxy("tcp", addr, c.cfg.Proxy)
	if err != nil {
		c.proxyErr = err
		c.state = Closed

		return fmt.Errorf("dataconn: passive dial to %s: %w", addr, err)
	}

	c.conn = raw
	c.meter.JustConnected()
	c.state = Connected

	return nil
}

// ListenActive opens a local listener for a PORT/EPRT transfer and
// returns the address to advertise to the server, grounded on the
// teacher's activeTransferHandler in the now-adapted transfer_active.go,
// inverted: there the server dialed into a client-advertised address;
// here this engine advertises its own listener to the server.
func (c *Conn) ListenActive(localIP string) (net.IP, int, error) {
	c.state = OnlyAllocated
	c.mode = Active

	lc := net.ListenConfig{Control: reuseAddrControl}

	ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(localIP, "0"))
	if err != nil {
		c.state = Closed

		return nil, 0, fmt.Errorf("dataconn: active listen on %s: %w", localIP, err)
	}

	c.listener = ln
	c.state = Listening

	tcpAddr, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		ln.Close()
		c.state = Closed

		return nil, 0, fmt.Errorf("dataconn: active listener returned non-TCP address %v", ln.Addr())
	}

	return tcpAddr.IP, tcpAddr.Port, nil
}

// AcceptActive blocks until the server connects to the active-mode
// listener opened by ListenActive, or deadline elapses.
func (c *Conn) AcceptActive(deadline time.Time) error {
	if c.listener == nil {
		return fmt.Errorf("dataconn: AcceptActive called with no listener open")
	}

	if tl, ok := c.listener.(*net.TCPListener); ok {
		_ = tl.SetDeadline(deadline)
	}

	c.state = Connecting

	raw, err := c.listener.Accept()
	if err != nil {
		c.osErr = err
		c.state = Closed

		return fmt.Errorf("dataconn: active accept: %w", err)
	}

	c.conn = raw
	c.meter.JustConnected()
	c.state = Connected

	return nil
}

// WrapSecurity upgrades the connection to TLS (if configured) and wraps it
// in DEFLATE compression (if configured), per spec.md §4.2's "negotiation
// happens on first byte of the passive connection (download) or on first
// send (upload)" — callers invoke this once, right before the first
// Read/Write.
func (c *Conn) WrapSecurity() error {
	if c.cfg.TLS != TLSNone {
		if err := c.wrapTLS(c.cfg.TLSConfig); err != nil {
			c.sslErr = err

			return err
		}
	}

	if c.cfg.Compress {
		cc, err := newCompressedConn(c.conn)
		if err != nil {
			c.decompressErr = err

			return fmt.Errorf("dataconn: compression setup: %w", err)
		}

		c.conn = connAsNetConn{cc, c.conn}
	}

	return nil
}

// connAsNetConn adapts a compressedConn (an io.ReadWriteCloser) back to
// net.Conn by delegating the addressing/deadline methods to the
// underlying raw connection, so the rest of Conn can keep treating
// c.conn as a net.Conn regardless of whether compression is layered in.
type connAsNetConn struct {
	io.ReadWriteCloser
	raw net.Conn
}

func (c connAsNetConn) LocalAddr() net.Addr                { return c.raw.LocalAddr() }
func (c connAsNetConn) RemoteAddr() net.Addr               { return c.raw.RemoteAddr() }
func (c connAsNetConn) SetDeadline(t time.Time) error      { return c.raw.SetDeadline(t) }
func (c connAsNetConn) SetReadDeadline(t time.Time) error   { return c.raw.SetReadDeadline(t) }
func (c connAsNetConn) SetWriteDeadline(t time.Time) error  { return c.raw.SetWriteDeadline(t) }

// Read consumes up to len(p) bytes, sized to the worker's current
// packet-size estimate by the caller, and accounts them in the meter.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.conn.Read(p)
	if n > 0 {
		c.meter.Add(int64(n))
	}

	return n, err
}

// Write sends p and accounts it in the meter.
func (c *Conn) Write(p []byte) (int, error) {
	n, err := c.conn.Write(p)
	if n > 0 {
		c.meter.Add(int64(n))
	}

	return n, err
}

// SetReadDeadline delegates to the underlying connection, letting a caller
// poll for the no-data-transfer watchdog (spec.md §4.1) instead of blocking
// on Read forever.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if c.conn == nil {
		return nil
	}

	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline delegates to the underlying connection, the write-side
// counterpart of SetReadDeadline.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	if c.conn == nil {
		return nil
	}

	return c.conn.SetWriteDeadline(t)
}

// Speed reports the current smoothed bytes-per-second rate.
func (c *Conn) Speed() float64 { return c.meter.Speed() }

// LastActivity reports when bytes were last accounted, for the worker's
// no-data-transfer watchdog (spec.md §4.1).
func (c *Conn) LastActivity() time.Time { return c.meter.LastActivity() }

// PacketSize returns the current send-path packet size estimate.
func (c *Conn) PacketSize() int { return c.packetSize }

// SetPacketSize records a new packet size, as decided by the worker's
// too-big-packet adaptation (spec.md §4.1). Size must be one of
// {32768, 8192, 4096, 1024, 512} but that constraint is enforced by the
// worker, not here.
func (c *Conn) SetPacketSize(n int) { c.packetSize = n }

// MarkTooBig records size as the packet size that triggered a throughput
// drop, so the worker's adaptation loop does not immediately try it again.
func (c *Conn) MarkTooBig(size int) { c.tooBigThreshold = size }

// TooBigThreshold returns the last packet size recorded as too big, or 0
// if none has been.
func (c *Conn) TooBigThreshold() int { return c.tooBigThreshold }

// BeginSpeedWindow marks the start of a 1-second throughput measurement
// window following a packet-size change.
func (c *Conn) BeginSpeedWindow(now time.Time) { c.speedWindowFrom = now }

// SpeedWindowStart reports when the current measurement window began.
func (c *Conn) SpeedWindowStart() time.Time { return c.speedWindowFrom }

// GiveFlushData returns the accumulated download buffer, byte count, and
// whether the target file should be deleted if the worker rejects it, per
// spec.md §4.2's give-flush-data contract. It clears the pending flush.
func (c *Conn) GiveFlushData() ([]byte, int, bool) {
	buf, n, del := c.flushBuf, len(c.flushBuf), c.deleteOnError
	c.flushPending = false

	return buf, n, del
}

// FlushDataFinished returns a buffer to the connection for reuse (or lets
// it be discarded) once the disk thread has consumed it, per spec.md
// §4.1's disk hand-off contract.
func (c *Conn) FlushDataFinished(buf []byte, reuse bool) {
	if reuse {
		c.flushBuf = buf[:0]
	} else {
		c.flushBuf = make([]byte, 0, c.cfg.FlushSize)
	}
}

// HasPendingFlush reports whether a download buffer is waiting for the
// worker to claim via GiveFlushData.
func (c *Conn) HasPendingFlush() bool { return c.flushPending }

// Accumulate appends a downloaded chunk to the flush buffer, posting a
// pending flush once it reaches the configured flush size.
func (c *Conn) Accumulate(p []byte) {
	if c.flushBuf == nil {
		c.flushBuf = make([]byte, 0, c.cfg.FlushSize)
	}

	c.flushBuf = append(c.flushBuf, p...)
	if len(c.flushBuf) >= c.cfg.FlushSize {
		c.flushPending = true
	}
}

// MarkNoTransferTimeout records that the worker's no-data-transfer
// watchdog fired and synthesised a close (spec.md §4.1).
func (c *Conn) MarkNoTransferTimeout() {
	c.noTransferTO = true
	c.osErr = fmt.Errorf("dataconn: no-data-transfer watchdog fired: %w", errConnReset)
}

// GetError reports the classified failures this connection observed, per
// spec.md §4.2's get-error contract.
func (c *Conn) GetError() (osErr error, lowMem bool, proxyErr error, noTransferTimeout bool, sslErr, decompressErr error) {
	return c.osErr, c.lowMem, c.proxyErr, c.noTransferTO, c.sslErr, c.decompressErr
}

// Close tears down the connection (and its listener, if active mode never
// got as far as accepting), marking it closed regardless of prior state.
func (c *Conn) Close() error {
	var err error

	if c.conn != nil {
		err = c.conn.Close()
	}

	if c.listener != nil {
		_ = c.listener.Close()
	}

	c.state = Closed

	return err
}

// IsConnected reports whether the data socket is open and usable.
func (c *Conn) IsConnected() bool { return c.state == Connected }

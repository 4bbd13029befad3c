// Package tcp implements fastboot over TCP.
//
// After connecting, the host sends "FB01" and the device answers "FB" followed
// by its two-digit protocol version. From then on every message in either
// direction is preceded by its length as an 8-byte big-endian integer.
//
//	t, err := tcp.Dial("192.168.1.20:5554")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client := fastboot.New(t)
//	defer client.Close()
package tcp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/moffa90/go-fastboot/transport"
)

// DefaultPort is the port fastboot devices listen on.
const DefaultPort = "5554"

// Protocol constants.
const (
	// HandshakeSize is the length of the handshake in both directions
	HandshakeSize = 4

	// HeaderSize is the length prefix on every message
	HeaderSize = 8

	// ProtocolVersion is the version the host offers
	ProtocolVersion = 1
)

// Defaults.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultHandshakeTimeout = 5 * time.Second
)

// ErrHandshake is returned when the device answers the handshake with
// anything other than "FB" and a supported version.
var ErrHandshake = errors.New("fastboot tcp handshake failed")

// Config holds the transport configuration.
type Config struct {
	// DialTimeout bounds connection setup
	DialTimeout time.Duration

	// HandshakeTimeout bounds the FB01 exchange
	HandshakeTimeout time.Duration
}

// Option is a functional option for configuring the transport.
type Option func(*Config)

// WithDialTimeout sets the connection timeout. Non-positive values are ignored.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.DialTimeout = d
		}
	}
}

// WithHandshakeTimeout sets the handshake timeout. Non-positive values are ignored.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.HandshakeTimeout = d
		}
	}
}

// Transport is a fastboot transport over one TCP connection.
type Transport struct {
	mu      sync.Mutex
	conn    net.Conn
	version int

	// length prefix being read, kept across timeouts
	hdr     [HeaderSize]byte
	hdrRead int

	// bytes of the current incoming message still on the wire
	remaining uint64

	// chunk being filled for the caller; body[:bodyRead] is already read
	body     []byte
	bodyRead int

	closed bool
}

// Dial connects to addr and performs the handshake. A missing port defaults
// to DefaultPort.
func Dial(addr string, opts ...Option) (*Transport, error) {
	cfg := Config{
		DialTimeout:      DefaultDialTimeout,
		HandshakeTimeout: DefaultHandshakeTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultPort)
	}

	conn, err := net.DialTimeout("tcp", addr, cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	t, err := newTransport(conn, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

// NewWithConn performs the handshake on an established connection and
// returns a Transport that owns it.
func NewWithConn(conn net.Conn, opts ...Option) (*Transport, error) {
	cfg := Config{HandshakeTimeout: DefaultHandshakeTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return newTransport(conn, cfg)
}

func newTransport(conn net.Conn, cfg Config) (*Transport, error) {
	t := &Transport{conn: conn}
	if err := t.handshake(cfg.HandshakeTimeout); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Transport) handshake(timeout time.Duration) error {
	if err := t.conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	defer t.conn.SetDeadline(time.Time{})

	hello := fmt.Sprintf("FB%02d", ProtocolVersion)
	if _, err := io.WriteString(t.conn, hello); err != nil {
		return fmt.Errorf("send handshake: %w", mapError(err))
	}

	reply := make([]byte, HandshakeSize)
	if _, err := io.ReadFull(t.conn, reply); err != nil {
		return fmt.Errorf("receive handshake: %w", mapError(err))
	}

	version, err := ParseHandshake(reply)
	if err != nil {
		return err
	}
	t.version = version
	return nil
}

// ParseHandshake validates a handshake message and returns its version.
func ParseHandshake(b []byte) (int, error) {
	if len(b) != HandshakeSize || b[0] != 'F' || b[1] != 'B' ||
		!isDigit(b[2]) || !isDigit(b[3]) {
		return 0, fmt.Errorf("%w: got %q", ErrHandshake, b)
	}
	version := int(b[2]-'0')*10 + int(b[3]-'0')
	if version < ProtocolVersion {
		return 0, fmt.Errorf("%w: unsupported version %d", ErrHandshake, version)
	}
	return version, nil
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

// Version returns the protocol version the device reported.
func (t *Transport) Version() int {
	return t.version
}

// Send writes p as one length-prefixed message.
func (t *Transport) Send(p []byte, timeout time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, transport.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	if err := t.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return 0, err
	}

	msg := make([]byte, HeaderSize+len(p))
	binary.BigEndian.PutUint64(msg, uint64(len(p)))
	copy(msg[HeaderSize:], p)

	n, err := t.conn.Write(msg)
	if err != nil {
		return clampSent(n), mapError(err)
	}
	return len(p), nil
}

func clampSent(n int) int {
	if n <= HeaderSize {
		return 0
	}
	return n - HeaderSize
}

// Receive returns up to max bytes of the current incoming message, reading
// the next length prefix first when the previous message is exhausted.
// A message longer than max is returned across several calls. Bytes read
// before a timeout are kept and the next call resumes where it stopped.
func (t *Transport) Receive(max int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, transport.ErrClosed
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}

	for t.body == nil && t.remaining == 0 {
		n, err := io.ReadFull(t.conn, t.hdr[t.hdrRead:])
		t.hdrRead += n
		if err != nil {
			return nil, mapError(err)
		}
		t.hdrRead = 0
		t.remaining = binary.BigEndian.Uint64(t.hdr[:])
	}

	if t.body == nil {
		n := uint64(max)
		if n > t.remaining {
			n = t.remaining
		}
		t.body = make([]byte, n)
		t.bodyRead = 0
	}

	n, err := io.ReadFull(t.conn, t.body[t.bodyRead:])
	t.bodyRead += n
	t.remaining -= uint64(n)
	if err != nil {
		return nil, mapError(err)
	}

	out := t.body
	if len(out) > max {
		t.body = out[max:]
		t.bodyRead = len(t.body)
		return out[:max:max], nil
	}
	t.body = nil
	t.bodyRead = 0
	return out, nil
}

// Close closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// mapError reports deadline expiry as transport.ErrTimeout.
func mapError(err error) error {
	var ne net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %w", err, transport.ErrTimeout)
	}
	return err
}

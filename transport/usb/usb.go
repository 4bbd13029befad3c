// Package usb adapts a caller-supplied bulk-transfer device to the fastboot
// transport.
//
// Enumerating devices and claiming interfaces is left to the USB stack in
// use. Once the fastboot interface is claimed, wrap it:
//
//	iface := ... // descriptor of the claimed interface
//	if !usb.IsFastbootInterface(iface) {
//	    return errors.New("not a fastboot interface")
//	}
//	t, err := usb.NewFromInterface(dev, iface)
//	client := fastboot.New(t)
package usb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-fastboot/transport"
)

// Fastboot interface identification.
const (
	InterfaceClass    = 0xFF
	InterfaceSubClass = 0x42
	InterfaceProtocol = 0x03
)

// Endpoint attribute values.
const (
	EndpointDirIn      = 0x80
	TransferTypeMask   = 0x03
	TransferTypeBulk   = 0x02
	EndpointNumberMask = 0x0F
)

// DefaultMaxTransferSize caps a single bulk transfer.
const DefaultMaxTransferSize = 1 << 20

// ErrNoEndpoints is returned when an interface lacks a bulk IN/OUT pair.
var ErrNoEndpoints = errors.New("interface has no bulk in/out endpoint pair")

// BulkDevice performs bulk transfers on an opened device. For IN endpoints
// data is filled with received bytes; for OUT endpoints data is sent.
// It returns the number of bytes transferred. Cancellation of ctx must abort
// the transfer.
type BulkDevice interface {
	BulkTransfer(ctx context.Context, endpoint uint8, data []byte) (int, error)
}

// EndpointDescriptor describes one endpoint of an interface.
type EndpointDescriptor struct {
	Address       uint8
	Attributes    uint8
	MaxPacketSize uint16
}

// IsIn reports whether the endpoint is device-to-host.
func (e EndpointDescriptor) IsIn() bool {
	return e.Address&EndpointDirIn != 0
}

// IsBulk reports whether the endpoint uses bulk transfers.
func (e EndpointDescriptor) IsBulk() bool {
	return e.Attributes&TransferTypeMask == TransferTypeBulk
}

// InterfaceDescriptor describes one USB interface.
type InterfaceDescriptor struct {
	Number    uint8
	Class     uint8
	SubClass  uint8
	Protocol  uint8
	Endpoints []EndpointDescriptor
}

// IsFastbootInterface reports whether d is a fastboot interface.
func IsFastbootInterface(d InterfaceDescriptor) bool {
	return d.Class == InterfaceClass &&
		d.SubClass == InterfaceSubClass &&
		d.Protocol == InterfaceProtocol
}

// FindEndpoints returns the first bulk IN and bulk OUT endpoints of d.
func FindEndpoints(d InterfaceDescriptor) (in, out EndpointDescriptor, err error) {
	var haveIn, haveOut bool
	for _, ep := range d.Endpoints {
		if !ep.IsBulk() {
			continue
		}
		if ep.IsIn() && !haveIn {
			in, haveIn = ep, true
		} else if !ep.IsIn() && !haveOut {
			out, haveOut = ep, true
		}
	}
	if !haveIn || !haveOut {
		return in, out, fmt.Errorf("interface %d: %w", d.Number, ErrNoEndpoints)
	}
	return in, out, nil
}

// Config holds the transport configuration.
type Config struct {
	// MaxTransferSize caps the bytes moved by one bulk transfer
	MaxTransferSize int

	// TxDone is called with the byte count after every completed OUT transfer
	TxDone func(n int)
}

// Option is a functional option for configuring the transport.
type Option func(*Config)

// WithMaxTransferSize caps single bulk transfers. Some host controllers
// reject large transfers; the fastboot client splits data phases to match.
// Non-positive values are ignored.
func WithMaxTransferSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxTransferSize = n
		}
	}
}

// WithTxDone sets a callback run after every completed OUT transfer.
func WithTxDone(fn func(n int)) Option {
	return func(c *Config) {
		c.TxDone = fn
	}
}

// Transport moves fastboot traffic over a pair of bulk endpoints.
type Transport struct {
	dev    BulkDevice
	in     uint8
	out    uint8
	config Config
}

// New returns a Transport using the given endpoint addresses.
func New(dev BulkDevice, in, out uint8, opts ...Option) *Transport {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := Config{MaxTransferSize: DefaultMaxTransferSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Transport{dev: dev, in: in, out: out, config: cfg}
}

// NewFromInterface picks the bulk endpoints of iface and returns a Transport.
func NewFromInterface(dev BulkDevice, iface InterfaceDescriptor, opts ...Option) (*Transport, error) {
	in, out, err := FindEndpoints(iface)
	if err != nil {
		return nil, err
	}
	return New(dev, in.Address, out.Address, opts...), nil
}

// Send performs one OUT transfer of at most MaxTransferSize bytes of p.
func (t *Transport) Send(p []byte, timeout time.Duration) (int, error) {
	if len(p) > t.config.MaxTransferSize {
		p = p[:t.config.MaxTransferSize]
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, err := t.dev.BulkTransfer(ctx, t.out, p)
	if err != nil {
		return 0, mapError(err)
	}
	if t.config.TxDone != nil {
		t.config.TxDone(n)
	}
	return n, nil
}

// Receive performs one IN transfer of at most max bytes.
func (t *Transport) Receive(max int, timeout time.Duration) ([]byte, error) {
	if max > t.config.MaxTransferSize {
		max = t.config.MaxTransferSize
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	buf := make([]byte, max)
	n, err := t.dev.BulkTransfer(ctx, t.in, buf)
	if err != nil {
		return nil, mapError(err)
	}
	return buf[:n], nil
}

// Close closes the device if it implements io.Closer.
func (t *Transport) Close() error {
	if closer, ok := t.dev.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type timeoutError interface {
	Timeout() bool
}

// mapError reports expired transfers as transport.ErrTimeout.
func mapError(err error) error {
	if errors.Is(err, transport.ErrTimeout) {
		return err
	}
	var te timeoutError
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		return fmt.Errorf("%w: %w", err, transport.ErrTimeout)
	}
	return err
}

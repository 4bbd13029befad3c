// Package transport defines the byte channel the fastboot client talks over.
//
// Implementations live in the tcp and usb subpackages; fastboottest provides a
// simulated device. The fastboot core never branches on which one it has.
package transport

import (
	"errors"
	"time"
)

// Transport errors.
var (
	// ErrTimeout indicates a send or receive did not complete within its timeout.
	ErrTimeout = errors.New("transport timeout")

	// ErrClosed indicates the transport was closed.
	ErrClosed = errors.New("transport closed")
)

// Transport is a raw, half-duplex byte channel to one device.
//
// Implementations are not required to be safe for concurrent use; the
// fastboot client serializes all calls.
type Transport interface {
	// Send transmits p as one logical write and returns how many bytes the
	// device accepted. Accepting fewer than len(p) bytes is not an error;
	// a return of 0 with a nil error means the device stopped accepting data.
	Send(p []byte, timeout time.Duration) (int, error)

	// Receive returns up to max bytes received within timeout.
	// It need not return whole frames for large transfers.
	// Timeouts are reported as errors wrapping ErrTimeout.
	Receive(max int, timeout time.Duration) ([]byte, error)
}

package fastboot

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/moffa90/go-fastboot/transport"
)

// Sentinel errors matched by the structured error types below.
var (
	// ErrFailed is matched by FailError
	ErrFailed = errors.New("device reported failure")

	// ErrProtocolViolation is matched by ProtocolViolationError
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrSizeMismatch is matched by SizeMismatchError
	ErrSizeMismatch = errors.New("size mismatch")

	// ErrTransport is matched by TransportError
	ErrTransport = errors.New("transport error")

	// ErrPayloadTooLarge is returned when a download buffer cannot be
	// described by the 32-bit size field
	ErrPayloadTooLarge = errors.New("payload exceeds 4 GiB")
)

// FailError is returned when the device answers FAIL.
// This is a normal outcome (for example an unknown getvar name), not a fault.
type FailError struct {
	// Command is the command that failed, in wire form
	Command string

	// Reason is the text the device sent after FAIL
	Reason string

	// Info holds the INFO lines received before the failure
	Info []string
}

func (e *FailError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

// Is reports whether target is ErrFailed.
func (e *FailError) Is(target error) bool { return target == ErrFailed }

// ProtocolViolationError is returned when a valid or invalid frame arrives
// where the protocol does not allow it.
type ProtocolViolationError struct {
	// Command is the command in flight, in wire form
	Command string

	// Reason describes the violation
	Reason string

	// Err is the underlying codec error or device FAIL, if any
	Err error
}

func (e *ProtocolViolationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: protocol violation: %s: %v", e.Command, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: protocol violation: %s", e.Command, e.Reason)
}

// Is reports whether target is ErrProtocolViolation.
func (e *ProtocolViolationError) Is(target error) bool { return target == ErrProtocolViolation }

// Unwrap returns the codec error or device failure behind the violation.
func (e *ProtocolViolationError) Unwrap() error { return e.Err }

// SizeMismatchError is returned when the caller's buffer disagrees with the
// size the device announced. The announced size is authoritative.
type SizeMismatchError struct {
	Announced uint32
	Buffer    int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch: device announced %d bytes, buffer has %d", e.Announced, e.Buffer)
}

// Is reports whether target is ErrSizeMismatch.
func (e *SizeMismatchError) Is(target error) bool { return target == ErrSizeMismatch }

// TransportError wraps any failure of the underlying transport, including
// timeouts and context cancellation. It always aborts the call in flight.
type TransportError struct {
	// Op is the transport operation that failed ("send" or "receive")
	Op string

	// Err is the transport's error
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Is reports whether target is ErrTransport, or transport.ErrTimeout for
// any kind of timeout.
func (e *TransportError) Is(target error) bool {
	if target == ErrTransport {
		return true
	}
	return target == transport.ErrTimeout && e.Timeout()
}

// Unwrap returns the transport's error.
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a timeout or an expired deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, transport.ErrTimeout) ||
		errors.Is(e.Err, context.DeadlineExceeded) ||
		errors.Is(e.Err, os.ErrDeadlineExceeded)
}

// ImageTooLargeError is returned by FlashImage when the image exceeds the
// device's max-download-size.
type ImageTooLargeError struct {
	Partition string
	Size      int
	Max       uint32
}

func (e *ImageTooLargeError) Error() string {
	return fmt.Sprintf("image for %s is %d bytes, device accepts at most %d", e.Partition, e.Size, e.Max)
}

// IsFailed returns true if err is a FailError.
func IsFailed(err error) bool {
	var fe *FailError
	return errors.As(err, &fe)
}

// IsTimeout returns true if err is a TransportError caused by a timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}

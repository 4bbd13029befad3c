package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the structured error types below.
var (
	// ErrCommandTooLong is matched by CommandTooLongError
	ErrCommandTooLong = errors.New("command too long")

	// ErrEmptyVerb is returned when encoding a command without a verb
	ErrEmptyVerb = errors.New("empty command verb")

	// ErrMalformedResponse is matched by MalformedResponseError
	ErrMalformedResponse = errors.New("malformed response")

	// ErrMalformedDataSize is matched by MalformedDataSizeError
	ErrMalformedDataSize = errors.New("malformed data size")

	// ErrUnexpectedResponse is matched by UnexpectedResponseError
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// CommandTooLongError is returned when an encoded command exceeds MaxCommandSize.
// The command is never sent.
type CommandTooLongError struct {
	// Command is the full command that was rejected
	Command string

	// Length is its encoded length in bytes
	Length int
}

func (e *CommandTooLongError) Error() string {
	return fmt.Sprintf("command %q is %d bytes, maximum is %d", truncate(e.Command, 24), e.Length, MaxCommandSize)
}

// Is reports whether target is ErrCommandTooLong.
func (e *CommandTooLongError) Is(target error) bool { return target == ErrCommandTooLong }

// MalformedResponseError is returned when bytes received do not form a response frame.
type MalformedResponseError struct {
	// Frame holds the raw bytes that failed to decode
	Frame []byte

	// Reason describes what is wrong with the frame
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response %q: %s", e.Frame, e.Reason)
}

// Is reports whether target is ErrMalformedResponse.
func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// MalformedDataSizeError is returned when a DATA response does not carry exactly
// DataSizeDigits hex digits.
type MalformedDataSizeError struct {
	// Field is the text that followed the DATA tag
	Field string
}

func (e *MalformedDataSizeError) Error() string {
	return fmt.Sprintf("malformed DATA size %q: want %d hex digits", e.Field, DataSizeDigits)
}

// Is reports whether target is ErrMalformedDataSize.
func (e *MalformedDataSizeError) Is(target error) bool { return target == ErrMalformedDataSize }

// UnexpectedResponseError is returned by Route when no branch handles a response kind.
type UnexpectedResponseError struct {
	Kind Kind
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response", e.Kind)
}

// Is reports whether target is ErrUnexpectedResponse.
func (e *UnexpectedResponseError) Is(target error) bool { return target == ErrUnexpectedResponse }

// IsCodecError returns true if err is any of the command or response codec errors.
func IsCodecError(err error) bool {
	return errors.Is(err, ErrCommandTooLong) ||
		errors.Is(err, ErrEmptyVerb) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrMalformedDataSize)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

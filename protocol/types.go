package protocol

import "fmt"

// Command is a single fastboot request: a verb and an optional argument.
// It is serialized as "<verb>" or "<verb>:<arg>".
type Command struct {
	// Verb is the command keyword (getvar, flash, download...)
	Verb string

	// Arg is the optional argument; empty means no argument
	Arg string
}

// String returns the wire form of the command.
func (c Command) String() string {
	if c.Arg == "" {
		return c.Verb
	}
	return c.Verb + string(ArgSeparator) + c.Arg
}

// Kind identifies the variant of a Response.
type Kind uint8

// Response kinds, one per tag.
const (
	KindOkay Kind = iota + 1
	KindFail
	KindData
	KindInfo
)

// String returns the wire tag for the kind.
func (k Kind) String() string {
	switch k {
	case KindOkay:
		return TagOkay
	case KindFail:
		return TagFail
	case KindData:
		return TagData
	case KindInfo:
		return TagInfo
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Terminal reports whether a response of this kind ends a command.
func (k Kind) Terminal() bool {
	return k == KindOkay || k == KindFail
}

// Response is a decoded device reply.
type Response struct {
	// Kind is the response variant
	Kind Kind

	// Payload is the message for OKAY, FAIL and INFO responses
	Payload string

	// Size is the announced transfer size for DATA responses
	Size uint32
}

// Okay returns an OKAY response carrying msg.
func Okay(msg string) Response { return Response{Kind: KindOkay, Payload: msg} }

// Fail returns a FAIL response carrying reason.
func Fail(reason string) Response { return Response{Kind: KindFail, Payload: reason} }

// Info returns an INFO response carrying msg.
func Info(msg string) Response { return Response{Kind: KindInfo, Payload: msg} }

// Data returns a DATA response announcing size bytes.
func Data(size uint32) Response { return Response{Kind: KindData, Size: size} }

// String returns the wire form of the response.
func (r Response) String() string {
	return string(r.Encode())
}

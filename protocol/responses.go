package protocol

import (
	"fmt"
	"strconv"
)

// DecodeResponse parses a response frame received from the device.
//
// Frame structure:
//
//	[TAG(4)][PAYLOAD(0-60)]     TAG = OKAY | FAIL | INFO
//	[DATA][SIZE(8 hex digits)]
//
// OKAY, FAIL and INFO payloads are taken verbatim; device text is not
// re-validated as ASCII. Returns MalformedResponseError for short, oversized
// or untagged frames and MalformedDataSizeError for a bad DATA size.
func DecodeResponse(frame []byte) (Response, error) {
	if len(frame) < TagSize {
		return Response{}, &MalformedResponseError{
			Frame:  cloneBytes(frame),
			Reason: fmt.Sprintf("frame too short: got %d bytes, minimum is %d", len(frame), TagSize),
		}
	}
	if len(frame) > MaxResponseSize {
		return Response{}, &MalformedResponseError{
			Frame:  cloneBytes(frame),
			Reason: fmt.Sprintf("frame too long: got %d bytes, maximum is %d", len(frame), MaxResponseSize),
		}
	}

	tag, rest := string(frame[:TagSize]), frame[TagSize:]
	switch tag {
	case TagOkay:
		return Response{Kind: KindOkay, Payload: string(rest)}, nil
	case TagFail:
		return Response{Kind: KindFail, Payload: string(rest)}, nil
	case TagInfo:
		return Response{Kind: KindInfo, Payload: string(rest)}, nil
	case TagData:
		size, err := parseDataSize(rest)
		if err != nil {
			return Response{}, err
		}
		return Response{Kind: KindData, Size: size}, nil
	default:
		return Response{}, &MalformedResponseError{
			Frame:  cloneBytes(frame),
			Reason: fmt.Sprintf("unknown tag %q", tag),
		}
	}
}

// parseDataSize decodes exactly DataSizeDigits hex digits, either case.
func parseDataSize(field []byte) (uint32, error) {
	if len(field) != DataSizeDigits {
		return 0, &MalformedDataSizeError{Field: string(field)}
	}
	for _, c := range field {
		if !isHexDigit(c) {
			return 0, &MalformedDataSizeError{Field: string(field)}
		}
	}
	size, err := strconv.ParseUint(string(field), 16, 32)
	if err != nil {
		return 0, &MalformedDataSizeError{Field: string(field)}
	}
	return uint32(size), nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// Encode serializes the response into its wire form.
// DATA sizes are written as 8 lowercase hex digits. Payloads are written
// as-is; keeping them within MaxPayloadSize is the sender's job.
func (r Response) Encode() []byte {
	switch r.Kind {
	case KindData:
		return []byte(fmt.Sprintf("%s%08x", TagData, r.Size))
	case KindOkay, KindFail, KindInfo:
		frame := make([]byte, 0, TagSize+len(r.Payload))
		frame = append(frame, r.Kind.String()...)
		return append(frame, r.Payload...)
	default:
		return nil
	}
}

func cloneBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

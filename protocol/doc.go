// Package protocol implements the wire format of the Android fastboot protocol.
//
// This package builds command frames, decodes response frames and routes
// decoded responses by kind. It performs no I/O.
//
// # Protocol Overview
//
// Fastboot is a half-duplex request/reply protocol. The host sends one ASCII
// command and the device answers with one or more 4-byte tagged responses:
//
//	Command:  <verb>[:<arg>]              at most 64 bytes, no NUL
//	Response: OKAY<payload>               terminal, success
//	          FAIL<reason>                terminal, failure
//	          INFO<message>               progress, zero or more
//	          DATA<8 hex digits>          announces a data phase
//
// Payloads are at most 60 bytes and not NUL-terminated.
//
// # Command Builders
//
// Use the Build* functions or EncodeCommand to create commands:
//
//	cmd, err := protocol.BuildGetVarCmd("version")
//	cmd, err := protocol.BuildDownloadCmd(uint32(len(image)))
//	frame, err := cmd.Encode()
//
// Commands longer than MaxCommandSize are rejected with CommandTooLongError.
//
// # Response Parsing
//
// DecodeResponse turns a frame into a Response:
//
//	resp, err := protocol.DecodeResponse(frame)
//	if resp.Kind == protocol.KindData {
//	    fmt.Printf("device expects %d bytes\n", resp.Size)
//	}
//
// Route dispatches a Response to per-kind handlers:
//
//	err = protocol.Route(resp, protocol.Branches{
//	    Okay: onOkay,
//	    Fail: onFail,
//	    Info: onInfo,
//	})
//
// # Error Handling
//
// All codec failures are structured errors matching a sentinel:
//
//	errors.Is(err, protocol.ErrCommandTooLong)
//	errors.Is(err, protocol.ErrMalformedResponse)
//	errors.Is(err, protocol.ErrMalformedDataSize)
//	errors.Is(err, protocol.ErrUnexpectedResponse)
//
// # Reference
//
// For protocol details, see system/core/fastboot/README.md in the Android
// Open Source Project.
package protocol

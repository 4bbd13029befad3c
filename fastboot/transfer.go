package fastboot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-fastboot/protocol"
)

// Result is the outcome of a command the device answered with OKAY.
type Result struct {
	// Payload is the text the device sent after OKAY
	Payload string

	// Info holds the most recent INFO lines received, oldest first
	Info []string

	// InfoDropped counts INFO lines that did not fit in Info
	InfoDropped int

	// Data holds the bytes received during an upload data phase
	Data []byte
}

// direction of the data phase a command may trigger.
type direction int

const (
	dirNone direction = iota
	dirDownload
	dirUpload
)

func (d direction) phase() string {
	if d == dirUpload {
		return PhaseUploading
	}
	return PhaseDownloading
}

// transfer holds the state of one exchange. It never outlives the call that
// created it.
type transfer struct {
	c   *Client
	ctx context.Context

	wire    string
	dir     direction
	payload []byte

	info infoLines

	announced bool
	size      uint32
	moved     int64
	data      []byte

	done  bool
	final string
}

// exchange runs one command to completion:
//  1. Send the command
//  2. Consume INFO lines until DATA, OKAY or FAIL
//  3. On DATA, move exactly the announced number of bytes in dir
//  4. Wait for the terminal OKAY or FAIL
//
// The client lock is held for the whole exchange.
func (c *Client) exchange(ctx context.Context, cmd protocol.Command, dir direction, payload []byte) (*Result, error) {
	frame, err := cmd.Encode()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	tr := &transfer{
		c:       c,
		ctx:     ctx,
		wire:    cmd.String(),
		dir:     dir,
		payload: payload,
		info:    infoLines{max: c.config.MaxInfoLines},
	}
	return tr.run(frame)
}

func (tr *transfer) run(frame []byte) (*Result, error) {
	tr.c.logDebug("send command", "command", tr.wire)

	n, err := tr.send(frame)
	if err != nil {
		return nil, err
	}
	if n != len(frame) {
		return nil, &TransportError{Op: "send", Err: io.ErrShortWrite}
	}

	for !tr.done {
		resp, err := tr.receiveResponse()
		if err != nil {
			return nil, err
		}

		err = protocol.Route(resp, tr.branches())
		if errors.Is(err, protocol.ErrUnexpectedResponse) {
			return nil, tr.violation(fmt.Sprintf("unexpected %s response", resp.Kind), nil)
		}
		if err != nil {
			return nil, err
		}
	}

	lines, dropped := tr.info.snapshot()
	return &Result{
		Payload:     tr.final,
		Info:        lines,
		InfoDropped: dropped,
		Data:        tr.data,
	}, nil
}

// branches returns the responses acceptable in the current state.
// DATA is only acceptable once, and only for commands with a data phase.
func (tr *transfer) branches() protocol.Branches {
	b := protocol.Branches{
		Okay: tr.onOkay,
		Fail: tr.onFail,
		Info: tr.onInfo,
	}
	if tr.dir != dirNone && !tr.announced {
		b.Data = tr.onData
	}
	return b
}

func (tr *transfer) onInfo(msg string) error {
	tr.c.logDebug("info", "command", tr.wire, "message", msg)
	if tr.c.config.InfoCallback != nil {
		tr.c.config.InfoCallback(msg)
	}
	tr.info.add(msg)
	return nil
}

func (tr *transfer) onOkay(payload string) error {
	if err := tr.checkDataPhase(nil); err != nil {
		return err
	}
	if tr.dir != dirNone && !tr.announced {
		return tr.violation("OKAY before data phase", nil)
	}
	tr.done = true
	tr.final = payload
	tr.c.logDebug("okay", "command", tr.wire, "payload", payload)
	return nil
}

func (tr *transfer) onFail(reason string) error {
	lines, _ := tr.info.snapshot()
	fail := &FailError{Command: tr.wire, Reason: reason, Info: lines}
	if err := tr.checkDataPhase(fail); err != nil {
		return err
	}
	tr.done = true
	tr.c.logDebug("fail", "command", tr.wire, "reason", reason)
	return fail
}

// checkDataPhase rejects a terminal response that arrives after a DATA
// announcement whose bytes were not all moved. A device FAIL is kept as
// the violation's cause.
func (tr *transfer) checkDataPhase(cause error) error {
	if tr.announced && tr.moved != int64(tr.size) {
		return tr.violation(fmt.Sprintf("data phase incomplete: moved %d of %d bytes", tr.moved, tr.size), cause)
	}
	return nil
}

func (tr *transfer) onData(size uint32) error {
	tr.announced = true
	tr.size = size
	tr.c.logDebug("data phase", "command", tr.wire, "size", size, "direction", tr.dir.phase())

	switch tr.dir {
	case dirDownload:
		return tr.download()
	case dirUpload:
		return tr.upload()
	default:
		return tr.violation("data phase for command without data", nil)
	}
}

// download sends the caller's buffer in chunks. A send that accepts zero
// bytes ends the phase early; the terminal response then fails checkDataPhase.
func (tr *transfer) download() error {
	if int64(len(tr.payload)) != int64(tr.size) {
		return &SizeMismatchError{Announced: tr.size, Buffer: len(tr.payload)}
	}

	start := time.Now()
	total := int64(tr.size)
	chunk := int64(tr.c.config.ChunkSize)
	for tr.moved < total {
		end := tr.moved + chunk
		if end > total {
			end = total
		}

		n, err := tr.send(tr.payload[tr.moved:end])
		if err != nil {
			return err
		}
		if n == 0 {
			tr.c.logDebug("device stopped accepting data", "command", tr.wire, "moved", tr.moved, "size", total)
			return nil
		}

		tr.moved += int64(n)
		tr.reportProgress(start)
	}
	return nil
}

// upload receives exactly the announced number of bytes into a new buffer.
func (tr *transfer) upload() error {
	start := time.Now()
	total := int64(tr.size)
	chunk := int64(tr.c.config.ChunkSize)
	tr.data = make([]byte, 0, total)
	for tr.moved < total {
		want := total - tr.moved
		if want > chunk {
			want = chunk
		}

		b, err := tr.receive(int(want))
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return &TransportError{Op: "receive", Err: io.ErrNoProgress}
		}

		tr.data = append(tr.data, b...)
		tr.moved += int64(len(b))
		tr.reportProgress(start)
	}
	return nil
}

func (tr *transfer) reportProgress(start time.Time) {
	if tr.c.config.ProgressCallback == nil {
		return
	}
	total := int64(tr.size)
	pct := 100.0
	if total > 0 {
		pct = float64(tr.moved) / float64(total) * 100
	}
	tr.c.config.ProgressCallback(Progress{
		Phase:            tr.dir.phase(),
		BytesTransferred: tr.moved,
		TotalBytes:       total,
		Percentage:       pct,
		ElapsedTime:      time.Since(start),
	})
}

func (tr *transfer) receiveResponse() (protocol.Response, error) {
	frame, err := tr.receive(protocol.MaxResponseSize)
	if err != nil {
		return protocol.Response{}, err
	}

	resp, err := protocol.DecodeResponse(frame)
	if err != nil {
		return protocol.Response{}, tr.violation("undecodable response", err)
	}
	return resp, nil
}

func (tr *transfer) send(p []byte) (int, error) {
	timeout, err := tr.timeout()
	if err != nil {
		return 0, &TransportError{Op: "send", Err: err}
	}

	n, err := tr.c.transport.Send(p, timeout)
	if err != nil {
		return 0, &TransportError{Op: "send", Err: err}
	}
	if n < 0 || n > len(p) {
		return 0, tr.violation(fmt.Sprintf("transport reported %d bytes sent of %d", n, len(p)), nil)
	}
	return n, nil
}

func (tr *transfer) receive(max int) ([]byte, error) {
	timeout, err := tr.timeout()
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}

	b, err := tr.c.transport.Receive(max, timeout)
	if err != nil {
		return nil, &TransportError{Op: "receive", Err: err}
	}
	if len(b) > max {
		return nil, tr.violation(fmt.Sprintf("transport returned %d bytes, asked for at most %d", len(b), max), nil)
	}
	return b, nil
}

// timeout returns the configured per-call timeout, shortened to the
// context deadline when that is sooner.
func (tr *transfer) timeout() (time.Duration, error) {
	if err := tr.ctx.Err(); err != nil {
		return 0, err
	}

	d := tr.c.config.Timeout
	if deadline, ok := tr.ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return 0, context.DeadlineExceeded
		}
		if left < d {
			d = left
		}
	}
	return d, nil
}

func (tr *transfer) violation(reason string, err error) error {
	return &ProtocolViolationError{Command: tr.wire, Reason: reason, Err: err}
}

// infoLines keeps the most recent max INFO lines and counts the rest.
type infoLines struct {
	max     int
	lines   []string
	dropped int
}

func (l *infoLines) add(msg string) {
	if l.max <= 0 {
		l.dropped++
		return
	}
	if len(l.lines) == l.max {
		copy(l.lines, l.lines[1:])
		l.lines = l.lines[:l.max-1]
		l.dropped++
	}
	l.lines = append(l.lines, msg)
}

func (l *infoLines) snapshot() ([]string, int) {
	if len(l.lines) == 0 {
		return nil, l.dropped
	}
	return append([]string(nil), l.lines...), l.dropped
}

// Package fastboottest provides a simulated fastboot device for testing.
//
// Device implements transport.Transport in memory. It parses commands the
// way a bootloader does, keeps variables, a staged download buffer and
// partition contents, and can be scripted to send INFO lines, failures or
// misbehave on purpose.
//
//	dev := fastboottest.NewDevice()
//	dev.SetVar("product", "walleye")
//	client := fastboot.New(dev)
//	product, err := client.GetVar(ctx, "product")
package fastboottest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moffa90/go-fastboot/protocol"
	"github.com/moffa90/go-fastboot/transport"
)

// DefaultMaxDownloadSize is the max-download-size a new Device reports.
const DefaultMaxDownloadSize = 0x10000000

// DefaultPartitions are the partitions a new Device has.
var DefaultPartitions = []string{"boot", "recovery", "system", "vendor", "userdata", "cache"}

// outbound is one item queued for the host: a response frame, or raw bytes
// of an upload data phase.
type outbound struct {
	frame []byte
	raw   []byte
}

// Device is a simulated bootloader. The zero value is not usable; call NewDevice.
type Device struct {
	mu sync.Mutex

	vars       map[string]string
	partitions map[string][]byte
	scripts    map[string][]protocol.Response
	info       map[string][]string

	staged     []byte
	uploadData []byte

	// download data phase in progress
	receiving bool
	expected  int
	incoming  []byte

	out []outbound

	maxTransfer int
	stallAfter  int
	sendErr     error
	receiveErr  error
	closed      bool

	commands   []string
	activeSlot string
	booted     bool
	reboots    int
	continued  bool
}

// NewDevice returns a device in bootloader mode with default variables and
// empty DefaultPartitions.
func NewDevice() *Device {
	d := &Device{
		vars: map[string]string{
			protocol.VarVersion:         protocol.ProtocolVersion,
			protocol.VarVersionBoot:     "sim-1.0",
			protocol.VarProduct:         "simulator",
			protocol.VarSerialNo:        "SIM0001",
			protocol.VarSecure:          "no",
			protocol.VarMaxDownloadSize: fmt.Sprintf("0x%08x", DefaultMaxDownloadSize),
			protocol.VarCurrentSlot:     "a",
			protocol.VarSlotCount:       "2",
		},
		partitions: make(map[string][]byte),
		scripts:    make(map[string][]protocol.Response),
		info:       make(map[string][]string),
		stallAfter: -1,
		activeSlot: "a",
	}
	for _, p := range DefaultPartitions {
		d.partitions[p] = nil
	}
	return d
}

// SetVar sets a variable reported by getvar.
func (d *Device) SetVar(name, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vars[name] = value
}

// DeleteVar removes a variable so getvar fails for it.
func (d *Device) DeleteVar(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.vars, name)
}

// AddPartition creates an empty partition.
func (d *Device) AddPartition(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.partitions[name] = nil
}

// Partition returns the contents of a partition and whether it exists.
func (d *Device) Partition(name string) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.partitions[name]
	return append([]byte(nil), data...), ok
}

// Staged returns the last downloaded buffer.
func (d *Device) Staged() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.staged...)
}

// SetUploadData sets what the next upload command returns.
func (d *Device) SetUploadData(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploadData = append([]byte(nil), data...)
}

// SetInfo makes the device send lines as INFO before answering any command
// with the given verb.
func (d *Device) SetInfo(verb string, lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info[verb] = lines
}

// Script replaces the device's handling of the exact command wire string with
// a fixed sequence of responses. Each scripted command answers once per call.
func (d *Device) Script(command string, responses ...protocol.Response) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripts[command] = responses
}

// SetMaxTransfer caps how many bytes a single Send or Receive moves, the way
// a USB stack caps bulk transfers. Zero means no cap.
func (d *Device) SetMaxTransfer(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.maxTransfer = n
}

// StallDownloadAfter makes the device stop accepting download data after n
// bytes and answer OKAY as if the transfer had finished. Negative disables.
func (d *Device) StallDownloadAfter(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stallAfter = n
}

// FailNextSend makes the next Send return err.
func (d *Device) FailNextSend(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendErr = err
}

// FailNextReceive makes the next Receive return err.
func (d *Device) FailNextReceive(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receiveErr = err
}

// Commands returns every command received, in wire form.
func (d *Device) Commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.commands...)
}

// ActiveSlot returns the slot last set with set_active.
func (d *Device) ActiveSlot() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activeSlot
}

// Booted reports whether a boot or continue command succeeded.
func (d *Device) Booted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.booted || d.continued
}

// Reboots returns how many reboot commands succeeded.
func (d *Device) Reboots() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.reboots
}

// Close makes every later Send and Receive fail with transport.ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Send implements transport.Transport.
func (d *Device) Send(p []byte, timeout time.Duration) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, transport.ErrClosed
	}
	if err := d.sendErr; err != nil {
		d.sendErr = nil
		return 0, err
	}

	if d.receiving {
		return d.acceptData(p), nil
	}

	d.handleCommand(p)
	return len(p), nil
}

// Receive implements transport.Transport. An empty queue is reported as a
// timeout, the way a real device that has nothing to say behaves.
func (d *Device) Receive(max int, timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, transport.ErrClosed
	}
	if err := d.receiveErr; err != nil {
		d.receiveErr = nil
		return nil, err
	}
	if len(d.out) == 0 {
		return nil, fmt.Errorf("no response within %v: %w", timeout, transport.ErrTimeout)
	}

	item := &d.out[0]
	if item.frame != nil {
		frame := item.frame
		d.out = d.out[1:]
		if len(frame) > max {
			frame = frame[:max]
		}
		return frame, nil
	}

	n := d.limit(len(item.raw), max)
	chunk := append([]byte(nil), item.raw[:n]...)
	item.raw = item.raw[n:]
	if len(item.raw) == 0 {
		d.out = d.out[1:]
	}
	return chunk, nil
}

// limit caps n by max and the configured transfer size.
func (d *Device) limit(n, max int) int {
	if n > max {
		n = max
	}
	if d.maxTransfer > 0 && n > d.maxTransfer {
		n = d.maxTransfer
	}
	return n
}

func (d *Device) acceptData(p []byte) int {
	n := d.limit(len(p), d.expected-len(d.incoming))
	if d.stallAfter >= 0 {
		room := d.stallAfter - len(d.incoming)
		if room < 0 {
			room = 0
		}
		if n > room {
			n = room
		}
	}

	d.incoming = append(d.incoming, p[:n]...)

	switch {
	case len(d.incoming) == d.expected:
		d.finishDownload()
	case n == 0:
		// stalled: answer as if the transfer were complete
		d.finishDownload()
	}
	return n
}

func (d *Device) finishDownload() {
	d.receiving = false
	d.staged = d.incoming
	d.incoming = nil
	d.reply(protocol.Okay(""))
}

func (d *Device) reply(responses ...protocol.Response) {
	for _, r := range responses {
		d.out = append(d.out, outbound{frame: r.Encode()})
	}
}

func (d *Device) handleCommand(p []byte) {
	cmd, err := protocol.ParseCommand(p)
	if err != nil {
		d.commands = append(d.commands, string(p))
		d.reply(protocol.Fail("invalid command"))
		return
	}

	wire := cmd.String()
	d.commands = append(d.commands, wire)

	if script, ok := d.scripts[wire]; ok {
		d.reply(script...)
		return
	}

	for _, line := range d.info[firstWord(cmd.Verb)] {
		d.reply(protocol.Info(line))
	}

	switch firstWord(cmd.Verb) {
	case protocol.VerbGetVar:
		d.handleGetVar(cmd.Arg)
	case protocol.VerbDownload:
		d.handleDownload(cmd.Arg)
	case protocol.VerbUpload:
		d.handleUpload()
	case protocol.VerbFlash:
		d.handleFlash(cmd.Arg)
	case protocol.VerbErase:
		d.handleErase(cmd.Arg)
	case protocol.VerbBoot:
		if d.staged == nil {
			d.reply(protocol.Fail("no image downloaded"))
			return
		}
		d.booted = true
		d.reply(protocol.Okay(""))
	case protocol.VerbContinue:
		d.continued = true
		d.reply(protocol.Okay(""))
	case protocol.VerbReboot, protocol.VerbRebootBootloader:
		d.reboots++
		d.reply(protocol.Okay(""))
	case protocol.VerbSetActive:
		if cmd.Arg != "a" && cmd.Arg != "b" {
			d.reply(protocol.Fail("invalid slot"))
			return
		}
		d.activeSlot = cmd.Arg
		d.vars[protocol.VarCurrentSlot] = cmd.Arg
		d.reply(protocol.Okay(""))
	case protocol.VerbOem:
		d.reply(protocol.Info(strings.TrimPrefix(cmd.Verb, protocol.VerbOem+" ")), protocol.Okay(""))
	default:
		d.reply(protocol.Fail("unknown command"))
	}
}

func (d *Device) handleGetVar(name string) {
	if name == protocol.VarAll {
		names := make([]string, 0, len(d.vars))
		for n := range d.vars {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			d.reply(protocol.Info(n + ":" + d.vars[n]))
		}

		parts := make([]string, 0, len(d.partitions))
		for p := range d.partitions {
			parts = append(parts, p)
		}
		sort.Strings(parts)
		for _, p := range parts {
			d.reply(protocol.Info(fmt.Sprintf("partition-size:%s:0x%x", p, len(d.partitions[p]))))
		}
		d.reply(protocol.Okay(""))
		return
	}

	v, ok := d.vars[name]
	if !ok {
		d.reply(protocol.Fail("unknown variable"))
		return
	}
	d.reply(protocol.Okay(v))
}

func (d *Device) handleDownload(arg string) {
	size, err := strconv.ParseUint(arg, 16, 32)
	if err != nil || len(arg) != protocol.DataSizeDigits {
		d.reply(protocol.Fail("invalid download size"))
		return
	}

	maxSize, _ := strconv.ParseUint(strings.TrimPrefix(d.vars[protocol.VarMaxDownloadSize], "0x"), 16, 32)
	if maxSize > 0 && size > maxSize {
		d.reply(protocol.Fail("data too large"))
		return
	}

	d.reply(protocol.Data(uint32(size)))
	d.incoming = make([]byte, 0, size)
	d.expected = int(size)
	if size == 0 {
		d.finishDownload()
		return
	}
	d.receiving = true
}

func (d *Device) handleUpload() {
	if d.uploadData == nil {
		d.reply(protocol.Fail("nothing to upload"))
		return
	}
	d.reply(protocol.Data(uint32(len(d.uploadData))))
	d.out = append(d.out, outbound{raw: append([]byte(nil), d.uploadData...)})
	d.reply(protocol.Okay(""))
}

func (d *Device) handleFlash(partition string) {
	if _, ok := d.partitions[partition]; !ok {
		d.reply(protocol.Fail("partition not found"))
		return
	}
	if d.staged == nil {
		d.reply(protocol.Fail("no image downloaded"))
		return
	}
	d.partitions[partition] = append([]byte(nil), d.staged...)
	d.reply(protocol.Okay(""))
}

func (d *Device) handleErase(partition string) {
	if _, ok := d.partitions[partition]; !ok {
		d.reply(protocol.Fail("partition not found"))
		return
	}
	d.partitions[partition] = nil
	d.reply(protocol.Okay(""))
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

package fastboot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/moffa90/go-fastboot/fastboottest"
	"github.com/moffa90/go-fastboot/protocol"
	"github.com/moffa90/go-fastboot/transport"
)

// MockTransport replays queued frames and records everything sent.
type MockTransport struct {
	sent      [][]byte
	responses [][]byte
	respIdx   int

	// sendLimit caps the bytes accepted per Send; 0 accepts everything
	sendLimit int
	// stallData accepts nothing after the command
	stallData bool

	sendErr    error
	receiveErr error
	timeouts   []time.Duration
	closed     bool
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Send(p []byte, timeout time.Duration) (int, error) {
	m.timeouts = append(m.timeouts, timeout)
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	n := len(p)
	if m.sendLimit > 0 && n > m.sendLimit {
		n = m.sendLimit
	}
	if m.stallData && len(m.sent) > 0 {
		n = 0
	}
	m.sent = append(m.sent, append([]byte(nil), p[:n]...))
	return n, nil
}

func (m *MockTransport) Receive(max int, timeout time.Duration) ([]byte, error) {
	m.timeouts = append(m.timeouts, timeout)
	if m.receiveErr != nil {
		err := m.receiveErr
		m.receiveErr = nil
		return nil, err
	}
	if m.respIdx >= len(m.responses) {
		return nil, fmt.Errorf("mock: %w", transport.ErrTimeout)
	}
	resp := m.responses[m.respIdx]
	m.respIdx++
	if len(resp) > max {
		resp = resp[:max]
	}
	return resp, nil
}

func (m *MockTransport) Close() error {
	m.closed = true
	return nil
}

// AddResponse queues an encoded response frame.
func (m *MockTransport) AddResponse(r protocol.Response) {
	m.responses = append(m.responses, r.Encode())
}

// AddRaw queues raw bytes, used for upload data or malformed frames.
func (m *MockTransport) AddRaw(b []byte) {
	m.responses = append(m.responses, b)
}

// Command returns the first send, which is always the command.
func (m *MockTransport) Command() string {
	if len(m.sent) == 0 {
		return ""
	}
	return string(m.sent[0])
}

// Data joins every send after the command.
func (m *MockTransport) Data() []byte {
	if len(m.sent) < 2 {
		return nil
	}
	return bytes.Join(m.sent[1:], nil)
}

// MockLogger records log messages.
type MockLogger struct {
	debugMsgs []string
	infoMsgs  []string
	errorMsgs []string
}

func (l *MockLogger) Debug(msg string, kv ...interface{}) { l.debugMsgs = append(l.debugMsgs, msg) }
func (l *MockLogger) Info(msg string, kv ...interface{})  { l.infoMsgs = append(l.infoMsgs, msg) }
func (l *MockLogger) Error(msg string, kv ...interface{}) { l.errorMsgs = append(l.errorMsgs, msg) }

func TestNew(t *testing.T) {
	t.Run("nil transport panics", func(t *testing.T) {
		assert.Panics(t, func() { New(nil) })
	})

	t.Run("defaults", func(t *testing.T) {
		c := New(NewMockTransport())
		assert.Equal(t, DefaultTimeout, c.config.Timeout)
		assert.Equal(t, DefaultChunkSize, c.config.ChunkSize)
		assert.Equal(t, DefaultMaxInfoLines, c.config.MaxInfoLines)
	})

	t.Run("options", func(t *testing.T) {
		logger := &MockLogger{}
		c := New(NewMockTransport(),
			WithTimeout(time.Second),
			WithChunkSize(512),
			WithMaxInfoLines(0),
			WithLogger(logger),
		)
		assert.Equal(t, time.Second, c.config.Timeout)
		assert.Equal(t, 512, c.config.ChunkSize)
		assert.Equal(t, 0, c.config.MaxInfoLines)
		assert.Equal(t, logger, c.config.Logger)
	})

	t.Run("invalid options ignored", func(t *testing.T) {
		c := New(NewMockTransport(), WithTimeout(0), WithChunkSize(-1), WithMaxInfoLines(-5))
		assert.Equal(t, DefaultTimeout, c.config.Timeout)
		assert.Equal(t, DefaultChunkSize, c.config.ChunkSize)
		assert.Equal(t, DefaultMaxInfoLines, c.config.MaxInfoLines)
	})
}

func TestGetVar(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Okay("0.4"))
	c := New(m)

	v, err := c.GetVar(context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "0.4", v)
	assert.Equal(t, "getvar:version", m.Command())
	assert.Len(t, m.sent, 1)
}

func TestGetVarIdempotent(t *testing.T) {
	dev := fastboottest.NewDevice()
	c := New(dev)
	ctx := context.Background()

	first, err := c.GetVar(ctx, protocol.VarProduct)
	require.NoError(t, err)
	second, err := c.GetVar(ctx, protocol.VarProduct)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"getvar:product", "getvar:product"}, dev.Commands())
}

func TestGetVarUnknown(t *testing.T) {
	c := New(fastboottest.NewDevice())

	_, err := c.GetVar(context.Background(), "no-such-var")
	require.Error(t, err)
	assert.True(t, IsFailed(err))
	assert.ErrorIs(t, err, ErrFailed)

	var fe *FailError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "getvar:no-such-var", fe.Command)
	assert.Equal(t, "unknown variable", fe.Reason)
}

func TestDownload(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 4096)

	tests := []struct {
		name      string
		chunkSize int
		sendLimit int
		wantSends int
	}{
		{name: "single chunk", chunkSize: DefaultChunkSize, wantSends: 1},
		{name: "client chunks", chunkSize: 1024, wantSends: 4},
		{name: "short writes", chunkSize: DefaultChunkSize, sendLimit: 1000, wantSends: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMockTransport()
			m.sendLimit = tt.sendLimit
			m.AddResponse(protocol.Data(4096))
			m.AddResponse(protocol.Okay(""))
			c := New(m, WithChunkSize(tt.chunkSize))

			err := c.Download(context.Background(), payload)
			require.NoError(t, err)
			assert.Equal(t, "download:00001000", m.Command())
			assert.Len(t, m.sent, 1+tt.wantSends)
			assert.Equal(t, payload, m.Data())
		})
	}
}

func TestDownloadDeviceStalls(t *testing.T) {
	dev := fastboottest.NewDevice()
	dev.StallDownloadAfter(4095)
	c := New(dev)

	err := c.Download(context.Background(), make([]byte, 4096))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocolViolation)

	var pv *ProtocolViolationError
	require.ErrorAs(t, err, &pv)
	assert.Contains(t, pv.Reason, "4095 of 4096")

	// the client is idle again
	v, err := c.GetVar(context.Background(), protocol.VarVersion)
	require.NoError(t, err)
	assert.Equal(t, protocol.ProtocolVersion, v)
}

func TestDownloadFailAfterStall(t *testing.T) {
	m := NewMockTransport()
	m.stallData = true
	m.AddResponse(protocol.Data(8))
	m.AddResponse(protocol.Info("flash write failure"))
	m.AddResponse(protocol.Fail("usb read error"))
	c := New(m)

	err := c.Download(context.Background(), make([]byte, 8))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProtocolViolation)

	var pv *ProtocolViolationError
	require.ErrorAs(t, err, &pv)
	assert.Contains(t, pv.Reason, "0 of 8")

	var fe *FailError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "usb read error", fe.Reason)
	assert.Equal(t, []string{"flash write failure"}, fe.Info)
	assert.Contains(t, err.Error(), "usb read error")
}

func TestDownloadSizeMismatch(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Data(5))
	c := New(m)

	err := c.Download(context.Background(), make([]byte, 10))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	var sm *SizeMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, uint32(5), sm.Announced)
	assert.Equal(t, 10, sm.Buffer)
	assert.Len(t, m.sent, 1, "no data may be sent on mismatch")
}

func TestDownloadEmpty(t *testing.T) {
	dev := fastboottest.NewDevice()
	c := New(dev)

	require.NoError(t, c.Download(context.Background(), nil))
	assert.Equal(t, []string{"download:00000000"}, dev.Commands())
}

func TestDownloadRejected(t *testing.T) {
	dev := fastboottest.NewDevice()
	dev.SetVar(protocol.VarMaxDownloadSize, "0x100")
	c := New(dev)

	err := c.Download(context.Background(), make([]byte, 0x101))
	assert.True(t, IsFailed(err))
	assert.Empty(t, dev.Staged())
}

func TestUpload(t *testing.T) {
	want := []byte("last_kmsg contents\n")
	dev := fastboottest.NewDevice()
	dev.SetUploadData(want)
	dev.SetMaxTransfer(4)
	c := New(dev)

	got, err := c.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUploadNothingStaged(t *testing.T) {
	c := New(fastboottest.NewDevice())
	_, err := c.Upload(context.Background())
	assert.True(t, IsFailed(err))
}

func TestUploadChunks(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Data(6))
	m.AddRaw([]byte("abc"))
	m.AddRaw([]byte("def"))
	m.AddResponse(protocol.Okay(""))
	c := New(m, WithChunkSize(3))

	got, err := c.Upload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), got)
}

func TestUploadEmptyRead(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Data(6))
	m.AddRaw([]byte{})
	c := New(m)

	_, err := c.Upload(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestFlashFailWithInfo(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Info("writing boot"))
	m.AddResponse(protocol.Info("verifying"))
	m.AddResponse(protocol.Fail("partition not found"))

	var seen []string
	c := New(m, WithInfoCallback(func(msg string) { seen = append(seen, msg) }))

	err := c.Flash(context.Background(), "boot")
	require.Error(t, err)

	var fe *FailError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "flash:boot", fe.Command)
	assert.Equal(t, "partition not found", fe.Reason)
	assert.Equal(t, []string{"writing boot", "verifying"}, fe.Info)
	assert.Equal(t, []string{"writing boot", "verifying"}, seen)
	assert.Equal(t, "flash:boot failed: partition not found", fe.Error())
}

func TestFlashAndErase(t *testing.T) {
	dev := fastboottest.NewDevice()
	c := New(dev)
	ctx := context.Background()
	img := []byte("ANDROID!fake boot image")

	require.NoError(t, c.Download(ctx, img))
	require.NoError(t, c.Flash(ctx, "boot"))

	got, ok := dev.Partition("boot")
	require.True(t, ok)
	assert.Equal(t, img, got)

	require.NoError(t, c.Erase(ctx, "boot"))
	got, _ = dev.Partition("boot")
	assert.Empty(t, got)

	err := c.Erase(ctx, "nope")
	assert.True(t, IsFailed(err))
}

func TestSimpleCommands(t *testing.T) {
	dev := fastboottest.NewDevice()
	c := New(dev)
	ctx := context.Background()

	require.NoError(t, c.Download(ctx, []byte("kernel")))
	require.NoError(t, c.Boot(ctx))
	require.NoError(t, c.Reboot(ctx))
	require.NoError(t, c.RebootBootloader(ctx))
	require.NoError(t, c.Continue(ctx))
	require.NoError(t, c.SetActive(ctx, "_b"))

	assert.True(t, dev.Booted())
	assert.Equal(t, 2, dev.Reboots())
	assert.Equal(t, "b", dev.ActiveSlot())
	assert.Equal(t, []string{
		"download:00000006",
		"boot",
		"reboot",
		"reboot-bootloader",
		"continue",
		"set_active:b",
	}, dev.Commands())
}

func TestOem(t *testing.T) {
	dev := fastboottest.NewDevice()
	c := New(dev)

	res, err := c.Oem(context.Background(), "device-info")
	require.NoError(t, err)
	assert.Equal(t, []string{"device-info"}, res.Info)
	assert.Equal(t, []string{"oem device-info"}, dev.Commands())
}

func TestExecute(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Info("hello"))
	m.AddResponse(protocol.Okay("done"))
	c := New(m)

	res, err := c.Execute(context.Background(), "flashing", "unlock")
	require.NoError(t, err)
	assert.Equal(t, "flashing:unlock", m.Command())
	assert.Equal(t, "done", res.Payload)
	assert.Equal(t, []string{"hello"}, res.Info)
	assert.Zero(t, res.InfoDropped)
	assert.Nil(t, res.Data)
}

func TestCommandTooLong(t *testing.T) {
	m := NewMockTransport()
	c := New(m)

	_, err := c.GetVar(context.Background(), strings.Repeat("x", 100))
	require.Error(t, err)
	assert.ErrorIs(t, err, protocol.ErrCommandTooLong)

	var tl *protocol.CommandTooLongError
	require.ErrorAs(t, err, &tl)
	assert.Equal(t, 107, tl.Length)
	assert.Empty(t, m.sent, "nothing may be sent")
	assert.Empty(t, m.timeouts, "no transport call may be made")
}

func TestTimeout(t *testing.T) {
	m := NewMockTransport()
	c := New(m, WithTimeout(50*time.Millisecond))

	_, err := c.GetVar(context.Background(), "version")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, transport.ErrTimeout)
	assert.Equal(t, 50*time.Millisecond, m.timeouts[0])

	// nothing is retried, and the client is usable afterwards
	assert.Len(t, m.sent, 1)
	m.AddResponse(protocol.Okay("0.4"))
	v, err := c.GetVar(context.Background(), "version")
	require.NoError(t, err)
	assert.Equal(t, "0.4", v)
}

func TestTransportErrors(t *testing.T) {
	boom := errors.New("usb: device disconnected")

	t.Run("send", func(t *testing.T) {
		m := NewMockTransport()
		m.sendErr = boom
		_, err := New(m).GetVar(context.Background(), "version")

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "send", te.Op)
		assert.ErrorIs(t, err, boom)
		assert.False(t, IsTimeout(err))
	})

	t.Run("receive", func(t *testing.T) {
		m := NewMockTransport()
		m.receiveErr = boom
		_, err := New(m).GetVar(context.Background(), "version")

		var te *TransportError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, "receive", te.Op)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("short command write", func(t *testing.T) {
		m := NewMockTransport()
		m.sendLimit = 3
		_, err := New(m).GetVar(context.Background(), "version")
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("closed device", func(t *testing.T) {
		dev := fastboottest.NewDevice()
		c := New(dev)
		require.NoError(t, c.Close())
		_, err := c.GetVar(context.Background(), "version")
		assert.ErrorIs(t, err, transport.ErrClosed)
	})
}

func TestContext(t *testing.T) {
	t.Run("cancelled before start", func(t *testing.T) {
		m := NewMockTransport()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := New(m).GetVar(ctx, "version")
		assert.ErrorIs(t, err, ErrTransport)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, m.sent)
	})

	t.Run("deadline shortens timeout", func(t *testing.T) {
		m := NewMockTransport()
		m.AddResponse(protocol.Okay("0.4"))
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		_, err := New(m, WithTimeout(time.Hour)).GetVar(ctx, "version")
		require.NoError(t, err)
		for _, d := range m.timeouts {
			assert.LessOrEqual(t, d, time.Second)
		}
	})

	t.Run("expired deadline is a timeout", func(t *testing.T) {
		m := NewMockTransport()
		ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
		defer cancel()

		_, err := New(m).GetVar(ctx, "version")
		assert.True(t, IsTimeout(err))
	})
}

func TestProtocolViolations(t *testing.T) {
	tests := []struct {
		name      string
		responses [][]byte
		run       func(c *Client) error
		reason    string
	}{
		{
			name:      "data for command without data phase",
			responses: [][]byte{[]byte("DATA00000004")},
			run: func(c *Client) error {
				_, err := c.GetVar(context.Background(), "version")
				return err
			},
			reason: "unexpected DATA response",
		},
		{
			name:      "second data announcement",
			responses: [][]byte{[]byte("DATA00000004"), []byte("DATA00000004")},
			run: func(c *Client) error {
				return c.Download(context.Background(), []byte("abcd"))
			},
			reason: "unexpected DATA response",
		},
		{
			name:      "okay before data phase",
			responses: [][]byte{[]byte("OKAY")},
			run: func(c *Client) error {
				return c.Download(context.Background(), []byte("abcd"))
			},
			reason: "OKAY before data phase",
		},
		{
			name:      "undecodable frame",
			responses: [][]byte{[]byte("HUH?")},
			run: func(c *Client) error {
				_, err := c.GetVar(context.Background(), "version")
				return err
			},
			reason: "undecodable response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMockTransport()
			for _, r := range tt.responses {
				m.AddRaw(r)
			}
			err := tt.run(New(m))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrProtocolViolation)

			var pv *ProtocolViolationError
			require.ErrorAs(t, err, &pv)
			assert.Equal(t, tt.reason, pv.Reason)
		})
	}
}

func TestMalformedResponseUnwraps(t *testing.T) {
	m := NewMockTransport()
	m.AddRaw([]byte("DATAxyz"))

	err := New(m).Download(context.Background(), []byte("a"))
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.ErrorIs(t, err, protocol.ErrMalformedDataSize)
	assert.True(t, protocol.IsCodecError(err))
}

func TestInfoLines(t *testing.T) {
	t.Run("capped to most recent", func(t *testing.T) {
		m := NewMockTransport()
		for i := 0; i < 5; i++ {
			m.AddResponse(protocol.Info(fmt.Sprintf("line %d", i)))
		}
		m.AddResponse(protocol.Okay(""))

		var all []string
		c := New(m, WithMaxInfoLines(2), WithInfoCallback(func(msg string) { all = append(all, msg) }))

		res, err := c.Oem(context.Background(), "dump")
		require.NoError(t, err)
		assert.Equal(t, []string{"line 3", "line 4"}, res.Info)
		assert.Equal(t, 3, res.InfoDropped)
		assert.Len(t, all, 5)
	})

	t.Run("zero keeps none", func(t *testing.T) {
		m := NewMockTransport()
		m.AddResponse(protocol.Info("a"))
		m.AddResponse(protocol.Okay(""))

		res, err := New(m, WithMaxInfoLines(0)).Oem(context.Background(), "dump")
		require.NoError(t, err)
		assert.Nil(t, res.Info)
		assert.Equal(t, 1, res.InfoDropped)
	})

	t.Run("info during data phase wait", func(t *testing.T) {
		m := NewMockTransport()
		m.AddResponse(protocol.Info("preparing"))
		m.AddResponse(protocol.Data(2))
		m.AddResponse(protocol.Info("verifying"))
		m.AddResponse(protocol.Okay(""))

		var seen []string
		c := New(m, WithInfoCallback(func(msg string) { seen = append(seen, msg) }))
		require.NoError(t, c.Download(context.Background(), []byte("hi")))
		assert.Equal(t, []string{"preparing", "verifying"}, seen)
	})
}

func TestInfoLinesAccumulator(t *testing.T) {
	l := infoLines{max: 3}
	for i := 0; i < 10; i++ {
		l.add(fmt.Sprint(i))
	}
	lines, dropped := l.snapshot()
	assert.Equal(t, []string{"7", "8", "9"}, lines)
	assert.Equal(t, 7, dropped)

	empty := infoLines{max: 3}
	lines, dropped = empty.snapshot()
	assert.Nil(t, lines)
	assert.Zero(t, dropped)
}

func TestProgress(t *testing.T) {
	m := NewMockTransport()
	m.AddResponse(protocol.Data(4096))
	m.AddResponse(protocol.Okay(""))

	var updates []Progress
	c := New(m,
		WithChunkSize(1024),
		WithProgressCallback(func(p Progress) { updates = append(updates, p) }),
	)

	require.NoError(t, c.Download(context.Background(), make([]byte, 4096)))
	require.Len(t, updates, 4)
	for i, p := range updates {
		assert.Equal(t, PhaseDownloading, p.Phase)
		assert.Equal(t, int64(1024*(i+1)), p.BytesTransferred)
		assert.Equal(t, int64(4096), p.TotalBytes)
	}
	assert.Equal(t, 100.0, updates[3].Percentage)
}

func TestGetVarAll(t *testing.T) {
	dev := fastboottest.NewDevice()
	dev.SetVar(protocol.VarProduct, "walleye")
	c := New(dev)

	vars, err := c.GetVarAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "walleye", vars[protocol.VarProduct])
	assert.Equal(t, protocol.ProtocolVersion, vars[protocol.VarVersion])
	assert.Equal(t, "0x0", vars["partition-size:boot"])
	assert.Equal(t, []string{"getvar:all"}, dev.Commands())
}

func TestMaxDownloadSize(t *testing.T) {
	tests := []struct {
		value   string
		want    uint32
		wantErr bool
	}{
		{value: "0x10000000", want: 0x10000000},
		{value: "0X200", want: 0x200},
		{value: "8000", want: 0x8000},
		{value: " 0x40 ", want: 0x40},
		{value: "lots", wantErr: true},
		{value: "0x100000000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			m := NewMockTransport()
			m.AddResponse(protocol.Okay(tt.value))

			got, err := New(m).MaxDownloadSize(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFlashImage(t *testing.T) {
	img := bytes.Repeat([]byte{0x5A}, 3000)

	t.Run("success", func(t *testing.T) {
		dev := fastboottest.NewDevice()
		logger := &MockLogger{}
		var phases []string
		c := New(dev,
			WithChunkSize(1000),
			WithLogger(logger),
			WithProgressCallback(func(p Progress) { phases = append(phases, p.Phase) }),
		)

		require.NoError(t, c.FlashImage(context.Background(), "system", img))

		got, _ := dev.Partition("system")
		assert.Equal(t, img, got)
		assert.Equal(t, []string{"getvar:max-download-size", "download:00000bb8", "flash:system"}, dev.Commands())
		assert.Equal(t, []string{
			PhaseDownloading, PhaseDownloading, PhaseDownloading,
			PhaseFlashing, PhaseComplete,
		}, phases)
		assert.Contains(t, logger.infoMsgs, "flash complete")
		assert.NotEmpty(t, logger.debugMsgs)
	})

	t.Run("too large", func(t *testing.T) {
		dev := fastboottest.NewDevice()
		dev.SetVar(protocol.VarMaxDownloadSize, "0x800")
		c := New(dev)

		err := c.FlashImage(context.Background(), "system", img)
		var tl *ImageTooLargeError
		require.ErrorAs(t, err, &tl)
		assert.Equal(t, "system", tl.Partition)
		assert.Equal(t, 3000, tl.Size)
		assert.Equal(t, uint32(0x800), tl.Max)
		assert.Equal(t, []string{"getvar:max-download-size"}, dev.Commands())
	})

	t.Run("device without max-download-size", func(t *testing.T) {
		dev := fastboottest.NewDevice()
		dev.DeleteVar(protocol.VarMaxDownloadSize)
		c := New(dev)

		require.NoError(t, c.FlashImage(context.Background(), "boot", img))
		got, _ := dev.Partition("boot")
		assert.Equal(t, img, got)
	})

	t.Run("flash fails", func(t *testing.T) {
		dev := fastboottest.NewDevice()
		c := New(dev)

		err := c.FlashImage(context.Background(), "nonexistent", img)
		assert.True(t, IsFailed(err))
		assert.Contains(t, err.Error(), "flash nonexistent")
	})
}

func TestConcurrentCallsAreSerialized(t *testing.T) {
	dev := fastboottest.NewDevice()
	c := New(dev)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			v, err := c.GetVar(context.Background(), protocol.VarVersion)
			if err != nil {
				return err
			}
			if v != protocol.ProtocolVersion {
				return fmt.Errorf("got %q", v)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, dev.Commands(), 8)
}

func TestClose(t *testing.T) {
	m := NewMockTransport()
	require.NoError(t, New(m).Close())
	assert.True(t, m.closed)
}

func TestLogrusLogger(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	m := NewMockTransport()
	m.AddResponse(protocol.Okay("0.4"))
	c := New(m, WithLogger(NewLogrusLogger(log)))

	_, err := c.GetVar(context.Background(), "version")
	require.NoError(t, err)

	require.NotEmpty(t, hook.AllEntries())
	first := hook.AllEntries()[0]
	assert.Equal(t, "send command", first.Message)
	assert.Equal(t, logrus.DebugLevel, first.Level)
	assert.Equal(t, "getvar:version", first.Data["command"])

	hook.Reset()
	NewLogrusLogger(log).Error("odd", "key")
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, "key", hook.LastEntry().Data["extra"])
}

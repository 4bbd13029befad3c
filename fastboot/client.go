package fastboot

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/moffa90/go-fastboot/protocol"
	"github.com/moffa90/go-fastboot/transport"
)

// Client is a fastboot session bound to one transport.
// It keeps no protocol state between calls; every method is one complete
// request/reply exchange.
//
// Client is safe for concurrent use: calls are serialized so that at most one
// command is in flight, matching the half-duplex protocol.
type Client struct {
	mu        sync.Mutex
	transport transport.Transport
	config    Config
}

// New creates a new Client that owns t.
// The transport must not be used by anything else while the client exists.
//
// Example:
//
//	t, _ := tcp.Dial("192.168.1.20:5554")
//	client := fastboot.New(t,
//	    fastboot.WithTimeout(10*time.Second),
//	    fastboot.WithProgressCallback(progressFunc),
//	)
func New(t transport.Transport, opts ...Option) *Client {
	if t == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		transport: t,
		config:    cfg,
	}
}

// Close closes the transport if it implements io.Closer.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.transport.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// GetVar reads a bootloader variable and returns its value.
//
// Example:
//
//	version, err := client.GetVar(ctx, protocol.VarVersion)
func (c *Client) GetVar(ctx context.Context, name string) (string, error) {
	cmd, err := protocol.BuildGetVarCmd(name)
	if err != nil {
		return "", err
	}

	res, err := c.exchange(ctx, cmd, dirNone, nil)
	if err != nil {
		return "", err
	}
	return res.Payload, nil
}

// GetVarAll asks the device for every variable. Devices answer with one INFO
// line per variable, formatted "<name>:<value>"; names may themselves contain
// colons (for example "partition-size:boot"), so lines are split at the last
// one. Only as many lines as WithMaxInfoLines allows are kept.
func (c *Client) GetVarAll(ctx context.Context) (map[string]string, error) {
	cmd, err := protocol.BuildGetVarCmd(protocol.VarAll)
	if err != nil {
		return nil, err
	}

	res, err := c.exchange(ctx, cmd, dirNone, nil)
	if err != nil {
		return nil, err
	}

	vars := make(map[string]string, len(res.Info))
	for _, line := range res.Info {
		i := strings.LastIndexByte(line, protocol.ArgSeparator)
		if i <= 0 {
			continue
		}
		vars[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	return vars, nil
}

// MaxDownloadSize returns the largest download the device accepts.
// Devices report the value in hex, with or without a 0x prefix.
func (c *Client) MaxDownloadSize(ctx context.Context) (uint32, error) {
	v, err := c.GetVar(ctx, protocol.VarMaxDownloadSize)
	if err != nil {
		return 0, err
	}

	s := strings.TrimSpace(v)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	size, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", protocol.VarMaxDownloadSize, v, err)
	}
	return uint32(size), nil
}

// Download stages data on the device. The device must answer with a DATA
// announcement of exactly len(data) bytes.
func (c *Client) Download(ctx context.Context, data []byte) error {
	if uint64(len(data)) > math.MaxUint32 {
		return fmt.Errorf("download %d bytes: %w", len(data), ErrPayloadTooLarge)
	}

	cmd, err := protocol.BuildDownloadCmd(uint32(len(data)))
	if err != nil {
		return err
	}

	_, err = c.exchange(ctx, cmd, dirDownload, data)
	return err
}

// Upload reads back the data the device has staged for upload.
func (c *Client) Upload(ctx context.Context) ([]byte, error) {
	cmd, err := protocol.BuildUploadCmd()
	if err != nil {
		return nil, err
	}

	res, err := c.exchange(ctx, cmd, dirUpload, nil)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Flash writes previously downloaded data to partition.
func (c *Client) Flash(ctx context.Context, partition string) error {
	cmd, err := protocol.BuildFlashCmd(partition)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, cmd, dirNone, nil)
	return err
}

// Erase erases partition.
func (c *Client) Erase(ctx context.Context, partition string) error {
	cmd, err := protocol.BuildEraseCmd(partition)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, cmd, dirNone, nil)
	return err
}

// Boot boots the previously downloaded image.
func (c *Client) Boot(ctx context.Context) error {
	return c.simple(ctx, protocol.BuildBootCmd)
}

// Reboot reboots the device.
func (c *Client) Reboot(ctx context.Context) error {
	return c.simple(ctx, protocol.BuildRebootCmd)
}

// RebootBootloader reboots the device back into the bootloader.
func (c *Client) RebootBootloader(ctx context.Context) error {
	return c.simple(ctx, protocol.BuildRebootBootloaderCmd)
}

// Continue resumes the normal boot process.
func (c *Client) Continue(ctx context.Context) error {
	return c.simple(ctx, protocol.BuildContinueCmd)
}

// SetActive marks slot ("a", "b", "_a"...) as the active boot slot.
func (c *Client) SetActive(ctx context.Context, slot string) error {
	cmd, err := protocol.BuildSetActiveCmd(slot)
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, cmd, dirNone, nil)
	return err
}

// Oem runs a vendor-specific command ("oem device-info", "oem unlock"...).
// Vendor commands often report through INFO lines, so the full Result is
// returned.
func (c *Client) Oem(ctx context.Context, args ...string) (*Result, error) {
	cmd, err := protocol.BuildOemCmd(args...)
	if err != nil {
		return nil, err
	}
	return c.exchange(ctx, cmd, dirNone, nil)
}

// Execute sends an arbitrary command that has no data phase and returns the
// full Result. A DATA announcement in reply is a protocol violation; use
// Download or Upload for data-carrying commands.
func (c *Client) Execute(ctx context.Context, verb, arg string) (*Result, error) {
	cmd, err := protocol.NewCommand(verb, arg)
	if err != nil {
		return nil, err
	}
	return c.exchange(ctx, cmd, dirNone, nil)
}

func (c *Client) simple(ctx context.Context, build func() (protocol.Command, error)) error {
	cmd, err := build()
	if err != nil {
		return err
	}
	_, err = c.exchange(ctx, cmd, dirNone, nil)
	return err
}

// FlashImage performs the complete flashing sequence for one partition:
//  1. Query max-download-size and check the image fits
//  2. Download the image
//  3. Flash it to partition
//
// Devices that do not report max-download-size are not size-checked.
//
// Example:
//
//	img, _ := image.Load("boot.img")
//	err := client.FlashImage(ctx, "boot", img.Data)
func (c *Client) FlashImage(ctx context.Context, partition string, data []byte) error {
	startTime := time.Now()

	limit, err := c.MaxDownloadSize(ctx)
	switch {
	case err == nil:
		if limit > 0 && uint64(len(data)) > uint64(limit) {
			return &ImageTooLargeError{Partition: partition, Size: len(data), Max: limit}
		}
	case IsFailed(err):
		c.logDebug("device does not report max-download-size", "error", err)
	default:
		return fmt.Errorf("query max-download-size: %w", err)
	}

	if err := c.Download(ctx, data); err != nil {
		return fmt.Errorf("download %s: %w", partition, err)
	}

	c.reportProgress(Progress{
		Phase:            PhaseFlashing,
		BytesTransferred: int64(len(data)),
		TotalBytes:       int64(len(data)),
		Percentage:       100,
		ElapsedTime:      time.Since(startTime),
	})

	if err := c.Flash(ctx, partition); err != nil {
		return fmt.Errorf("flash %s: %w", partition, err)
	}

	c.reportProgress(Progress{
		Phase:            PhaseComplete,
		BytesTransferred: int64(len(data)),
		TotalBytes:       int64(len(data)),
		Percentage:       100,
		ElapsedTime:      time.Since(startTime),
	})

	c.logInfo("flash complete",
		"partition", partition,
		"bytes", len(data),
		"elapsed", time.Since(startTime).String(),
	)
	return nil
}

// reportProgress calls the progress callback if configured.
func (c *Client) reportProgress(progress Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Client) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}

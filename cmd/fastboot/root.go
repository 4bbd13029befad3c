package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/moffa90/go-fastboot/fastboot"
	"github.com/moffa90/go-fastboot/transport"
	"github.com/moffa90/go-fastboot/transport/tcp"
)

// DialFunc opens a transport to the device at addr.
type DialFunc func(addr string, timeout time.Duration) (transport.Transport, error)

func dialTCP(addr string, timeout time.Duration) (transport.Transport, error) {
	return tcp.Dial(addr, tcp.WithDialTimeout(timeout))
}

// options are the global flags.
type options struct {
	addr      string
	timeout   time.Duration
	chunkSize string
	verbose   int
	progress  bool
}

// app carries what every subcommand needs.
type app struct {
	opts   options
	dial   DialFunc
	log    *logrus.Logger
	stderr io.Writer
}

func newApp() *app {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	return &app{
		dial:   dialTCP,
		log:    log,
		stderr: os.Stderr,
	}
}

func addGlobalFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.addr, "addr", "s", os.Getenv("FASTBOOT_ADDR"), "Device address host[:port] (default port "+tcp.DefaultPort+", env FASTBOOT_ADDR)")
	fs.DurationVar(&o.timeout, "timeout", fastboot.DefaultTimeout, "Timeout for each transfer")
	fs.StringVar(&o.chunkSize, "chunk-size", humanize.IBytes(fastboot.DefaultChunkSize), "Largest piece of a data phase per transfer (e.g. 16KiB, 1MiB)")
	fs.CountVarP(&o.verbose, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	fs.BoolVar(&o.progress, "progress", false, "Show transfer progress")
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fastboot",
		Short: "Talk to Android devices in fastboot mode",
		Long: `fastboot sends fastboot protocol commands to a device in bootloader mode.

The device is reached over TCP; set its address with --addr or FASTBOOT_ADDR.
Every command prints the device's INFO lines as "(bootloader) ..." on stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case a.opts.verbose >= 2:
				a.log.SetLevel(logrus.DebugLevel)
			case a.opts.verbose == 1:
				a.log.SetLevel(logrus.InfoLevel)
			}
			return nil
		},
	}
	addGlobalFlags(root.PersistentFlags(), &a.opts)

	root.AddCommand(
		newGetVarCmd(a),
		newDownloadCmd(a),
		newUploadCmd(a),
		newFlashCmd(a),
		newEraseCmd(a),
		newBootCmd(a),
		newRebootCmd(a),
		newRebootBootloaderCmd(a),
		newContinueCmd(a),
		newSetActiveCmd(a),
		newOemCmd(a),
	)
	return root
}

// clientOptions builds the client configuration from the global flags.
func (a *app) clientOptions() ([]fastboot.Option, error) {
	chunk, err := humanize.ParseBytes(a.opts.chunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid --chunk-size %q: %w", a.opts.chunkSize, err)
	}
	if chunk == 0 || chunk > 1<<30 {
		return nil, fmt.Errorf("invalid --chunk-size %q: must be between 1 byte and 1GiB", a.opts.chunkSize)
	}

	opts := []fastboot.Option{
		fastboot.WithTimeout(a.opts.timeout),
		fastboot.WithChunkSize(int(chunk)),
		fastboot.WithLogger(fastboot.NewLogrusLogger(a.log)),
		fastboot.WithInfoCallback(func(msg string) {
			fmt.Fprintf(a.stderr, "(bootloader) %s\n", msg)
		}),
	}
	if a.opts.progress {
		opts = append(opts, fastboot.WithProgressCallback(a.printProgress))
	}
	return opts, nil
}

func (a *app) printProgress(p fastboot.Progress) {
	fmt.Fprintf(a.stderr, "\r%-11s %s / %s (%.0f%%)",
		p.Phase,
		humanize.IBytes(uint64(p.BytesTransferred)),
		humanize.IBytes(uint64(p.TotalBytes)),
		p.Percentage,
	)
	if p.BytesTransferred >= p.TotalBytes {
		fmt.Fprintln(a.stderr)
	}
}

// withClient connects, runs fn and closes the connection.
func (a *app) withClient(cmd *cobra.Command, fn func(ctx context.Context, c *fastboot.Client) error) error {
	if a.opts.addr == "" {
		return errors.New("no device address: use --addr or FASTBOOT_ADDR")
	}

	opts, err := a.clientOptions()
	if err != nil {
		return err
	}

	a.log.WithField("addr", a.opts.addr).Info("connecting")
	t, err := a.dial(a.opts.addr, a.opts.timeout)
	if err != nil {
		return err
	}

	client := fastboot.New(t, opts...)
	defer func() { _ = client.Close() }()

	return fn(cmd.Context(), client)
}

// step runs one named operation and prints its outcome the way the
// reference fastboot tool does: "<name> OKAY [elapsed]".
func (a *app) step(cmd *cobra.Command, name string, fn func() error) error {
	start := time.Now()
	fmt.Fprintf(cmd.OutOrStdout(), "%-40s", name)
	if err := fn(); err != nil {
		fmt.Fprintln(cmd.OutOrStdout())
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "OKAY [%7.3fs]\n", time.Since(start).Seconds())
	return nil
}

// describe turns an error into the short text printed after FAILED.
func describe(err error) string {
	var fe *fastboot.FailError
	switch {
	case errors.As(err, &fe):
		return fmt.Sprintf("remote: '%s'", fe.Reason)
	case fastboot.IsTimeout(err):
		return fmt.Sprintf("timeout: %v", err)
	default:
		return err.Error()
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-fastboot/fastboot"
	"github.com/moffa90/go-fastboot/image"
	"github.com/moffa90/go-fastboot/protocol"
)

func newGetVarCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "getvar <name>",
		Short: "Display a bootloader variable (\"all\" lists every variable)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				if name == protocol.VarAll {
					vars, err := c.GetVarAll(ctx)
					if err != nil {
						return err
					}
					names := make([]string, 0, len(vars))
					for n := range vars {
						names = append(names, n)
					}
					sort.Strings(names)
					for _, n := range names {
						fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", n, vars[n])
					}
					return nil
				}

				v, err := c.GetVar(ctx, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, v)
				return nil
			})
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download <file>",
		Short: "Stage a file on the device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				name := fmt.Sprintf("Sending '%s' (%s)", args[0], humanize.IBytes(uint64(len(data))))
				return a.step(cmd, name, func() error { return c.Download(ctx, data) })
			})
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Read staged data back from the device into a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				var data []byte
				err := a.step(cmd, "Uploading", func() error {
					var err error
					data, err = c.Upload(ctx)
					return err
				})
				if err != nil {
					return err
				}
				a.log.WithField("bytes", humanize.IBytes(uint64(len(data)))).Info("upload complete")
				return os.WriteFile(args[0], data, 0o644)
			})
		},
	}
}

func newFlashCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flash <partition> <file>",
		Short: "Write an image file to a partition",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			partition, path := args[0], args[1]
			img, err := a.loadImage(path)
			if err != nil {
				return err
			}

			entry := a.log.WithField("format", img.Format.String())
			if img.Sparse != nil {
				entry = entry.WithField("expanded", humanize.IBytes(uint64(img.Sparse.ExpandedSize())))
			}
			if img.Boot != nil {
				entry = entry.WithField("header_version", img.Boot.HeaderVersion)
			}
			entry.Info("loaded image")

			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				name := fmt.Sprintf("Flashing '%s' (%s)", partition, humanize.IBytes(uint64(img.Size())))
				return a.step(cmd, name, func() error { return c.FlashImage(ctx, partition, img.Data) })
			})
		},
	}
}

func newEraseCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "erase <partition>",
		Short: "Erase a partition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				return a.step(cmd, fmt.Sprintf("Erasing '%s'", args[0]), func() error { return c.Erase(ctx, args[0]) })
			})
		},
	}
}

func newBootCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "boot <file>",
		Short: "Download a boot image and boot it without flashing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := a.loadImage(args[0])
			if err != nil {
				return err
			}
			if img.Format != image.FormatBoot {
				a.log.WithField("format", img.Format.String()).Warn("file is not an Android boot image")
			}

			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				name := fmt.Sprintf("Sending '%s' (%s)", args[0], humanize.IBytes(uint64(img.Size())))
				if err := a.step(cmd, name, func() error { return c.Download(ctx, img.Data) }); err != nil {
					return err
				}
				return a.step(cmd, "Booting", func() error { return c.Boot(ctx) })
			})
		},
	}
}

// loadImage reads path and detects its format. A file whose header is
// recognized but cut short is sent as raw bytes with a warning.
func (a *app) loadImage(path string) (*image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := image.Parse(data)
	if errors.Is(err, image.ErrTruncated) {
		a.log.WithError(err).WithField("file", path).Warn("unrecognized image header, sending raw bytes")
		return &image.Image{Format: image.FormatRaw, Data: data}, nil
	}
	return img, err
}

// newSimpleCmd builds a command without arguments that runs one client call.
func newSimpleCmd(a *app, use, short, label string, call func(*fastboot.Client, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				return a.step(cmd, label, func() error { return call(c, ctx) })
			})
		},
	}
}

func newRebootCmd(a *app) *cobra.Command {
	return newSimpleCmd(a, "reboot", "Reboot the device", "Rebooting", (*fastboot.Client).Reboot)
}

func newRebootBootloaderCmd(a *app) *cobra.Command {
	return newSimpleCmd(a, "reboot-bootloader", "Reboot the device back into the bootloader",
		"Rebooting into bootloader", (*fastboot.Client).RebootBootloader)
}

func newContinueCmd(a *app) *cobra.Command {
	return newSimpleCmd(a, "continue", "Continue with the normal boot process", "Resuming boot", (*fastboot.Client).Continue)
}

func newSetActiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set_active <slot>",
		Short: "Mark a slot (a, b) as active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				return a.step(cmd, fmt.Sprintf("Setting current slot to '%s'", args[0]), func() error {
					return c.SetActive(ctx, args[0])
				})
			})
		},
	}
}

func newOemCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "oem <command> [args...]",
		Short: "Run a vendor-specific command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd, func(ctx context.Context, c *fastboot.Client) error {
				return a.step(cmd, "oem "+strings.Join(args, " "), func() error {
					_, err := c.Oem(ctx, args...)
					return err
				})
			})
		},
	}
}

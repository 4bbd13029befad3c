package protocol

import (
	"fmt"
	"strings"
)

// NewCommand validates verb and arg and returns the Command.
// Fails with CommandTooLongError if the encoded form exceeds MaxCommandSize.
func NewCommand(verb, arg string) (Command, error) {
	if verb == "" {
		return Command{}, ErrEmptyVerb
	}
	cmd := Command{Verb: verb, Arg: arg}
	if n := encodedLen(verb, arg); n > MaxCommandSize {
		return Command{}, &CommandTooLongError{Command: cmd.String(), Length: n}
	}
	return cmd, nil
}

// EncodeCommand serializes verb and arg into the bytes sent to the device.
//
// Format:
//
//	<verb>         when arg is empty
//	<verb>:<arg>   otherwise
//
// The result is never truncated; commands longer than MaxCommandSize
// fail with CommandTooLongError.
func EncodeCommand(verb, arg string) ([]byte, error) {
	cmd, err := NewCommand(verb, arg)
	if err != nil {
		return nil, err
	}
	return cmd.Encode()
}

// Encode serializes the command, enforcing the same limits as NewCommand.
func (c Command) Encode() ([]byte, error) {
	if c.Verb == "" {
		return nil, ErrEmptyVerb
	}
	n := encodedLen(c.Verb, c.Arg)
	if n > MaxCommandSize {
		return nil, &CommandTooLongError{Command: c.String(), Length: n}
	}

	frame := make([]byte, 0, n)
	frame = append(frame, c.Verb...)
	if c.Arg != "" {
		frame = append(frame, ArgSeparator)
		frame = append(frame, c.Arg...)
	}
	return frame, nil
}

func encodedLen(verb, arg string) int {
	if arg == "" {
		return len(verb)
	}
	return len(verb) + 1 + len(arg)
}

// ParseCommand splits a received command at the first separator.
// This is the device side of EncodeCommand and is used by simulated devices.
func ParseCommand(frame []byte) (Command, error) {
	if len(frame) == 0 {
		return Command{}, ErrEmptyVerb
	}
	if len(frame) > MaxCommandSize {
		return Command{}, &CommandTooLongError{Command: string(frame), Length: len(frame)}
	}

	s := string(frame)
	verb, arg, _ := strings.Cut(s, string(ArgSeparator))
	if verb == "" {
		return Command{}, ErrEmptyVerb
	}
	return Command{Verb: verb, Arg: arg}, nil
}

// BuildGetVarCmd constructs a "getvar:<name>" command.
func BuildGetVarCmd(name string) (Command, error) {
	if name == "" {
		return Command{}, fmt.Errorf("variable name cannot be empty")
	}
	return NewCommand(VerbGetVar, name)
}

// BuildDownloadCmd constructs a "download:<size>" command.
// The size is always encoded as 8 lowercase hex digits.
func BuildDownloadCmd(size uint32) (Command, error) {
	return NewCommand(VerbDownload, fmt.Sprintf("%08x", size))
}

// BuildUploadCmd constructs an "upload" command.
func BuildUploadCmd() (Command, error) {
	return NewCommand(VerbUpload, "")
}

// BuildFlashCmd constructs a "flash:<partition>" command.
func BuildFlashCmd(partition string) (Command, error) {
	if partition == "" {
		return Command{}, fmt.Errorf("partition cannot be empty")
	}
	return NewCommand(VerbFlash, partition)
}

// BuildEraseCmd constructs an "erase:<partition>" command.
func BuildEraseCmd(partition string) (Command, error) {
	if partition == "" {
		return Command{}, fmt.Errorf("partition cannot be empty")
	}
	return NewCommand(VerbErase, partition)
}

// BuildBootCmd constructs a "boot" command.
func BuildBootCmd() (Command, error) {
	return NewCommand(VerbBoot, "")
}

// BuildRebootCmd constructs a "reboot" command.
func BuildRebootCmd() (Command, error) {
	return NewCommand(VerbReboot, "")
}

// BuildRebootBootloaderCmd constructs a "reboot-bootloader" command.
func BuildRebootBootloaderCmd() (Command, error) {
	return NewCommand(VerbRebootBootloader, "")
}

// BuildContinueCmd constructs a "continue" command.
func BuildContinueCmd() (Command, error) {
	return NewCommand(VerbContinue, "")
}

// BuildSetActiveCmd constructs a "set_active:<slot>" command.
// A leading underscore is accepted and stripped ("_a" and "a" are equivalent).
func BuildSetActiveCmd(slot string) (Command, error) {
	slot = strings.TrimPrefix(slot, "_")
	if slot == "" {
		return Command{}, fmt.Errorf("slot cannot be empty")
	}
	return NewCommand(VerbSetActive, slot)
}

// BuildOemCmd constructs an "oem <args>" command.
// OEM commands separate arguments with spaces rather than the usual colon.
func BuildOemCmd(args ...string) (Command, error) {
	if len(args) == 0 {
		return Command{}, fmt.Errorf("oem command needs at least one argument")
	}
	return NewCommand(VerbOem+" "+strings.Join(args, " "), "")
}

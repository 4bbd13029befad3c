package fastboottest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/moffa90/go-fastboot/transport"
)

// handshake is what the device answers to the host's "FB01".
const handshake = "FB01"

// ServeConn speaks the device side of fastboot over TCP on conn until the
// host disconnects: it answers the handshake, then feeds every
// length-prefixed message to d and writes back whatever d queues.
// It does not close conn.
func (d *Device) ServeConn(conn net.Conn) error {
	hello := make([]byte, len(handshake))
	if _, err := io.ReadFull(conn, hello); err != nil {
		return fmt.Errorf("read handshake: %w", err)
	}
	if string(hello[:2]) != "FB" {
		return fmt.Errorf("bad handshake %q", hello)
	}
	if _, err := io.WriteString(conn, handshake); err != nil {
		return fmt.Errorf("write handshake: %w", err)
	}

	for {
		msg, err := readMessage(conn)
		if isDisconnect(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := d.Send(msg, time.Second); err != nil {
			return err
		}

		for {
			out, err := d.Receive(1<<20, 0)
			if errors.Is(err, transport.ErrTimeout) {
				break
			}
			if err != nil {
				return err
			}
			if err := writeMessage(conn, out); err != nil {
				return err
			}
		}
	}
}

// Serve accepts connections on ln one at a time and serves each with
// ServeConn until ln is closed.
func (d *Device) Serve(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		err = d.ServeConn(conn)
		_ = conn.Close()
		if err != nil {
			return err
		}
	}
}

func isDisconnect(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed)
}

func readMessage(r io.Reader) ([]byte, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	msg := make([]byte, binary.BigEndian.Uint64(hdr[:]))
	_, err := io.ReadFull(r, msg)
	return msg, err
}

func writeMessage(w io.Writer, p []byte) error {
	msg := make([]byte, 8+len(p))
	binary.BigEndian.PutUint64(msg, uint64(len(p)))
	copy(msg[8:], p)
	_, err := w.Write(msg)
	return err
}

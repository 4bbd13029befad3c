// Package fastboot provides a host-side client for the Android fastboot protocol.
//
// # Overview
//
// A Client drives one device over a transport.Transport. Each method is one
// complete exchange:
//   - Sending the command
//   - Collecting INFO lines
//   - Moving the announced bytes when the device answers DATA
//   - Returning on the terminal OKAY or FAIL
//
// # Basic Usage
//
//	// User provides the transport (USB bulk endpoints, TCP, ...)
//	t, err := tcp.Dial("192.168.1.20:5554")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	client := fastboot.New(t)
//	defer client.Close()
//
//	version, err := client.GetVar(ctx, "version")
//
//	img, err := os.ReadFile("boot.img")
//	if err := client.Download(ctx, img); err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Flash(ctx, "boot"); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Options
//
// Customize behavior with functional options:
//
//	client := fastboot.New(t,
//	    fastboot.WithTimeout(30*time.Second),
//	    fastboot.WithChunkSize(16*1024),
//	    fastboot.WithMaxInfoLines(256),
//	    fastboot.WithInfoCallback(func(msg string) { fmt.Println("(bootloader)", msg) }),
//	    fastboot.WithProgressCallback(progressFunc),
//	    fastboot.WithLogger(fastboot.NewLogrusLogger(logrus.StandardLogger())),
//	)
//
// # Timeouts and Cancellation
//
// Every transport call gets the configured timeout, shortened to the context
// deadline when that is sooner. The context is checked before each transport
// call; there is no way to interrupt a call already blocked in the transport
// other than its timeout or closing the transport.
//
// # Error Handling
//
// The package provides structured error types:
//   - FailError: the device answered FAIL (a normal outcome)
//   - ProtocolViolationError: a frame arrived where the protocol forbids it
//   - SizeMismatchError: the device announced a size other than the buffer's
//   - TransportError: the transport failed or timed out
//   - protocol.CommandTooLongError: the command exceeds 64 bytes; nothing is sent
//
// Nothing is retried. After any error the client is idle and may be used again.
//
// # Concurrency
//
// Fastboot is half-duplex. Client serializes its methods so only one command
// is in flight; the transport must not be shared with anything else.
package fastboot

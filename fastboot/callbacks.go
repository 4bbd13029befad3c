package fastboot

import "time"

// Progress phases.
const (
	PhaseDownloading = "downloading"
	PhaseUploading   = "uploading"
	PhaseFlashing    = "flashing"
	PhaseComplete    = "complete"
)

// Progress contains information about a data transfer in flight.
// Passed to ProgressCallback during data phases and by FlashImage.
type Progress struct {
	// Phase describes the current operation phase:
	//   "downloading" - Sending data to the device
	//   "uploading"   - Receiving data from the device
	//   "flashing"    - Waiting for the device to write a partition
	//   "complete"    - Operation completed successfully
	Phase string

	// BytesTransferred is the number of data-phase bytes moved so far
	BytesTransferred int64

	// TotalBytes is the size announced by the device
	TotalBytes int64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the data phase started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every chunk of a data phase.
// Implementations should return quickly; the transfer waits for them.
//
// Example:
//
//	client := fastboot.New(t,
//	    fastboot.WithProgressCallback(func(p fastboot.Progress) {
//	        fmt.Printf("[%s] %.1f%% %d/%d\n",
//	            p.Phase, p.Percentage, p.BytesTransferred, p.TotalBytes)
//	    }),
//	)
type ProgressCallback func(Progress)

// InfoCallback is called for every INFO line as it arrives, before the
// terminal response. Unlike Result.Info it sees every line, however many
// the device sends.
type InfoCallback func(msg string)

// Logger is an optional logging interface that can be provided to the client.
// This allows integration with any logging framework; NewLogrusLogger adapts
// logrus.
//
// Example with standard log package:
//
//	type StdLogger struct{}
//	func (l *StdLogger) Debug(msg string, kv ...interface{}) { log.Println(msg, kv) }
//	func (l *StdLogger) Info(msg string, kv ...interface{})  { log.Println(msg, kv) }
//	func (l *StdLogger) Error(msg string, kv ...interface{}) { log.Println(msg, kv) }
//
//	client := fastboot.New(t, fastboot.WithLogger(&StdLogger{}))
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

package fastboot

import "time"

// Config holds the client configuration.
type Config struct {
	// ProgressCallback is called during data phases (optional)
	ProgressCallback ProgressCallback

	// InfoCallback is called for each INFO line (optional)
	InfoCallback InfoCallback

	// Logger is used to trace exchanges (optional)
	Logger Logger

	// Timeout bounds every single transport send or receive
	Timeout time.Duration

	// ChunkSize is the largest slice of a data phase handed to the
	// transport in one call
	ChunkSize int

	// MaxInfoLines bounds how many INFO lines a Result keeps.
	// The most recent lines are kept; older ones are counted as dropped.
	MaxInfoLines int
}

// Defaults.
const (
	DefaultTimeout      = 5 * time.Second
	DefaultChunkSize    = 1 << 20
	DefaultMaxInfoLines = 1024
)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		ChunkSize:    DefaultChunkSize,
		MaxInfoLines: DefaultMaxInfoLines,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithProgressCallback sets a callback function to track data transfers.
//
// Example:
//
//	client := fastboot.New(t,
//	    fastboot.WithProgressCallback(func(p fastboot.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithInfoCallback sets a callback that sees every INFO line as it arrives.
//
// Example:
//
//	client := fastboot.New(t, fastboot.WithInfoCallback(func(msg string) {
//	    fmt.Println("(bootloader)", msg)
//	}))
func WithInfoCallback(callback InfoCallback) Option {
	return func(c *Config) {
		c.InfoCallback = callback
	}
}

// WithLogger sets a logger for the client operations.
//
// Example:
//
//	client := fastboot.New(t, fastboot.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithTimeout sets the timeout applied to each transport call.
// Non-positive values are ignored.
//
// Example:
//
//	client := fastboot.New(t, fastboot.WithTimeout(30*time.Second))
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithChunkSize sets the largest slice of a data phase passed to the
// transport in one call. Use it when the transport caps single transfers.
// Non-positive values are ignored.
//
// Example:
//
//	client := fastboot.New(t, fastboot.WithChunkSize(16*1024))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithMaxInfoLines bounds how many INFO lines a Result keeps.
// Zero keeps none (use WithInfoCallback to observe them); negative values
// are ignored.
func WithMaxInfoLines(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.MaxInfoLines = n
		}
	}
}

package stats

import "time"

// Config defines configuration for the stats collector
type Config struct {
	InboxBufferSize  int           `toml:"inbox_buffer_size" yaml:"inbox_buffer_size"`
	InboxSendTimeout time.Duration `toml:"inbox_send_timeout" yaml:"inbox_send_timeout"`
}

// DefaultConfig returns default stats collector configuration
func DefaultConfig() Config {
	return Config{
		InboxBufferSize:  64,
		InboxSendTimeout: 5 * time.Second,
	}
}

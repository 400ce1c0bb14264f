package session

import "time"

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultChunkSize    = 1024
)

// Config defines pump timing and transfer sizing.
type Config struct {
	PollInterval time.Duration
	ChunkSize    int
}

func DefaultConfig() Config {
	return Config{
		PollInterval: DefaultPollInterval,
		ChunkSize:    DefaultChunkSize,
	}
}

// WithDefaults fills zero values from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = def.ChunkSize
	}
	return c
}

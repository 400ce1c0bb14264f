package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/trklaunch/internal/protocol/frame"
)

// Framing selects how frames are delimited on the wire.
type Framing string

const (
	FramingAuto   Framing = "auto"
	FramingSerial Framing = "serial"
	FramingRaw    Framing = "raw"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadBuffer  = 4096
	DefaultDialTimeout = 5 * time.Second
	DefaultReplyQueue  = 64
)

func ParseFraming(s string) (Framing, error) {
	switch f := Framing(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FramingAuto:
		return FramingAuto, nil
	case FramingSerial, FramingRaw:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFraming, s)
	}
}

// Resolve picks the frame mode for a connection. Auto uses the serial
// envelope on serial ports and bare delimiters on sockets.
func (f Framing) Resolve(serialPort bool) (frame.Mode, error) {
	switch f {
	case "", FramingAuto:
		if serialPort {
			return frame.ModeSerial, nil
		}
		return frame.ModeRaw, nil
	case FramingSerial:
		return frame.ModeSerial, nil
	case FramingRaw:
		return frame.ModeRaw, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownFraming, string(f))
	}
}

type Config struct {
	Framing     Framing
	BaudRate    int
	ReadBuffer  int
	ReplyQueue  int
	DialTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Framing:     FramingAuto,
		BaudRate:    DefaultBaudRate,
		ReadBuffer:  DefaultReadBuffer,
		ReplyQueue:  DefaultReplyQueue,
		DialTimeout: DefaultDialTimeout,
	}
}

func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.Framing == "" {
		c.Framing = d.Framing
	}
	if c.BaudRate <= 0 {
		c.BaudRate = d.BaudRate
	}
	if c.ReadBuffer <= 0 {
		c.ReadBuffer = d.ReadBuffer
	}
	if c.ReplyQueue <= 0 {
		c.ReplyQueue = d.ReplyQueue
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	return c
}

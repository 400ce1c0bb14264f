package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/danmuck/trklaunch/internal/observability"
	"github.com/danmuck/trklaunch/internal/protocol"
	"github.com/danmuck/trklaunch/internal/protocol/frame"
	"github.com/rs/zerolog"
	"go.bug.st/serial"
)

var (
	ErrEmptyName      = errors.New("transport: empty device name")
	ErrUnknownFraming = errors.New("transport: unknown framing")
	ErrClosed         = errors.New("transport: closed")
)

// Conn is one open connection to a device monitor. Writes are serialized;
// replies arrive on the channel returned by Replies, which is closed when the
// stream ends.
type Conn struct {
	name string
	rw   io.ReadWriteCloser
	mode frame.Mode
	log  zerolog.Logger

	mu      sync.Mutex // protects rw writes
	replies chan frame.Reply

	closeOnce sync.Once
	done      chan struct{}
	closeErr  error
}

// Open connects to name. tcp:// and unix:// names dial a socket, everything
// else opens a serial port at cfg.BaudRate.
func Open(name string, cfg Config, logger zerolog.Logger) (*Conn, error) {
	cfg = cfg.WithDefaults()
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyName
	}

	var (
		rw         io.ReadWriteCloser
		serialPort bool
	)
	switch {
	case strings.HasPrefix(name, "tcp://"):
		conn, err := net.DialTimeout("tcp", strings.TrimPrefix(name, "tcp://"), cfg.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", name, err)
		}
		rw = conn
	case strings.HasPrefix(name, "unix://"):
		conn, err := net.DialTimeout("unix", strings.TrimPrefix(name, "unix://"), cfg.DialTimeout)
		if err != nil {
			return nil, fmt.Errorf("transport: dial %s: %w", name, err)
		}
		rw = conn
	default:
		port, err := serial.Open(name, &serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if err != nil {
			return nil, fmt.Errorf("transport: open %s: %w", name, err)
		}
		rw = port
		serialPort = true
	}

	mode, err := cfg.Framing.Resolve(serialPort)
	if err != nil {
		rw.Close()
		return nil, err
	}
	logger.Info().Str("device", name).Stringer("framing", mode).Msg("connected")
	return NewConn(name, rw, mode, cfg, logger), nil
}

// NewConn wraps an already open stream and starts its read loop.
func NewConn(name string, rw io.ReadWriteCloser, mode frame.Mode, cfg Config, logger zerolog.Logger) *Conn {
	cfg = cfg.WithDefaults()
	c := &Conn{
		name:    name,
		rw:      rw,
		mode:    mode,
		log:     logger.With().Str("device", name).Logger(),
		replies: make(chan frame.Reply, cfg.ReplyQueue),
		done:    make(chan struct{}),
	}
	go c.readLoop(cfg.ReadBuffer)
	return c
}

func (c *Conn) Name() string {
	return c.name
}

func (c *Conn) Mode() frame.Mode {
	return c.mode
}

func (c *Conn) Replies() <-chan frame.Reply {
	return c.replies
}

// Send writes one encoded frame.
func (c *Conn) Send(p []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(p) > 0 {
		n, err := c.rw.Write(p)
		if err != nil {
			return fmt.Errorf("transport: write %s: %w", c.name, err)
		}
		p = p[n:]
	}
	return nil
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeErr = c.rw.Close()
	})
	return c.closeErr
}

func (c *Conn) readLoop(size int) {
	defer close(c.replies)
	dec := frame.NewDecoder(c.mode)
	buf := make([]byte, size)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			c.log.Trace().Str("bytes", protocol.HexDump(buf[:n])).Msg("read")
			replies, derr := dec.Feed(buf[:n])
			if derr != nil {
				observability.RecordAnomaly(observability.AnomalyMalformed)
				c.log.Warn().Err(derr).Int("buffered", dec.Buffered()).Msg("skipped malformed input")
			}
			for _, r := range replies {
				select {
				case c.replies <- r:
				case <-c.done:
					return
				}
			}
		}
		if err != nil {
			select {
			case <-c.done:
			default:
				if errors.Is(err, io.EOF) {
					c.log.Info().Msg("device closed the connection")
				} else {
					c.log.Error().Err(err).Msg("read failed")
				}
			}
			return
		}
	}
}

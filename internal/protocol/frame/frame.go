package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/trklaunch/internal/protocol"
)

const (
	Delimiter byte = 0x7e
	Escape    byte = 0x7d

	escapeMask byte = 0x20

	serialMagic0    byte = 0x01
	serialMagic1    byte = 0x90
	SerialHeaderLen      = 4

	// code, token and checksum
	minBodyLen = 3
)

var (
	ErrFrameTooLarge  = errors.New("frame: frame too large for serial envelope")
	ErrShortFrame     = errors.New("frame: short frame")
	ErrBadEnvelope    = errors.New("frame: bad serial envelope")
	ErrDanglingEscape = errors.New("frame: escape at end of frame")
)

// Mode selects whether frames travel inside the serial envelope.
type Mode int

const (
	// ModeRaw frames are delimited by 0x7e only; the transport keeps message
	// boundaries.
	ModeRaw Mode = iota
	// ModeSerial prefixes every frame with 01 90 <len>.
	ModeSerial
)

func (m Mode) String() string {
	if m == ModeSerial {
		return "serial"
	}
	return "raw"
}

// Reply is one decoded inbound message.
type Reply struct {
	Code        protocol.Code
	Token       byte
	Data        []byte
	DebugOutput bool
	ChecksumOK  bool
}

// Encode frames one message. The checksum makes all unescaped bytes sum to 0xff.
func Encode(code protocol.Code, token byte, payload []byte, mode Mode) ([]byte, error) {
	sum := byte(code) + token
	for _, b := range payload {
		sum += b
	}
	body := make([]byte, 0, len(payload)+minBodyLen)
	body = append(body, byte(code), token)
	body = append(body, payload...)
	body = append(body, 0xff-sum)

	escaped := escape(body)
	frameLen := len(escaped) + 2

	out := make([]byte, 0, frameLen+SerialHeaderLen)
	if mode == ModeSerial {
		if frameLen > 0xffff {
			return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, frameLen)
		}
		out = append(out, serialMagic0, serialMagic1)
		out = binary.BigEndian.AppendUint16(out, uint16(frameLen))
	}
	out = append(out, Delimiter)
	out = append(out, escaped...)
	out = append(out, Delimiter)
	return out, nil
}

// Decode extracts every complete message from buf and returns the bytes that
// do not yet form one. A non-nil error reports malformed input that was
// skipped; the returned replies and remainder stay valid.
func Decode(buf []byte, mode Mode) ([]Reply, []byte, error) {
	var (
		replies []Reply
		errs    []error
	)
	for len(buf) > 0 {
		var (
			r        Reply
			ok       bool
			consumed int
			err      error
		)
		if mode == ModeSerial {
			r, ok, consumed, err = decodeSerial(buf)
		} else {
			r, ok, consumed, err = decodeRaw(buf)
		}
		if err != nil {
			errs = append(errs, err)
		}
		if consumed == 0 {
			break
		}
		buf = buf[consumed:]
		if ok {
			replies = append(replies, r)
		}
	}
	return replies, buf, errors.Join(errs...)
}

func decodeRaw(buf []byte) (Reply, bool, int, error) {
	if buf[0] != Delimiter {
		end := bytes.IndexByte(buf, Delimiter)
		if end == -1 {
			end = len(buf)
		}
		return debugOutput(buf[:end]), true, end, nil
	}
	end := bytes.IndexByte(buf[1:], Delimiter)
	if end == -1 {
		return Reply{}, false, 0, nil
	}
	if end == 0 {
		// back-to-back delimiters: the second one opens the next frame
		return Reply{}, false, 1, nil
	}
	r, err := decodeBody(buf[1 : end+1])
	return r, err == nil, end + 2, err
}

func decodeSerial(buf []byte) (Reply, bool, int, error) {
	if buf[0] != serialMagic0 || (len(buf) > 1 && buf[1] != serialMagic1) {
		return Reply{}, false, 1, fmt.Errorf("%w: unexpected byte 0x%02x", ErrBadEnvelope, buf[0])
	}
	if len(buf) < SerialHeaderLen {
		return Reply{}, false, 0, nil
	}
	n := int(binary.BigEndian.Uint16(buf[2:4]))
	if len(buf) < SerialHeaderLen+n {
		return Reply{}, false, 0, nil
	}
	consumed := SerialHeaderLen + n
	body := buf[SerialHeaderLen:consumed]
	if n == 0 {
		return Reply{}, false, consumed, nil
	}
	if body[0] != Delimiter {
		return debugOutput(body), true, consumed, nil
	}
	if n < 2 || body[n-1] != Delimiter {
		return Reply{}, false, consumed, fmt.Errorf("%w: envelope of %d bytes is not delimited", ErrBadEnvelope, n)
	}
	r, err := decodeBody(body[1 : n-1])
	return r, err == nil, consumed, err
}

func decodeBody(escaped []byte) (Reply, error) {
	body, err := unescape(escaped)
	if err != nil {
		return Reply{}, err
	}
	if len(body) < minBodyLen {
		return Reply{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(body))
	}
	var sum byte
	for _, b := range body {
		sum += b
	}
	data := make([]byte, len(body)-minBodyLen)
	copy(data, body[2:len(body)-1])
	return Reply{
		Code:       protocol.Code(body[0]),
		Token:      body[1],
		Data:       data,
		ChecksumOK: sum == 0xff,
	}, nil
}

func debugOutput(b []byte) Reply {
	data := bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return Reply{Data: data, DebugOutput: true, ChecksumOK: true}
}

func escape(b []byte) []byte {
	out := make([]byte, 0, len(b)+4)
	for _, c := range b {
		if c == Delimiter || c == Escape {
			out = append(out, Escape, c^escapeMask)
			continue
		}
		out = append(out, c)
	}
	return out
}

func unescape(b []byte) ([]byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		c := b[i]
		if c != Escape {
			out = append(out, c)
			continue
		}
		if i+1 == len(b) {
			return nil, ErrDanglingEscape
		}
		i++
		out = append(out, b[i]^escapeMask)
	}
	return out, nil
}

// Decoder accumulates transport bytes across reads and yields whole replies.
type Decoder struct {
	mode Mode
	buf  []byte
}

func NewDecoder(mode Mode) *Decoder {
	return &Decoder{mode: mode}
}

func (d *Decoder) Mode() Mode {
	return d.mode
}

// Feed appends p to the pending bytes and returns every reply now complete.
func (d *Decoder) Feed(p []byte) ([]Reply, error) {
	d.buf = append(d.buf, p...)
	replies, rest, err := Decode(d.buf, d.mode)
	d.buf = append(d.buf[:0], rest...)
	return replies, err
}

// Buffered reports how many bytes wait for the rest of their frame.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

package frame

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/trklaunch/internal/protocol"
	"github.com/danmuck/trklaunch/internal/testutil/testlog"
)

func TestEncodeAckMatchesCapturedSerialFrame(t *testing.T) {
	testlog.Start(t)
	got, err := Encode(protocol.CodeAck, 0x01, []byte{0x00}, ModeSerial)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []byte{0x01, 0x90, 0x00, 0x07, 0x7e, 0x80, 0x01, 0x00, 0x7d, 0x5e, 0x7e}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch: got=%s want=%s", protocol.HexDump(got), protocol.HexDump(want))
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testlog.Start(t)
	payloads := [][]byte{
		nil,
		{0x00},
		{0x00, 0x00, 0x01, 0xb5, 0x00, 0x00, 0x01, 0xb6},
		{0x7e, 0x7d, 0x5e, 0x5d, 0x7e},
		bytes.Repeat([]byte{0xa5}, 1030),
	}
	for _, mode := range []Mode{ModeRaw, ModeSerial} {
		for i, payload := range payloads {
			wire, err := Encode(protocol.CodeCreateItem, byte(i+1), payload, mode)
			if err != nil {
				t.Fatalf("%s encode %d: %v", mode, i, err)
			}
			replies, rest, err := Decode(wire, mode)
			if err != nil {
				t.Fatalf("%s decode %d: %v", mode, i, err)
			}
			if len(rest) != 0 || len(replies) != 1 {
				t.Fatalf("%s decode %d: replies=%d rest=%d", mode, i, len(replies), len(rest))
			}
			r := replies[0]
			if r.Code != protocol.CodeCreateItem || r.Token != byte(i+1) || !bytes.Equal(r.Data, payload) {
				t.Fatalf("%s decode %d: unexpected reply %+v", mode, i, r)
			}
			if !r.ChecksumOK || r.DebugOutput {
				t.Fatalf("%s decode %d: checksum=%v debug=%v", mode, i, r.ChecksumOK, r.DebugOutput)
			}
		}
	}
}

func TestEncodeEscapesDelimiters(t *testing.T) {
	testlog.Start(t)
	wire, err := Encode(protocol.CodeWriteFile, 0x02, []byte{0x7e, 0x7d}, ModeRaw)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	inner := wire[1 : len(wire)-1]
	if bytes.IndexByte(inner, Delimiter) != -1 {
		t.Fatalf("delimiter leaked into frame body: %s", protocol.HexDump(wire))
	}
	if !bytes.Contains(inner, []byte{0x7d, 0x5e, 0x7d, 0x5d}) {
		t.Fatalf("payload not escaped: %s", protocol.HexDump(wire))
	}
}

func TestDecoderKeepsPartialFrames(t *testing.T) {
	testlog.Start(t)
	for _, mode := range []Mode{ModeRaw, ModeSerial} {
		first, _ := Encode(protocol.CodeAck, 0x05, []byte{0x00, 0x01}, mode)
		second, _ := Encode(protocol.CodeNotifyStopped, 0x06, []byte{0x78, 0x6a, 0x40, 0x40}, mode)
		stream := append(append([]byte{}, first...), second...)

		dec := NewDecoder(mode)
		var got []Reply
		for i := 0; i < len(stream); i++ {
			replies, err := dec.Feed(stream[i : i+1])
			if err != nil {
				t.Fatalf("%s feed byte %d: %v", mode, i, err)
			}
			got = append(got, replies...)
			if i == len(first)-2 && len(got) != 0 {
				t.Fatalf("%s: reply emitted before frame completed", mode)
			}
		}
		if len(got) != 2 || got[0].Token != 0x05 || got[1].Code != protocol.CodeNotifyStopped {
			t.Fatalf("%s: unexpected replies %+v", mode, got)
		}
		if dec.Buffered() != 0 {
			t.Fatalf("%s: leftover bytes %d", mode, dec.Buffered())
		}
	}
}

func TestDecodeLeavesTrailingBytes(t *testing.T) {
	testlog.Start(t)
	wire, _ := Encode(protocol.CodeAck, 0x07, []byte{0x00}, ModeSerial)
	replies, rest, err := Decode(wire[:len(wire)-3], ModeSerial)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(replies) != 0 || !bytes.Equal(rest, wire[:len(wire)-3]) {
		t.Fatalf("partial frame consumed: replies=%d rest=%d", len(replies), len(rest))
	}
}

func TestDecodeRawDebugOutput(t *testing.T) {
	testlog.Start(t)
	ack, _ := Encode(protocol.CodeAck, 0x01, []byte{0x00}, ModeRaw)
	stream := append([]byte("hello\r\nworld\r\n"), ack...)
	replies, rest, err := Decode(stream, ModeRaw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rest) != 0 || len(replies) != 2 {
		t.Fatalf("unexpected decode: replies=%d rest=%d", len(replies), len(rest))
	}
	if !replies[0].DebugOutput || string(replies[0].Data) != "hello\nworld\n" {
		t.Fatalf("unexpected debug output: %+v", replies[0])
	}
	if replies[1].DebugOutput || replies[1].Code != protocol.CodeAck {
		t.Fatalf("unexpected ack: %+v", replies[1])
	}
}

func TestDecodeSerialDebugOutput(t *testing.T) {
	testlog.Start(t)
	text := []byte("app says hi\r\n")
	stream := append([]byte{0x01, 0x90, 0x00, byte(len(text))}, text...)
	replies, _, err := Decode(stream, ModeSerial)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(replies) != 1 || !replies[0].DebugOutput || string(replies[0].Data) != "app says hi\n" {
		t.Fatalf("unexpected replies: %+v", replies)
	}
}

func TestDecodeFlagsChecksumMismatch(t *testing.T) {
	testlog.Start(t)
	wire, _ := Encode(protocol.CodeAck, 0x03, []byte{0x00}, ModeRaw)
	wire[3] ^= 0x01
	replies, _, err := Decode(wire, ModeRaw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(replies) != 1 || replies[0].ChecksumOK {
		t.Fatalf("expected checksum mismatch to be flagged: %+v", replies)
	}
}

func TestDecodeSkipsMalformedFrames(t *testing.T) {
	testlog.Start(t)
	good, _ := Encode(protocol.CodeAck, 0x09, []byte{0x00}, ModeRaw)
	stream := append([]byte{Delimiter, 0x80, Delimiter}, good...)
	replies, rest, err := Decode(stream, ModeRaw)
	if !errors.Is(err, ErrShortFrame) {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
	if len(rest) != 0 || len(replies) != 1 || replies[0].Token != 0x09 {
		t.Fatalf("good frame lost: replies=%+v rest=%d", replies, len(rest))
	}
}

func TestDecodeSerialResyncsAfterGarbage(t *testing.T) {
	testlog.Start(t)
	good, _ := Encode(protocol.CodeAck, 0x0a, []byte{0x00}, ModeSerial)
	stream := append([]byte{0xde, 0xad}, good...)
	replies, rest, err := Decode(stream, ModeSerial)
	if !errors.Is(err, ErrBadEnvelope) {
		t.Fatalf("expected ErrBadEnvelope, got %v", err)
	}
	if len(rest) != 0 || len(replies) != 1 || replies[0].Token != 0x0a {
		t.Fatalf("good frame lost: replies=%+v rest=%d", replies, len(rest))
	}
}

func TestDecodeSharedDelimiters(t *testing.T) {
	testlog.Start(t)
	a, _ := Encode(protocol.CodeAck, 0x01, []byte{0x00}, ModeRaw)
	b, _ := Encode(protocol.CodeAck, 0x02, []byte{0x00}, ModeRaw)
	stream := append(append([]byte{}, a...), b...)
	replies, rest, err := Decode(stream, ModeRaw)
	if err != nil || len(rest) != 0 || len(replies) != 2 {
		t.Fatalf("unexpected decode: replies=%d rest=%d err=%v", len(replies), len(rest), err)
	}
}

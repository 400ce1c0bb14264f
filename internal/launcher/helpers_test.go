package launcher

import (
	"bytes"
	"testing"

	"github.com/danmuck/trklaunch/internal/protocol"
	"github.com/danmuck/trklaunch/internal/protocol/frame"
	"github.com/rs/zerolog/log"
)

type recorder struct {
	frames [][]byte
	err    error
	calls  int
}

func (r *recorder) Send(p []byte) error {
	r.calls++
	if r.err != nil {
		return r.err
	}
	r.frames = append(r.frames, bytes.Clone(p))
	return nil
}

func (r *recorder) sent(t *testing.T) []frame.Reply {
	t.Helper()
	out := make([]frame.Reply, 0, len(r.frames))
	for i, f := range r.frames {
		replies, rest, err := frame.Decode(f, frame.ModeRaw)
		if err != nil || len(rest) != 0 || len(replies) != 1 {
			t.Fatalf("frame %d did not decode cleanly: replies=%d rest=%d err=%v", i, len(replies), len(rest), err)
		}
		out = append(out, replies[0])
	}
	return out
}

type hookCounts struct {
	output    [][]byte
	copying   int
	install   int
	starting  int
	running   []uint32
	finished  int
	snapshots int
}

func (h *hookCounts) hooks() Hooks {
	return Hooks{
		ApplicationOutput:   func(b []byte) { h.output = append(h.output, b) },
		CopyingStarted:      func() { h.copying++ },
		InstallingStarted:   func() { h.install++ },
		StartingApplication: func() { h.starting++ },
		ApplicationRunning:  func(pid uint32) { h.running = append(h.running, pid) },
		Finished:            func() { h.finished++ },
		StateChanged:        func(Snapshot) { h.snapshots++ },
	}
}

func newTestLauncher(t *testing.T, cfg Config, hooks Hooks) (*Launcher, *recorder) {
	t.Helper()
	rec := &recorder{}
	cfg.Framing = frame.ModeRaw
	l, err := New(cfg, rec, log.Logger, hooks)
	if err != nil {
		t.Fatalf("new launcher: %v", err)
	}
	return l, rec
}

// transmit pumps once and returns the single frame that went out.
func transmit(t *testing.T, l *Launcher, rec *recorder) frame.Reply {
	t.Helper()
	before := len(rec.frames)
	l.Pump()
	if len(rec.frames) != before+1 {
		t.Fatalf("expected one frame written, got %d", len(rec.frames)-before)
	}
	sent := rec.sent(t)
	return sent[len(sent)-1]
}

func ackFor(sent frame.Reply, data ...byte) frame.Reply {
	if len(data) == 0 {
		data = []byte{0x00}
	}
	return frame.Reply{Code: protocol.CodeAck, Token: sent.Token, Data: data, ChecksumOK: true}
}

func notification(code protocol.Code, token byte, data ...byte) frame.Reply {
	return frame.Reply{Code: code, Token: token, Data: data, ChecksumOK: true}
}

func cannedReply(code protocol.Code) []byte {
	switch code {
	case protocol.CodeSupported:
		mask := make([]byte, 33)
		mask[1] = 0x27 // ping, connect, disconnect, supported
		mask[4] = 0x01 // continue
		return mask
	case protocol.CodeCPUType:
		return []byte{0x00, 0x04, 0x00, 0x00, 0x04, 0x08, 0x0c}
	case protocol.CodeVersions:
		return []byte{0x00, 0x03, 0x00, 0x03, 0x05}
	default:
		return []byte{0x00}
	}
}

// handshake answers the initial ping, connect and the three device queries.
func handshake(t *testing.T, l *Launcher, rec *recorder) {
	t.Helper()
	want := []protocol.Code{
		protocol.CodePing,
		protocol.CodeConnect,
		protocol.CodeSupported,
		protocol.CodeCPUType,
		protocol.CodeVersions,
	}
	for _, code := range want {
		sent := transmit(t, l, rec)
		if sent.Code != code {
			t.Fatalf("handshake: got %s want %s", sent.Code, code)
		}
		l.HandleReply(ackFor(sent, cannedReply(code)...))
	}
}

func queuedCodes(l *Launcher) []protocol.Code {
	var out []protocol.Code
	for _, req := range l.outbox.Peek() {
		out = append(out, req.Code)
	}
	return out
}

func countCode(codes []protocol.Code, code protocol.Code) int {
	n := 0
	for _, c := range codes {
		if c == code {
			n++
		}
	}
	return n
}

func createProcessReply() []byte {
	return []byte{
		0x00,
		0x00, 0x00, 0x01, 0xb5,
		0x00, 0x00, 0x01, 0xb6,
		0x78, 0x67, 0x40, 0x00,
		0x00, 0x40, 0x00, 0x00,
	}
}

package launcher

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/trklaunch/internal/observability"
	"github.com/danmuck/trklaunch/internal/protocol"
	"github.com/danmuck/trklaunch/internal/protocol/frame"
	"github.com/danmuck/trklaunch/internal/protocol/session"
	"github.com/rs/zerolog"
)

// Sender writes encoded frames to the transport.
type Sender interface {
	Send(p []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(p []byte) error

func (f SenderFunc) Send(p []byte) error {
	return f(p)
}

// Result is an acknowledgement joined with the cookie of the request it
// answers.
type Result struct {
	frame.Reply
	Cookie string
}

// Launcher owns one conversation with the device monitor.
type Launcher struct {
	cfg        Config
	out        Sender
	log        zerolog.Logger
	hooks      Hooks
	constraint *semver.Constraints

	tokens session.TokenAllocator
	outbox *session.Outbox
	device Session
	phase  Phase

	pumping  bool
	finished bool
}

func New(cfg Config, out Sender, logger zerolog.Logger, hooks Hooks) (*Launcher, error) {
	if out == nil {
		return nil, ErrNoSender
	}
	cfg = cfg.WithDefaults()
	l := &Launcher{
		cfg:    cfg,
		out:    out,
		log:    logger,
		hooks:  mergeHooks(hooks),
		outbox: session.NewOutbox(),
	}
	if c := strings.TrimSpace(cfg.ProtocolConstraint); c != "" {
		constraint, err := semver.NewConstraint(c)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidConstraint, c, err)
		}
		l.constraint = constraint
	}
	return l, nil
}

func (l *Launcher) Device() Session {
	return l.device
}

func (l *Launcher) Phase() Phase {
	return l.phase
}

func (l *Launcher) Finished() bool {
	return l.finished
}

func (l *Launcher) Snapshot() Snapshot {
	dev := l.device
	dev.Supported = append([]protocol.Code(nil), l.device.Supported...)
	return Snapshot{
		Phase:    l.phase.String(),
		Session:  dev,
		Queued:   l.outbox.Queued(),
		Pending:  l.outbox.Pending(),
		Busy:     l.outbox.Busy(),
		Finished: l.finished,
	}
}

// Pump transmits the head of the queue when no request is in flight. The
// event loop calls it on every tick.
func (l *Launcher) Pump() {
	if !l.pumping {
		return
	}
	req, displaced, ok := l.outbox.Next()
	if !ok {
		return
	}
	if displaced != nil {
		observability.RecordAnomaly(observability.AnomalyDisplacedToken)
		l.log.Warn().
			Uint8("token", req.Token).
			Stringer("dropped", displaced.Code).
			Msg("token reused while still pending")
	}
	l.writeFrame(req.Code, req.Token, req.Data, false)
}

// send allocates a token and queues a request.
func (l *Launcher) send(code protocol.Code, then session.Step, data []byte, cookie string) {
	l.outbox.Enqueue(session.Request{
		Code:   code,
		Token:  l.tokens.Next(),
		Data:   data,
		Cookie: cookie,
		Then:   then,
	})
}

// sendInitialPing queues the token-zero ping that resets the device side
// sequence count.
func (l *Launcher) sendInitialPing() {
	l.outbox.Enqueue(session.Request{
		Code:  protocol.CodePing,
		Token: session.InitialPingToken,
	})
}

// sendAck answers a notification right away. It reuses the notification's
// token and never enters the queue or the pending table.
func (l *Launcher) sendAck(token byte) {
	l.log.Debug().Uint8("token", token).Msg("acknowledging notification")
	l.writeFrame(protocol.CodeAck, token, []byte{0x00}, true)
}

func (l *Launcher) writeFrame(code protocol.Code, token byte, data []byte, bypass bool) {
	wire, err := frame.Encode(code, token, data, l.cfg.Framing)
	if err != nil {
		observability.RecordAnomaly(observability.AnomalyWriteFailed)
		l.log.Error().Err(err).Stringer("code", code).Uint8("token", token).Msg("encode failed")
		return
	}
	l.log.Trace().Str("bytes", protocol.HexDump(wire)).Msg("write")
	if err := l.out.Send(wire); err != nil {
		observability.RecordAnomaly(observability.AnomalyWriteFailed)
		l.log.Error().Err(err).Stringer("code", code).Uint8("token", token).Msg("write failed")
		return
	}
	observability.RecordFrameSent(code.String(), bypass)
}

func (l *Launcher) setPhase(p Phase) {
	if l.phase == p {
		return
	}
	l.log.Debug().Stringer("from", l.phase).Stringer("to", p).Msg("phase")
	l.phase = p
}

func (l *Launcher) publish() {
	l.hooks.StateChanged(l.Snapshot())
}

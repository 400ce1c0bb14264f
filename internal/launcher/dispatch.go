package launcher

import (
	"github.com/danmuck/trklaunch/internal/observability"
	"github.com/danmuck/trklaunch/internal/protocol"
	"github.com/danmuck/trklaunch/internal/protocol/frame"
	"github.com/danmuck/trklaunch/internal/protocol/session"
)

// Item type marker carried in created/deleted notifications.
const itemTypeProcess byte = 0

// HandleReply runs the dispatcher for one decoded inbound message.
func (l *Launcher) HandleReply(r frame.Reply) {
	class := protocol.Classify(r.Code)
	if r.DebugOutput {
		class = protocol.ClassDebugOutput
	}
	observability.RecordReply(class.String())

	if class == protocol.ClassDebugOutput {
		l.log.Debug().Str("text", string(r.Data)).Msg("application output")
		l.hooks.ApplicationOutput(r.Data)
		return
	}

	l.log.Trace().
		Stringer("code", r.Code).
		Uint8("token", r.Token).
		Str("data", protocol.HexDump(r.Data)).
		Msg("read")
	if !r.ChecksumOK {
		observability.RecordAnomaly(observability.AnomalyChecksum)
		l.log.Warn().Stringer("code", r.Code).Uint8("token", r.Token).Msg("checksum mismatch")
	}

	switch class {
	case protocol.ClassAcknowledge:
		l.handleAck(r)
	case protocol.ClassNegativeAcknowledge:
		l.handleNak(r)
	case protocol.ClassCreated:
		l.handleCreated(r)
	case protocol.ClassDeleted:
		l.handleDeleted(r)
	case protocol.ClassStopped:
		l.handleStopped(r)
	case protocol.ClassException, protocol.ClassInternalError,
		protocol.ClassProcessorStarted, protocol.ClassProcessorStandby, protocol.ClassProcessorReset:
		l.log.Info().Stringer("note", class).Str("data", protocol.HexDump(r.Data)).Msg("device notification")
		l.sendAck(r.Token)
	default:
		observability.RecordAnomaly(observability.AnomalyUnrecognized)
		l.log.Warn().
			Stringer("code", r.Code).
			Uint8("token", r.Token).
			Str("data", protocol.HexDump(r.Data)).
			Msg("unrecognized message")
	}
}

func (l *Launcher) handleAck(r frame.Reply) {
	l.outbox.Release()
	if code := protocol.ErrorCode(r.Data); code != 0 {
		observability.RecordAnomaly(observability.AnomalyDeviceError)
		l.log.Warn().
			Uint8("token", r.Token).
			Uint8("err_code", code).
			Str("err", protocol.DeviceErrorText(code)).
			Msg("ack carries device error")
	}
	req, ok := l.outbox.Take(r.Token)
	if !ok {
		observability.RecordAnomaly(observability.AnomalyUnknownToken)
		l.log.Warn().Uint8("token", r.Token).Msg("ack for unknown token")
		return
	}
	res := Result{Reply: r, Cookie: req.Cookie}
	if req.Then != session.StepNone {
		l.resume(req.Then, res)
		return
	}
	if req.Cookie != "" {
		l.log.Debug().
			Str("cookie", req.Cookie).
			Str("data", protocol.HexDump(r.Data)).
			Msg("handled")
	}
}

func (l *Launcher) handleNak(r frame.Reply) {
	l.outbox.Release()
	code := protocol.ErrorCode(r.Data)
	observability.RecordAnomaly(observability.AnomalyNak)
	ev := l.log.Warn().
		Uint8("token", r.Token).
		Uint8("err_code", code).
		Str("err", protocol.DeviceErrorText(code))
	if req, ok := l.outbox.Take(r.Token); ok {
		ev = ev.Stringer("request", req.Code)
	}
	ev.Msg("device rejected request")
}

func (l *Launcher) handleStopped(r frame.Reply) {
	ev := l.log.Info().Uint8("token", r.Token)
	if len(r.Data) >= 4 {
		ev = ev.Hex("addr", r.Data[0:4])
	}
	if pid, err := protocol.ExtractUint32(r.Data, 4); err == nil {
		ev = ev.Uint32("pid", pid)
	}
	if tid, err := protocol.ExtractUint32(r.Data, 8); err == nil {
		ev = ev.Uint32("tid", tid)
	}
	ev.Msg("device stopped")
	l.sendAck(r.Token)
}

// handleCreated keeps the process running after a created notification. The
// device expects a continue request here, not an acknowledgement.
func (l *Launcher) handleCreated(r frame.Reply) {
	ev := l.log.Debug().Uint8("token", r.Token)
	if len(r.Data) >= 2 {
		ev = ev.Uint8("type", r.Data[1])
	}
	if pid, err := protocol.ExtractUint32(r.Data, 2); err == nil {
		ev = ev.Uint32("pid", pid)
	}
	if codeseg, err := protocol.ExtractUint32(r.Data, 10); err == nil {
		ev = ev.Uint32("code_segment", codeseg)
	}
	if n, err := protocol.ExtractUint16(r.Data, 18); err == nil && len(r.Data) >= 20+int(n) {
		ev = ev.Str("name", string(r.Data[20:20+int(n)]))
	}
	ev.Msg("item created")
	l.continueProcess()
}

func (l *Launcher) handleDeleted(r frame.Reply) {
	if len(r.Data) < 2 {
		l.log.Warn().Uint8("token", r.Token).Msg("deleted notification without item type")
		l.sendAck(r.Token)
		return
	}
	itemType := r.Data[1]
	kind := "library"
	if itemType == itemTypeProcess {
		kind = "process"
	}
	ev := l.log.Info().Uint8("token", r.Token).Str("item", kind)
	if n, err := protocol.ExtractUint16(r.Data, 10); err == nil && len(r.Data) >= 12+int(n) && n > 0 {
		ev = ev.Str("name", string(r.Data[12:12+int(n)]))
	}
	ev.Msg("item unloaded")

	l.sendAck(r.Token)
	if itemType == itemTypeProcess {
		l.setPhase(PhaseTerminating)
		l.send(protocol.CodeDisconnect, stepWaitForFinished, nil, "")
	}
}

// continueProcess queues a continue for the current process and thread.
func (l *Launcher) continueProcess() {
	data := protocol.AppendUint32(nil, l.device.PID)
	data = protocol.AppendUint32(data, l.device.TID)
	l.send(protocol.CodeContinue, session.StepNone, data, "CONTINUE")
}

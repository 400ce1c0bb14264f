package launcher

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/danmuck/trklaunch/internal/observability"
	"github.com/danmuck/trklaunch/internal/protocol"
	"github.com/danmuck/trklaunch/internal/protocol/session"
)

// Continuations resumed when the matching request is acknowledged.
const (
	stepSupportMask session.Step = iota + 1
	stepCPUType
	stepVersions
	stepFileOpened
	stepFileClosed
	stepInstalled
	stepProcessCreated
	stepWaitForFinished
	stepFinished
)

const (
	openFileModeWrite byte = 0x10
	installSilently   byte = 'C'
	supportMaskBytes       = 32
)

func (l *Launcher) resume(step session.Step, res Result) {
	switch step {
	case stepSupportMask:
		l.handleSupportMask(res)
	case stepCPUType:
		l.handleCPUType(res)
	case stepVersions:
		l.handleVersions(res)
	case stepFileOpened:
		l.handleFileOpened(res)
	case stepFileClosed:
		l.installAndRun()
	case stepInstalled:
		l.startInferiorIfNeeded()
	case stepProcessCreated:
		l.handleProcessCreated(res)
	case stepWaitForFinished:
		l.send(protocol.CodePing, stepFinished, nil, "")
	case stepFinished:
		l.handleFinished(res)
	default:
		l.log.Error().Uint8("step", uint8(step)).Msg("unknown continuation")
	}
}

// Start queues the handshake and the rest of the configured workflow, then
// lets Pump begin transmitting.
func (l *Launcher) Start() {
	l.log.Debug().
		Str("executable", l.cfg.Executable).
		Str("copy_src", l.cfg.CopySource).
		Str("copy_dst", l.cfg.CopyDestination).
		Str("install", l.cfg.InstallPackage).
		Stringer("framing", l.cfg.Framing).
		Msg("starting")
	l.pumping = true
	l.setPhase(PhaseConnecting)
	l.sendInitialPing()
	l.send(protocol.CodeConnect, session.StepNone, nil, "")
	l.send(protocol.CodeSupported, stepSupportMask, nil, "")
	l.send(protocol.CodeCPUType, stepCPUType, nil, "")
	l.send(protocol.CodeVersions, stepVersions, nil, "")
	if l.cfg.Executable == "" {
		l.setPhase(PhaseProbing)
		return
	}
	if l.cfg.CopySource != "" && l.cfg.CopyDestination != "" {
		l.copyFileToRemote()
		return
	}
	l.installAndRun()
}

// Terminate deletes the running process and finishes once the device confirms.
func (l *Launcher) Terminate() {
	data := protocol.AppendUint16(nil, 0)
	data = protocol.AppendUint32(data, l.device.PID)
	l.setPhase(PhaseTerminating)
	l.send(protocol.CodeDeleteItem, stepWaitForFinished, data, "")
}

// CleanUp deletes the running process without waiting for the outcome.
func (l *Launcher) CleanUp() {
	data := []byte{0x00, 0x00}
	data = protocol.AppendUint32(data, l.device.PID)
	l.send(protocol.CodeDeleteItem, session.StepNone, data, "Delete process")
}

func (l *Launcher) handleSupportMask(res Result) {
	mask := res.Data
	if len(mask) > 0 {
		mask = mask[1:]
	}
	if len(mask) > supportMaskBytes {
		mask = mask[:supportMaskBytes]
	}
	supported := make([]protocol.Code, 0, 32)
	var sb strings.Builder
	for i, b := range mask {
		for j := 0; j < 8; j++ {
			if b&(1<<j) == 0 {
				continue
			}
			code := protocol.Code(i*8 + j)
			supported = append(supported, code)
			if sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%02x", byte(code))
		}
	}
	l.device.Supported = supported
	l.log.Debug().Str("codes", sb.String()).Msg("supported")
}

func (l *Launcher) handleCPUType(res Result) {
	d := res.Data
	if len(d) < 7 {
		l.log.Warn().Int("len", len(d)).Msg("short cpu type reply")
		return
	}
	l.device.CPUMajor = d[1]
	l.device.CPUMinor = d[2]
	l.device.BigEndian = d[3] != 0
	l.device.DefaultTypeSize = d[4]
	l.device.FPTypeSize = d[5]
	l.device.ExtendedTypeSize = d[6]
	l.log.Debug().
		Uint8("major", d[1]).
		Uint8("minor", d[2]).
		Str("endian", l.device.Endianness()).
		Msg("cpu type")
}

func (l *Launcher) handleVersions(res Result) {
	d := res.Data
	if len(d) < 5 {
		l.log.Warn().Int("len", len(d)).Msg("short versions reply")
		return
	}
	l.device.MonitorMajor = d[1]
	l.device.MonitorMinor = d[2]
	l.device.ProtocolMajor = d[3]
	l.device.ProtocolMinor = d[4]
	l.checkProtocolVersion()

	if l.cfg.Executable != "" {
		return
	}
	s := l.device
	l.log.Info().
		Str("cpu", fmt.Sprintf("%d.%d", s.CPUMajor, s.CPUMinor)).
		Str("endian", s.Endianness()).
		Uint8("type_size", s.DefaultTypeSize).
		Uint8("float_size", s.FPTypeSize).
		Str("monitor", s.MonitorVersion()).
		Str("protocol", s.ProtocolVersion()).
		Msg("device")
	l.send(protocol.CodePing, stepWaitForFinished, nil, "")
}

func (l *Launcher) checkProtocolVersion() {
	if l.constraint == nil {
		return
	}
	v, err := semver.NewVersion(l.device.ProtocolVersion())
	if err != nil {
		l.log.Warn().Err(err).Str("protocol", l.device.ProtocolVersion()).Msg("unparsable protocol version")
		return
	}
	if !l.constraint.Check(v) {
		l.log.Warn().
			Str("protocol", v.String()).
			Str("constraint", l.constraint.String()).
			Msg("device protocol outside supported range")
	}
}

func (l *Launcher) copyFileToRemote() {
	l.hooks.CopyingStarted()
	l.setPhase(PhaseTransferring)
	data, err := protocol.AppendString([]byte{openFileModeWrite}, []byte(l.cfg.CopyDestination), false)
	if err != nil {
		l.log.Error().Err(err).Str("dst", l.cfg.CopyDestination).Msg("cannot encode destination")
		return
	}
	l.send(protocol.CodeOpenFile, stepFileOpened, data, "")
}

// handleFileOpened queues the whole file as write requests followed by one
// close. Individual writes carry no continuation, so a failed chunk only
// shows up as a logged ack error.
func (l *Launcher) handleFileOpened(res Result) {
	handle, err := protocol.ExtractUint32(res.Data, 2)
	if err != nil {
		l.log.Error().Err(err).Msg("open file reply without handle")
		return
	}
	src, err := l.cfg.ReadFile(l.cfg.CopySource)
	if err != nil {
		l.log.Error().Err(err).Str("src", l.cfg.CopySource).Msg("cannot read copy source")
		l.send(protocol.CodeCloseFile, session.StepNone, l.closeFilePayload(handle), "")
		return
	}
	chunkSize := l.cfg.Session.ChunkSize
	chunks := 0
	for pos := 0; pos < len(src); pos += chunkSize {
		end := min(pos+chunkSize, len(src))
		data := protocol.AppendUint32(nil, handle)
		data, err = protocol.AppendString(data, src[pos:end], false)
		if err != nil {
			l.log.Error().Err(err).Int("offset", pos).Msg("cannot encode chunk")
			return
		}
		l.send(protocol.CodeWriteFile, session.StepNone, data, "")
		chunks++
	}
	observability.RecordFileBytes(len(src))
	l.log.Debug().
		Str("src", l.cfg.CopySource).
		Int("bytes", len(src)).
		Int("chunks", chunks).
		Msg("file queued")
	l.send(protocol.CodeCloseFile, stepFileClosed, l.closeFilePayload(handle), "")
}

func (l *Launcher) closeFilePayload(handle uint32) []byte {
	data := protocol.AppendUint32(nil, handle)
	return protocol.AppendUint32(data, uint32(l.cfg.Now().Unix()))
}

func (l *Launcher) installAndRun() {
	if l.cfg.InstallPackage == "" {
		l.startInferiorIfNeeded()
		return
	}
	l.hooks.InstallingStarted()
	l.setPhase(PhaseInstalling)
	data, err := protocol.AppendString([]byte{installSilently}, []byte(l.cfg.InstallPackage), false)
	if err != nil {
		l.log.Error().Err(err).Str("package", l.cfg.InstallPackage).Msg("cannot encode package path")
		return
	}
	l.send(protocol.CodeInstallFile, stepInstalled, data, "")
}

func (l *Launcher) startInferiorIfNeeded() {
	l.hooks.StartingApplication()
	if l.device.PID != 0 {
		l.log.Info().Uint32("pid", l.device.PID).Msg("process already started")
		return
	}
	l.setPhase(PhaseStarting)
	data, err := protocol.AppendString([]byte{0x00, 0x00, 0x00}, []byte(l.cfg.Executable), true)
	if err != nil {
		l.log.Error().Err(err).Str("executable", l.cfg.Executable).Msg("cannot encode executable path")
		return
	}
	l.send(protocol.CodeCreateItem, stepProcessCreated, data, "")
}

func (l *Launcher) handleProcessCreated(res Result) {
	d := res.Data
	if len(d) < 17 {
		l.log.Error().Str("data", protocol.HexDump(d)).Msg("short create process reply")
		return
	}
	l.device.PID, _ = protocol.ExtractUint32(d, 1)
	l.device.TID, _ = protocol.ExtractUint32(d, 5)
	l.device.CodeSegment, _ = protocol.ExtractUint32(d, 9)
	l.device.DataSegment, _ = protocol.ExtractUint32(d, 13)
	l.setPhase(PhaseRunning)
	l.log.Info().
		Uint32("pid", l.device.PID).
		Uint32("tid", l.device.TID).
		Str("code", fmt.Sprintf("0x%x", l.device.CodeSegment)).
		Str("data", fmt.Sprintf("0x%x", l.device.DataSegment)).
		Msg("process created")
	l.hooks.ApplicationRunning(l.device.PID)
	l.continueProcess()
}

func (l *Launcher) handleFinished(res Result) {
	l.log.Debug().Str("data", protocol.HexDump(res.Data)).Msg("finished")
	l.pumping = false
	l.finished = true
	l.setPhase(PhaseFinished)
	l.hooks.Finished()
}

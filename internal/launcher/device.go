package launcher

import (
	"fmt"

	"github.com/danmuck/trklaunch/internal/protocol"
)

// Session describes the connected device and the process started on it. It is
// filled in as handshake replies arrive and lives until the connection ends.
type Session struct {
	PID         uint32 `json:"pid"`
	TID         uint32 `json:"tid"`
	CodeSegment uint32 `json:"code_segment"`
	DataSegment uint32 `json:"data_segment"`

	CPUMajor         byte `json:"cpu_major"`
	CPUMinor         byte `json:"cpu_minor"`
	BigEndian        bool `json:"big_endian"`
	DefaultTypeSize  byte `json:"default_type_size"`
	FPTypeSize       byte `json:"fp_type_size"`
	ExtendedTypeSize byte `json:"extended_type_size"`

	MonitorMajor  byte `json:"monitor_major"`
	MonitorMinor  byte `json:"monitor_minor"`
	ProtocolMajor byte `json:"protocol_major"`
	ProtocolMinor byte `json:"protocol_minor"`

	Supported []protocol.Code `json:"supported,omitempty"`
}

func (s Session) Endianness() string {
	if s.BigEndian {
		return "big endian"
	}
	return "little endian"
}

func (s Session) MonitorVersion() string {
	return fmt.Sprintf("%d.%d", s.MonitorMajor, s.MonitorMinor)
}

func (s Session) ProtocolVersion() string {
	return fmt.Sprintf("%d.%d", s.ProtocolMajor, s.ProtocolMinor)
}

// Supports reports whether the device advertised code in its support mask.
func (s Session) Supports(code protocol.Code) bool {
	for _, c := range s.Supported {
		if c == code {
			return true
		}
	}
	return false
}

// Phase is the workflow step most recently scheduled.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseProbing
	PhaseTransferring
	PhaseInstalling
	PhaseStarting
	PhaseRunning
	PhaseTerminating
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseProbing:
		return "probing"
	case PhaseTransferring:
		return "transferring"
	case PhaseInstalling:
		return "installing"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseTerminating:
		return "terminating"
	case PhaseFinished:
		return "finished"
	default:
		return "idle"
	}
}

// Snapshot is a copy of launcher state safe to hand to other goroutines.
type Snapshot struct {
	Phase    string  `json:"phase"`
	Session  Session `json:"session"`
	Queued   int     `json:"queued"`
	Pending  int     `json:"pending"`
	Busy     bool    `json:"busy"`
	Finished bool    `json:"finished"`
}

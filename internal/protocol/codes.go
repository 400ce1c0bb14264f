package protocol

import "fmt"

// Code selects the operation or notification kind of one message.
type Code byte

// Host -> device operations.
const (
	CodePing        Code = 0x00
	CodeConnect     Code = 0x01
	CodeDisconnect  Code = 0x02
	CodeVersions    Code = 0x04
	CodeSupported   Code = 0x05
	CodeCPUType     Code = 0x06
	CodeContinue    Code = 0x18
	CodeCreateItem  Code = 0x40
	CodeDeleteItem  Code = 0x41
	CodeWriteFile   Code = 0x48
	CodeOpenFile    Code = 0x4a
	CodeCloseFile   Code = 0x4b
	CodeInstallFile Code = 0x4d
)

// Device -> host replies and notifications.
const (
	CodeAck                  Code = 0x80
	CodeNak                  Code = 0xff
	CodeNotifyStopped        Code = 0x90
	CodeNotifyException      Code = 0x91
	CodeNotifyInternalError  Code = 0x92
	CodeNotifyCreated        Code = 0xa0
	CodeNotifyDeleted        Code = 0xa1
	CodeNotifyProcessorStart Code = 0xa2
	CodeNotifyProcessorIdle  Code = 0xa6
	CodeNotifyProcessorReset Code = 0xa7
)

var codeNames = map[Code]string{
	CodePing:                 "ping",
	CodeConnect:              "connect",
	CodeDisconnect:           "disconnect",
	CodeVersions:             "versions",
	CodeSupported:            "supported",
	CodeCPUType:              "cpu_type",
	CodeContinue:             "continue",
	CodeCreateItem:           "create_item",
	CodeDeleteItem:           "delete_item",
	CodeWriteFile:            "write_file",
	CodeOpenFile:             "open_file",
	CodeCloseFile:            "close_file",
	CodeInstallFile:          "install_file",
	CodeAck:                  "ack",
	CodeNak:                  "nak",
	CodeNotifyStopped:        "notify_stopped",
	CodeNotifyException:      "notify_exception",
	CodeNotifyInternalError:  "notify_internal_error",
	CodeNotifyCreated:        "notify_created",
	CodeNotifyDeleted:        "notify_deleted",
	CodeNotifyProcessorStart: "notify_processor_started",
	CodeNotifyProcessorIdle:  "notify_processor_standby",
	CodeNotifyProcessorReset: "notify_processor_reset",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(0x%02x)", byte(c))
}

// MarshalText renders codes by name, so code lists stay readable in JSON.
func (c Code) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Class groups inbound codes by how the dispatcher reacts to them.
type Class int

const (
	ClassUnrecognized Class = iota
	ClassAcknowledge
	ClassNegativeAcknowledge
	ClassStopped
	ClassException
	ClassInternalError
	ClassCreated
	ClassDeleted
	ClassProcessorStarted
	ClassProcessorStandby
	ClassProcessorReset
	ClassDebugOutput
)

func (c Class) String() string {
	switch c {
	case ClassAcknowledge:
		return "acknowledge"
	case ClassNegativeAcknowledge:
		return "negative_acknowledge"
	case ClassStopped:
		return "stopped"
	case ClassException:
		return "exception"
	case ClassInternalError:
		return "internal_error"
	case ClassCreated:
		return "created"
	case ClassDeleted:
		return "deleted"
	case ClassProcessorStarted:
		return "processor_started"
	case ClassProcessorStandby:
		return "processor_standby"
	case ClassProcessorReset:
		return "processor_reset"
	case ClassDebugOutput:
		return "debug_output"
	default:
		return "unrecognized"
	}
}

// Classify maps an inbound protocol code to its reply class. Debug output is
// not a code; callers check the reply flag first.
func Classify(c Code) Class {
	switch c {
	case CodeAck:
		return ClassAcknowledge
	case CodeNak:
		return ClassNegativeAcknowledge
	case CodeNotifyStopped:
		return ClassStopped
	case CodeNotifyException:
		return ClassException
	case CodeNotifyInternalError:
		return ClassInternalError
	case CodeNotifyCreated:
		return ClassCreated
	case CodeNotifyDeleted:
		return ClassDeleted
	case CodeNotifyProcessorStart:
		return ClassProcessorStarted
	case CodeNotifyProcessorIdle:
		return ClassProcessorStandby
	case CodeNotifyProcessorReset:
		return ClassProcessorReset
	default:
		return ClassUnrecognized
	}
}

// NeedsAck reports whether the host must acknowledge a notification of class c
// immediately. Created notifications are answered with a continue request
// instead.
func (c Class) NeedsAck() bool {
	switch c {
	case ClassStopped, ClassException, ClassInternalError, ClassDeleted,
		ClassProcessorStarted, ClassProcessorStandby, ClassProcessorReset:
		return true
	default:
		return false
	}
}

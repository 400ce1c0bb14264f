package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrShortPayload  = errors.New("protocol: short payload")
	ErrInvalidLength = errors.New("protocol: invalid length")
)

var deviceErrors = map[byte]string{
	0x00: "No error",
	0x01: "Generic error in CWDS message",
	0x02: "Unexpected packet size in send msg",
	0x03: "Internal error occurred in CWDS",
	0x04: "Escape followed by frame flag",
	0x05: "Bad FCS in packet",
	0x06: "Packet too long",
	0x07: "Sequence ID not expected (gap in sequence)",
	0x10: "Command not supported",
	0x11: "Command param out of range",
	0x12: "An option was not supported",
	0x13: "Read/write to invalid memory",
	0x14: "Read/write invalid registers",
	0x15: "Exception occurred in CWDS",
	0x16: "Targeted system or thread is running",
	0x17: "Breakpoint resources (HW or SW) exhausted",
	0x18: "Requested breakpoint conflicts with existing one",
	0x20: "General OS-related error",
	0x21: "Request specified invalid process",
	0x22: "Request specified invalid thread",
}

// DeviceErrorText returns the human-readable text for an error code carried in
// the first payload byte of an ack or nak.
func DeviceErrorText(code byte) string {
	if text, ok := deviceErrors[code]; ok {
		return text
	}
	return fmt.Sprintf("Unknown error 0x%02x", code)
}

// ErrorCode returns the leading error byte of a reply payload. An empty
// payload reads as success.
func ErrorCode(payload []byte) byte {
	if len(payload) == 0 {
		return 0
	}
	return payload[0]
}

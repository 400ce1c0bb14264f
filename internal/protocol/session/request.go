package session

import "github.com/danmuck/trklaunch/internal/protocol"

// Step names the continuation the owner resumes when a request is
// acknowledged. StepNone means the ack only frees the slot.
type Step uint8

const StepNone Step = 0

// Request is one host -> device message together with its correlation data.
type Request struct {
	Code   protocol.Code
	Token  byte
	Data   []byte
	Cookie string
	Then   Step
}

package launcher

import "errors"

var (
	ErrNoSender          = errors.New("launcher: no sender")
	ErrInvalidConstraint = errors.New("launcher: invalid protocol constraint")
	ErrTransportClosed   = errors.New("launcher: transport closed")
)

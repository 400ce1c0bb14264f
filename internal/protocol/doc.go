// Package protocol owns the debug monitor wire vocabulary.
//
// Ownership boundary:
// - operation and notification codes
// - reply classification
// - device error text
// - target byte order payload primitives
//
// Framing lives in protocol/frame; sequencing and the pending table live in
// protocol/session.
package protocol

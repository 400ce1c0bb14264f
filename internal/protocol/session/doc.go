// Package session owns request sequencing for one host<->device conversation.
//
// Ownership boundary:
// - token allocation
// - outbound queue and the single in-flight transmission discipline
// - pending-response table keyed by token
//
// Nothing here is safe for concurrent use. The launcher event loop is the only
// caller.
package session

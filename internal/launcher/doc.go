// Package launcher drives one debug monitor conversation.
//
// Ownership boundary:
// - session record (device description, process ids)
// - reply dispatch and the notification state machine
// - connect -> probe -> copy -> install -> run -> terminate workflow
// - the cooperative event loop fed by ticks and decoded replies
//
// Dispatch is driven by reply class. Which workflow step resumes on an ack is
// decided by the continuation stored with the pending request, so no phase
// variable is consulted when routing. Phase is tracked for reporting only.
//
// All state is owned by the goroutine calling Run (or, in tests, by the caller
// of Start/Pump/HandleReply). Nothing here locks.
package launcher

// Package transport opens the byte stream to a device monitor and turns it
// into decoded replies.
//
// A device name of the form tcp://host:port or unix:///path dials a socket;
// anything else is treated as a serial port path. The read loop feeds a
// streaming frame decoder and delivers each reply on a channel consumed by
// the launcher's event loop.
package transport

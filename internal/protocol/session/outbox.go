package session

// Outbox is the ordered queue of requests not yet written, plus the busy flag
// that keeps at most one request in flight.
type Outbox struct {
	queue   []Request
	pending *PendingTable
	busy    bool
}

func NewOutbox() *Outbox {
	return &Outbox{pending: NewPendingTable()}
}

// Enqueue appends req to the tail. It never transmits.
func (o *Outbox) Enqueue(req Request) {
	o.queue = append(o.queue, req)
}

// Next hands out the head request when the line is idle. The request moves
// into the pending table and the outbox turns busy until Release. displaced
// reports a pending request that still held the same token.
func (o *Outbox) Next() (req Request, displaced *Request, ok bool) {
	if o.busy || len(o.queue) == 0 {
		return Request{}, nil, false
	}
	req = o.queue[0]
	o.queue[0] = Request{}
	o.queue = o.queue[1:]
	if prev, had := o.pending.Register(req); had {
		displaced = &prev
	}
	o.busy = true
	return req, displaced, true
}

// Release returns the line to idle. Any ack or nak calls it, matched or not.
func (o *Outbox) Release() {
	o.busy = false
}

// Take removes the pending request registered under token.
func (o *Outbox) Take(token byte) (Request, bool) {
	return o.pending.Take(token)
}

func (o *Outbox) Busy() bool {
	return o.busy
}

func (o *Outbox) Queued() int {
	return len(o.queue)
}

func (o *Outbox) Pending() int {
	return o.pending.Len()
}

// Peek returns a copy of the queued requests in transmission order.
func (o *Outbox) Peek() []Request {
	out := make([]Request, len(o.queue))
	copy(out, o.queue)
	return out
}

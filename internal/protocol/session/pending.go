package session

// PendingTable maps in-flight tokens to the request that used them.
type PendingTable struct {
	items map[byte]Request
}

func NewPendingTable() *PendingTable {
	return &PendingTable{items: make(map[byte]Request)}
}

// Register stores req under its token. A request still holding the same token
// is displaced and returned.
func (p *PendingTable) Register(req Request) (Request, bool) {
	prev, ok := p.items[req.Token]
	p.items[req.Token] = req
	return prev, ok
}

// Take removes and returns the request registered under token.
func (p *PendingTable) Take(token byte) (Request, bool) {
	req, ok := p.items[token]
	if ok {
		delete(p.items, token)
	}
	return req, ok
}

func (p *PendingTable) Get(token byte) (Request, bool) {
	req, ok := p.items[token]
	return req, ok
}

func (p *PendingTable) Len() int {
	return len(p.items)
}

package session

// InitialPingToken is reserved for the handshake ping that resets the device
// side sequence count. The allocator never hands it out.
const InitialPingToken byte = 0

// TokenAllocator produces request tokens 1..255, wrapping past zero.
type TokenAllocator struct {
	last byte
}

func (a *TokenAllocator) Next() byte {
	a.last++
	if a.last == InitialPingToken {
		a.last++
	}
	return a.last
}

// Last returns the most recently allocated token, or zero before first use.
func (a *TokenAllocator) Last() byte {
	return a.last
}

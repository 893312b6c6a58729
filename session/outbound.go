package session

import (
	"sync"

	"chat-relay/errors"
)

// Outbound is the buffered write side handed to the registry at Connect
// time. The registry delivers broadcast payloads here; the session's
// write pump drains them to the transport in order.
type Outbound struct {
	ch        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func NewOutbound(bufferSize int) *Outbound {
	return &Outbound{
		ch:     make(chan []byte, bufferSize),
		closed: make(chan struct{}),
	}
}

// Deliver queues a payload for the write pump. It never blocks the
// caller: a closed session or a full buffer is reported as an error the
// registry swallows, so one slow connection cannot stall a broadcast.
func (o *Outbound) Deliver(payload []byte) error {
	select {
	case <-o.closed:
		return errors.ErrSessionClosed
	default:
	}

	select {
	case o.ch <- payload:
		return nil
	case <-o.closed:
		return errors.ErrSessionClosed
	default:
		return errors.ErrOutboundFull
	}
}

// Close marks the link dead. The queue channel itself is never closed so
// a racing Deliver can fail cleanly instead of panicking.
func (o *Outbound) Close() {
	o.closeOnce.Do(func() { close(o.closed) })
}

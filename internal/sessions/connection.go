package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"crewlink/internal/models"
)

// State is the lifecycle position of a connection.
type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateJoined
	StateActive
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateJoined:
		return "joined"
	case StateActive:
		return "active"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// Transport is the framed, bidirectional link to one client. Read wraps
// ErrMalformedFrame for frames it cannot decode; any other error ends the
// connection.
type Transport interface {
	Read(ctx context.Context) (Envelope, error)
	Write(ctx context.Context, ev Outbound) error
	Close(reason string) error
}

// Conn is one authenticated client connection.
type Conn struct {
	ID   string
	User models.Identity

	state     atomic.Int32
	transport Transport
	send      chan Outbound
	limiter   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
	writerWG  sync.WaitGroup
}

func (c *Conn) State() State {
	return State(c.state.Load())
}

// advance moves the connection forward. It never leaves StateDisconnected.
func (c *Conn) advance(to State) bool {
	for {
		cur := c.state.Load()
		if State(cur) == StateDisconnected || State(cur) >= to {
			return false
		}
		if c.state.CompareAndSwap(cur, int32(to)) {
			return true
		}
	}
}

// Send queues ev without blocking. It reports false when the connection is
// closed or its buffer is full.
func (c *Conn) Send(ev Outbound) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Conn) writeLoop(timeout time.Duration, onError func(error)) {
	defer c.writerWG.Done()
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.send:
			writeCtx, cancel := context.WithTimeout(c.ctx, timeout)
			err := c.transport.Write(writeCtx, ev)
			cancel()
			if err != nil {
				onError(err)
				return
			}
		}
	}
}

// close marks the connection disconnected exactly once and reports whether
// this call did it.
func (c *Conn) close() bool {
	closed := false
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateDisconnected))
		close(c.done)
		c.cancel()
		closed = true
	})
	return closed
}

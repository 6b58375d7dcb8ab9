package p2p

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// State represents the lifecycle of a connection.
type State int32

// Set of connection states.
const (
	Connecting State = iota
	HandshakeSent
	Established
	Closed
)

// String implements the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Connecting:
		return "Connecting"
	case HandshakeSent:
		return "HandshakeSent"
	case Established:
		return "Established"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Conn is one framed connection to a peer. Sends from many goroutines are
// serialized, reads happen on a single reader goroutine owned by the transport.
type Conn struct {
	conn     net.Conn
	addr     string
	inbound  bool
	idle     time.Duration
	maxFrame uint64

	state     atomic.Int32
	wmu       sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(nc net.Conn, addr string, inbound bool, idle time.Duration, maxFrame uint64, state State) *Conn {
	c := Conn{
		conn:     nc,
		addr:     addr,
		inbound:  inbound,
		idle:     idle,
		maxFrame: maxFrame,
		done:     make(chan struct{}),
	}
	c.state.Store(int32(state))

	return &c
}

// Addr returns the address the connection was dialed on, or the remote
// address for an inbound connection.
func (c *Conn) Addr() string {
	return c.addr
}

// Inbound reports whether the peer dialed us.
func (c *Conn) Inbound() bool {
	return c.inbound
}

// State returns the current connection state.
func (c *Conn) State() State {
	return State(c.state.Load())
}

// SetState moves the connection to a new state. A closed connection stays
// closed.
func (c *Conn) SetState(s State) {
	for {
		cur := c.state.Load()
		if State(cur) == Closed {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Send writes one frame to the peer.
func (c *Conn) Send(payload []byte) error {
	if c.State() == Closed {
		return fmt.Errorf("%w: connection to %s closed", ErrNetwork, c.addr)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	return WriteFrame(c.conn, payload)
}

// Close closes the underlying connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closed))
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// read returns the next frame. Inbound connections give up after the idle
// timeout passes without a frame.
func (c *Conn) read() ([]byte, error) {
	if c.inbound && c.idle > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.idle)); err != nil {
			return nil, fmt.Errorf("%w: set deadline: %w", ErrNetwork, err)
		}
	}

	frame, err := ReadFrame(c.conn, c.maxFrame)
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, fmt.Errorf("%w: idle timeout: %w", ErrNetwork, err)
		}
		return nil, err
	}

	return frame, nil
}

package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Set of transport defaults.
const (
	DefaultIdleTimeout = 30 * time.Second
	DefaultDialTimeout = 5 * time.Second
)

// Handler processes one frame received on a connection. Returning an error
// closes that connection.
type Handler func(c *Conn, frame []byte) error

// EventHandler defines a function that is called when events occur in the
// transport.
type EventHandler func(v string, args ...any)

// Config represents the configuration for the transport.
type Config struct {
	Host         string
	MaxFrameSize uint64
	IdleTimeout  time.Duration
	DialTimeout  time.Duration
	Handler      Handler
	EvHandler    EventHandler
}

// Transport owns the listener, the inbound connections, and the cache of
// outbound connections keyed by the dialed address.
type Transport struct {
	cfg      Config
	listener net.Listener
	ev       EventHandler

	mu       sync.Mutex
	outbound map[string]*Conn
	inbound  map[*Conn]struct{}
	shut     bool

	wg sync.WaitGroup
}

// New constructs a transport. Nothing is listening until Start is called.
func New(cfg Config) (*Transport, error) {
	if cfg.Handler == nil {
		return nil, errors.New("transport requires a frame handler")
	}

	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = DefaultMaxFrameSize
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	t := Transport{
		cfg:      cfg,
		ev:       ev,
		outbound: make(map[string]*Conn),
		inbound:  make(map[*Conn]struct{}),
	}

	return &t, nil
}

// Start binds the listener and runs the accept loop in the background.
func (t *Transport) Start() error {
	l, err := net.Listen("tcp", t.cfg.Host)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %w", ErrNetwork, t.cfg.Host, err)
	}
	t.listener = l

	t.ev("p2p: Start: listening on %s", l.Addr())

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.acceptLoop()
	}()

	return nil
}

// Addr returns the address the listener is bound to.
func (t *Transport) Addr() string {
	if t.listener == nil {
		return t.cfg.Host
	}
	return t.listener.Addr().String()
}

// Conn returns the cached outbound connection for the address, dialing and
// starting its reader when there is none.
func (t *Transport) Conn(ctx context.Context, addr string) (*Conn, error) {
	return t.dial(ctx, addr, Established)
}

// Handshake dials a fresh outbound connection in the HandshakeSent state and
// sends the handshake frame. The caller moves it to Established once the
// peer answers.
func (t *Transport) Handshake(ctx context.Context, addr string, payload []byte) (*Conn, error) {
	t.Drop(addr)

	c, err := t.dial(ctx, addr, HandshakeSent)
	if err != nil {
		return nil, err
	}

	if err := c.Send(payload); err != nil {
		t.Drop(addr)
		return nil, err
	}

	return c, nil
}

// Send writes the payload to the peer over the cached outbound connection.
// A cached connection the peer has since closed is replaced once.
func (t *Transport) Send(ctx context.Context, addr string, payload []byte) error {
	c, err := t.Conn(ctx, addr)
	if err != nil {
		return err
	}

	if err := c.Send(payload); err != nil {
		t.ev("p2p: Send: %s: retrying on a new connection: %s", addr, err)
		t.Drop(addr)

		c, err = t.Conn(ctx, addr)
		if err != nil {
			return err
		}

		return c.Send(payload)
	}

	return nil
}

// Broadcast sends the payload to every address concurrently. Failures are
// logged and skipped. It returns the number of peers reached.
func (t *Transport) Broadcast(ctx context.Context, addrs []string, payload []byte) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var sent int

	for _, addr := range addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()

			if err := t.Send(ctx, addr, payload); err != nil {
				t.ev("p2p: Broadcast: %s: WARNING: %s", addr, err)
				return
			}

			mu.Lock()
			sent++
			mu.Unlock()
		}(addr)
	}

	wg.Wait()

	return sent
}

// ActiveCount returns the number of outbound connections that completed
// their handshake or were dialed without one.
func (t *Transport) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for _, c := range t.outbound {
		if c.State() == Established {
			n++
		}
	}

	return n
}

// Drop closes and forgets the outbound connection for the address.
func (t *Transport) Drop(addr string) {
	t.mu.Lock()
	c, exists := t.outbound[addr]
	delete(t.outbound, addr)
	t.mu.Unlock()

	if exists {
		c.Close()
	}
}

// Shutdown closes the listener and every connection, then waits for the
// accept loop and readers to finish or the context to expire.
func (t *Transport) Shutdown(ctx context.Context) error {
	t.ev("p2p: Shutdown: started")
	defer t.ev("p2p: Shutdown: completed")

	t.mu.Lock()
	t.shut = true
	conns := make([]*Conn, 0, len(t.outbound)+len(t.inbound))
	for _, c := range t.outbound {
		conns = append(conns, c)
	}
	for c := range t.inbound {
		conns = append(conns, c)
	}
	t.outbound = make(map[string]*Conn)
	t.inbound = make(map[*Conn]struct{})
	t.mu.Unlock()

	if t.listener != nil {
		t.listener.Close()
	}

	for _, c := range conns {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// =============================================================================

// acceptLoop gives every inbound connection its own reader goroutine. It
// exits once the listener is closed.
func (t *Transport) acceptLoop() {
	t.ev("p2p: acceptLoop: G started")
	defer t.ev("p2p: acceptLoop: G completed")

	for {
		nc, err := t.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			t.ev("p2p: acceptLoop: ERROR: %s", err)
			continue
		}

		c := newConn(nc, nc.RemoteAddr().String(), true, t.cfg.IdleTimeout, t.cfg.MaxFrameSize, Established)

		t.mu.Lock()
		if t.shut {
			t.mu.Unlock()
			c.Close()
			return
		}
		t.inbound[c] = struct{}{}
		t.mu.Unlock()

		t.ev("p2p: acceptLoop: inbound connection from %s", c.Addr())

		t.startReader(c, func() {
			t.mu.Lock()
			delete(t.inbound, c)
			t.mu.Unlock()
		})
	}
}

// dial returns the cached connection for the address or opens a new one in
// the given state.
func (t *Transport) dial(ctx context.Context, addr string, state State) (*Conn, error) {
	t.mu.Lock()
	if t.shut {
		t.mu.Unlock()
		return nil, fmt.Errorf("%w: transport shut down", ErrNetwork)
	}
	if c, exists := t.outbound[addr]; exists && c.State() != Closed {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	d := net.Dialer{Timeout: t.cfg.DialTimeout}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: connect %s: %w", ErrNetwork, addr, err)
	}

	c := newConn(nc, addr, false, 0, t.cfg.MaxFrameSize, state)

	t.mu.Lock()
	if t.shut {
		t.mu.Unlock()
		c.Close()
		return nil, fmt.Errorf("%w: transport shut down", ErrNetwork)
	}

	// Another goroutine may have dialed the same peer while we did.
	if existing, exists := t.outbound[addr]; exists && existing.State() != Closed {
		t.mu.Unlock()
		c.Close()
		return existing, nil
	}
	t.outbound[addr] = c
	t.mu.Unlock()

	t.ev("p2p: dial: outbound connection to %s", addr)

	t.startReader(c, func() {
		t.mu.Lock()
		if t.outbound[addr] == c {
			delete(t.outbound, addr)
		}
		t.mu.Unlock()
	})

	return c, nil
}

// startReader runs the read and dispatch loop for the connection until the
// peer disconnects, a frame is malformed, or the handler rejects a frame.
func (t *Transport) startReader(c *Conn, cleanup func()) {
	t.wg.Add(1)

	go func() {
		defer t.wg.Done()
		defer cleanup()
		defer c.Close()

		for {
			frame, err := c.read()
			if err != nil {
				if c.State() != Closed {
					t.ev("p2p: reader: %s: closing: %s", c.Addr(), err)
				}
				return
			}

			if err := t.cfg.Handler(c, frame); err != nil {
				t.ev("p2p: reader: %s: closing: %s", c.Addr(), err)
				return
			}
		}
	}()
}

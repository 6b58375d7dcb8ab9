// Package events fans node events out to the websocket clients watching the
// node.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrShutdown is returned when a subscription is requested after shutdown.
var ErrShutdown = errors.New("events shutdown")

// messageBuffer is the number of events held for a slow subscriber before
// new events are dropped for it.
const messageBuffer = 100

// Events maintains the set of subscribers keyed by a unique id.
type Events struct {
	mu     sync.RWMutex
	subs   map[string]chan string
	closed bool
}

// New constructs an events value for registering and receiving events.
func New() *Events {
	return &Events{
		subs: make(map[string]chan string),
	}
}

// Shutdown closes and removes every subscriber channel. Later calls to
// Acquire fail.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.subs {
		delete(evt.subs, id)
		close(ch)
	}
	evt.closed = true
}

// Acquire registers the id and returns the channel its events arrive on.
func (evt *Events) Acquire(id string) (<-chan string, error) {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if evt.closed {
		return nil, ErrShutdown
	}

	if ch, exists := evt.subs[id]; exists {
		return ch, nil
	}

	ch := make(chan string, messageBuffer)
	evt.subs[id] = ch

	return ch, nil
}

// Release closes and removes the channel that was provided by Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subs[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.subs, id)
	close(ch)

	return nil
}

// Count returns the number of subscribers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.subs)
}

// Send signals the message to every subscriber without blocking. It returns
// the number of subscribers the message was delivered to.
func (evt *Events) Send(s string) int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	var sent int
	for _, ch := range evt.subs {
		select {
		case ch <- s:
			sent++
		default:
		}
	}

	return sent
}

// Stream subscribes the websocket connection under the id and writes every
// event to it until the context is cancelled, the client goes away or the
// events are shut down. A ping is written on every interval.
func (evt *Events) Stream(ctx context.Context, conn *websocket.Conn, id string, ping time.Duration) error {
	ch, err := evt.Acquire(id)
	if err != nil {
		return err
	}
	defer evt.Release(id)

	// The client never sends data, but reading is required to process
	// control frames and to learn the client closed the connection.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(ping)
	defer ticker.Stop()

	for {
		select {
		case msg, open := <-ch:
			if !open {
				return nil
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}

		case <-gone:
			return nil

		case <-ctx.Done():
			return nil
		}
	}
}

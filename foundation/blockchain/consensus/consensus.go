// Package consensus tallies peer votes on the validity of broadcast
// transactions. A request is decided by a simple majority of the active
// peers at the time it is checked.
package consensus

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrUnknownID is returned for a validation id that was never opened or has
// already been forgotten.
var ErrUnknownID = errors.New("unknown validation id")

// Status represents the outcome of a validation request.
type Status string

// Set of validation outcomes.
const (
	Pending  Status = "Pending"
	Valid    Status = "Valid"
	Invalid  Status = "Invalid"
	TimedOut Status = "TimedOut"
)

// request holds the running tally for one validation id.
type request struct {
	votes   int
	voters  map[string]bool
	changed chan struct{}
}

// Tally manages the set of open validation requests.
type Tally struct {
	mu       sync.Mutex
	nextID   uint64
	requests map[uint64]*request
}

// New constructs a tally with no open requests.
func New() *Tally {
	return &Tally{
		requests: make(map[uint64]*request),
	}
}

// Open allocates a new validation id with a tally of zero.
func (t *Tally) Open() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	t.requests[t.nextID] = &request{
		voters:  make(map[string]bool),
		changed: make(chan struct{}, 1),
	}

	return t.nextID
}

// Vote records one vote for the request. A voter can only vote once per
// request, a repeated vote is ignored.
func (t *Tally) Vote(id uint64, voter string, valid bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, exists := t.requests[id]
	if !exists {
		return ErrUnknownID
	}

	if req.voters[voter] {
		return nil
	}
	req.voters[voter] = valid

	switch valid {
	case true:
		req.votes++
	default:
		req.votes--
	}

	select {
	case req.changed <- struct{}{}:
	default:
	}

	return nil
}

// Check returns the current outcome of the request given the number of
// active peers. With no active peers the request is trivially valid.
func (t *Tally) Check(id uint64, activePeers int) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, exists := t.requests[id]
	if !exists {
		return Pending, ErrUnknownID
	}

	return decide(req.votes, activePeers), nil
}

// Votes returns the current tally for the request.
func (t *Tally) Votes(id uint64) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	req, exists := t.requests[id]
	if !exists {
		return 0, ErrUnknownID
	}

	return req.votes, nil
}

// Wait blocks until the request is decided, the timeout expires, or the
// context is cancelled. The request is removed before returning.
func (t *Tally) Wait(ctx context.Context, id uint64, activePeers func() int, timeout time.Duration) (Status, error) {
	defer t.Forget(id)

	t.mu.Lock()
	req, exists := t.requests[id]
	t.mu.Unlock()

	if !exists {
		return Pending, ErrUnknownID
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// The peer count can change between votes so it is read on every check.
	recheck := time.NewTicker(100 * time.Millisecond)
	defer recheck.Stop()

	for {
		status, err := t.Check(id, activePeers())
		if err != nil {
			return Pending, err
		}

		if status != Pending {
			return status, nil
		}

		select {
		case <-req.changed:
		case <-recheck.C:
		case <-ctx.Done():
			return TimedOut, nil
		}
	}
}

// Forget removes the request. Votes that arrive later are rejected with
// ErrUnknownID.
func (t *Tally) Forget(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.requests, id)
}

// Len returns the number of requests still being tallied.
func (t *Tally) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.requests)
}

// decide applies the majority rule: Valid when votes >= P/2 and Invalid when
// votes <= -P/2, compared without truncating P/2.
func decide(votes int, activePeers int) Status {
	if activePeers <= 0 {
		return Valid
	}

	switch {
	case 2*votes >= activePeers:
		return Valid
	case 2*votes <= -activePeers:
		return Invalid
	}

	return Pending
}

// Package peer maintains the peer related information such as the set
// of know peers and their status.
package peer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Peer represents information about a Node in the network. On the wire and
// on disk a peer is the two element array [host, port].
type Peer struct {
	Host string `validate:"required"`
	Port int    `validate:"gt=0,lte=65535"`
}

// New contructs a new info value.
func New(host string, port int) Peer {
	return Peer{
		Host: host,
		Port: port,
	}
}

// Parse converts a host:port string into a peer.
func Parse(addr string) (Peer, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return Peer{}, fmt.Errorf("parsing peer address %q: %w", addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Peer{}, fmt.Errorf("parsing peer address %q: invalid port", addr)
	}

	return New(host, port), nil
}

// Addr returns the dialable host:port form of the peer.
func (p Peer) Addr() string {
	return net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Match validates if the specified peer is this peer.
func (p Peer) Match(other Peer) bool {
	return p == other
}

// String implements the fmt.Stringer interface.
func (p Peer) String() string {
	return p.Addr()
}

// MarshalJSON encodes the peer as [host, port].
func (p Peer) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.Host, p.Port})
}

// UnmarshalJSON decodes the [host, port] form. Any other shape is an error.
func (p *Peer) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("peer address must be [host, port]: %w", err)
	}

	if len(parts) != 2 {
		return fmt.Errorf("peer address must be [host, port], got %d elements", len(parts))
	}

	var host string
	if err := json.Unmarshal(parts[0], &host); err != nil {
		return fmt.Errorf("peer host: %w", err)
	}

	var port int
	if err := json.Unmarshal(parts[1], &port); err != nil {
		return fmt.Errorf("peer port: %w", err)
	}

	p.Host = host
	p.Port = port

	return nil
}

// =============================================================================

// PeerSet represents the data representation to maintain a set of known
// peers and when each was last heard from.
type PeerSet struct {
	mu     sync.RWMutex
	set    map[Peer]time.Time
	saveMu sync.Mutex
}

// NewPeerSet constructs a new info set to manage node peer information.
func NewPeerSet() *PeerSet {
	return &PeerSet{
		set: make(map[Peer]time.Time),
	}
}

// Add adds a new node to the set. It reports whether the peer is new.
func (ps *PeerSet) Add(peer Peer) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	_, exists := ps.set[peer]
	if !exists {
		ps.set[peer] = time.Time{}
		return true
	}

	return false
}

// Remove removes a node from the set.
func (ps *PeerSet) Remove(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	delete(ps.set, peer)
}

// Touch records the peer was heard from now. Unknown peers are ignored.
func (ps *PeerSet) Touch(peer Peer) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if _, exists := ps.set[peer]; exists {
		ps.set[peer] = time.Now()
	}
}

// LastSeen returns when the peer was last heard from.
func (ps *PeerSet) LastSeen(peer Peer) (time.Time, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	t, exists := ps.set[peer]
	return t, exists
}

// Len returns the number of known peers.
func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	return len(ps.set)
}

// Copy returns a sorted list of the known peers, excluding the specified
// peer which is normally this node.
func (ps *PeerSet) Copy(self Peer) []Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	peers := make([]Peer, 0, len(ps.set))
	for peer := range ps.set {
		if !peer.Match(self) {
			peers = append(peers, peer)
		}
	}

	sort.Slice(peers, func(i, j int) bool {
		if peers[i].Host != peers[j].Host {
			return peers[i].Host < peers[j].Host
		}
		return peers[i].Port < peers[j].Port
	})

	return peers
}

// =============================================================================

// Snapshot is the persisted form of the peer set.
type Snapshot struct {
	Peers       []Peer    `json:"peers"`
	LastUpdated time.Time `json:"last_updated"`
	TotalPeers  int       `json:"total_peers"`
	NodeID      string    `json:"node_id"`
}

// Save writes the peer set snapshot to the path, replacing any previous
// snapshot in one rename. Saves are serialized and each one writes its own
// temporary file.
func (ps *PeerSet) Save(path string, nodeID string) error {
	ps.saveMu.Lock()
	defer ps.saveMu.Unlock()

	peers := ps.Copy(Peer{})

	snap := Snapshot{
		Peers:       peers,
		LastUpdated: time.Now().UTC(),
		TotalPeers:  len(peers),
		NodeID:      nodeID,
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}

	return nil
}

// Load reads a peer set snapshot from the path. A missing file is an empty
// snapshot.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding peer snapshot: %w", err)
	}

	return snap, nil
}

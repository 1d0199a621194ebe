package meshchat

import (
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/outofforest/meshchat/wire"
)

// Direction tells which side initiated the connection.
type Direction int

// Directions.
const (
	Outgoing Direction = iota
	Incoming
)

func (d Direction) String() string {
	if d == Outgoing {
		return "outgoing"
	}
	return "incoming"
}

// PeerInfo describes connected peer.
type PeerInfo struct {
	ID        wire.NodeID
	Address   netip.AddrPort
	Nickname  string
	Direction Direction
	LastSeen  time.Time
}

type peerTable struct {
	maxOutgoing int

	mu    sync.RWMutex
	peers map[wire.NodeID]PeerInfo
}

func newPeerTable(maxOutgoing int) *peerTable {
	return &peerTable{
		maxOutgoing: maxOutgoing,
		peers:       map[wire.NodeID]PeerInfo{},
	}
}

// Admit inserts the peer requesting connection if it is not connected yet and incoming slots are available.
// Empty reason means peer has been admitted.
func (t *peerTable) Admit(id wire.NodeID, addr netip.AddrPort, nickname string, now time.Time) (PeerInfo, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.peers[id]; exists {
		return PeerInfo{}, wire.ReasonAlreadyConnected
	}
	if t.count(Incoming) >= t.maxOutgoing || len(t.peers) >= t.maxOutgoing+1 {
		return PeerInfo{}, wire.ReasonLimitReached
	}

	p := PeerInfo{
		ID:        id,
		Address:   addr,
		Nickname:  nickname,
		Direction: Incoming,
		LastSeen:  now,
	}
	t.peers[id] = p
	return p, ""
}

// Acknowledge records the peer which accepted our request. Existing entry is only refreshed.
// It returns true if new peer has been inserted. Acknowledgement arriving when no more outgoing
// connections are allowed is refused.
func (t *peerTable) Acknowledge(
	id wire.NodeID,
	addr netip.AddrPort,
	nickname string,
	now time.Time,
) (PeerInfo, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, exists := t.peers[id]; exists {
		p.Nickname = nickname
		p.LastSeen = now
		t.peers[id] = p
		return p, false, nil
	}
	if t.dialBudget() <= 0 {
		return PeerInfo{}, false, errLimitReached
	}

	p := PeerInfo{
		ID:        id,
		Address:   addr,
		Nickname:  nickname,
		Direction: Outgoing,
		LastSeen:  now,
	}
	t.peers[id] = p
	return p, true, nil
}

// Touch refreshes the last-seen time of the peer.
func (t *peerTable) Touch(id wire.NodeID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p, exists := t.peers[id]; exists {
		p.LastSeen = now
		t.peers[id] = p
	}
}

// Remove removes the peer.
func (t *peerTable) Remove(id wire.NodeID) (PeerInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, exists := t.peers[id]
	if exists {
		delete(t.peers, id)
	}
	return p, exists
}

// Contains tells if peer is connected.
func (t *peerTable) Contains(id wire.NodeID) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, exists := t.peers[id]
	return exists
}

// Len returns the number of connected peers.
func (t *peerTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.peers)
}

// Counts returns the number of outgoing and incoming connections.
func (t *peerTable) Counts() (outgoing, incoming int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.count(Outgoing), t.count(Incoming)
}

// DialBudget returns how many more outgoing connections may be established.
func (t *peerTable) DialBudget() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.dialBudget()
}

// Snapshot returns peers ordered by id.
func (t *peerTable) Snapshot() []PeerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	peers := make([]PeerInfo, 0, len(t.peers))
	for _, p := range t.peers {
		peers = append(peers, p)
	}
	sort.Slice(peers, func(i, j int) bool {
		return peers[i].ID < peers[j].ID
	})
	return peers
}

// Targets returns peers a flooded message is forwarded to.
func (t *peerTable) Targets(except wire.NodeID) []PeerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	targets := make([]PeerInfo, 0, len(t.peers))
	for id, p := range t.peers {
		if id != except {
			targets = append(targets, p)
		}
	}
	return targets
}

func (t *peerTable) dialBudget() int {
	return min(t.maxOutgoing-t.count(Outgoing), t.maxOutgoing+1-len(t.peers))
}

func (t *peerTable) count(direction Direction) int {
	var n int
	for _, p := range t.peers {
		if p.Direction == direction {
			n++
		}
	}
	return n
}

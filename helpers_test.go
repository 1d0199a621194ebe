package meshchat

import (
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/meshchat/transport"
	"github.com/outofforest/meshchat/wire"
)

const selfID wire.NodeID = 1

type sentMessage struct {
	To      netip.AddrPort
	Message wire.Message
}

// recorder captures datagrams passing through the memory network.
type recorder struct {
	mu   sync.Mutex
	sent []sentMessage

	// onSend, if set, is called synchronously for every recorded datagram.
	onSend func(sent sentMessage)
}

func (r *recorder) record(_, to netip.AddrPort, payload []byte) bool {
	msg, err := wire.Unmarshal(payload)
	if err != nil {
		return false
	}

	sent := sentMessage{To: to, Message: msg}

	r.mu.Lock()
	r.sent = append(r.sent, sent)
	onSend := r.onSend
	r.mu.Unlock()

	if onSend != nil {
		onSend(sent)
	}
	return false
}

func (r *recorder) Take() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	sent := r.sent
	r.sent = nil
	return sent
}

type harness struct {
	node     *Node
	events   <-chan any
	recorder *recorder
}

func testRoster(size int) Roster {
	roster := make(Roster, 0, size)
	for i := 1; i <= size; i++ {
		id := wire.NodeID(i)
		roster = append(roster, Member{ID: id, Host: "127.0.0.1", Port: testAddr(id).Port()})
	}
	return roster
}

// newHarness creates node 1 with endpoints for all the other roster members, so datagrams sent
// to them are recorded.
func newHarness(t *testing.T, rosterSize, maxOutgoing int) *harness {
	requireT := require.New(t)

	network := transport.NewMemoryNetwork()
	rec := &recorder{}
	network.SetDropFunc(rec.record)

	roster := testRoster(rosterSize)
	var self transport.Transport
	for _, m := range roster {
		endpoint, err := network.Listen(testAddr(m.ID))
		requireT.NoError(err)
		if m.ID == selfID {
			self = endpoint
		}
	}

	node, events, err := New(Config{
		NodeID:      selfID,
		Nickname:    "alice",
		Roster:      roster,
		MaxOutgoing: maxOutgoing,
		DialPacing:  time.Millisecond,
	}, self)
	requireT.NoError(err)

	return &harness{
		node:     node,
		events:   events,
		recorder: rec,
	}
}

func (h *harness) Connect(t *testing.T, direction Direction, ids ...wire.NodeID) {
	for _, id := range ids {
		switch direction {
		case Outgoing:
			_, inserted, err := h.node.peers.Acknowledge(id, testAddr(id), nickname(id), time.Now())
			require.NoError(t, err)
			require.True(t, inserted)
		case Incoming:
			_, reason := h.node.peers.Admit(id, testAddr(id), nickname(id), time.Now())
			require.Empty(t, reason)
		}
	}
}

func (h *harness) RequireEvent(t *testing.T) any {
	select {
	case event := <-h.events:
		return event
	default:
		require.Fail(t, "event expected")
		return nil
	}
}

func (h *harness) RequireNoEvents(t *testing.T) {
	require.Empty(t, h.events)
}

func nickname(id wire.NodeID) string {
	return "node" + id.String()
}

func destinations(sent []sentMessage) []wire.NodeID {
	ids := make([]wire.NodeID, 0, len(sent))
	for _, s := range sent {
		ids = append(ids, wire.NodeID(s.To.Port()-testAddr(0).Port()))
	}
	return ids
}

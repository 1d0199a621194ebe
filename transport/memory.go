package transport

import (
	"net"
	"net/netip"
	"sync"

	"github.com/pkg/errors"
)

const inboxSize = 128

// DropFunc decides whether datagram is lost on its way.
type DropFunc func(from, to netip.AddrPort, payload []byte) bool

type datagram struct {
	From    netip.AddrPort
	Payload []byte
}

// MemoryNetwork connects in-process endpoints. Datagrams sent to unknown addresses
// or to full inboxes are lost, as they would be on the real network.
type MemoryNetwork struct {
	mu        sync.RWMutex
	endpoints map[netip.AddrPort]*Memory
	drop      DropFunc
}

// NewMemoryNetwork creates in-process network.
func NewMemoryNetwork() *MemoryNetwork {
	return &MemoryNetwork{
		endpoints: map[netip.AddrPort]*Memory{},
	}
}

// SetDropFunc installs the function simulating datagram loss.
func (n *MemoryNetwork) SetDropFunc(drop DropFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.drop = drop
}

// Listen creates endpoint bound to the address.
func (n *MemoryNetwork) Listen(addr netip.AddrPort) (*Memory, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[addr]; exists {
		return nil, errors.Errorf("address %s is already in use", addr)
	}

	m := &Memory{
		network: n,
		addr:    addr,
		inbox:   make(chan datagram, inboxSize),
		closed:  make(chan struct{}),
	}
	n.endpoints[addr] = m
	return m, nil
}

func (n *MemoryNetwork) deliver(from, to netip.AddrPort, payload []byte) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	dst, exists := n.endpoints[to]
	if !exists {
		return
	}
	if n.drop != nil && n.drop(from, to, payload) {
		return
	}

	select {
	case dst.inbox <- datagram{From: from, Payload: append([]byte(nil), payload...)}:
	default:
	}
}

func (n *MemoryNetwork) remove(m *Memory) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.endpoints[m.addr] == m {
		delete(n.endpoints, m.addr)
	}
}

var _ Transport = &Memory{}

// Memory is the endpoint of in-process network.
type Memory struct {
	network *MemoryNetwork
	addr    netip.AddrPort
	inbox   chan datagram

	closeOnce sync.Once
	closed    chan struct{}
}

// LocalAddr returns the address of endpoint.
func (m *Memory) LocalAddr() netip.AddrPort {
	return m.addr
}

// Send sends datagram.
func (m *Memory) Send(to netip.AddrPort, payload []byte) error {
	select {
	case <-m.closed:
		return errors.WithStack(net.ErrClosed)
	default:
	}

	m.network.deliver(m.addr, to, payload)
	return nil
}

// Receive receives datagram.
func (m *Memory) Receive(buf []byte) (int, netip.AddrPort, error) {
	select {
	case <-m.closed:
		return 0, netip.AddrPort{}, errors.WithStack(net.ErrClosed)
	case d := <-m.inbox:
		return copy(buf, d.Payload), d.From, nil
	}
}

// Close detaches endpoint from the network.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
		m.network.remove(m)
	})
	return nil
}

package transport

import (
	"net/netip"
	"syscall"

	"github.com/pkg/errors"
)

// Transport sends and receives datagrams.
type Transport interface {
	// LocalAddr returns the address datagrams are received on.
	LocalAddr() netip.AddrPort

	// Send sends single datagram. Delivery is not guaranteed.
	Send(to netip.AddrPort, payload []byte) error

	// Receive blocks until datagram is received and copies it into buf.
	Receive(buf []byte) (int, netip.AddrPort, error)

	// Close unblocks pending Receive calls.
	Close() error
}

// IsConnReset reports whether error is the "connection reset" signal some platforms
// deliver on connectionless sockets after ICMP port unreachable.
func IsConnReset(err error) bool {
	return errors.Is(err, syscall.ECONNRESET)
}

func unmap(addr netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
}

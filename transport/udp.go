package transport

import (
	"net"
	"net/netip"

	"github.com/pkg/errors"
)

var _ Transport = &UDP{}

// UDP is the transport using UDP socket.
type UDP struct {
	conn *net.UDPConn
}

// ListenUDP binds UDP socket to the port on all the interfaces.
func ListenUDP(port uint16) (*UDP, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		return nil, errors.Wrapf(err, "binding UDP port %d failed", port)
	}
	return &UDP{conn: conn}, nil
}

// LocalAddr returns the address datagrams are received on.
func (u *UDP) LocalAddr() netip.AddrPort {
	return unmap(u.conn.LocalAddr().(*net.UDPAddr).AddrPort())
}

// Send sends datagram.
func (u *UDP) Send(to netip.AddrPort, payload []byte) error {
	_, err := u.conn.WriteToUDPAddrPort(payload, to)
	return errors.WithStack(err)
}

// Receive receives datagram.
func (u *UDP) Receive(buf []byte) (int, netip.AddrPort, error) {
	n, from, err := u.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return 0, netip.AddrPort{}, errors.WithStack(err)
	}
	return n, unmap(from), nil
}

// Close closes the socket.
func (u *UDP) Close() error {
	return errors.WithStack(u.conn.Close())
}

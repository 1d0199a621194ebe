package meshchat

import (
	"net"
	"net/netip"
	"strconv"

	"github.com/pkg/errors"

	"github.com/outofforest/meshchat/wire"
)

const portSuffix = 1406

// Member is the roster entry of the node.
type Member struct {
	ID   wire.NodeID
	Host string
	Port uint16
}

// Address returns the host:port string of the member.
func (m Member) Address() string {
	return net.JoinHostPort(m.Host, strconv.FormatUint(uint64(m.Port), 10))
}

// Resolve resolves the address of the member.
func (m Member) Resolve() (netip.AddrPort, error) {
	addr, err := net.ResolveUDPAddr("udp", m.Address())
	if err != nil {
		return netip.AddrPort{}, errors.Wrapf(err, "resolving address of node %s failed", m.ID)
	}
	ap := addr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}

// Roster is the fixed list of nodes allowed in the mesh.
type Roster []Member

// DefaultRoster returns the roster of four nodes running on the local host.
func DefaultRoster() Roster {
	return Roster{
		{ID: 1, Host: "127.0.0.1", Port: 2*10000 + portSuffix},
		{ID: 2, Host: "127.0.0.1", Port: 3*10000 + portSuffix},
		{ID: 3, Host: "127.0.0.1", Port: 4*10000 + portSuffix},
		{ID: 4, Host: "127.0.0.1", Port: 5*10000 + portSuffix},
	}
}

// Lookup returns the member with the id.
func (r Roster) Lookup(id wire.NodeID) (Member, bool) {
	for _, m := range r {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// Validate checks that roster ids are unique.
func (r Roster) Validate() error {
	if len(r) == 0 {
		return errors.New("roster is empty")
	}
	ids := map[wire.NodeID]struct{}{}
	for _, m := range r {
		if _, exists := ids[m.ID]; exists {
			return errors.Errorf("node %s appears in roster more than once", m.ID)
		}
		ids[m.ID] = struct{}{}
	}
	return nil
}

// Without returns copy of the roster excluding the node.
func (r Roster) Without(id wire.NodeID) Roster {
	others := make(Roster, 0, len(r))
	for _, m := range r {
		if m.ID != id {
			others = append(others, m)
		}
	}
	return others
}

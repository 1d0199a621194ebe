package meshchat

import "github.com/outofforest/meshchat/wire"

// PeerConnected is emitted when handshake with the peer completes.
type PeerConnected struct {
	Peer PeerInfo
}

// ChatReceived is emitted once for each chat message originated by another node.
type ChatReceived struct {
	ID       wire.MessageID
	Nickname string
	Content  string
}

// PeerLeft is emitted once for each node announcing it leaves the mesh.
// WasPeer tells if the node was directly connected.
type PeerLeft struct {
	ID       wire.NodeID
	Nickname string
	WasPeer  bool
}

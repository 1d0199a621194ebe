package wire

import "strconv"

type (
	// NodeID identifies node in the roster.
	NodeID uint8

	// Sequence is the per-origin number of flooded message.
	Sequence uint32
)

func (id NodeID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Rejection reasons sent in ConnectionFail.
const (
	ReasonAlreadyConnected = "already connected"
	ReasonLimitReached     = "limit reached"
)

// MessageID uniquely identifies flooded message in the whole mesh.
type MessageID struct {
	Source   NodeID
	Sequence Sequence
}

// Message is implemented by all the protocol messages.
type Message interface {
	tag() string
}

// Flooded is implemented by messages forwarded through the mesh.
type Flooded interface {
	Message
	ID() MessageID
	Sender() NodeID
}

// ConnectionRequest is sent by the dialer to start the handshake.
type ConnectionRequest struct {
	From     NodeID
	Nickname string
}

// ConnectionAck is sent by the responder accepting the connection.
type ConnectionAck struct {
	From     NodeID
	Nickname string
}

// ConnectionFail is sent by the responder rejecting the connection.
type ConnectionFail struct {
	From   NodeID
	Reason string
}

// ConnectionClosed announces that the source node leaves the mesh.
type ConnectionClosed struct {
	Source   NodeID
	Sequence Sequence
	From     NodeID
	Nickname string
}

// ChatMessage carries chat content originated by the source node.
type ChatMessage struct {
	Source   NodeID
	Sequence Sequence
	From     NodeID
	Nickname string
	Content  string
}

func (m *ConnectionRequest) tag() string { return TagConnectionRequest }
func (m *ConnectionAck) tag() string     { return TagConnectionAck }
func (m *ConnectionFail) tag() string    { return TagConnectionFail }
func (m *ConnectionClosed) tag() string  { return TagConnectionClosed }
func (m *ChatMessage) tag() string       { return TagChatMessage }

// ID returns the identity of the message.
func (m *ConnectionClosed) ID() MessageID {
	return MessageID{Source: m.Source, Sequence: m.Sequence}
}

// Sender returns the node the message was received from.
func (m *ConnectionClosed) Sender() NodeID {
	return m.From
}

// ID returns the identity of the message.
func (m *ChatMessage) ID() MessageID {
	return MessageID{Source: m.Source, Sequence: m.Sequence}
}

// Sender returns the node the message was received from.
func (m *ChatMessage) Sender() NodeID {
	return m.From
}

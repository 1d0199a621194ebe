package meshchat

import (
	"context"
	"net"
	"net/netip"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/meshchat/transport"
	"github.com/outofforest/meshchat/wire"
	"github.com/outofforest/parallel"
)

const eventBufferSize = 100

// ErrLeft is returned when node has already left the mesh.
var ErrLeft = errors.New("node left the mesh")

// Node is the member of the chat mesh.
type Node struct {
	config    Config
	transport transport.Transport
	peers     *peerTable
	dedup     *dedupCache
	conns     *connManager
	flood     *broadcaster
	events    chan any

	leaveOnce sync.Once
	leaveCh   chan struct{}
}

// New creates node communicating over the transport. Events are delivered to the returned
// channel, which is closed when Run returns.
func New(config Config, transport transport.Transport) (*Node, <-chan any, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}

	n := &Node{
		config:    config,
		transport: transport,
		peers:     newPeerTable(config.MaxOutgoing),
		dedup:     newDedupCache(),
		events:    make(chan any, eventBufferSize),
		leaveCh:   make(chan struct{}),
	}
	out := outbox{
		transport:      transport,
		maxMessageSize: config.MaxMessageSize,
	}
	n.conns = newConnManager(config, n.peers, out, n.emit)
	n.flood = newBroadcaster(config, n.dedup, n.peers, out, n.emit)

	return n, n.events, nil
}

// Run runs the node until context is canceled or node leaves the mesh.
func (n *Node) Run(ctx context.Context) error {
	defer close(n.events)

	ctx = logger.WithLogger(ctx, logger.Get(ctx).With(zap.Stringer("node", n.config.NodeID)))

	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			if err := n.transport.Close(); err != nil {
				return err
			}
			return errors.WithStack(ctx.Err())
		})
		spawn("receiver", parallel.Fail, n.runReceiver)
		spawn("connections", parallel.Fail, n.conns.Run)
		spawn("leave", parallel.Exit, func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-n.leaveCh:
				return nil
			}
		})

		return nil
	})
}

// SendChat floods chat message to the mesh.
func (n *Node) SendChat(ctx context.Context, content string) (wire.MessageID, error) {
	if content == "" {
		return wire.MessageID{}, errors.New("chat message is empty")
	}
	select {
	case <-n.leaveCh:
		return wire.MessageID{}, errors.WithStack(ErrLeft)
	default:
	}

	return n.flood.Chat(ctx, content)
}

// Peers returns connected peers ordered by id.
func (n *Node) Peers() []PeerInfo {
	return n.peers.Snapshot()
}

// Leave notifies peers that node leaves the mesh and stops the node. Notification is sent on
// the best-effort basis.
func (n *Node) Leave(ctx context.Context) error {
	err := errors.WithStack(ErrLeft)
	n.leaveOnce.Do(func() {
		_, err = n.flood.Leave(ctx)
		close(n.leaveCh)
	})
	return err
}

func (n *Node) runReceiver(ctx context.Context) error {
	log := logger.Get(ctx)

	buf := make([]byte, n.config.MaxMessageSize)
	for {
		size, from, err := n.transport.Receive(buf)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return errors.WithStack(ctx.Err())
		case errors.Is(err, net.ErrClosed):
			return err
		case transport.IsConnReset(err):
			continue
		default:
			log.Error("Receiving datagram failed", zap.Error(err))
			continue
		}

		n.handleDatagram(ctx, from, buf[:size])
	}
}

func (n *Node) handleDatagram(ctx context.Context, from netip.AddrPort, payload []byte) {
	msg, err := wire.Unmarshal(payload)
	if err != nil {
		logger.Get(ctx).Debug("Malformed datagram dropped", zap.Stringer("from", from), zap.Error(err))
		return
	}
	n.dispatch(ctx, from, msg)
}

func (n *Node) dispatch(ctx context.Context, from netip.AddrPort, msg wire.Message) {
	switch m := msg.(type) {
	case *wire.ConnectionRequest:
		n.conns.handleRequest(ctx, from, m)
	case *wire.ConnectionAck:
		n.conns.handleAck(ctx, from, m)
	case *wire.ConnectionFail:
		n.conns.handleFail(ctx, m)
	case *wire.ConnectionClosed:
		n.flood.handleClosed(ctx, m)
	case *wire.ChatMessage:
		n.flood.handleChat(ctx, m)
	default:
		logger.Get(ctx).Error("Unsupported message type", zap.Stringer("from", from), zap.Any("message", msg))
	}
}

func (n *Node) emit(ctx context.Context, event any) {
	select {
	case <-ctx.Done():
	case n.events <- event:
	}
}

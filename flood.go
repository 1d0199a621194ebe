package meshchat

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/meshchat/wire"
)

// broadcaster floods chat and leave messages through the mesh.
// The dedup cache, not the hop count, stops messages circulating in cycles.
type broadcaster struct {
	self     wire.NodeID
	nickname string
	dedup    *dedupCache
	peers    *peerTable
	out      outbox
	emit     emitFunc

	sequence atomic.Uint32
}

func newBroadcaster(config Config, dedup *dedupCache, peers *peerTable, out outbox, emit emitFunc) *broadcaster {
	return &broadcaster{
		self:     config.NodeID,
		nickname: config.Nickname,
		dedup:    dedup,
		peers:    peers,
		out:      out,
		emit:     emit,
	}
}

// Chat originates chat message.
func (b *broadcaster) Chat(ctx context.Context, content string) (wire.MessageID, error) {
	msg := &wire.ChatMessage{
		Source:   b.self,
		Sequence: b.nextSequence(),
		From:     b.self,
		Nickname: b.nickname,
		Content:  content,
	}
	return msg.ID(), b.originate(ctx, msg)
}

// Leave originates the notification that this node leaves the mesh.
func (b *broadcaster) Leave(ctx context.Context) (wire.MessageID, error) {
	msg := &wire.ConnectionClosed{
		Source:   b.self,
		Sequence: b.nextSequence(),
		From:     b.self,
		Nickname: b.nickname,
	}
	return msg.ID(), b.originate(ctx, msg)
}

func (b *broadcaster) handleChat(ctx context.Context, msg *wire.ChatMessage) {
	b.peers.Touch(msg.From, time.Now())
	if !b.dedup.Add(msg.ID()) {
		return
	}

	b.emit(ctx, ChatReceived{
		ID:       msg.ID(),
		Nickname: msg.Nickname,
		Content:  msg.Content,
	})

	fwd := *msg
	fwd.From = b.self
	b.forward(ctx, &fwd, msg.From)
}

func (b *broadcaster) handleClosed(ctx context.Context, msg *wire.ConnectionClosed) {
	b.peers.Touch(msg.From, time.Now())
	if !b.dedup.Add(msg.ID()) {
		return
	}

	_, wasPeer := b.peers.Remove(msg.Source)
	logger.Get(ctx).Info("Node left", zap.Stringer("peer", msg.Source), zap.Bool("wasPeer", wasPeer))
	b.emit(ctx, PeerLeft{
		ID:       msg.Source,
		Nickname: msg.Nickname,
		WasPeer:  wasPeer,
	})

	fwd := *msg
	fwd.From = b.self
	b.forward(ctx, &fwd, msg.From)
}

func (b *broadcaster) nextSequence() wire.Sequence {
	return wire.Sequence(b.sequence.Add(1))
}

// originate marks message as processed, so its echoes coming back through the mesh are ignored,
// and sends it to all the peers.
func (b *broadcaster) originate(ctx context.Context, msg wire.Flooded) error {
	payload, err := b.out.Encode(msg)
	if err != nil {
		return err
	}

	b.dedup.Add(msg.ID())
	b.send(ctx, payload, b.self)
	return nil
}

func (b *broadcaster) forward(ctx context.Context, msg wire.Flooded, receivedFrom wire.NodeID) {
	payload, err := b.out.Encode(msg)
	if err != nil {
		logger.Get(ctx).Error("Encoding forwarded message failed", zap.Error(err))
		return
	}
	b.send(ctx, payload, receivedFrom)
}

func (b *broadcaster) send(ctx context.Context, payload []byte, except wire.NodeID) {
	log := logger.Get(ctx)
	for _, p := range b.peers.Targets(except) {
		if err := b.out.SendPayload(p.Address, payload); err != nil {
			log.Error("Sending message failed", zap.Stringer("peer", p.ID), zap.Error(err))
		}
	}
}

package meshchat

import (
	"context"
	"math/rand/v2"
	"net/netip"
	"slices"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/meshchat/wire"
)

var errLimitReached = errors.New("connection limit reached")

type emitFunc func(ctx context.Context, event any)

type connManager struct {
	config     Config
	candidates Roster
	peers      *peerTable
	out        outbox
	emit       emitFunc
}

func newConnManager(config Config, peers *peerTable, out outbox, emit emitFunc) *connManager {
	return &connManager{
		config:     config,
		candidates: config.Roster.Without(config.NodeID),
		peers:      peers,
		out:        out,
		emit:       emit,
	}
}

// Run dials the roster on start and then whenever the bootstrap or top-up timer decides
// the node needs more peers.
func (cm *connManager) Run(ctx context.Context) error {
	if err := cm.sweep(ctx, true); err != nil {
		return err
	}

	bootstrap := time.NewTicker(cm.config.BootstrapInterval)
	defer bootstrap.Stop()

	topUp := time.NewTicker(cm.config.TopUpInterval)
	defer topUp.Stop()

	for {
		select {
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		case <-bootstrap.C:
			if cm.peers.Len() > 0 {
				continue
			}
			if err := cm.sweep(ctx, true); err != nil {
				return err
			}
		case <-topUp.C:
			if cm.peers.Len() >= cm.config.MaxOutgoing {
				continue
			}
			if err := cm.sweep(ctx, false); err != nil {
				return err
			}
		}
	}
}

// sweep sends connection requests to the roster members in random order until the node
// can't take more outgoing connections. Acknowledgements exceeding the limit are refused by
// the peer table.
func (cm *connManager) sweep(ctx context.Context, paced bool) error {
	if cm.peers.DialBudget() <= 0 {
		return nil
	}

	log := logger.Get(ctx)

	outgoing, incoming := cm.peers.Counts()
	log.Debug("Dialing roster", zap.Int("outgoing", outgoing), zap.Int("incoming", incoming),
		zap.Bool("paced", paced))

	candidates := slices.Clone(cm.candidates)
	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	for _, m := range candidates {
		if cm.peers.DialBudget() <= 0 {
			break
		}
		if cm.peers.Contains(m.ID) {
			continue
		}

		addr, err := m.Resolve()
		if err != nil {
			log.Error("Peer address unresolvable", zap.Stringer("peer", m.ID), zap.Error(err))
			continue
		}

		log.Debug("Requesting connection", zap.Stringer("peer", m.ID), zap.Stringer("address", addr))
		if err := cm.out.Send(addr, &wire.ConnectionRequest{
			From:     cm.config.NodeID,
			Nickname: cm.config.Nickname,
		}); err != nil {
			log.Error("Sending connection request failed", zap.Stringer("peer", m.ID), zap.Error(err))
			continue
		}

		if paced {
			select {
			case <-ctx.Done():
				return errors.WithStack(ctx.Err())
			case <-time.After(cm.config.DialPacing):
			}
		}
	}

	return nil
}

func (cm *connManager) handleRequest(ctx context.Context, from netip.AddrPort, msg *wire.ConnectionRequest) {
	if msg.From == cm.config.NodeID {
		return
	}

	log := logger.Get(ctx).With(zap.Stringer("peer", msg.From))

	peer, reason := cm.peers.Admit(msg.From, from, msg.Nickname, time.Now())
	var reply wire.Message
	if reason == "" {
		log.Info("Peer connected", zap.Stringer("direction", Incoming))
		reply = &wire.ConnectionAck{From: cm.config.NodeID, Nickname: cm.config.Nickname}
	} else {
		log.Debug("Connection rejected", zap.String("reason", reason))
		reply = &wire.ConnectionFail{From: cm.config.NodeID, Reason: reason}
	}

	if err := cm.out.Send(from, reply); err != nil {
		log.Error("Sending handshake reply failed", zap.Error(err))
	}

	if reason == "" {
		cm.emit(ctx, PeerConnected{Peer: peer})
	}
}

func (cm *connManager) handleAck(ctx context.Context, from netip.AddrPort, msg *wire.ConnectionAck) {
	if msg.From == cm.config.NodeID {
		return
	}

	log := logger.Get(ctx).With(zap.Stringer("peer", msg.From))

	peer, inserted, err := cm.peers.Acknowledge(msg.From, from, msg.Nickname, time.Now())
	switch {
	case err != nil:
		log.Debug("Acknowledgement dropped", zap.Error(err))
	case inserted:
		log.Info("Peer connected", zap.Stringer("direction", Outgoing))
		cm.emit(ctx, PeerConnected{Peer: peer})
	}
}

func (cm *connManager) handleFail(ctx context.Context, msg *wire.ConnectionFail) {
	logger.Get(ctx).Debug("Connection request rejected",
		zap.Stringer("peer", msg.From), zap.String("reason", msg.Reason))
}

package meshchat

import (
	"net/netip"

	"github.com/pkg/errors"

	"github.com/outofforest/meshchat/transport"
	"github.com/outofforest/meshchat/wire"
)

type outbox struct {
	transport      transport.Transport
	maxMessageSize uint64
}

func (o outbox) Encode(msg wire.Message) ([]byte, error) {
	payload, err := wire.Marshal(msg)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > o.maxMessageSize {
		return nil, errors.Errorf("message of %d bytes exceeds the limit of %d bytes", len(payload), o.maxMessageSize)
	}
	return payload, nil
}

func (o outbox) Send(to netip.AddrPort, msg wire.Message) error {
	payload, err := o.Encode(msg)
	if err != nil {
		return err
	}
	return o.transport.Send(to, payload)
}

func (o outbox) SendPayload(to netip.AddrPort, payload []byte) error {
	return o.transport.Send(to, payload)
}

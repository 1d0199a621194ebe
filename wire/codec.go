package wire

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Message tags used on the wire.
const (
	TagConnectionRequest = "ConnectionRequest"
	TagConnectionAck     = "ConnectionAck"
	TagConnectionFail    = "ConnectionFail"
	TagConnectionClosed  = "ConnectionClosed"
	TagChatMessage       = "ChatMessage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// frame is the union of all the fields transmitted on the wire.
// Pointers distinguish missing fields from zero values.
type frame struct {
	Type           string    `json:"type"`
	SourceNode     *NodeID   `json:"source_node,omitempty"`
	SequenceNumber *Sequence `json:"sequence_number,omitempty"`
	FromNode       *NodeID   `json:"from_node,omitempty"`
	Nickname       *string   `json:"nickname,omitempty"`
	Reason         *string   `json:"reason,omitempty"`
	Content        *string   `json:"content,omitempty"`
}

// Marshal encodes message.
func Marshal(msg Message) ([]byte, error) {
	var f frame
	switch m := msg.(type) {
	case *ConnectionRequest:
		f = frame{FromNode: &m.From, Nickname: &m.Nickname}
	case *ConnectionAck:
		f = frame{FromNode: &m.From, Nickname: &m.Nickname}
	case *ConnectionFail:
		f = frame{FromNode: &m.From, Reason: &m.Reason}
	case *ConnectionClosed:
		f = frame{SourceNode: &m.Source, SequenceNumber: &m.Sequence, FromNode: &m.From, Nickname: &m.Nickname}
	case *ChatMessage:
		f = frame{
			SourceNode:     &m.Source,
			SequenceNumber: &m.Sequence,
			FromNode:       &m.From,
			Nickname:       &m.Nickname,
			Content:        &m.Content,
		}
	default:
		return nil, errors.Errorf("unknown message type %T", msg)
	}
	f.Type = msg.tag()

	data, err := json.Marshal(f)
	return data, errors.WithStack(err)
}

// Unmarshal decodes message.
func Unmarshal(data []byte) (Message, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.WithStack(err)
	}

	switch f.Type {
	case TagConnectionRequest:
		if f.FromNode == nil || f.Nickname == nil {
			return nil, missingFields(f.Type)
		}
		return &ConnectionRequest{From: *f.FromNode, Nickname: *f.Nickname}, nil
	case TagConnectionAck:
		if f.FromNode == nil || f.Nickname == nil {
			return nil, missingFields(f.Type)
		}
		return &ConnectionAck{From: *f.FromNode, Nickname: *f.Nickname}, nil
	case TagConnectionFail:
		if f.FromNode == nil || f.Reason == nil {
			return nil, missingFields(f.Type)
		}
		return &ConnectionFail{From: *f.FromNode, Reason: *f.Reason}, nil
	case TagConnectionClosed:
		if f.SourceNode == nil || f.SequenceNumber == nil || f.FromNode == nil || f.Nickname == nil {
			return nil, missingFields(f.Type)
		}
		return &ConnectionClosed{
			Source:   *f.SourceNode,
			Sequence: *f.SequenceNumber,
			From:     *f.FromNode,
			Nickname: *f.Nickname,
		}, nil
	case TagChatMessage:
		if f.SourceNode == nil || f.SequenceNumber == nil || f.FromNode == nil || f.Nickname == nil ||
			f.Content == nil {
			return nil, missingFields(f.Type)
		}
		return &ChatMessage{
			Source:   *f.SourceNode,
			Sequence: *f.SequenceNumber,
			From:     *f.FromNode,
			Nickname: *f.Nickname,
			Content:  *f.Content,
		}, nil
	default:
		return nil, errors.Errorf("unknown message tag %q", f.Type)
	}
}

func missingFields(tag string) error {
	return errors.Errorf("message %s is missing required fields", tag)
}

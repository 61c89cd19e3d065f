package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeUserMessage    MessageType = "user_message"
	TypeAssistantReply MessageType = "assistant_reply"
	TypeErrorEvent     MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// UserMessage is one prompt submitted over the websocket.
type UserMessage struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// AssistantReply carries the normalized reply for one turn.
type AssistantReply struct {
	Type   MessageType `json:"type"`
	TurnID string      `json:"turn_id"`
	Text   string      `json:"text"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (UserMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return UserMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeUserMessage:
		var msg UserMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return UserMessage{}, err
		}
		if msg.Text == "" {
			return UserMessage{}, errors.New("invalid user_message")
		}
		return msg, nil
	default:
		return UserMessage{}, ErrUnsupportedType
	}
}

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ent0n29/taskbot/internal/activity"
)

// MessageType identifies websocket payload variants of the activity feed.
type MessageType string

const (
	TypeClientSubscribe MessageType = "subscribe"
	TypeClientPing      MessageType = "ping"
	TypeActivityEvent   MessageType = "activity_event"
	TypeSystemEvent     MessageType = "system_event"
	TypeErrorEvent      MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ClientSubscribe narrows the feed to one chat. ChatID 0 restores the full feed.
type ClientSubscribe struct {
	Type   MessageType `json:"type"`
	ChatID int64       `json:"chat_id"`
	// Replay asks for up to this many recent events before live ones.
	Replay int `json:"replay,omitempty"`
}

type ClientPing struct {
	Type MessageType `json:"type"`
	TSMs int64       `json:"ts_ms"`
}

type ActivityEvent struct {
	Type  MessageType    `json:"type"`
	Event activity.Event `json:"event"`
}

type SystemEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

func NewActivityEvent(evt activity.Event) ActivityEvent {
	return ActivityEvent{Type: TypeActivityEvent, Event: evt}
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientSubscribe:
		var msg ClientSubscribe
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Replay < 0 || msg.Replay > 500 {
			return nil, errors.New("invalid subscribe: replay must be within 0..500")
		}
		return msg, nil
	case TypeClientPing:
		var msg ClientPing
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

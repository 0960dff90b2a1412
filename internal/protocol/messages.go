package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Update is the subset of a Telegram webhook payload the bot consumes.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *Peer  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat,omitempty"`
	Text      string `json:"text,omitempty"`
}

type Peer struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

var ErrNoMessage = errors.New("update carries no text message")

// ParseUpdate decodes a webhook payload and validates the fields the bot
// needs. Updates without a textual message (edits, joins, stickers) yield
// ErrNoMessage and should be acknowledged and dropped.
func ParseUpdate(raw []byte) (Update, error) {
	var upd Update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return Update{}, fmt.Errorf("invalid update: %w", err)
	}
	if upd.Message == nil || upd.Message.From == nil || strings.TrimSpace(upd.Message.Text) == "" {
		return Update{}, ErrNoMessage
	}
	if upd.Message.From.ID == 0 {
		return Update{}, errors.New("update message has no sender id")
	}
	return upd, nil
}

// MessageType identifies websocket console frames.
type MessageType string

const (
	TypeChatMessage MessageType = "chat_message"
	TypeChatReply   MessageType = "chat_reply"
	TypeErrorEvent  MessageType = "error_event"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

// ChatMessage is an inbound console frame: one chat turn from a principal.
type ChatMessage struct {
	Type     MessageType `json:"type"`
	UserID   int64       `json:"user_id"`
	Username string      `json:"username,omitempty"`
	Text     string      `json:"text"`
}

// ChatReply is the outbound reply frame.
type ChatReply struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

type ErrorEvent struct {
	Type   MessageType `json:"type"`
	Code   string      `json:"code"`
	Detail string      `json:"detail"`
}

// ParseClientMessage decodes an inbound websocket frame.
func ParseClientMessage(raw []byte) (ChatMessage, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ChatMessage{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type != TypeChatMessage {
		return ChatMessage{}, ErrUnsupportedType
	}

	var msg ChatMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ChatMessage{}, err
	}
	if msg.UserID == 0 || strings.TrimSpace(msg.Text) == "" {
		return ChatMessage{}, errors.New("invalid chat_message")
	}
	return msg, nil
}

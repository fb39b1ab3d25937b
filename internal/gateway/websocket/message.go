package websocket

import "encoding/json"

type MessageType string

const (
	TypeAuth       MessageType = "auth"
	TypeAuthResult MessageType = "auth_result"
	TypeCommand    MessageType = "command"
	TypeMessage    MessageType = "message"
	TypeReply      MessageType = "reply"
	TypeDM         MessageType = "dm"
	TypeError      MessageType = "error"
	TypeShutdown   MessageType = "shutdown"
)

func (mt MessageType) String() string {
	return string(mt)
}

func (mt MessageType) IsInbound() bool {
	switch mt {
	case TypeAuth, TypeCommand, TypeMessage:
		return true
	default:
		return false
	}
}

type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type AuthResultPayload struct {
	Authenticated bool   `json:"authenticated"`
	ExternalID    string `json:"external_id,omitempty"`
	Code          string `json:"code,omitempty"`
	Message       string `json:"message,omitempty"`
}

type UserOption struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Tag      string `json:"tag,omitempty"`
	Bot      bool   `json:"bot,omitempty"`
}

type CommandOptions struct {
	User   *UserOption `json:"user,omitempty"`
	Amount *int64      `json:"amount,omitempty"`
	Limit  *int        `json:"limit,omitempty"`
}

type CommandPayload struct {
	Name    string         `json:"name"`
	Options CommandOptions `json:"options"`
}

type MessagePayload struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type Embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
}

type ReplyPayload struct {
	Command string `json:"command,omitempty"`
	Text    string `json:"text,omitempty"`
	Embed   *Embed `json:"embed,omitempty"`
}

type DMPayload struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

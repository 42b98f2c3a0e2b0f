// Package chat frames the messages exchanged over a session's data channel.
package chat

import (
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Channel message types.
const (
	// TypeText carries one chat line.
	TypeText = "text"

	// TypeBye tells the peer we are hanging up before the transport is
	// torn down, so both sides converge on a clean disconnect.
	TypeBye = "bye"
)

// Message represents all data channel messages.
type Message struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload,omitempty"`
}

// TextPayload is the body of a TypeText message.
type TextPayload struct {
	From   string    `msgpack:"from"`
	Body   string    `msgpack:"body"`
	SentAt time.Time `msgpack:"sentAt"`
}

// NewMessage creates a Message with the given type and payload.
func NewMessage(t string, payload any) (Message, error) {
	if payload == nil {
		return Message{Type: t}, nil
	}
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: b}, nil
}

// Encode serializes the message for the data channel.
func (m Message) Encode() ([]byte, error) {
	return msgpack.Marshal(m)
}

// DecodePayload decodes the message payload into v.
func (m Message) DecodePayload(v any) error {
	return msgpack.Unmarshal(m.Payload, v)
}

// Decode parses a raw data channel frame.
func Decode(data []byte) (Message, error) {
	var m Message
	err := msgpack.Unmarshal(data, &m)
	return m, err
}

// EncodeText builds and serializes a chat line in one step.
func EncodeText(from, body string) ([]byte, error) {
	msg, err := NewMessage(TypeText, TextPayload{From: from, Body: body, SentAt: time.Now()})
	if err != nil {
		return nil, err
	}
	return msg.Encode()
}

// EncodeBye serializes a hang-up notice.
func EncodeBye() ([]byte, error) {
	msg, err := NewMessage(TypeBye, nil)
	if err != nil {
		return nil, err
	}
	return msg.Encode()
}

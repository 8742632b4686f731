// Package protocol is the JSON wire format of the robot link. Robots send one
// state per control cycle and get one command back; params and ping/pong are
// out of band. Shared by pkg/link (robot side) and pkg/bridge (controller).
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnexpectedType is returned when a message does not carry the expected type.
	ErrUnexpectedType = errors.New("protocol: unexpected message type")

	// ErrNoData is returned when a typed message has an empty payload.
	ErrNoData = errors.New("protocol: message has no data")
)

// MessageType names the payload carried in Data.
type MessageType string

const (
	TypeState   MessageType = "state"   // Robot → controller, one per cycle
	TypeCommand MessageType = "command" // Controller → robot, answers a state
	TypeParams  MessageType = "params"  // Controller → robot, informational
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
)

// Message is the envelope of every frame on the link.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage wraps data, stamped with the current time. nil data leaves the
// payload empty.
func NewMessage(t MessageType, data any) (*Message, error) {
	m := &Message{Type: t, Timestamp: time.Now().UnixMilli()}
	if data == nil {
		return m, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("protocol: encode %s: %w", t, err)
	}
	m.Data = raw
	return m, nil
}

// ParseMessage decodes an envelope. The payload is decoded later by the
// typed getters.
func ParseMessage(data []byte) (*Message, error) {
	m := new(Message)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return m, nil
}

// Bytes returns the encoded envelope.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// decode checks the message type and decodes the payload into a new T.
func decode[T any](m *Message, want MessageType) (*T, error) {
	if m.Type != want {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrUnexpectedType, m.Type, want)
	}
	if len(m.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, want)
	}
	v := new(T)
	if err := json.Unmarshal(m.Data, v); err != nil {
		return nil, fmt.Errorf("protocol: decode %s: %w", want, err)
	}
	return v, nil
}

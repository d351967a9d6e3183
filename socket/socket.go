package socket

import (
	"encoding/json"
	"errors"
)

// Type routes an inbound envelope to its handler.
type Type string

const (
	TypeEcho         Type = "ECHO"
	TypeEchoTimes3   Type = "ECHO_TIMES_3"
	TypeEchoToAll    Type = "ECHO_TO_ALL"
	TypeCreateGroup  Type = "CREATE_GROUP"
	TypeJoinGroup    Type = "JOIN_GROUP"
	TypeMessageGroup Type = "MESSAGE_GROUP"
)

// Envelope is the request frame clients send to the server. Responses are
// plain text frames.
type Envelope struct {
	Type  Type            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// NewEnvelope encodes value as the envelope payload.
func NewEnvelope(t Type, value interface{}) (Envelope, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: t, Value: raw}, nil
}

// GroupMessage is the value of a MESSAGE_GROUP envelope.
type GroupMessage struct {
	GroupName    string `json:"groupName"`
	GroupMessage string `json:"groupMessage"`
}

// Socket is the server side of one client connection.
type Socket interface {
	ID() string

	// Send writes a single text frame.
	Send(text string) error

	Close() error

	// IsConnected reports false once either side has closed the connection.
	IsConnected() bool
}

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrInvalidMessage   = errors.New("invalid message format")
	ErrUnknownType      = errors.New("unknown message type")
)

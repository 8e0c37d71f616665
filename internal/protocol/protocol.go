package protocol

import (
	"encoding/json"
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeEvent carries one typing engine event
	TypeEvent MessageType = "event"

	// TypeStatus carries the full control status
	TypeStatus MessageType = "status"

	// TypeStatusRequest is sent by a client to get a TypeStatus reply
	TypeStatusRequest MessageType = "status_req"

	// TypePing can be used for application-level heartbeats if needed
	TypePing MessageType = "ping"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// EventPayload is the payload for TypeEvent
type EventPayload struct {
	Type     string    `json:"type"`
	RunID    string    `json:"run_id"`
	Word     string    `json:"word,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Time     time.Time `json:"time"`
}

// DecodePayload converts a decoded message payload into a concrete type
func DecodePayload(msg Message, v interface{}) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

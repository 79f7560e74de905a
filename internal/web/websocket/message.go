package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Message types handled by the hub itself.
const (
	TypePing   = "ping"
	TypePong   = "pong"
	TypeStatus = "status"
	TypeError  = "error"
)

// Message is the envelope of every frame. Payload is encoded into Data on
// the way out; handlers decode Data on the way in.
type Message struct {
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data,omitempty"`
	Payload interface{}     `json:"-"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type statusPayload struct {
	ClientID  string   `json:"clientId"`
	Connected string   `json:"connected"`
	LastSeen  string   `json:"lastSeen"`
	Rooms     []string `json:"rooms"`
}

// marshalMessage encodes message without touching it.
func marshalMessage(message *Message) ([]byte, error) {
	out := *message
	if message.Payload != nil {
		data, err := json.Marshal(message.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", message.Type, err)
		}
		out.Data = data
	}
	return json.Marshal(&out)
}

// Decode unmarshals the message data into v.
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty message data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("invalid %s message: %w", m.Type, err)
	}
	return nil
}

func pingHandler(ctx context.Context, client *Client, message *Message) error {
	return client.SendJSON(TypePong, map[string]json.RawMessage{"timestamp": message.Data})
}

// statusHandler tells an editor window which documents it is subscribed to.
func statusHandler(ctx context.Context, client *Client, message *Message) error {
	return client.SendJSON(TypeStatus, statusPayload{
		ClientID:  client.ID,
		Connected: client.Connected().Round(time.Second).String(),
		LastSeen:  client.LastSeen().Format(time.RFC3339),
		Rooms:     client.Rooms(),
	})
}

// registerDefaultHandlers installs ping and status.
func registerDefaultHandlers(hub *Hub) {
	hub.RegisterHandler(TypePing, pingHandler)
	hub.RegisterHandler(TypeStatus, statusHandler)
}

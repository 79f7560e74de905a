package editor

import (
	"github.com/easyblocks/easyblocks/internal/web/websocket"
)

// Message types exchanged with editor windows.
const (
	MsgJoin     = "editor/join"
	MsgLeave    = "editor/leave"
	MsgCommand  = "editor/command"
	MsgSave     = "editor/save"
	MsgSnapshot = "editor/snapshot"
	MsgSaved    = "editor/saved"
)

// Transport delivers snapshots to every window showing a document.
type Transport interface {
	Publish(documentID string, snap *Snapshot) error
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(documentID string, snap *Snapshot) error

// Publish implements Transport.
func (f TransportFunc) Publish(documentID string, snap *Snapshot) error {
	return f(documentID, snap)
}

// Discard drops every snapshot.
var Discard Transport = TransportFunc(func(string, *Snapshot) error { return nil })

// Room is the websocket room of a document.
func Room(documentID string) string {
	return "document:" + documentID
}

// HubTransport broadcasts snapshots to the document's room.
type HubTransport struct {
	Hub *websocket.Hub
}

// Publish implements Transport.
func (t HubTransport) Publish(documentID string, snap *Snapshot) error {
	t.Hub.BroadcastToRoom(Room(documentID), &websocket.Message{Type: MsgSnapshot, Payload: snap})
	return nil
}

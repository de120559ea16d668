package ws

import (
	"github.com/agora/internal/model"
)

type EventType string

const (
	// client -> server
	EventJoinRoom    EventType = "join_room"
	EventLeaveRoom   EventType = "leave_room"
	EventNewMessage  EventType = "new_message"
	EventEditMessage EventType = "edit_message"
	EventDeleteMsg   EventType = "delete_message"
	EventHeartbeat   EventType = "heartbeat"
	EventOpenDirect  EventType = "open_direct"

	// server -> client
	EventRoomSnapshot EventType = "room_snapshot"
	EventOnlineUsers  EventType = "online_users"
	EventDirectOpened EventType = "direct_opened"
	EventError        EventType = "error"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	RoomID string    `json:"room_id,omitempty"`
	Body   string    `json:"body,omitempty"`

	// For edit/delete
	MessageID string `json:"message_id,omitempty"`

	// For open_direct
	PeerID string `json:"peer_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// RoomSnapshotPayload carries the full re-sorted state of one room. Clients
// replace their local copy wholesale; there are no incremental deltas.
type RoomSnapshotPayload struct {
	RoomID   string          `json:"room_id"`
	Messages []model.Message `json:"messages"`
}

// OnlinePayload is the current online roster.
type OnlinePayload struct {
	Users []model.PresenceRecord `json:"users"`
}

// DirectOpenedPayload answers open_direct with the canonical room.
type DirectOpenedPayload struct {
	RoomID    string `json:"room_id"`
	ThreadKey string `json:"thread_key"`
}

package model

import (
	"errors"
	"strings"
)

type RoomKind string

const (
	RoomGlobal   RoomKind = "global"
	RoomLocation RoomKind = "location"
	RoomDirect   RoomKind = "direct"
)

var ErrInvalidRoom = errors.New("invalid room")

// Room is a delivery scope for messages: the single broadcast room, a
// location-bound room, or a two-party direct thread.
type Room struct {
	Kind       RoomKind `json:"kind"`
	LocationID string   `json:"location_id,omitempty"`
	ThreadKey  string   `json:"thread_key,omitempty"`
}

func GlobalRoom() Room {
	return Room{Kind: RoomGlobal}
}

func LocationRoom(locationID string) Room {
	return Room{Kind: RoomLocation, LocationID: locationID}
}

func DirectRoom(threadKey string) Room {
	return Room{Kind: RoomDirect, ThreadKey: threadKey}
}

// ID returns the storage/topic identifier for the room: "global",
// "loc:<locationId>" or "dm:<threadKey>".
func (r Room) ID() string {
	switch r.Kind {
	case RoomGlobal:
		return "global"
	case RoomLocation:
		return "loc:" + r.LocationID
	case RoomDirect:
		return "dm:" + r.ThreadKey
	}
	return ""
}

func (r Room) Validate() error {
	switch r.Kind {
	case RoomGlobal:
		return nil
	case RoomLocation:
		if r.LocationID == "" {
			return ErrInvalidRoom
		}
		return nil
	case RoomDirect:
		if r.ThreadKey == "" {
			return ErrInvalidRoom
		}
		return nil
	}
	return ErrInvalidRoom
}

// ParseRoomID is the inverse of Room.ID.
func ParseRoomID(id string) (Room, error) {
	switch {
	case id == "global":
		return GlobalRoom(), nil
	case strings.HasPrefix(id, "loc:") && len(id) > 4:
		return LocationRoom(id[4:]), nil
	case strings.HasPrefix(id, "dm:") && len(id) > 3:
		return DirectRoom(id[3:]), nil
	}
	return Room{}, ErrInvalidRoom
}

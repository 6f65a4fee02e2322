package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// RoomCreatedEvent is emitted when the first join creates a room.
type RoomCreatedEvent struct {
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomReapedEvent is emitted when the reaper removes an idle, empty room.
type RoomReapedEvent struct {
	RoomID    string        `json:"roomId"`
	IdleFor   time.Duration `json:"idleFor"`
	Timestamp time.Time     `json:"timestamp"`
}

// MemberJoinedEvent is emitted when a session joins a room.
type MemberJoinedEvent struct {
	RoomID    string    `json:"roomId"`
	ClientID  string    `json:"clientId"`
	UserName  string    `json:"userName"`
	Members   int       `json:"members"`
	Timestamp time.Time `json:"timestamp"`
}

// MemberLeftEvent is emitted when a joined session disconnects.
type MemberLeftEvent struct {
	RoomID    string    `json:"roomId"`
	ClientID  string    `json:"clientId"`
	UserName  string    `json:"userName"`
	Members   int       `json:"members"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the canvas domain.
var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent](
		"canvas",
		"RoomCreated",
		"v1",
	)

	RoomReapedV1 = helper.EventDefinition[RoomReapedEvent](
		"canvas",
		"RoomReaped",
		"v1",
	)

	MemberJoinedV1 = helper.EventDefinition[MemberJoinedEvent](
		"canvas",
		"MemberJoined",
		"v1",
	)

	MemberLeftV1 = helper.EventDefinition[MemberLeftEvent](
		"canvas",
		"MemberLeft",
		"v1",
	)
)

package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Departure reasons carried by UserLeftEvent.
const (
	LeftExplicit         = "leave"
	LeftTransportClosed  = "transport_closed"
	LeftHeartbeatTimeout = "heartbeat_timeout"
	LeftSendOverflow     = "send_overflow"
	LeftWriteFailed      = "write_failed"
	LeftReplaced         = "session_replaced"
	LeftJoinFailed       = "join_failed"
	LeftShutdown         = "shutdown"
)

// RoomCreatedEvent is emitted after a room is registered.
type RoomCreatedEvent struct {
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	CreatedBy string    `json:"created_by"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a connection attaches to a room.
type UserJoinedEvent struct {
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	ConnectionID string    `json:"connection_id"`
	Replaced     bool      `json:"replaced"`
	UsersCount   int       `json:"users_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted exactly once per detached connection.
type UserLeftEvent struct {
	RoomID       string    `json:"room_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username"`
	ConnectionID string    `json:"connection_id"`
	Reason       string    `json:"reason"`
	UsersCount   int       `json:"users_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// MessageSentEvent is emitted for every accepted chat message.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	Seq       uint64    `json:"seq"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Length    int       `json:"length"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomRetiredEvent is emitted when the idle reaper removes a room.
type RoomRetiredEvent struct {
	RoomID    string        `json:"room_id"`
	IdleFor   time.Duration `json:"idle_for"`
	Timestamp time.Time     `json:"timestamp"`
}

var (
	RoomCreatedV1 = helper.EventDefinition[RoomCreatedEvent]("chat", "RoomCreated", "v1")
	UserJoinedV1  = helper.EventDefinition[UserJoinedEvent]("chat", "UserJoined", "v1")
	UserLeftV1    = helper.EventDefinition[UserLeftEvent]("chat", "UserLeft", "v1")
	MessageSentV1 = helper.EventDefinition[MessageSentEvent]("chat", "MessageSent", "v1")
	RoomRetiredV1 = helper.EventDefinition[RoomRetiredEvent]("chat", "RoomRetired", "v1")
)

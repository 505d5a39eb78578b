package api

import (
	"time"

	domain "github.com/example/workspace-chat/domain/chat"
)

// CreateRoomRequest is the body of POST /api/create-room.
type CreateRoomRequest struct {
	RoomName string `json:"room_name"`
	Username string `json:"username"`
}

// CreateRoomResponse is returned once a room is created.
type CreateRoomResponse struct {
	RoomID     string `json:"room_id"`
	RoomName   string `json:"room_name"`
	UserID     string `json:"user_id"`
	InviteLink string `json:"invite_link"`
	Message    string `json:"message"`
}

// JoinRoomRequest is the body of POST /api/room/:room_id/join.
type JoinRoomRequest struct {
	Username string `json:"username"`
}

// JoinRoomResponse is returned once a user is registered in a room.
type JoinRoomResponse struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	UserID   string `json:"user_id"`
	Message  string `json:"message"`
}

// MessagesResponse is the response of GET /api/room/:room_id/messages.
type MessagesResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
}

// RoomListResponse is the response of GET /api/rooms.
type RoomListResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status           string    `json:"status"`
	ActiveRooms      int       `json:"active_rooms"`
	TotalConnections int       `json:"total_connections"`
	Timestamp        time.Time `json:"timestamp"`
}

package chat

import (
	"encoding/json"
	"errors"
	"time"

	domain "github.com/example/workspace-chat/domain/chat"
)

// Frame types exchanged over the WebSocket.
const (
	FrameJoinRoom    = "join_room"
	FrameLeaveRoom   = "leave_room"
	FrameMessage     = "message"
	FrameTyping      = "typing"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameUserJoined  = "user_joined"
	FrameUserLeft    = "user_left"
	FrameUsersUpdate = "users_update"
	FrameRoomInfo    = "room_info"
	FrameError       = "error"
)

// Error frame codes that are not domain error kinds.
const (
	CodeInvalidFrame    = "invalid_frame"
	CodeRateLimited     = "rate_limited"
	CodeSessionReplaced = "session_replaced"
)

// InboundFrame is any frame a client may send.
type InboundFrame struct {
	Type     string `json:"type"`
	Content  string `json:"content,omitempty"`
	Username string `json:"username,omitempty"`
	IsTyping bool   `json:"is_typing,omitempty"`
}

// MessageFrame relays an accepted chat message to every member.
type MessageFrame struct {
	Type string `json:"type"`
	domain.Message
}

// PresenceFrame announces a join or a departure.
type PresenceFrame struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username"`
	Timestamp  time.Time `json:"timestamp"`
	UsersCount int       `json:"users_count"`
}

// UsersUpdateFrame carries the full online member list.
type UsersUpdateFrame struct {
	Type       string          `json:"type"`
	Users      []domain.Member `json:"users"`
	UsersCount int             `json:"users_count"`
}

// RoomInfoFrame is the snapshot sent to a connection right after it joins.
type RoomInfoFrame struct {
	Type           string           `json:"type"`
	RoomID         string           `json:"room_id"`
	RoomName       string           `json:"room_name"`
	Users          []domain.Member  `json:"users"`
	RecentMessages []domain.Message `json:"recent_messages"`
}

// TypingFrame relays a typing indicator to the other members.
type TypingFrame struct {
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsTyping bool   `json:"is_typing"`
}

// PongFrame answers a ping.
type PongFrame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorFrame reports a failure to the offending client only.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message"`
}

// errorFrame maps err onto an error frame. Domain errors keep their kind as
// code and their reason.
func errorFrame(err error) ErrorFrame {
	var e *Error
	if errors.As(err, &e) {
		return ErrorFrame{Type: FrameError, Code: string(e.Kind), Reason: e.Reason, Message: e.Message}
	}
	return ErrorFrame{Type: FrameError, Code: "internal_error", Message: err.Error()}
}

var encodeFailedFrame = []byte(`{"type":"error","code":"internal_error","message":"frame encoding failed"}`)

func encodeFrame(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return encodeFailedFrame
	}
	return data
}

package chat

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/example/workspace-chat/config"
	domain "github.com/example/workspace-chat/domain/chat"
)

// Limits bounds user supplied text.
type Limits struct {
	MaxRoomName int
	MaxUsername int
	MaxMessage  int
}

// LimitsFromConfig extracts the text limits from cfg.
func LimitsFromConfig(cfg config.Config) Limits {
	return Limits{
		MaxRoomName: cfg.MaxRoomNameLength,
		MaxUsername: cfg.MaxUsernameLength,
		MaxMessage:  cfg.MaxMessageLength,
	}
}

// ValidateRoomName returns the trimmed name or a validation error.
func (l Limits) ValidateRoomName(name string) (string, error) {
	return validateText(name, l.MaxRoomName, ErrRoomNameEmpty, ErrRoomNameTooLong, ErrRoomNameInvalid)
}

// ValidateUsername returns the trimmed username or a validation error.
func (l Limits) ValidateUsername(username string) (string, error) {
	return validateText(username, l.MaxUsername, ErrUsernameEmpty, ErrUsernameTooLong, ErrUsernameInvalid)
}

// ValidateMessage checks message content. Content is stored as sent.
func (l Limits) ValidateMessage(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrMessageEmpty
	}
	if !utf8.ValidString(content) {
		return ErrMessageInvalid
	}
	if utf8.RuneCountInString(content) > l.MaxMessage {
		return ErrMessageTooLong
	}
	return nil
}

func validateText(s string, max int, empty, tooLong, invalid error) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", empty
	}
	if !utf8.ValidString(s) {
		return "", invalid
	}
	if utf8.RuneCountInString(s) > max {
		return "", tooLong
	}
	return s, nil
}

// ServiceError carries a domain error across a request-reply hop.
type ServiceError struct {
	ErrorCode string `json:"error_code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Err rebuilds the domain error, nil when the call succeeded.
func (s ServiceError) Err() error {
	return ErrorFromReason(s.ErrorCode, s.Error)
}

func serviceError(err error) ServiceError {
	if err == nil {
		return ServiceError{}
	}
	var e *Error
	if errors.As(err, &e) {
		return ServiceError{ErrorCode: e.Reason, Error: e.Message}
	}
	return ServiceError{Error: err.Error()}
}

// CreateRoomRequest is the request for the create-room service.
type CreateRoomRequest struct {
	RoomName string `json:"room_name"`
	Username string `json:"username"`
}

// CreateRoomResponse is the reply of the create-room service.
type CreateRoomResponse struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	UserID   string `json:"user_id"`
	ServiceError
}

// GetRoomRequest is the request for the get-room service.
type GetRoomRequest struct {
	RoomID string `json:"room_id"`
}

// RoomResponse is the reply of the get-room service.
type RoomResponse struct {
	Room domain.RoomSummary `json:"room"`
	ServiceError
}

// JoinRoomRequest is the request for the join-room service.
type JoinRoomRequest struct {
	RoomID   string `json:"room_id"`
	Username string `json:"username"`
}

// JoinRoomResponse is the reply of the join-room service.
type JoinRoomResponse struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	UserID   string `json:"user_id"`
	ServiceError
}

// RoomMessagesRequest is the request for the room-messages service.
// Limit <= 0 returns the whole history.
type RoomMessagesRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit"`
}

// RoomMessagesResponse is the reply of the room-messages service.
type RoomMessagesResponse struct {
	RoomID   string           `json:"room_id"`
	Messages []domain.Message `json:"messages"`
	ServiceError
}

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the reply of the list-rooms service.
type ListRoomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
	ServiceError
}

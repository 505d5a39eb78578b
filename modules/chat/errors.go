package chat

import "errors"

// Kind classifies domain errors for the HTTP and WebSocket edges.
type Kind string

const (
	KindValidation Kind = "validation_error"
	KindNotFound   Kind = "not_found"
	KindNotMember  Kind = "not_member"
	KindConflict   Kind = "conflict"
)

// Error is a classified domain error. Two errors match under errors.Is when
// their reasons are equal, so sentinels survive a serialization round trip.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same reason.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Reason == e.Reason
}

var sentinels = map[string]*Error{}

func newError(kind Kind, reason, message string) *Error {
	e := &Error{Kind: kind, Reason: reason, Message: message}
	sentinels[reason] = e
	return e
}

// Validation errors
var (
	ErrRoomNameEmpty   = newError(KindValidation, "room_name_empty", "room name cannot be empty")
	ErrRoomNameTooLong = newError(KindValidation, "room_name_too_long", "room name exceeds maximum length")
	ErrRoomNameInvalid = newError(KindValidation, "room_name_invalid", "room name contains invalid characters")
	ErrUsernameEmpty   = newError(KindValidation, "username_empty", "username cannot be empty")
	ErrUsernameTooLong = newError(KindValidation, "username_too_long", "username exceeds maximum length")
	ErrUsernameInvalid = newError(KindValidation, "username_invalid", "username contains invalid characters")
	ErrMessageEmpty    = newError(KindValidation, "message_empty", "message content cannot be empty")
	ErrMessageTooLong  = newError(KindValidation, "message_too_long", "message exceeds maximum length")
	ErrMessageInvalid  = newError(KindValidation, "message_invalid", "message contains invalid characters")
)

// Lookup, membership and state errors
var (
	ErrRoomNotFound     = newError(KindNotFound, "room_not_found", "room not found")
	ErrUserNotFound     = newError(KindNotFound, "user_not_found", "user not found in room")
	ErrNotMember        = newError(KindNotMember, "not_member", "user is not attached to this room")
	ErrUsernameTaken    = newError(KindConflict, "username_taken", "username already taken in this room")
	ErrAlreadyJoined    = newError(KindConflict, "already_joined", "connection already joined a room")
	ErrConnectionClosed = newError(KindConflict, "connection_closed", "connection is closed")
)

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ErrorFromReason rebuilds a domain error from its reason and message.
// Known reasons resolve to their sentinel.
func ErrorFromReason(reason, message string) error {
	if reason == "" && message == "" {
		return nil
	}
	if e, ok := sentinels[reason]; ok {
		return e
	}
	return errors.New(message)
}

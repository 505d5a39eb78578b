package chat

import "time"

// Message is one accepted chat message. Seq is assigned by the room and
// strictly increases in acceptance order.
type Message struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Member is a roster entry of a room. Online is true while the user holds a
// live connection.
type Member struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	JoinedAt  time.Time `json:"joined_at"`
	IsCreator bool      `json:"is_creator"`
	Online    bool      `json:"online"`
}

// RoomSummary is a point-in-time view of a room.
type RoomSummary struct {
	ID        string    `json:"room_id"`
	Name      string    `json:"room_name"`
	CreatedAt time.Time `json:"created_at"`
	UserCount int       `json:"user_count"`
	Users     []Member  `json:"users"`
}

package activity

import (
	"sort"
	"sync"
	"time"
)

// RoomStats is the activity recorded for one room.
type RoomStats struct {
	RoomID        string           `json:"room_id"`
	RoomName      string           `json:"room_name"`
	CreatedBy     string           `json:"created_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at,omitempty"`
	Messages      int64            `json:"messages"`
	MessageBytes  int64            `json:"message_bytes"`
	LastSeq       uint64           `json:"last_seq"`
	Joins         int64            `json:"joins"`
	Replacements  int64            `json:"replacements"`
	Departures    map[string]int64 `json:"departures"`
	OnlineUsers   int              `json:"online_users"`
	PeakUsers     int              `json:"peak_users"`
	LastMessageAt time.Time        `json:"last_message_at,omitempty"`
	LastActivity  time.Time        `json:"last_activity,omitempty"`
	Retired       bool             `json:"retired"`
}

// Summary aggregates the activity of every room seen so far.
type Summary struct {
	RoomsCreated int              `json:"rooms_created"`
	RoomsRetired int              `json:"rooms_retired"`
	ActiveRooms  int              `json:"active_rooms"`
	OnlineUsers  int              `json:"online_users"`
	Messages     int64            `json:"messages"`
	Joins        int64            `json:"joins"`
	Departures   map[string]int64 `json:"departures"`
	BusiestRooms []RoomStats      `json:"busiest_rooms"`
}

// busiestRoomsLimit bounds Summary.BusiestRooms.
const busiestRoomsLimit = 5

// Store provides thread-safe storage for room activity.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*RoomStats
}

// NewStore creates an empty activity store.
func NewStore() *Store {
	return &Store{rooms: make(map[string]*RoomStats)}
}

// entryLocked returns the stats of roomID, creating them when events arrive
// before the room's creation event.
func (s *Store) entryLocked(roomID string) *RoomStats {
	st, ok := s.rooms[roomID]
	if !ok {
		st = &RoomStats{RoomID: roomID, Departures: make(map[string]int64)}
		s.rooms[roomID] = st
	}
	return st
}

// RecordRoomCreated records a new room.
func (s *Store) RecordRoomCreated(roomID, name, createdBy string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entryLocked(roomID)
	st.RoomName = name
	st.CreatedBy = createdBy
	st.CreatedAt = at
	st.LastActivity = latest(st.LastActivity, at)
}

// RecordJoin records an attach. usersCount is the online count after it.
func (s *Store) RecordJoin(roomID string, replaced bool, usersCount int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entryLocked(roomID)
	st.Joins++
	if replaced {
		st.Replacements++
	}
	st.OnlineUsers = usersCount
	if usersCount > st.PeakUsers {
		st.PeakUsers = usersCount
	}
	st.LastActivity = latest(st.LastActivity, at)
}

// RecordLeave records a departure. usersCount is the online count after it.
func (s *Store) RecordLeave(roomID, reason string, usersCount int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entryLocked(roomID)
	st.Departures[reason]++
	st.OnlineUsers = usersCount
	st.LastActivity = latest(st.LastActivity, at)
}

// RecordMessage records an accepted message.
func (s *Store) RecordMessage(roomID string, seq uint64, length int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entryLocked(roomID)
	st.Messages++
	st.MessageBytes += int64(length)
	if seq > st.LastSeq {
		st.LastSeq = seq
	}
	st.LastMessageAt = latest(st.LastMessageAt, at)
	st.LastActivity = latest(st.LastActivity, at)
}

// RecordRetired marks a room as retired by the idle reaper.
func (s *Store) RecordRetired(roomID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.entryLocked(roomID)
	st.Retired = true
	st.OnlineUsers = 0
	st.LastActivity = latest(st.LastActivity, at)
}

// Stats returns a copy of the stats of roomID.
func (s *Store) Stats(roomID string) (RoomStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.rooms[roomID]
	if !ok {
		return RoomStats{}, false
	}
	return st.clone(), true
}

// Summary aggregates every room.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Departures: make(map[string]int64)}
	all := make([]RoomStats, 0, len(s.rooms))
	for _, st := range s.rooms {
		if !st.CreatedAt.IsZero() {
			sum.RoomsCreated++
		}
		if st.Retired {
			sum.RoomsRetired++
		} else if st.OnlineUsers > 0 {
			sum.ActiveRooms++
			sum.OnlineUsers += st.OnlineUsers
		}
		sum.Messages += st.Messages
		sum.Joins += st.Joins
		for reason, n := range st.Departures {
			sum.Departures[reason] += n
		}
		all = append(all, st.clone())
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Messages == all[j].Messages {
			return all[i].RoomID < all[j].RoomID
		}
		return all[i].Messages > all[j].Messages
	})
	if len(all) > busiestRoomsLimit {
		all = all[:busiestRoomsLimit]
	}
	sum.BusiestRooms = all
	return sum
}

func (st *RoomStats) clone() RoomStats {
	c := *st
	c.Departures = make(map[string]int64, len(st.Departures))
	for k, v := range st.Departures {
		c.Departures[k] = v
	}
	return c
}

// latest keeps timestamps monotonic when events are consumed out of order.
func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// RoomStatsRequest is the request for the room-stats service.
type RoomStatsRequest struct {
	RoomID string `json:"room_id"`
}

// RoomStatsResponse is the reply of the room-stats service.
type RoomStatsResponse struct {
	Stats RoomStats `json:"stats"`
	Found bool      `json:"found"`
}

// SummaryRequest is the request for the activity-summary service.
type SummaryRequest struct{}

// SummaryResponse is the reply of the activity-summary service.
type SummaryResponse struct {
	Summary Summary `json:"summary"`
}

package chat

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	domain "github.com/example/workspace-chat/domain/chat"
	"github.com/example/workspace-chat/events"
	"github.com/example/workspace-chat/modules/broadcast"
	"github.com/go-monolith/mono/pkg/types"
)

// RoomOptions configure a Room.
type RoomOptions struct {
	HistoryCapacity int
	Limits          Limits
}

// Snapshot is what a connection receives right after it attaches.
type Snapshot struct {
	RoomID   string
	RoomName string
	Users    []domain.Member
	History  []domain.Message
}

// Room owns the roster, the live members and the recent history of one
// workspace. All state changes happen under mu, including the queueing of
// the resulting frames, so every member observes them in the same order.
type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mu           sync.Mutex
	roster       map[string]*domain.Member // userID -> registered user
	members      map[string]*Connection    // userID -> live connection
	byConn       map[string]*Connection    // connID -> live connection
	history      []domain.Message
	capacity     int
	seq          uint64
	lastActivity time.Time
	retired      bool

	limits Limits
	engine *broadcast.Engine
	sink   EventSink
	logger types.Logger
}

func newRoom(id, name string, opts RoomOptions, engine *broadcast.Engine, sink EventSink, logger types.Logger) *Room {
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = 50
	}
	now := time.Now()
	return &Room{
		ID:           id,
		Name:         name,
		CreatedAt:    now,
		roster:       make(map[string]*domain.Member),
		members:      make(map[string]*Connection),
		byConn:       make(map[string]*Connection),
		history:      make([]domain.Message, 0, opts.HistoryCapacity),
		capacity:     opts.HistoryCapacity,
		lastActivity: now,
		limits:       opts.Limits,
		engine:       engine,
		sink:         sink,
		logger:       logger.With("room_id", id),
	}
}

// register adds a user to the roster under a fresh id unique in this room.
func (r *Room) register(username string, creator bool) (domain.Member, error) {
	username, err := r.limits.ValidateUsername(username)
	if err != nil {
		return domain.Member{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired {
		return domain.Member{}, ErrRoomNotFound
	}
	if r.usernameTakenLocked(username) {
		return domain.Member{}, ErrUsernameTaken
	}

	id := newUserID()
	for r.roster[id] != nil {
		id = newUserID()
	}

	m := &domain.Member{
		UserID:    id,
		Username:  username,
		JoinedAt:  time.Now(),
		IsCreator: creator,
	}
	r.roster[id] = m
	r.lastActivity = m.JoinedAt
	return *m, nil
}

func (r *Room) usernameTakenLocked(username string) bool {
	for _, m := range r.roster {
		if strings.EqualFold(m.Username, username) {
			return true
		}
	}
	return false
}

func newUserID() string {
	return uuid.New().String()[:8]
}

// lookupUser returns the roster entry of userID.
func (r *Room) lookupUser(userID string) (domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired {
		return domain.Member{}, ErrRoomNotFound
	}
	m, ok := r.roster[userID]
	if !ok {
		return domain.Member{}, ErrUserNotFound
	}
	return *m, nil
}

// Attach makes c the live connection of its user. An existing connection of
// the same user is evicted and closed without a departure announcement.
//
// The joining connection is queued the room snapshot first; the other members
// are then queued user_joined and everyone users_update.
func (r *Room) Attach(c *Connection) (Snapshot, error) {
	r.mu.Lock()

	if r.retired {
		r.mu.Unlock()
		return Snapshot{}, ErrRoomNotFound
	}
	entry, ok := r.roster[c.UserID]
	if !ok {
		r.mu.Unlock()
		return Snapshot{}, ErrUserNotFound
	}
	if c.username != "" && !strings.EqualFold(c.username, entry.Username) && r.usernameTakenLocked(c.username) {
		r.mu.Unlock()
		return Snapshot{}, ErrUsernameTaken
	}
	if !c.transition(StateConnecting, StateJoined) {
		r.mu.Unlock()
		if c.State() == StateDisconnected {
			return Snapshot{}, ErrConnectionClosed
		}
		return Snapshot{}, ErrAlreadyJoined
	}

	old := r.members[c.UserID]
	if old != nil {
		delete(r.byConn, old.ID)
		old.state.Store(int32(StateDisconnected))
	}
	if c.username == "" {
		c.username = entry.Username
	}
	entry.Username = c.username
	r.members[c.UserID] = c
	r.byConn[c.ID] = c
	now := time.Now()
	r.lastActivity = now

	users := r.onlineLocked()
	snap := Snapshot{
		RoomID:   r.ID,
		RoomName: r.Name,
		Users:    users,
		History:  r.historyLocked(0),
	}

	var dead []broadcast.Recipient
	if !r.engine.Send(c, encodeFrame(RoomInfoFrame{
		Type:           FrameRoomInfo,
		RoomID:         snap.RoomID,
		RoomName:       snap.RoomName,
		Users:          snap.Users,
		RecentMessages: snap.History,
	})) {
		dead = append(dead, c)
	}
	recipients := r.recipientsLocked()
	dead = append(dead, r.engine.Deliver(recipients, encodeFrame(PresenceFrame{
		Type:       FrameUserJoined,
		UserID:     c.UserID,
		Username:   c.username,
		Timestamp:  now,
		UsersCount: len(users),
	}), c)...)
	dead = append(dead, r.engine.Deliver(recipients, encodeFrame(UsersUpdateFrame{
		Type:       FrameUsersUpdate,
		Users:      users,
		UsersCount: len(users),
	}), nil)...)
	r.mu.Unlock()

	if old != nil {
		old.Enqueue(encodeFrame(ErrorFrame{
			Type:    FrameError,
			Code:    CodeSessionReplaced,
			Message: "session replaced by a newer connection",
		}))
		old.Close(events.LeftReplaced)
		r.logger.Info("Connection replaced", "user_id", c.UserID, "old_conn_id", old.ID, "conn_id", c.ID)
	}

	go r.watch(c)

	r.sink.UserJoined(events.UserJoinedEvent{
		RoomID:       r.ID,
		UserID:       c.UserID,
		Username:     c.username,
		ConnectionID: c.ID,
		Replaced:     old != nil,
		UsersCount:   len(users),
		Timestamp:    now,
	})
	r.drop(dead)
	return snap, nil
}

// watch detaches c once it closes, whatever closed it.
func (r *Room) watch(c *Connection) {
	<-c.Done()
	r.Detach(c.ID, c.CloseReason())
}

// Detach removes the connection with connID and announces the departure to
// the remaining members. It reports whether anything was removed; repeated or
// stale calls are no-ops.
func (r *Room) Detach(connID, reason string) bool {
	r.mu.Lock()

	c, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byConn, connID)
	delete(r.members, c.UserID)
	c.state.Store(int32(StateDisconnected))
	now := time.Now()
	r.lastActivity = now

	users := r.onlineLocked()
	recipients := r.recipientsLocked()
	dead := r.engine.Deliver(recipients, encodeFrame(PresenceFrame{
		Type:       FrameUserLeft,
		UserID:     c.UserID,
		Username:   c.username,
		Timestamp:  now,
		UsersCount: len(users),
	}), nil)
	dead = append(dead, r.engine.Deliver(recipients, encodeFrame(UsersUpdateFrame{
		Type:       FrameUsersUpdate,
		Users:      users,
		UsersCount: len(users),
	}), nil)...)
	r.mu.Unlock()

	c.Close(reason)
	r.logger.Info("User left room", "user_id", c.UserID, "conn_id", connID, "reason", reason)

	r.sink.UserLeft(events.UserLeftEvent{
		RoomID:       r.ID,
		UserID:       c.UserID,
		Username:     c.username,
		ConnectionID: connID,
		Reason:       reason,
		UsersCount:   len(users),
		Timestamp:    now,
	})
	r.drop(dead)
	return true
}

// PostMessage accepts a chat message from an attached user, appends it to the
// history and queues it on every member, the sender included.
func (r *Room) PostMessage(userID, content string) (domain.Message, error) {
	r.mu.Lock()

	c, ok := r.members[userID]
	if !ok {
		r.mu.Unlock()
		return domain.Message{}, ErrNotMember
	}
	if err := r.limits.ValidateMessage(content); err != nil {
		r.mu.Unlock()
		return domain.Message{}, err
	}

	r.seq++
	msg := domain.Message{
		ID:        uuid.New().String(),
		Seq:       r.seq,
		RoomID:    r.ID,
		UserID:    userID,
		Username:  c.username,
		Content:   content,
		Timestamp: time.Now(),
	}
	r.appendLocked(msg)
	r.lastActivity = msg.Timestamp

	dead := r.engine.Deliver(r.recipientsLocked(), encodeFrame(MessageFrame{Type: FrameMessage, Message: msg}), nil)
	r.mu.Unlock()

	r.sink.MessageSent(events.MessageSentEvent{
		MessageID: msg.ID,
		Seq:       msg.Seq,
		RoomID:    r.ID,
		UserID:    userID,
		Length:    len(content),
		Timestamp: msg.Timestamp,
	})
	r.drop(dead)
	return msg, nil
}

// Typing relays a typing indicator from c to the other members.
func (r *Room) Typing(c *Connection, isTyping bool) error {
	r.mu.Lock()

	if r.members[c.UserID] != c {
		r.mu.Unlock()
		return ErrNotMember
	}
	dead := r.engine.Deliver(r.recipientsLocked(), encodeFrame(TypingFrame{
		Type:     FrameTyping,
		UserID:   c.UserID,
		Username: c.username,
		IsTyping: isTyping,
	}), c)
	r.mu.Unlock()

	r.drop(dead)
	return nil
}

// drop closes recipients that could not keep up. Their watchers detach them.
func (r *Room) drop(dead []broadcast.Recipient) {
	for _, d := range dead {
		c := d.(*Connection)
		r.logger.Warn("Dropping slow connection", "user_id", c.UserID, "conn_id", c.ID)
		c.Close(events.LeftSendOverflow)
	}
}

// appendLocked adds msg to the history, evicting the oldest entry when full.
func (r *Room) appendLocked(msg domain.Message) {
	if len(r.history) == r.capacity {
		copy(r.history, r.history[1:])
		r.history[len(r.history)-1] = msg
		return
	}
	r.history = append(r.history, msg)
}

func (r *Room) historyLocked(limit int) []domain.Message {
	if limit <= 0 || limit > len(r.history) {
		limit = len(r.history)
	}
	out := make([]domain.Message, limit)
	copy(out, r.history[len(r.history)-limit:])
	return out
}

func (r *Room) recipientsLocked() []broadcast.Recipient {
	out := make([]broadcast.Recipient, 0, len(r.members))
	for _, c := range r.members {
		out = append(out, c)
	}
	return out
}

// onlineLocked lists the live members ordered by roster join time.
func (r *Room) onlineLocked() []domain.Member {
	out := make([]domain.Member, 0, len(r.members))
	for userID := range r.members {
		m := *r.roster[userID]
		m.Online = true
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

// History returns up to limit recent messages, oldest first. limit <= 0
// returns all of them.
func (r *Room) History(limit int) []domain.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.historyLocked(limit)
}

// Members returns the users currently holding a live connection.
func (r *Room) Members() []domain.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onlineLocked()
}

// IsMember reports whether connID is the live connection of its user.
func (r *Room) IsMember(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byConn[connID]
	return ok
}

// Summary returns a point-in-time view of the room.
func (r *Room) Summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	users := r.onlineLocked()
	return domain.RoomSummary{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UserCount: len(users),
		Users:     users,
	}
}

// ConnectionCount returns the number of live connections.
func (r *Room) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// retireIfIdle marks the room retired when it has no live members and no
// activity since cutoff. A retired room rejects every later attach.
func (r *Room) retireIfIdle(cutoff time.Time) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired || len(r.members) > 0 || r.lastActivity.After(cutoff) {
		return 0, false
	}
	r.retired = true
	return time.Since(r.lastActivity), true
}

// closeAll closes every live connection with reason.
func (r *Room) closeAll(reason string) {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.members))
	for _, c := range r.members {
		conns = append(conns, c)
	}
	r.mu.Unlock()

	for _, c := range conns {
		c.Close(reason)
	}
}

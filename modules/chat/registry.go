package chat

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/jaevor/go-nanoid"

	domain "github.com/example/workspace-chat/domain/chat"
	"github.com/example/workspace-chat/events"
	"github.com/example/workspace-chat/modules/broadcast"
)

const (
	roomIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	roomIDLength   = 8
)

// EventSink receives domain events after the state change they describe.
// Implementations must not block.
type EventSink interface {
	RoomCreated(events.RoomCreatedEvent)
	UserJoined(events.UserJoinedEvent)
	UserLeft(events.UserLeftEvent)
	MessageSent(events.MessageSentEvent)
	RoomRetired(events.RoomRetiredEvent)
}

type nopSink struct{}

func (nopSink) RoomCreated(events.RoomCreatedEvent) {}
func (nopSink) UserJoined(events.UserJoinedEvent)   {}
func (nopSink) UserLeft(events.UserLeftEvent)       {}
func (nopSink) MessageSent(events.MessageSentEvent) {}
func (nopSink) RoomRetired(events.RoomRetiredEvent) {}

// Registry maps room ids to rooms. Its lock covers id allocation and map
// updates only; room state is guarded by each room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	newID  func() string
	opts   RoomOptions
	engine *broadcast.Engine
	sink   EventSink
	logger types.Logger
}

// NewRegistry creates an empty registry. A nil sink discards events.
func NewRegistry(opts RoomOptions, engine *broadcast.Engine, sink EventSink, logger types.Logger) (*Registry, error) {
	newID, err := nanoid.CustomASCII(roomIDAlphabet, roomIDLength)
	if err != nil {
		return nil, fmt.Errorf("failed to create room id generator: %w", err)
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Registry{
		rooms:  make(map[string]*Room),
		newID:  newID,
		opts:   opts,
		engine: engine,
		sink:   sink,
		logger: logger,
	}, nil
}

// CreateRoom registers a new room and its creator.
func (g *Registry) CreateRoom(name, creator string) (*Room, domain.Member, error) {
	name, err := g.opts.Limits.ValidateRoomName(name)
	if err != nil {
		return nil, domain.Member{}, err
	}
	if _, err := g.opts.Limits.ValidateUsername(creator); err != nil {
		return nil, domain.Member{}, err
	}

	g.mu.Lock()
	id := g.newID()
	for g.rooms[id] != nil {
		id = g.newID()
	}
	room := newRoom(id, name, g.opts, g.engine, g.sink, g.logger)
	member, err := room.register(creator, true)
	if err != nil {
		g.mu.Unlock()
		return nil, domain.Member{}, err
	}
	g.rooms[id] = room
	g.mu.Unlock()

	g.logger.Info("Room created", "room_id", id, "room_name", name, "creator", member.UserID)
	g.sink.RoomCreated(events.RoomCreatedEvent{
		RoomID:    id,
		RoomName:  name,
		CreatedBy: member.UserID,
		Timestamp: room.CreatedAt,
	})
	return room, member, nil
}

// GetRoom returns the room with id.
func (g *Registry) GetRoom(id string) (*Room, error) {
	g.mu.RLock()
	room, ok := g.rooms[id]
	g.mu.RUnlock()
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// JoinRoom registers username in the room and returns the new user.
// No live connection is attached yet.
func (g *Registry) JoinRoom(roomID, username string) (*Room, domain.Member, error) {
	room, err := g.GetRoom(roomID)
	if err != nil {
		return nil, domain.Member{}, err
	}
	member, err := room.register(username, false)
	if err != nil {
		return nil, domain.Member{}, err
	}
	g.logger.Info("User registered", "room_id", roomID, "user_id", member.UserID)
	return room, member, nil
}

// Rooms returns all rooms ordered by creation time.
func (g *Registry) Rooms() []*Room {
	g.mu.RLock()
	out := make([]*Room, 0, len(g.rooms))
	for _, r := range g.rooms {
		out = append(out, r)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts returns the number of rooms and of live connections.
func (g *Registry) Counts() (rooms, connections int) {
	all := g.Rooms()
	for _, r := range all {
		connections += r.ConnectionCount()
	}
	return len(all), connections
}

// Reap retires rooms that have had no members and no activity for ttl.
func (g *Registry) Reap(ttl time.Duration) []string {
	cutoff := time.Now().Add(-ttl)

	g.mu.Lock()
	var retired []string
	idle := make(map[string]time.Duration)
	for id, r := range g.rooms {
		if d, ok := r.retireIfIdle(cutoff); ok {
			delete(g.rooms, id)
			retired = append(retired, id)
			idle[id] = d
		}
	}
	g.mu.Unlock()

	for _, id := range retired {
		g.logger.Info("Room retired", "room_id", id, "idle_for", idle[id])
		g.sink.RoomRetired(events.RoomRetiredEvent{
			RoomID:    id,
			IdleFor:   idle[id],
			Timestamp: time.Now(),
		})
	}
	return retired
}

// CloseAll closes every live connection in every room.
func (g *Registry) CloseAll(reason string) {
	for _, r := range g.Rooms() {
		r.closeAll(reason)
	}
}

package chat

import (
	"sync"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/workspace-chat/events"
)

// busSink publishes domain events on the mono EventBus. Until a bus is set
// events are dropped.
type busSink struct {
	mu     sync.RWMutex
	bus    mono.EventBus
	logger types.Logger
}

func (s *busSink) setBus(bus mono.EventBus) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
}

func (s *busSink) eventBus() mono.EventBus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bus
}

func (s *busSink) RoomCreated(e events.RoomCreatedEvent) {
	if bus := s.eventBus(); bus != nil {
		s.check("RoomCreated", events.RoomCreatedV1.Publish(bus, e, nil))
	}
}

func (s *busSink) UserJoined(e events.UserJoinedEvent) {
	if bus := s.eventBus(); bus != nil {
		s.check("UserJoined", events.UserJoinedV1.Publish(bus, e, nil))
	}
}

func (s *busSink) UserLeft(e events.UserLeftEvent) {
	if bus := s.eventBus(); bus != nil {
		s.check("UserLeft", events.UserLeftV1.Publish(bus, e, nil))
	}
}

func (s *busSink) MessageSent(e events.MessageSentEvent) {
	if bus := s.eventBus(); bus != nil {
		s.check("MessageSent", events.MessageSentV1.Publish(bus, e, nil))
	}
}

func (s *busSink) RoomRetired(e events.RoomRetiredEvent) {
	if bus := s.eventBus(); bus != nil {
		s.check("RoomRetired", events.RoomRetiredV1.Publish(bus, e, nil))
	}
}

func (s *busSink) check(event string, err error) {
	if err != nil {
		s.logger.Warn("Failed to publish event", "event", event, "error", err)
	}
}

package activity

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"

	"github.com/example/workspace-chat/events"
)

// Service names provided by the activity module.
const (
	ServiceRoomStats = "room-stats"
	ServiceSummary   = "activity-summary"
)

// Module consumes chat events and keeps per-room activity statistics.
type Module struct {
	store  *Store
	group  singleflight.Group
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new activity module.
func NewModule(logger types.Logger) *Module {
	return &Module{
		store:  NewStore(),
		logger: logger.WithModule("activity"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "activity"
}

// Start initializes the activity module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Activity module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Activity module stopped")
	return nil
}

// Health reports aggregate counters.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	sum := m.store.Summary()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms_tracked":  sum.RoomsCreated,
			"messages_total": sum.Messages,
		},
	}
}

// Store returns the activity store.
func (m *Module) Store() *Store {
	return m.store
}

// RegisterEventConsumers subscribes to the chat events.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserJoinedV1, m.handleUserJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register UserJoined consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.UserLeftV1, m.handleUserLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register UserLeft consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomRetiredV1, m.handleRoomRetired, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomRetired consumer: %w", err)
	}

	m.logger.Info("Registered event consumers",
		"events", []string{"RoomCreated.v1", "UserJoined.v1", "UserLeft.v1", "MessageSent.v1", "RoomRetired.v1"})
	return nil
}

func (m *Module) handleRoomCreated(_ context.Context, e events.RoomCreatedEvent, _ *mono.Msg) error {
	m.store.RecordRoomCreated(e.RoomID, e.RoomName, e.CreatedBy, e.Timestamp)
	m.logger.Debug("Recorded room creation", "room_id", e.RoomID)
	return nil
}

func (m *Module) handleUserJoined(_ context.Context, e events.UserJoinedEvent, _ *mono.Msg) error {
	m.store.RecordJoin(e.RoomID, e.Replaced, e.UsersCount, e.Timestamp)
	m.logger.Debug("Recorded join", "room_id", e.RoomID, "user_id", e.UserID, "replaced", e.Replaced)
	return nil
}

func (m *Module) handleUserLeft(_ context.Context, e events.UserLeftEvent, _ *mono.Msg) error {
	m.store.RecordLeave(e.RoomID, e.Reason, e.UsersCount, e.Timestamp)
	m.logger.Debug("Recorded departure", "room_id", e.RoomID, "user_id", e.UserID, "reason", e.Reason)
	return nil
}

func (m *Module) handleMessageSent(_ context.Context, e events.MessageSentEvent, _ *mono.Msg) error {
	m.store.RecordMessage(e.RoomID, e.Seq, e.Length, e.Timestamp)
	return nil
}

func (m *Module) handleRoomRetired(_ context.Context, e events.RoomRetiredEvent, _ *mono.Msg) error {
	m.store.RecordRetired(e.RoomID, e.Timestamp)
	m.logger.Info("Recorded room retirement", "room_id", e.RoomID, "idle_for", e.IdleFor)
	return nil
}

// RegisterServices registers the statistics services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomStats, json.Unmarshal, json.Marshal, m.roomStats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomStats, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSummary, json.Unmarshal, json.Marshal, m.summary,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSummary, err)
	}

	m.logger.Info("Registered activity services", "services", []string{ServiceRoomStats, ServiceSummary})
	return nil
}

func (m *Module) roomStats(_ context.Context, req RoomStatsRequest, _ *mono.Msg) (RoomStatsResponse, error) {
	st, ok := m.store.Stats(req.RoomID)
	return RoomStatsResponse{Stats: st, Found: ok}, nil
}

// summary walks and sorts every room, so concurrent requests share one build.
// Callers must treat the shared result as read-only.
func (m *Module) summary(_ context.Context, _ SummaryRequest, _ *mono.Msg) (SummaryResponse, error) {
	v, err, shared := m.group.Do("summary", func() (any, error) {
		return m.store.Summary(), nil
	})
	if err != nil {
		return SummaryResponse{}, err
	}
	if shared {
		m.logger.Debug("Summary build shared")
	}
	return SummaryResponse{Summary: v.(Summary)}, nil
}

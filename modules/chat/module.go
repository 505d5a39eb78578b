package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/workspace-chat/config"
	"github.com/example/workspace-chat/events"
	"github.com/example/workspace-chat/modules/broadcast"
)

// Service names provided by the chat module.
const (
	ServiceCreateRoom   = "create-room"
	ServiceGetRoom      = "get-room"
	ServiceJoinRoom     = "join-room"
	ServiceRoomMessages = "room-messages"
	ServiceListRooms    = "list-rooms"
)

// Module hosts the room registry and exposes it as request-reply services.
type Module struct {
	cfg      config.Config
	registry *Registry
	engine   *broadcast.Engine
	sink     *busSink
	logger   types.Logger

	cancelReaper context.CancelFunc
	reaperDone   sync.WaitGroup
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the chat module.
func NewModule(cfg config.Config, logger types.Logger) (*Module, error) {
	logger = logger.WithModule("chat")
	engine := broadcast.NewEngine(logger)
	sink := &busSink{logger: logger}

	registry, err := NewRegistry(RoomOptions{
		HistoryCapacity: cfg.HistoryCapacity,
		Limits:          LimitsFromConfig(cfg),
	}, engine, sink, logger)
	if err != nil {
		return nil, err
	}

	return &Module{
		cfg:      cfg,
		registry: registry,
		engine:   engine,
		sink:     sink,
		logger:   logger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.sink.setBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
		events.MessageSentV1.ToBase(),
		events.RoomRetiredV1.ToBase(),
	}
}

// RegisterServices registers the room services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceCreateRoom, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetRoom, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceJoinRoom, json.Unmarshal, json.Marshal, m.joinRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceJoinRoom, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomMessages, json.Unmarshal, json.Marshal, m.roomMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomMessages, err)
	}
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceCreateRoom, ServiceGetRoom, ServiceJoinRoom, ServiceRoomMessages, ServiceListRooms})
	return nil
}

// Start launches the idle-room reaper when a TTL is configured.
func (m *Module) Start(_ context.Context) error {
	if m.cfg.RoomIdleTTL > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancelReaper = cancel
		m.reaperDone.Add(1)
		go m.runReaper(ctx)
		m.logger.Info("Chat module started", "room_idle_ttl", m.cfg.RoomIdleTTL)
		return nil
	}
	m.logger.Info("Chat module started", "room_idle_ttl", "disabled")
	return nil
}

// Stop halts the reaper and disconnects every live connection.
func (m *Module) Stop(_ context.Context) error {
	if m.cancelReaper != nil {
		m.cancelReaper()
		m.reaperDone.Wait()
	}
	m.registry.CloseAll(events.LeftShutdown)
	m.logger.Info("Chat module stopped")
	return nil
}

// Health reports registry and fan-out counters.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	rooms, conns := m.registry.Counts()
	stats := m.engine.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"active_rooms":      rooms,
			"total_connections": conns,
			"frames_delivered":  stats.Delivered,
			"frames_dropped":    stats.Dropped,
		},
	}
}

// Registry returns the room registry used by the WebSocket edge.
func (m *Module) Registry() *Registry {
	return m.registry
}

// ConnectionOptions returns the outbound settings for new connections.
func (m *Module) ConnectionOptions() ConnectionOptions {
	return ConnectionOptions{
		SendBufferSize: m.cfg.SendBufferSize,
		WriteTimeout:   m.cfg.WriteTimeout,
	}
}

// SessionOptions returns the protocol settings for new sessions.
func (m *Module) SessionOptions() SessionOptions {
	return SessionOptions{
		HeartbeatTimeout: m.cfg.HeartbeatTimeout,
		MessageRate:      m.cfg.MessageRate,
		MessageBurst:     m.cfg.MessageBurst,
	}
}

func (m *Module) runReaper(ctx context.Context) {
	defer m.reaperDone.Done()

	ticker := time.NewTicker(m.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if retired := m.registry.Reap(m.cfg.RoomIdleTTL); len(retired) > 0 {
				m.logger.Info("Reaped idle rooms", "count", len(retired))
			}
		}
	}
}

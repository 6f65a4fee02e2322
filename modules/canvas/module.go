package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/canvas-relay/config"
	domain "github.com/example/canvas-relay/domain/canvas"
	"github.com/example/canvas-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Service names registered by the canvas module.
const (
	ServiceStats     = "stats"
	ServiceListRooms = "list-rooms"
)

// Module owns the room registry, the broadcast router and the reaper, and
// publishes room lifecycle events.
type Module struct {
	registry  *Registry
	router    *Router
	reaper    *Reaper
	eventBus  mono.EventBus
	logger    types.Logger
	startedAt time.Time
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ Observer                   = (*Module)(nil)
)

// NewModule creates the canvas module from configuration.
func NewModule(cfg config.Config, logger types.Logger) *Module {
	m := &Module{
		router:    NewRouter(logger),
		logger:    logger,
		startedAt: time.Now(),
	}
	m.registry = NewRegistry(m.router, logger, Options{
		DefaultRoom: cfg.DefaultRoom,
		SendBuffer:  cfg.SendBuffer,
		Observer:    m,
	})
	m.reaper = NewReaper(m.registry, cfg.ReapInterval, cfg.RoomRetention, logger)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "canvas"
}

// Registry returns the room registry used by the transport.
func (m *Module) Registry() *Registry {
	return m.registry
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomCreatedV1.ToBase(),
		events.RoomReapedV1.ToBase(),
		events.MemberJoinedV1.ToBase(),
		events.MemberLeftV1.ToBase(),
	}
}

// RegisterServices registers the status services with the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceStats, json.Unmarshal, json.Marshal, m.handleStats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceStats, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.handleListRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	m.logger.Info("Registered services", "services", "services.canvas.stats, services.canvas.list-rooms")
	return nil
}

// Start launches the reaper.
func (m *Module) Start(_ context.Context) error {
	if m.eventBus == nil {
		m.logger.Warn("EventBus not set, room events will not be published")
	}
	m.startedAt = time.Now()
	m.reaper.Start()
	m.logger.Info("Canvas module started")
	return nil
}

// Stop stops the reaper.
func (m *Module) Stop(ctx context.Context) error {
	stats := m.registry.Snapshot()
	if err := m.reaper.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop reaper: %w", err)
	}
	m.logger.Info("Canvas module stopped", "rooms", stats.Rooms, "sessions", stats.Sessions)
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.registry.Snapshot()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms":            stats.Rooms,
			"sessions":         stats.Sessions,
			"dropped_messages": m.router.Dropped(),
		},
	}
}

func (m *Module) handleStats(_ context.Context, _ StatsRequest, _ *mono.Msg) (StatsResponse, error) {
	return StatsResponse{
		Stats:     m.registry.Snapshot(),
		StartedAt: m.startedAt,
	}, nil
}

func (m *Module) handleListRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	return ListRoomsResponse{Rooms: m.registry.Rooms()}, nil
}

// Observer implementation: lifecycle changes become events on the bus.

func (m *Module) RoomCreated(roomID string, at time.Time) {
	m.publish("RoomCreated", func(bus mono.EventBus) error {
		return events.RoomCreatedV1.Publish(bus, events.RoomCreatedEvent{
			RoomID:    roomID,
			Timestamp: at,
		}, nil)
	})
}

func (m *Module) RoomReaped(roomID string, idleFor time.Duration, at time.Time) {
	m.publish("RoomReaped", func(bus mono.EventBus) error {
		return events.RoomReapedV1.Publish(bus, events.RoomReapedEvent{
			RoomID:    roomID,
			IdleFor:   idleFor,
			Timestamp: at,
		}, nil)
	})
}

func (m *Module) MemberJoined(roomID string, member domain.Member, members int, at time.Time) {
	m.publish("MemberJoined", func(bus mono.EventBus) error {
		return events.MemberJoinedV1.Publish(bus, events.MemberJoinedEvent{
			RoomID:    roomID,
			ClientID:  member.SenderID,
			UserName:  member.UserName,
			Members:   members,
			Timestamp: at,
		}, nil)
	})
}

func (m *Module) MemberLeft(roomID string, member domain.Member, members int, at time.Time) {
	m.publish("MemberLeft", func(bus mono.EventBus) error {
		return events.MemberLeftV1.Publish(bus, events.MemberLeftEvent{
			RoomID:    roomID,
			ClientID:  member.SenderID,
			UserName:  member.UserName,
			Members:   members,
			Timestamp: at,
		}, nil)
	})
}

func (m *Module) publish(event string, fn func(mono.EventBus) error) {
	if m.eventBus == nil {
		return
	}
	if err := fn(m.eventBus); err != nil {
		m.logger.Warn("Failed to publish event", "event", event, "error", err)
	}
}

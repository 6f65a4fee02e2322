package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/canvas-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// DefaultCapacity is the number of entries kept by the activity log.
const DefaultCapacity = 200

// Entry types recorded in the log.
const (
	EntryRoomCreated  = "room_created"
	EntryRoomReaped   = "room_reaped"
	EntryMemberJoined = "member_joined"
	EntryMemberLeft   = "member_left"
)

// Entry is one recorded room lifecycle change.
type Entry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RoomID    string    `json:"roomId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Counters totals every lifecycle change seen since start.
type Counters struct {
	RoomsCreated uint64 `json:"roomsCreated"`
	RoomsReaped  uint64 `json:"roomsReaped"`
	Joins        uint64 `json:"joins"`
	Leaves       uint64 `json:"leaves"`
}

// ActivityModule consumes canvas lifecycle events and keeps a bounded log of
// the most recent ones.
type ActivityModule struct {
	logger   types.Logger
	capacity int

	mu       sync.RWMutex
	entries  []Entry
	counters Counters
}

// Compile-time interface checks.
var _ mono.Module = (*ActivityModule)(nil)
var _ mono.EventConsumerModule = (*ActivityModule)(nil)
var _ mono.HealthCheckableModule = (*ActivityModule)(nil)

// NewModule creates a new ActivityModule holding at most capacity entries.
// A non-positive capacity selects DefaultCapacity.
func NewModule(logger types.Logger, capacity int) *ActivityModule {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ActivityModule{
		logger:   logger,
		capacity: capacity,
		entries:  make([]Entry, 0, capacity),
	}
}

// Name returns the module name.
func (m *ActivityModule) Name() string {
	return "activity"
}

// Start initializes the module.
func (m *ActivityModule) Start(_ context.Context) error {
	m.logger.Info("Activity module started", "capacity", m.capacity)
	return nil
}

// Stop shuts down the module.
func (m *ActivityModule) Stop(_ context.Context) error {
	c := m.Counters()
	m.logger.Info("Activity module stopped",
		"roomsCreated", c.RoomsCreated,
		"roomsReaped", c.RoomsReaped,
		"joins", c.Joins,
		"leaves", c.Leaves)
	return nil
}

// Health returns the health status.
func (m *ActivityModule) Health(_ context.Context) mono.HealthStatus {
	c := m.Counters()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"rooms_created": c.RoomsCreated,
			"rooms_reaped":  c.RoomsReaped,
			"joins":         c.Joins,
			"leaves":        c.Leaves,
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *ActivityModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomCreatedV1, m.handleRoomCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomReapedV1, m.handleRoomReaped, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomReaped consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberJoinedV1, m.handleMemberJoined, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberJoined consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(
		registry, events.MemberLeftV1, m.handleMemberLeft, m,
	); err != nil {
		return fmt.Errorf("failed to register MemberLeft consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "RoomCreated, RoomReaped, MemberJoined, MemberLeft")
	return nil
}

// Event handlers

func (m *ActivityModule) handleRoomCreated(_ context.Context, event events.RoomCreatedEvent, _ *mono.Msg) error {
	m.record(EntryRoomCreated, event.RoomID, "room created", event.Timestamp, func(c *Counters) {
		c.RoomsCreated++
	})
	return nil
}

func (m *ActivityModule) handleRoomReaped(_ context.Context, event events.RoomReapedEvent, _ *mono.Msg) error {
	msg := fmt.Sprintf("room removed after %s idle", event.IdleFor.Round(time.Second))
	m.record(EntryRoomReaped, event.RoomID, msg, event.Timestamp, func(c *Counters) {
		c.RoomsReaped++
	})
	return nil
}

func (m *ActivityModule) handleMemberJoined(_ context.Context, event events.MemberJoinedEvent, _ *mono.Msg) error {
	msg := fmt.Sprintf("%s (%s) joined, %d present", event.UserName, event.ClientID, event.Members)
	m.record(EntryMemberJoined, event.RoomID, msg, event.Timestamp, func(c *Counters) {
		c.Joins++
	})
	return nil
}

func (m *ActivityModule) handleMemberLeft(_ context.Context, event events.MemberLeftEvent, _ *mono.Msg) error {
	msg := fmt.Sprintf("%s (%s) left, %d present", event.UserName, event.ClientID, event.Members)
	m.record(EntryMemberLeft, event.RoomID, msg, event.Timestamp, func(c *Counters) {
		c.Leaves++
	})
	return nil
}

func (m *ActivityModule) record(entryType, roomID, message string, at time.Time, count func(*Counters)) {
	if at.IsZero() {
		at = time.Now()
	}
	entry := Entry{
		ID:        uuid.New().String(),
		Type:      entryType,
		RoomID:    roomID,
		Message:   message,
		Timestamp: at,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.entries) == m.capacity {
		// shift out the oldest entry
		copy(m.entries, m.entries[1:])
		m.entries = m.entries[:len(m.entries)-1]
	}
	m.entries = append(m.entries, entry)
	count(&m.counters)

	m.logger.Debug("Recorded activity", "type", entryType, "roomID", roomID)
}

// Entries returns the recorded entries, oldest first.
func (m *ActivityModule) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Entry, len(m.entries))
	copy(result, m.entries)
	return result
}

// Counters returns the lifecycle totals.
func (m *ActivityModule) Counters() Counters {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters
}

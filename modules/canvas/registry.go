package canvas

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/example/canvas-relay/domain/canvas"
	"github.com/go-monolith/mono/pkg/types"
	nanoid "github.com/jaevor/go-nanoid"
)

const (
	clientIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	clientIDLength   = 8

	defaultSendBuffer = 256
	defaultRoomID     = "default"
)

// newClientID returns a short opaque id. Collisions are possible but unlikely.
var newClientID = mustClientIDGenerator()

func mustClientIDGenerator() func() string {
	gen, err := nanoid.CustomASCII(clientIDAlphabet, clientIDLength)
	if err != nil {
		panic("canvas: client id generator: " + err.Error())
	}
	return gen
}

// Observer is told about room lifecycle changes. Calls are made outside of
// any room lock.
type Observer interface {
	RoomCreated(roomID string, at time.Time)
	RoomReaped(roomID string, idleFor time.Duration, at time.Time)
	MemberJoined(roomID string, member domain.Member, members int, at time.Time)
	MemberLeft(roomID string, member domain.Member, members int, at time.Time)
}

type nopObserver struct{}

func (nopObserver) RoomCreated(string, time.Time)                      {}
func (nopObserver) RoomReaped(string, time.Duration, time.Time)        {}
func (nopObserver) MemberJoined(string, domain.Member, int, time.Time) {}
func (nopObserver) MemberLeft(string, domain.Member, int, time.Time)   {}

// Options configures a Registry. Zero values select defaults.
type Options struct {
	DefaultRoom string
	SendBuffer  int
	Clock       func() time.Time
	NewID       func() string
	Observer    Observer
}

// Registry owns every live room and creates sessions.
type Registry struct {
	router   *Router
	logger   types.Logger
	opts     Options
	sessions atomic.Int64

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry.
func NewRegistry(router *Router, logger types.Logger, opts Options) *Registry {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = defaultRoomID
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = newClientID
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	return &Registry{
		router: router,
		logger: logger,
		opts:   opts,
		rooms:  make(map[string]*Room),
	}
}

// SetObserver replaces the lifecycle observer. Call it before any session connects.
func (g *Registry) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	g.opts.Observer = o
}

// Connect creates a session for a newly accepted connection.
func (g *Registry) Connect() *Session {
	s := newSession(g.opts.NewID(), g, g.opts.SendBuffer)
	g.sessions.Add(1)
	g.logger.Debug("Client connected", "clientID", s.id)
	return s
}

// GetOrCreate returns the room for roomID, creating and registering an empty
// one if none exists. It reports whether the room was created.
func (g *Registry) GetOrCreate(roomID string) (*Room, bool) {
	g.mu.RLock()
	rm, ok := g.rooms[roomID]
	g.mu.RUnlock()
	if ok {
		return rm, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if rm, ok := g.rooms[roomID]; ok {
		return rm, false
	}
	rm = newRoom(roomID, g.opts.Clock())
	g.rooms[roomID] = rm
	g.logger.Info("Room created", "roomID", roomID)
	return rm, true
}

// Lookup returns the room for roomID if it exists.
func (g *Registry) Lookup(roomID string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rm, ok := g.rooms[roomID]
	return rm, ok
}

// acquire returns the live room for roomID with its lock held. A room retired
// by the reaper between lookup and lock is never returned.
func (g *Registry) acquire(roomID string) (*Room, bool) {
	for {
		rm, created := g.GetOrCreate(roomID)
		rm.mu.Lock()
		if !rm.retired {
			return rm, created
		}
		rm.mu.Unlock()
	}
}

// Snapshot returns the number of rooms and connected sessions.
func (g *Registry) Snapshot() domain.Stats {
	g.mu.RLock()
	rooms := len(g.rooms)
	g.mu.RUnlock()
	return domain.Stats{
		Rooms:    rooms,
		Sessions: int(g.sessions.Load()),
	}
}

// Rooms summarizes every live room, ordered by room id.
func (g *Registry) Rooms() []domain.RoomSummary {
	g.mu.RLock()
	rooms := make([]*Room, 0, len(g.rooms))
	for _, rm := range g.rooms {
		rooms = append(rooms, rm)
	}
	g.mu.RUnlock()

	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

// Reap removes every room that has no members and has been idle for longer
// than retention at now. Emptiness is checked under the room lock at the
// moment of removal. It returns the ids of the removed rooms.
func (g *Registry) Reap(retention time.Duration, now time.Time) []string {
	type reaped struct {
		id   string
		idle time.Duration
	}
	var removed []reaped

	g.mu.Lock()
	for id, rm := range g.rooms {
		rm.mu.Lock()
		if idle, ok := rm.idleLocked(retention, now); ok {
			rm.retired = true
			delete(g.rooms, id)
			removed = append(removed, reaped{id: id, idle: idle})
		}
		rm.mu.Unlock()
	}
	g.mu.Unlock()

	ids := make([]string, 0, len(removed))
	for _, r := range removed {
		g.logger.Info("Room cleaned up", "roomID", r.id, "idleFor", r.idle.String())
		g.opts.Observer.RoomReaped(r.id, r.idle, now)
		ids = append(ids, r.id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Registry) now() time.Time {
	return g.opts.Clock()
}

func (g *Registry) disconnected() {
	g.sessions.Add(-1)
}

package canvas

import (
	"fmt"
	"sync"

	domain "github.com/example/canvas-relay/domain/canvas"
)

// State is the position of a session in its lifecycle.
type State int

const (
	StateUnjoined State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnjoined:
		return "unjoined"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type objectOp int

const (
	opAdd objectOp = iota
	opUpdate
	opRemove
)

// Session is the server side of one client connection.
//
// Handle must be called from a single goroutine, in the order frames arrive.
// Close may be called from anywhere and any number of times. Lock order is
// Room.mu before Session.mu.
type Session struct {
	id       string
	registry *Registry
	out      chan []byte

	closeOnce sync.Once

	mu    sync.Mutex
	state State
	name  string
	room  *Room
}

func newSession(id string, registry *Registry, buffer int) *Session {
	return &Session{
		id:       id,
		registry: registry,
		out:      make(chan []byte, buffer),
		name:     DefaultUserName,
	}
}

// ID returns the server-assigned client id.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RoomID returns the id of the joined room, or "" before join.
func (s *Session) RoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return ""
	}
	return s.room.id
}

// Outbound returns the queue of encoded frames for this client. It is closed
// when the session closes.
func (s *Session) Outbound() <-chan []byte {
	return s.out
}

func (s *Session) member() domain.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Member{SenderID: s.id, UserName: s.name}
}

// deliver queues data without blocking.
func (s *Session) deliver(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return ErrSessionClosed
	}
	select {
	case s.out <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Handle processes one inbound frame. The returned error describes why this
// frame was dropped or rejected; the session itself stays usable.
func (s *Session) Handle(data []byte) error {
	msg, err := DecodeMessage(data)
	if err != nil {
		s.registry.logger.Warn("Dropped malformed message", "clientID", s.id, "error", err)
		return err
	}
	return s.HandleMessage(msg)
}

// HandleMessage processes one already decoded inbound message.
func (s *Session) HandleMessage(msg Message) error {
	s.mu.Lock()
	state, rm := s.state, s.room
	s.mu.Unlock()

	switch {
	case state == StateClosed:
		return ErrSessionClosed
	case msg.Type == TypeJoin:
		return s.handleJoin(msg, rm)
	case state == StateUnjoined:
		_ = s.registry.router.Send(s, errorMessage{Type: TypeError, Message: "Must join a room first"})
		return ErrNotJoined
	}

	switch msg.Type {
	case TypeImageAdd:
		return s.handleObject(rm, msg, domain.KindImage, opAdd)
	case TypeImageUpdate:
		return s.handleObject(rm, msg, domain.KindImage, opUpdate)
	case TypeImageRemove:
		return s.handleObject(rm, msg, domain.KindImage, opRemove)
	case TypeTextAdd:
		return s.handleObject(rm, msg, domain.KindText, opAdd)
	case TypeTextUpdate:
		return s.handleObject(rm, msg, domain.KindText, opUpdate)
	case TypeTextRemove:
		return s.handleObject(rm, msg, domain.KindText, opRemove)
	case TypeRequestSync:
		return s.handleRequestSync(rm)
	case TypePushSync:
		return s.handlePushSync(rm, msg)
	default:
		// cursor and unknown kinds are relayed as-is
		s.relay(rm, msg)
		return nil
	}
}

func (s *Session) handleJoin(msg Message, current *Room) error {
	g := s.registry
	if current != nil {
		_ = g.router.Send(s, errorMessage{
			Type:    TypeError,
			Message: "already joined room " + current.id,
		})
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, current.id)
	}

	roomID, userName := joinRequest(msg, g.opts.DefaultRoom)
	now := g.now()

	rm, created := g.acquire(roomID)
	s.mu.Lock()
	if s.state != StateUnjoined {
		s.mu.Unlock()
		rm.mu.Unlock()
		if created {
			g.opts.Observer.RoomCreated(roomID, now)
		}
		return ErrSessionClosed
	}
	s.state = StateJoined
	s.room = rm
	s.name = userName
	s.mu.Unlock()

	rm.addMember(s)
	rm.touch(now)

	_ = g.router.Send(s, welcomeMessage{Type: TypeWelcome, ClientID: s.id, RoomID: roomID})
	if rm.hasObjectsLocked() {
		_ = g.router.Send(s, rm.fullSyncLocked())
	}
	g.router.Broadcast(rm.members, presenceMessage{Type: TypeJoin, SenderID: s.id, UserName: userName}, s)
	_ = g.router.Send(s, userListMessage{Type: TypeUserList, Users: rm.othersLocked(s)})
	members := len(rm.members)
	rm.mu.Unlock()

	g.logger.Info("Client joined room",
		"clientID", s.id,
		"userName", userName,
		"roomID", roomID,
		"members", members)
	if created {
		g.opts.Observer.RoomCreated(roomID, now)
	}
	g.opts.Observer.MemberJoined(roomID, domain.Member{SenderID: s.id, UserName: userName}, members, now)
	return nil
}

func (s *Session) handleObject(rm *Room, msg Message, kind domain.Kind, op objectOp) error {
	g := s.registry
	now := g.now()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	store := rm.store(kind)
	id, err := store.ID(msg.Fields)
	if err != nil {
		g.logger.Warn("Dropped object message", "clientID", s.id, "type", msg.Type, "error", err)
		return fmt.Errorf("%s: %w", msg.Type, err)
	}

	switch op {
	case opAdd:
		_, err = store.Add(msg.Fields)
	case opUpdate:
		store.Update(id, msg.Fields)
	case opRemove:
		store.Remove(id)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", msg.Type, err)
	}

	rm.touch(now)
	g.router.Broadcast(rm.members, msg.stamped(s.id), s)
	return nil
}

func (s *Session) handleRequestSync(rm *Room) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return s.registry.router.Send(s, rm.fullSyncLocked())
}

func (s *Session) handlePushSync(rm *Room, msg Message) error {
	g := s.registry
	images, texts, err := syncLists(msg)
	if err != nil {
		g.logger.Warn("Dropped pushSync", "clientID", s.id, "error", err)
		return err
	}
	now := g.now()

	rm.mu.Lock()
	defer rm.mu.Unlock()

	changed := s.merge(rm.images, images)
	if s.merge(rm.texts, texts) {
		changed = true
	}
	rm.touch(now)

	snapshot := rm.fullSyncLocked()
	_ = g.router.Send(s, snapshot)
	if changed {
		g.router.Broadcast(rm.members, snapshot, s)
	}
	return nil
}

// merge adds every object not yet in store and reports whether any was new.
func (s *Session) merge(store *ObjectStore, objects []Fields) bool {
	changed := false
	for _, obj := range objects {
		added, err := store.Add(obj)
		if err != nil {
			s.registry.logger.Debug("Skipped pushed object", "clientID", s.id, "kind", string(store.Kind()), "error", err)
			continue
		}
		if added {
			changed = true
		}
	}
	return changed
}

func (s *Session) relay(rm *Room, msg Message) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	s.registry.router.Broadcast(rm.members, msg.stamped(s.id), s)
}

// Reject replies to this client with an error frame.
func (s *Session) Reject(text string) error {
	return s.registry.router.Send(s, errorMessage{Type: TypeError, Message: text})
}

// Close removes the session from its room, tells the remaining members and
// releases the outbound queue. Calls after the first are no-ops.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		g := s.registry

		s.mu.Lock()
		prev, rm, name := s.state, s.room, s.name
		s.state = StateClosed
		close(s.out)
		s.mu.Unlock()

		g.disconnected()
		g.logger.Debug("Client disconnected", "clientID", s.id)
		if prev != StateJoined {
			return
		}

		now := g.now()
		rm.mu.Lock()
		rm.removeMember(s)
		rm.touch(now)
		g.router.Broadcast(rm.members, presenceMessage{Type: TypeLeave, SenderID: s.id, UserName: name}, nil)
		members := len(rm.members)
		rm.mu.Unlock()

		g.logger.Info("Client left room", "clientID", s.id, "roomID", rm.id, "members", members)
		g.opts.Observer.MemberLeft(rm.id, domain.Member{SenderID: s.id, UserName: name}, members, now)
	})
}

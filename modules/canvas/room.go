package canvas

import (
	"sync"
	"time"

	domain "github.com/example/canvas-relay/domain/canvas"
)

// Room is one collaboration namespace: its members and its canvas objects.
// mu serializes every mutation together with the broadcast that follows it.
type Room struct {
	id        string
	createdAt time.Time

	mu           sync.Mutex
	members      []*Session // in join order
	images       *ObjectStore
	texts        *ObjectStore
	lastActivity time.Time
	retired      bool // set by the reaper when the room leaves the registry
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		id:           id,
		createdAt:    now,
		images:       NewObjectStore(domain.KindImage),
		texts:        NewObjectStore(domain.KindText),
		lastActivity: now,
	}
}

// ID returns the room identifier.
func (r *Room) ID() string {
	return r.id
}

// Summary returns a point-in-time description of the room.
func (r *Room) Summary() domain.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return domain.RoomSummary{
		RoomID:       r.id,
		Members:      len(r.members),
		Images:       r.images.Len(),
		Texts:        r.texts.Len(),
		CreatedAt:    r.createdAt,
		LastActivity: r.lastActivity,
	}
}

// Objects returns copies of the room's images and texts.
func (r *Room) Objects() (images, texts []Fields) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.images.All(), r.texts.All()
}

func (r *Room) store(kind domain.Kind) *ObjectStore {
	if kind == domain.KindText {
		return r.texts
	}
	return r.images
}

// touch advances lastActivity; it never moves backwards.
func (r *Room) touch(now time.Time) {
	if now.After(r.lastActivity) {
		r.lastActivity = now
	}
}

func (r *Room) addMember(s *Session) {
	r.members = append(r.members, s)
}

func (r *Room) removeMember(s *Session) bool {
	for i, m := range r.members {
		if m == s {
			r.members = append(r.members[:i:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// othersLocked lists every member except s.
func (r *Room) othersLocked(s *Session) []domain.Member {
	users := make([]domain.Member, 0, len(r.members))
	for _, m := range r.members {
		if m != s {
			users = append(users, m.member())
		}
	}
	return users
}

func (r *Room) hasObjectsLocked() bool {
	return r.images.Len() > 0 || r.texts.Len() > 0
}

func (r *Room) fullSyncLocked() fullSyncMessage {
	return fullSyncMessage{
		Type:   TypeFullSync,
		Images: r.images.All(),
		Texts:  r.texts.All(),
	}
}

// idleLocked reports whether the room is empty and has been inactive for
// longer than retention at now.
func (r *Room) idleLocked(retention time.Duration, now time.Time) (time.Duration, bool) {
	idle := now.Sub(r.lastActivity)
	return idle, len(r.members) == 0 && idle > retention
}

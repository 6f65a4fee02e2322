package canvas

import (
	"encoding/json"
	"sync/atomic"

	"github.com/go-monolith/mono/pkg/types"
)

// Router delivers outbound messages to sessions. Delivery never blocks: each
// recipient has a bounded queue and a frame that does not fit is dropped for
// that recipient only.
type Router struct {
	logger  types.Logger
	dropped atomic.Uint64
}

// NewRouter creates a Router.
func NewRouter(logger types.Logger) *Router {
	return &Router{logger: logger}
}

// Broadcast encodes msg once and delivers the same bytes to every member
// except exclude. members is a snapshot taken under the room lock. It returns
// the number of members the frame was queued for.
func (r *Router) Broadcast(members []*Session, msg any, exclude *Session) int {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("Failed to marshal broadcast message", "error", err)
		return 0
	}
	return r.Fanout(members, data, exclude)
}

// Fanout delivers already encoded bytes to members except exclude.
func (r *Router) Fanout(members []*Session, data []byte, exclude *Session) int {
	delivered := 0
	for _, s := range members {
		if s == exclude {
			continue
		}
		if err := s.deliver(data); err != nil {
			r.dropped.Add(1)
			r.logger.Debug("Skipped delivery", "clientID", s.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Send encodes msg and delivers it to a single session.
func (r *Router) Send(s *Session, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		r.logger.Error("Failed to marshal message", "clientID", s.ID(), "error", err)
		return err
	}
	if err := s.deliver(data); err != nil {
		r.dropped.Add(1)
		r.logger.Debug("Skipped delivery", "clientID", s.ID(), "error", err)
		return err
	}
	return nil
}

// Dropped returns how many frames were not delivered since start.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

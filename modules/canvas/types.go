package canvas

import (
	"errors"
	"time"

	domain "github.com/example/canvas-relay/domain/canvas"
)

// DefaultUserName is used when a join carries no display name.
const DefaultUserName = "Anonymous"

// Errors returned while handling a single inbound message. None of them are
// fatal to the session.
var (
	ErrMalformed      = errors.New("malformed message")
	ErrMissingID      = errors.New("object id missing")
	ErrNotJoined      = errors.New("must join a room first")
	ErrAlreadyJoined  = errors.New("already joined a room")
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

// StatsRequest is the request for the stats service.
type StatsRequest struct{}

// StatsResponse is the response from the stats service.
type StatsResponse struct {
	domain.Stats
	StartedAt time.Time `json:"startedAt"`
}

// ListRoomsRequest is the request for the list-rooms service.
type ListRoomsRequest struct{}

// ListRoomsResponse is the response from the list-rooms service.
type ListRoomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

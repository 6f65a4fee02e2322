package wsserver

import (
	"sync/atomic"
	"time"

	"github.com/example/canvas-relay/modules/canvas"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

const (
	defaultPingInterval = 20 * time.Second
	writeWait           = 10 * time.Second

	rateLimitMessage = "Rate limit exceeded, please slow down"
)

// Conn is the part of *websocket.Conn the connection loops use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// Options tunes per-connection limits. Zero values disable the limit or
// select a default.
type Options struct {
	MessageRate   int // cursor and passthrough frames per second
	MessageBurst  int
	MaxFrameBytes int64
	PingInterval  time.Duration
}

// Handlers bridges WebSocket connections to canvas sessions.
type Handlers struct {
	registry *canvas.Registry
	logger   types.Logger
	opts     Options

	active      atomic.Int64
	rateLimited atomic.Uint64
}

// NewHandlers creates a new handlers instance.
func NewHandlers(registry *canvas.Registry, logger types.Logger, opts Options) *Handlers {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.MessageBurst < opts.MessageRate {
		opts.MessageBurst = opts.MessageRate
	}
	return &Handlers{
		registry: registry,
		logger:   logger,
		opts:     opts,
	}
}

// HandleWebSocket handles WebSocket connections.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	h.Serve(c)
}

// Serve runs one connection until the client goes away. Frames are handed to
// the session in arrival order; everything queued for the client is written
// by a separate loop so that a slow socket never blocks the room.
func (h *Handlers) Serve(c Conn) {
	if h.opts.MaxFrameBytes > 0 {
		c.SetReadLimit(h.opts.MaxFrameBytes)
	}

	s := h.registry.Connect()
	h.active.Add(1)
	h.logger.Info("WebSocket connected", "clientID", s.ID())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(c, s)
	}()

	h.readLoop(c, s)

	s.Close()
	<-done
	h.active.Add(-1)
	h.logger.Info("WebSocket disconnected", "clientID", s.ID(), "roomID", s.RoomID())
}

// readLoop hands frames to the session in order. Only ephemeral kinds
// (cursor moves, passthrough kinds) count against the rate limit; canvas
// mutations and sync requests are always applied.
func (h *Handlers) readLoop(c Conn, s *canvas.Session) {
	var limiter *rateLimiter
	if h.opts.MessageRate > 0 {
		limiter = newRateLimiter(h.opts.MessageBurst, h.opts.MessageRate, time.Now())
	}
	throttled := false

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.logger.Warn("WebSocket read error", "clientID", s.ID(), "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		msg, err := canvas.DecodeMessage(data)
		if err != nil {
			h.logger.Warn("Dropped malformed message", "clientID", s.ID(), "error", err)
			continue
		}

		if limiter != nil && canvas.Ephemeral(msg.Type) {
			if !limiter.allow(time.Now()) {
				h.rateLimited.Add(1)
				h.logger.Debug("Rate limit exceeded, frame dropped", "clientID", s.ID(), "type", msg.Type)
				// one notice per throttled burst
				if !throttled {
					throttled = true
					_ = s.Reject(rateLimitMessage)
				}
				continue
			}
			throttled = false
		}

		if err := s.HandleMessage(msg); err != nil {
			h.logger.Debug("Message not applied", "clientID", s.ID(), "error", err)
		}
	}
}

// writeLoop drains the session queue to the socket and keeps the connection
// alive with pings. It returns once the queue is closed and empty, or on the
// first write error.
func (h *Handlers) writeLoop(c Conn, s *canvas.Session) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()

	out := s.Outbound()
	for {
		select {
		case data, ok := <-out:
			if !ok {
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("WebSocket write failed", "clientID", s.ID(), "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				h.logger.Debug("WebSocket ping failed", "clientID", s.ID(), "error", err)
				_ = c.Close()
				return
			}
		}
	}
}

// Active returns the number of open connections.
func (h *Handlers) Active() int {
	return int(h.active.Load())
}

// RateLimited returns how many inbound frames were dropped by the rate limiter.
func (h *Handlers) RateLimited() uint64 {
	return h.rateLimited.Load()
}

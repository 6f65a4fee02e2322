package api

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	wsHandler := websocket.New(m.ws.HandleWebSocket)

	// Health check; the root path also accepts WebSocket upgrades for
	// clients that connect without a path.
	app.Get("/health", m.healthHandler)
	app.Get("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return wsHandler(c)
		}
		return m.healthHandler(c)
	})

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", wsHandler)

	// REST API v1
	api := app.Group("/api/v1")
	api.Get("/rooms", m.listRooms)
	api.Get("/activity", m.getActivity)

	app.Use(m.notFound)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	stats, err := m.canvasAdapter.Stats(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to get stats", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "unavailable",
			Message: "Canvas service unavailable",
		})
	}

	return c.JSON(HealthResponse{
		Status:       "ok",
		Rooms:        stats.Rooms,
		TotalClients: stats.Sessions,
		Uptime:       time.Since(stats.StartedAt).Seconds(),
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.canvasAdapter.ListRooms(c.UserContext())
	if err != nil {
		m.logger.Error("Failed to list rooms", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}

	response := RoomListResponse{
		Rooms: make([]RoomResponse, 0, len(rooms)),
		Count: len(rooms),
	}
	for _, room := range rooms {
		response.Rooms = append(response.Rooms, toRoomResponse(room))
	}

	return c.JSON(response)
}

// getActivity handles GET /api/v1/activity.
func (m *APIModule) getActivity(c *fiber.Ctx) error {
	return c.JSON(ActivityResponse{
		Entries:  m.activity.Entries(),
		Counters: m.activity.Counters(),
	})
}

func (m *APIModule) notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		Error:   "not_found",
		Message: "Not found",
	})
}

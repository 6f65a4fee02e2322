package api

import (
	"time"

	domain "github.com/example/canvas-relay/domain/canvas"
	"github.com/example/canvas-relay/modules/activity"
)

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status       string  `json:"status"`
	Rooms        int     `json:"rooms"`
	TotalClients int     `json:"totalClients"`
	Uptime       float64 `json:"uptime"` // seconds
}

// RoomResponse is the API response for a room.
type RoomResponse struct {
	RoomID       string    `json:"roomId"`
	Members      int       `json:"members"`
	Images       int       `json:"images"`
	Texts        int       `json:"texts"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []RoomResponse `json:"rooms"`
	Count int            `json:"count"`
}

// ActivityResponse is the API response for the activity log.
type ActivityResponse struct {
	Entries  []activity.Entry  `json:"entries"`
	Counters activity.Counters `json:"counters"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func toRoomResponse(s domain.RoomSummary) RoomResponse {
	return RoomResponse{
		RoomID:       s.RoomID,
		Members:      s.Members,
		Images:       s.Images,
		Texts:        s.Texts,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
	}
}

package canvas

import "time"

// Kind identifies the collection a canvas object lives in.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
)

// IDField returns the wire field that carries an object's identifier.
func (k Kind) IDField() string {
	switch k {
	case KindImage:
		return "imageId"
	case KindText:
		return "textId"
	default:
		return ""
	}
}

// Member is a session as seen by other members of its room.
type Member struct {
	SenderID string `json:"senderId"`
	UserName string `json:"userName"`
}

// RoomSummary describes a live room for status reporting.
type RoomSummary struct {
	RoomID       string    `json:"roomId"`
	Members      int       `json:"members"`
	Images       int       `json:"images"`
	Texts        int       `json:"texts"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Stats is a point-in-time count of rooms and connected sessions.
type Stats struct {
	Rooms    int `json:"rooms"`
	Sessions int `json:"sessions"`
}

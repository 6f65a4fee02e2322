package canvas

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/canvas-relay/domain/canvas"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// CanvasPort defines the status operations other modules may call.
type CanvasPort interface {
	Stats(ctx context.Context) (*StatsResponse, error)
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
}

// CanvasAdapter implements CanvasPort using the service container.
type CanvasAdapter struct {
	container mono.ServiceContainer
}

// NewCanvasAdapter creates a new CanvasAdapter.
func NewCanvasAdapter(container mono.ServiceContainer) CanvasPort {
	if container == nil {
		panic("canvas: ServiceContainer is nil")
	}
	return &CanvasAdapter{container: container}
}

// Stats returns the room and session counts.
func (a *CanvasAdapter) Stats(ctx context.Context) (*StatsResponse, error) {
	req := StatsRequest{}
	var resp StatsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceStats,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &resp, nil
}

// ListRooms returns a summary of every live room.
func (a *CanvasAdapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

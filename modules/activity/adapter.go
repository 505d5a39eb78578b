package activity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ErrNoActivity is returned when no event was ever recorded for a room.
var ErrNoActivity = errors.New("no activity recorded for room")

// StatsPort is the read side of the activity module.
type StatsPort interface {
	RoomStats(ctx context.Context, roomID string) (*RoomStats, error)
	Summary(ctx context.Context) (*Summary, error)
}

// statsAdapter implements StatsPort using the service container.
type statsAdapter struct {
	container mono.ServiceContainer
}

// NewStatsAdapter creates a new adapter for the activity services.
func NewStatsAdapter(container mono.ServiceContainer) StatsPort {
	if container == nil {
		panic("activity: ServiceContainer is nil")
	}
	return &statsAdapter{container: container}
}

// RoomStats retrieves the statistics of one room.
func (a *statsAdapter) RoomStats(ctx context.Context, roomID string) (*RoomStats, error) {
	req := RoomStatsRequest{RoomID: roomID}
	var resp RoomStatsResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceRoomStats, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("%s service call failed: %w", ServiceRoomStats, err)
	}
	if !resp.Found {
		return nil, ErrNoActivity
	}
	return &resp.Stats, nil
}

// Summary retrieves aggregate statistics.
func (a *statsAdapter) Summary(ctx context.Context) (*Summary, error) {
	var req SummaryRequest
	var resp SummaryResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, ServiceSummary, json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("%s service call failed: %w", ServiceSummary, err)
	}
	return &resp.Summary, nil
}

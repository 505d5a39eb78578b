package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/workspace-chat/domain/chat"
)

// ChatPort is the room API consumed by the HTTP edge.
type ChatPort interface {
	CreateRoom(ctx context.Context, roomName, username string) (*CreateRoomResponse, error)
	GetRoom(ctx context.Context, roomID string) (*domain.RoomSummary, error)
	JoinRoom(ctx context.Context, roomID, username string) (*JoinRoomResponse, error)
	RoomMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
}

// chatAdapter implements ChatPort over the chat module's ServiceContainer.
// Domain errors come back as the same sentinels the module returned.
type chatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a ChatPort backed by container.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &chatAdapter{container: container}
}

// callService performs one request-reply call against container.
func callService[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s service call failed: %w", service, err)
	}
	return nil
}

// CreateRoom creates a room and registers its creator.
func (a *chatAdapter) CreateRoom(ctx context.Context, roomName, username string) (*CreateRoomResponse, error) {
	req := CreateRoomRequest{RoomName: roomName, Username: username}
	var resp CreateRoomResponse
	if err := callService(ctx, a.container, ServiceCreateRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRoom returns a summary of the room.
func (a *chatAdapter) GetRoom(ctx context.Context, roomID string) (*domain.RoomSummary, error) {
	req := GetRoomRequest{RoomID: roomID}
	var resp RoomResponse
	if err := callService(ctx, a.container, ServiceGetRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp.Room, nil
}

// JoinRoom registers username in the room.
func (a *chatAdapter) JoinRoom(ctx context.Context, roomID, username string) (*JoinRoomResponse, error) {
	req := JoinRoomRequest{RoomID: roomID, Username: username}
	var resp JoinRoomResponse
	if err := callService(ctx, a.container, ServiceJoinRoom, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RoomMessages returns up to limit recent messages, oldest first.
func (a *chatAdapter) RoomMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := RoomMessagesRequest{RoomID: roomID, Limit: limit}
	var resp RoomMessagesResponse
	if err := callService(ctx, a.container, ServiceRoomMessages, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// ListRooms returns every room.
func (a *chatAdapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	var req ListRoomsRequest
	var resp ListRoomsResponse
	if err := callService(ctx, a.container, ServiceListRooms, &req, &resp); err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

package chat

import (
	"context"

	"github.com/go-monolith/mono"

	domain "github.com/example/workspace-chat/domain/chat"
)

// createRoom handles the create-room service.
func (m *Module) createRoom(_ context.Context, req CreateRoomRequest, _ *mono.Msg) (CreateRoomResponse, error) {
	room, member, err := m.registry.CreateRoom(req.RoomName, req.Username)
	if err != nil {
		return CreateRoomResponse{ServiceError: serviceError(err)}, nil
	}
	return CreateRoomResponse{
		RoomID:   room.ID,
		RoomName: room.Name,
		UserID:   member.UserID,
	}, nil
}

// getRoom handles the get-room service.
func (m *Module) getRoom(_ context.Context, req GetRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.registry.GetRoom(req.RoomID)
	if err != nil {
		return RoomResponse{ServiceError: serviceError(err)}, nil
	}
	return RoomResponse{Room: room.Summary()}, nil
}

// joinRoom handles the join-room service.
func (m *Module) joinRoom(_ context.Context, req JoinRoomRequest, _ *mono.Msg) (JoinRoomResponse, error) {
	room, member, err := m.registry.JoinRoom(req.RoomID, req.Username)
	if err != nil {
		return JoinRoomResponse{ServiceError: serviceError(err)}, nil
	}
	return JoinRoomResponse{
		RoomID:   room.ID,
		RoomName: room.Name,
		UserID:   member.UserID,
	}, nil
}

// roomMessages handles the room-messages service.
func (m *Module) roomMessages(_ context.Context, req RoomMessagesRequest, _ *mono.Msg) (RoomMessagesResponse, error) {
	room, err := m.registry.GetRoom(req.RoomID)
	if err != nil {
		return RoomMessagesResponse{RoomID: req.RoomID, ServiceError: serviceError(err)}, nil
	}
	return RoomMessagesResponse{
		RoomID:   room.ID,
		Messages: room.History(req.Limit),
	}, nil
}

// listRooms handles the list-rooms service.
func (m *Module) listRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms := m.registry.Rooms()
	resp := ListRoomsResponse{Rooms: make([]domain.RoomSummary, 0, len(rooms))}
	for _, r := range rooms {
		resp.Rooms = append(resp.Rooms, r.Summary())
	}
	return resp, nil
}

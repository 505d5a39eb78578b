package api

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workspace-chat/modules/chat"
)

func TestWebSocket_Conversation(t *testing.T) {
	m, host := newTestModule(t, nil)
	addr := startTestModule(t, m)

	room, alice, err := host.Registry().CreateRoom("Design", "Alice")
	require.NoError(t, err)
	_, bob, err := host.Registry().JoinRoom(room.ID, "Bob")
	require.NoError(t, err)

	aliceWS := dial(t, addr, room.ID, alice.UserID)
	sendFrame(t, aliceWS, map[string]any{"type": chat.FrameJoinRoom})
	info := readUntil(t, aliceWS, chat.FrameRoomInfo)
	assert.Equal(t, "Design", info.RoomName)

	bobWS := dial(t, addr, room.ID, bob.UserID)
	sendFrame(t, bobWS, map[string]any{"type": chat.FrameJoinRoom})
	readUntil(t, bobWS, chat.FrameRoomInfo)

	joined := readUntil(t, aliceWS, chat.FrameUserJoined)
	assert.Equal(t, bob.UserID, joined.UserID)
	assert.Equal(t, 2, joined.UsersCount)

	sendFrame(t, aliceWS, map[string]any{"type": chat.FrameMessage, "content": "hi"})
	for _, ws := range []*websocket.Conn{aliceWS, bobWS} {
		msg := readUntil(t, ws, chat.FrameMessage)
		assert.Equal(t, "hi", msg.Content)
		assert.Equal(t, alice.UserID, msg.UserID)
		assert.Equal(t, uint64(1), msg.Seq)
	}

	sendFrame(t, bobWS, map[string]any{"type": chat.FramePing})
	readUntil(t, bobWS, chat.FramePong)

	require.NoError(t, bobWS.Close())
	left := readUntil(t, aliceWS, chat.FrameUserLeft)
	assert.Equal(t, bob.UserID, left.UserID)
	assert.Equal(t, 1, left.UsersCount)

	require.Eventually(t, func() bool { return room.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_UnknownUserRejected(t *testing.T) {
	m, host := newTestModule(t, nil)
	addr := startTestModule(t, m)

	room, _, err := host.Registry().CreateRoom("Design", "Alice")
	require.NoError(t, err)

	ws := dial(t, addr, room.ID, "ghost")
	errFrame := readUntil(t, ws, chat.FrameError)
	assert.Equal(t, string(chat.KindNotFound), errFrame.Code)
	assert.Equal(t, chat.ErrUserNotFound.Reason, errFrame.Reason)

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.Error(t, err, "server must close the connection")
	assert.Equal(t, 0, room.ConnectionCount())
}

func TestWebSocket_ReconnectReplacesSession(t *testing.T) {
	m, host := newTestModule(t, nil)
	addr := startTestModule(t, m)

	room, alice, err := host.Registry().CreateRoom("Design", "Alice")
	require.NoError(t, err)

	first := dial(t, addr, room.ID, alice.UserID)
	sendFrame(t, first, map[string]any{"type": chat.FrameJoinRoom})
	readUntil(t, first, chat.FrameRoomInfo)

	second := dial(t, addr, room.ID, alice.UserID)
	sendFrame(t, second, map[string]any{"type": chat.FrameJoinRoom})
	readUntil(t, second, chat.FrameRoomInfo)

	replaced := readUntil(t, first, chat.FrameError)
	assert.Equal(t, chat.CodeSessionReplaced, replaced.Code)
	assert.Equal(t, 1, room.ConnectionCount())
}

func TestWebSocket_StopDisconnectsSessions(t *testing.T) {
	m, host := newTestModule(t, nil)
	addr := startTestModule(t, m)

	room, alice, err := host.Registry().CreateRoom("Design", "Alice")
	require.NoError(t, err)

	ws := dial(t, addr, room.ID, alice.UserID)
	sendFrame(t, ws, map[string]any{"type": chat.FrameJoinRoom})
	readUntil(t, ws, chat.FrameRoomInfo)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Stop(ctx))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
	assert.Equal(t, 0, room.ConnectionCount())
}

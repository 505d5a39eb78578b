package api

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/example/workspace-chat/config"
	domain "github.com/example/workspace-chat/domain/chat"
	"github.com/example/workspace-chat/modules/activity"
	"github.com/example/workspace-chat/modules/chat"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any)         {}
func (m *mockLogger) Info(_ string, _ ...any)          {}
func (m *mockLogger) Warn(_ string, _ ...any)          {}
func (m *mockLogger) Error(_ string, _ ...any)         {}
func (m *mockLogger) With(_ ...any) types.Logger       { return m }
func (m *mockLogger) WithModule(_ string) types.Logger { return m }
func (m *mockLogger) WithError(_ error) types.Logger   { return m }

// registryPort implements chat.ChatPort directly over a registry.
type registryPort struct {
	reg *chat.Registry
}

func (p registryPort) CreateRoom(_ context.Context, roomName, username string) (*chat.CreateRoomResponse, error) {
	room, member, err := p.reg.CreateRoom(roomName, username)
	if err != nil {
		return nil, err
	}
	return &chat.CreateRoomResponse{RoomID: room.ID, RoomName: room.Name, UserID: member.UserID}, nil
}

func (p registryPort) GetRoom(_ context.Context, roomID string) (*domain.RoomSummary, error) {
	room, err := p.reg.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	s := room.Summary()
	return &s, nil
}

func (p registryPort) JoinRoom(_ context.Context, roomID, username string) (*chat.JoinRoomResponse, error) {
	room, member, err := p.reg.JoinRoom(roomID, username)
	if err != nil {
		return nil, err
	}
	return &chat.JoinRoomResponse{RoomID: room.ID, RoomName: room.Name, UserID: member.UserID}, nil
}

func (p registryPort) RoomMessages(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	room, err := p.reg.GetRoom(roomID)
	if err != nil {
		return nil, err
	}
	return room.History(limit), nil
}

func (p registryPort) ListRooms(_ context.Context) ([]domain.RoomSummary, error) {
	rooms := p.reg.Rooms()
	out := make([]domain.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Summary())
	}
	return out, nil
}

// fakeStats is a canned activity.StatsPort.
type fakeStats struct {
	rooms   map[string]activity.RoomStats
	summary activity.Summary
	err     error
}

func (f *fakeStats) RoomStats(_ context.Context, roomID string) (*activity.RoomStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.rooms[roomID]
	if !ok {
		return nil, activity.ErrNoActivity
	}
	return &st, nil
}

func (f *fakeStats) Summary(_ context.Context) (*activity.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &f.summary, nil
}

// newTestModule returns an API module wired to a real chat engine, not yet
// listening.
func newTestModule(t *testing.T, stats *fakeStats) (*Module, *chat.Module) {
	t.Helper()
	cfg := config.New(config.WithPort(0))

	host, err := chat.NewModule(cfg, &mockLogger{})
	require.NoError(t, err)

	m := NewModule(cfg, host, &mockLogger{})
	m.chat = registryPort{reg: host.Registry()}
	if stats == nil {
		stats = &fakeStats{}
	}
	m.stats = stats
	m.sessionCtx, m.cancelSession = context.WithCancel(context.Background())
	t.Cleanup(m.cancelSession)
	return m, host
}

// startTestModule starts m on an ephemeral port and returns its host:port.
func startTestModule(t *testing.T, m *Module) string {
	t.Helper()
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Stop(ctx)
	})

	_, port, err := net.SplitHostPort(m.Addr())
	require.NoError(t, err)
	return "127.0.0.1:" + port
}

// wsFrame is a decoded server frame.
type wsFrame struct {
	Type       string           `json:"type"`
	Code       string           `json:"code"`
	Reason     string           `json:"reason"`
	UserID     string           `json:"user_id"`
	Username   string           `json:"username"`
	Content    string           `json:"content"`
	Seq        uint64           `json:"seq"`
	UsersCount int              `json:"users_count"`
	RoomName   string           `json:"room_name"`
	Users      []map[string]any `json:"users"`
}

func dial(t *testing.T, addr, roomID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws://" + addr + "/ws/" + roomID + "/" + userID
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func sendFrame(t *testing.T, ws *websocket.Conn, frame map[string]any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(frame))
}

// readUntil reads frames until one of type typ arrives.
func readUntil(t *testing.T, ws *websocket.Conn, typ string) wsFrame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %q frame", typ)

		var f wsFrame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == typ {
			return f
		}
	}
}

func jsonBody(t *testing.T, v any) *strings.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return strings.NewReader(string(data))
}

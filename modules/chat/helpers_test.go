package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"

	"github.com/example/workspace-chat/events"
	"github.com/example/workspace-chat/modules/broadcast"
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

var errTransportClosed = errors.New("transport closed")

// fakeTransport is an in-memory Transport. When stall is set, writes block
// until the write deadline passes or the transport is closed, like a peer
// that stopped reading.
type fakeTransport struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
	stall   bool

	mu       sync.Mutex
	written  [][]byte
	deadline time.Time
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
}

func newStalledTransport() *fakeTransport {
	t := newFakeTransport()
	t.stall = true
	return t
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return 1, data, nil
	case <-f.closed:
		return 0, nil, errTransportClosed
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if f.stall {
		f.mu.Lock()
		wait := time.Until(f.deadline)
		f.mu.Unlock()
		select {
		case <-f.closed:
		case <-time.After(wait):
		}
		return errTransportClosed
	}
	select {
	case <-f.closed:
		return errTransportClosed
	default:
	}
	f.mu.Lock()
	f.written = append(f.written, data)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SetWriteDeadline(t time.Time) error {
	f.mu.Lock()
	f.deadline = t
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

// send delivers a client frame.
func (f *fakeTransport) send(t *testing.T, frame map[string]any) {
	t.Helper()
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	f.inbound <- data
}

// testFrame is a decoded outbound frame.
type testFrame struct {
	Type           string           `json:"type"`
	Code           string           `json:"code"`
	Reason         string           `json:"reason"`
	UserID         string           `json:"user_id"`
	Username       string           `json:"username"`
	Content        string           `json:"content"`
	Seq            uint64           `json:"seq"`
	UsersCount     int              `json:"users_count"`
	IsTyping       bool             `json:"is_typing"`
	RoomName       string           `json:"room_name"`
	Users          []map[string]any `json:"users"`
	RecentMessages []testFrame      `json:"recent_messages"`
}

func (f *fakeTransport) frames() []testFrame {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]testFrame, 0, len(f.written))
	for _, data := range f.written {
		var tf testFrame
		if err := json.Unmarshal(data, &tf); err == nil {
			out = append(out, tf)
		}
	}
	return out
}

func (f *fakeTransport) framesOfType(typ string) []testFrame {
	var out []testFrame
	for _, fr := range f.frames() {
		if fr.Type == typ {
			out = append(out, fr)
		}
	}
	return out
}

// waitFrames waits until at least n frames of typ were written.
func (f *fakeTransport) waitFrames(t *testing.T, typ string, n int) []testFrame {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.framesOfType(typ)) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d %q frames", n, typ)
	return f.framesOfType(typ)
}

// recordingSink captures published domain events.
type recordingSink struct {
	mu      sync.Mutex
	created []events.RoomCreatedEvent
	joined  []events.UserJoinedEvent
	left    []events.UserLeftEvent
	sent    []events.MessageSentEvent
	retired []events.RoomRetiredEvent
}

func (s *recordingSink) RoomCreated(e events.RoomCreatedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, e)
}

func (s *recordingSink) UserJoined(e events.UserJoinedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joined = append(s.joined, e)
}

func (s *recordingSink) UserLeft(e events.UserLeftEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.left = append(s.left, e)
}

func (s *recordingSink) MessageSent(e events.MessageSentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, e)
}

func (s *recordingSink) RoomRetired(e events.RoomRetiredEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retired = append(s.retired, e)
}

func (s *recordingSink) leftEvents() []events.UserLeftEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.UserLeftEvent(nil), s.left...)
}

var testLimits = Limits{MaxRoomName: 100, MaxUsername: 50, MaxMessage: 5000}

func newTestRegistry(t *testing.T, sink EventSink) *Registry {
	t.Helper()
	reg, err := NewRegistry(RoomOptions{HistoryCapacity: 50, Limits: testLimits},
		broadcast.NewEngine(&mockLogger{}), sink, &mockLogger{})
	require.NoError(t, err)
	return reg
}

var testConnOptions = ConnectionOptions{SendBufferSize: 256, WriteTimeout: time.Second}

// attach connects userID to room over a fresh fake transport.
func attach(t *testing.T, room *Room, userID string) (*Connection, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	c := NewConnection(room.ID, userID, tr, testConnOptions, &mockLogger{})
	_, err := room.Attach(c)
	require.NoError(t, err)
	return c, tr
}

// runSession starts a session over a fresh fake transport.
func runSession(t *testing.T, reg *Registry, roomID, userID string, opts SessionOptions) (*Session, *fakeTransport, <-chan error) {
	t.Helper()
	tr := newFakeTransport()
	c := NewConnection(roomID, userID, tr, testConnOptions, &mockLogger{})
	s := NewSession(reg, c, opts, &mockLogger{})

	done := make(chan error, 1)
	finished := make(chan struct{})
	go func() {
		done <- s.Run(context.Background())
		close(finished)
	}()
	t.Cleanup(func() {
		_ = tr.Close()
		<-finished
	})
	return s, tr, done
}

package activity

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/workspace-chat/events"
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

func TestModule_Name(t *testing.T) {
	m := NewModule(&mockLogger{})
	assert.Equal(t, "activity", m.Name())
}

func TestModule_EventHandlersFeedServices(t *testing.T) {
	ctx := context.Background()
	m := NewModule(&mockLogger{})
	now := time.Now()

	require.NoError(t, m.handleRoomCreated(ctx, events.RoomCreatedEvent{
		RoomID: "r1", RoomName: "Design", CreatedBy: "u1", Timestamp: now,
	}, nil))
	require.NoError(t, m.handleUserJoined(ctx, events.UserJoinedEvent{
		RoomID: "r1", UserID: "u1", UsersCount: 1, Timestamp: now,
	}, nil))
	require.NoError(t, m.handleMessageSent(ctx, events.MessageSentEvent{
		RoomID: "r1", Seq: 1, Length: 2, Timestamp: now,
	}, nil))
	require.NoError(t, m.handleUserLeft(ctx, events.UserLeftEvent{
		RoomID: "r1", UserID: "u1", Reason: events.LeftExplicit, Timestamp: now,
	}, nil))

	resp, err := m.roomStats(ctx, RoomStatsRequest{RoomID: "r1"}, nil)
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, int64(1), resp.Stats.Messages)
	assert.Equal(t, int64(1), resp.Stats.Joins)
	assert.Equal(t, int64(1), resp.Stats.Departures[events.LeftExplicit])
	assert.Equal(t, 0, resp.Stats.OnlineUsers)

	missing, err := m.roomStats(ctx, RoomStatsRequest{RoomID: "nope"}, nil)
	require.NoError(t, err)
	assert.False(t, missing.Found)

	require.NoError(t, m.handleRoomRetired(ctx, events.RoomRetiredEvent{
		RoomID: "r1", IdleFor: time.Hour, Timestamp: now,
	}, nil))

	sum, err := m.summary(ctx, SummaryRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Summary.RoomsCreated)
	assert.Equal(t, 1, sum.Summary.RoomsRetired)
	assert.Equal(t, int64(1), sum.Summary.Messages)
}

func TestModule_ConcurrentSummaries(t *testing.T) {
	ctx := context.Background()
	m := NewModule(&mockLogger{})
	now := time.Now()
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("r%02d", i)
		m.Store().RecordRoomCreated(id, "room", "u1", now)
		for j := 0; j <= i; j++ {
			m.Store().RecordMessage(id, uint64(j+1), 3, now)
		}
	}

	var wg sync.WaitGroup
	results := make([]SummaryResponse, 32)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.summary(ctx, SummaryRequest{}, nil)
		}(i)
	}
	wg.Wait()

	for i, resp := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 20, resp.Summary.RoomsCreated)
		assert.Equal(t, int64(210), resp.Summary.Messages)
		require.Len(t, resp.Summary.BusiestRooms, 5)
		assert.Equal(t, "r19", resp.Summary.BusiestRooms[0].RoomID)
	}
}

func TestModule_Health(t *testing.T) {
	m := NewModule(&mockLogger{})
	m.Store().RecordRoomCreated("r1", "Design", "u1", time.Now())

	status := m.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.Details["rooms_tracked"])
}

func TestNewStatsAdapter_NilContainer(t *testing.T) {
	assert.Panics(t, func() { NewStatsAdapter(nil) })
}

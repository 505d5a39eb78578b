package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RoomLifecycle(t *testing.T) {
	s := NewStore()
	t0 := time.Now()

	s.RecordRoomCreated("r1", "Design", "u1", t0)
	s.RecordJoin("r1", false, 1, t0.Add(time.Second))
	s.RecordJoin("r1", false, 2, t0.Add(2*time.Second))
	s.RecordJoin("r1", true, 2, t0.Add(3*time.Second))
	s.RecordMessage("r1", 1, 5, t0.Add(4*time.Second))
	s.RecordMessage("r1", 2, 7, t0.Add(5*time.Second))
	s.RecordLeave("r1", "transport_closed", 1, t0.Add(6*time.Second))

	st, ok := s.Stats("r1")
	require.True(t, ok)
	assert.Equal(t, "Design", st.RoomName)
	assert.Equal(t, "u1", st.CreatedBy)
	assert.Equal(t, int64(3), st.Joins)
	assert.Equal(t, int64(1), st.Replacements)
	assert.Equal(t, int64(2), st.Messages)
	assert.Equal(t, int64(12), st.MessageBytes)
	assert.Equal(t, uint64(2), st.LastSeq)
	assert.Equal(t, 2, st.PeakUsers)
	assert.Equal(t, 1, st.OnlineUsers)
	assert.Equal(t, int64(1), st.Departures["transport_closed"])
	assert.True(t, st.LastActivity.Equal(t0.Add(6*time.Second)))
}

func TestStore_OutOfOrderEvents(t *testing.T) {
	s := NewStore()
	t0 := time.Now()

	s.RecordMessage("r1", 5, 1, t0.Add(time.Minute))
	s.RecordMessage("r1", 3, 1, t0)
	s.RecordRoomCreated("r1", "Late", "u1", t0.Add(-time.Minute))

	st, ok := s.Stats("r1")
	require.True(t, ok)
	assert.Equal(t, uint64(5), st.LastSeq)
	assert.True(t, st.LastMessageAt.Equal(t0.Add(time.Minute)))
	assert.True(t, st.LastActivity.Equal(t0.Add(time.Minute)))
	assert.Equal(t, "Late", st.RoomName)
}

func TestStore_StatsReturnsCopy(t *testing.T) {
	s := NewStore()
	s.RecordLeave("r1", "leave", 0, time.Now())

	st, _ := s.Stats("r1")
	st.Departures["leave"] = 100

	again, _ := s.Stats("r1")
	assert.Equal(t, int64(1), again.Departures["leave"])

	_, ok := s.Stats("missing")
	assert.False(t, ok)
}

func TestStore_Summary(t *testing.T) {
	s := NewStore()
	now := time.Now()

	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("r%d", i)
		s.RecordRoomCreated(id, id, "u", now)
		for j := 0; j <= i; j++ {
			s.RecordMessage(id, uint64(j+1), 1, now)
		}
	}
	s.RecordJoin("r6", false, 3, now)
	s.RecordLeave("r5", "heartbeat_timeout", 0, now)
	s.RecordRetired("r0", now)

	sum := s.Summary()
	assert.Equal(t, 7, sum.RoomsCreated)
	assert.Equal(t, 1, sum.RoomsRetired)
	assert.Equal(t, 1, sum.ActiveRooms)
	assert.Equal(t, 3, sum.OnlineUsers)
	assert.Equal(t, int64(28), sum.Messages)
	assert.Equal(t, int64(1), sum.Joins)
	assert.Equal(t, int64(1), sum.Departures["heartbeat_timeout"])

	require.Len(t, sum.BusiestRooms, busiestRoomsLimit)
	assert.Equal(t, "r6", sum.BusiestRooms[0].RoomID)
	assert.Equal(t, "r2", sum.BusiestRooms[4].RoomID)
}

func TestStore_ConcurrentRecording(t *testing.T) {
	s := NewStore()
	s.RecordRoomCreated("r1", "Busy", "u1", time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.RecordMessage("r1", uint64(i*50+j+1), 3, time.Now())
				_ = s.Summary()
			}
		}(i)
	}
	wg.Wait()

	st, _ := s.Stats("r1")
	assert.Equal(t, int64(1000), st.Messages)
	assert.Equal(t, uint64(1000), st.LastSeq)
}

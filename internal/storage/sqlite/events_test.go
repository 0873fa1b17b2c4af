package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/airship-atc/pkg/logger"
)

func openTestStorage(t *testing.T, max int) *EventStorage {
	t.Helper()
	s, err := NewEventStorage(filepath.Join(t.TempDir(), "events.db"), max, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestModeHistory(t *testing.T) {
	s := openTestStorage(t, 3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	transitions := []struct{ from, to string }{
		{"none", "slow_down"},
		{"slow_down", "hold"},
		{"hold", "none"},
		{"none", "stuck"},
	}
	for i, tr := range transitions {
		id, err := s.InsertModeChange(&ModeChangeRecord{
			RunID:       "run-1",
			AirshipID:   "ship-1",
			RouteID:     2,
			Phase:       "cruise",
			From:        tr.from,
			To:          tr.to,
			SpeedFactor: 0.5,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
		assert.Positive(t, id)
	}
	_, err := s.InsertModeChange(&ModeChangeRecord{RunID: "run-2", AirshipID: "ship-1", From: "none", To: "hold", Timestamp: base})
	require.NoError(t, err)

	t.Run("newest first, capped", func(t *testing.T) {
		recs, err := s.GetModeHistory("run-1", "ship-1", 0)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		assert.Equal(t, "stuck", recs[0].To)
		assert.Equal(t, "hold", recs[2].To)
		assert.Equal(t, 2, recs[0].RouteID)
		assert.Equal(t, 0.5, recs[0].SpeedFactor)
		assert.True(t, base.Add(3*time.Second).Equal(recs[0].Timestamp))
	})

	t.Run("explicit limit", func(t *testing.T) {
		recs, err := s.GetModeHistory("run-1", "ship-1", 1)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "none", recs[0].From)
	})

	t.Run("scoped by run and airship", func(t *testing.T) {
		recs, err := s.GetModeHistory("run-2", "ship-1", 10)
		require.NoError(t, err)
		assert.Len(t, recs, 1)

		recs, err = s.GetModeHistory("run-1", "ship-9", 10)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestDockHistory(t *testing.T) {
	s := openTestStorage(t, 0)
	now := time.Now().UTC()

	_, err := s.InsertDockEvent(&DockEventRecord{
		RunID: "run-1", AirshipID: "ship-1", RouteID: 1, Site: "Saltmarsh", Leg: 1,
		DidHold: true, SlowCount: 2, ExtraHold: 30, ExtraSlowdown: 15, Wait: 105, Timestamp: now,
	})
	require.NoError(t, err)
	_, err = s.InsertDockEvent(&DockEventRecord{
		RunID: "run-1", AirshipID: "ship-1", RouteID: 1, Site: "Ashford", Leg: 2, Wait: 60, Timestamp: now,
	})
	require.NoError(t, err)

	recs, err := s.GetDockHistory("run-1", "ship-1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ashford", recs[0].Site)
	assert.False(t, recs[0].DidHold)

	salt := recs[1]
	assert.True(t, salt.DidHold)
	assert.Equal(t, 2, salt.SlowCount)
	assert.Equal(t, 30.0, salt.ExtraHold)
	assert.Equal(t, 15.0, salt.ExtraSlowdown)
	assert.Equal(t, 105.0, salt.Wait)

	n, err := s.CountDocks("run-1", "Saltmarsh")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChatStorage(t *testing.T) {
	events := openTestStorage(t, 10)
	s, err := NewChatStorage(events.GetDB(), logger.NewNop())
	require.NoError(t, err)

	now := time.Now().UTC()
	for i, line := range []string{"Lifting off", "Holding short", "Continuing to hold"} {
		_, err := s.StoreChatLine(&ChatRecord{
			RunID: "run-1", AirshipID: "ship-1", RouteID: 1,
			Key: "k", Text: line, CreatedAt: now.Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)
	}
	_, err = s.StoreChatLine(&ChatRecord{RunID: "run-1", AirshipID: "ship-2", Key: "k", Text: "Landed", CreatedAt: now})
	require.NoError(t, err)

	lines, err := s.GetChatLines("run-1", "ship-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Continuing to hold", lines[0].Text)
	assert.Equal(t, "Holding short", lines[1].Text)

	lines, err = s.GetChatLines("run-1", "ship-1", 0, 1)
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	recent, err := s.GetRecentChat("run-1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, "ship-2", recent[0].AirshipID)
}

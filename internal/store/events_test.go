package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"raffle/internal/models"
)

func TestEventLog(t *testing.T) {
	log, err := Open(filepath.Join(t.TempDir(), "events.sqlite3"))
	require.NoError(t, err)
	defer log.Close()

	now := time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)
	events := []models.Event{
		{Type: models.EventEntered, Participant: "0xA1", CreatedAt: now},
		{Type: models.EventDrawRequested, RequestID: "req-1", CreatedAt: now.Add(time.Minute)},
		{Type: models.EventWinnerPicked, RequestID: "req-1", Winner: "0xA1", CreatedAt: now.Add(2 * time.Minute)},
	}
	for _, ev := range events {
		require.NoError(t, log.Append(ev))
	}

	t.Run("lists events in append order", func(t *testing.T) {
		got, err := log.List(0)
		require.NoError(t, err)
		require.Len(t, got, 3)

		require.Equal(t, int64(1), got[0].ID)
		require.Equal(t, models.EventEntered, got[0].Type)
		require.Equal(t, "0xA1", got[0].Participant)
		require.Equal(t, now, got[0].CreatedAt)

		require.Equal(t, models.EventWinnerPicked, got[2].Type)
		require.Equal(t, "req-1", got[2].RequestID)
		require.Equal(t, "0xA1", got[2].Winner)
	})

	t.Run("honors the limit", func(t *testing.T) {
		got, err := log.List(2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, models.EventEntered, got[0].Type)
		require.Equal(t, models.EventDrawRequested, got[1].Type)
	})
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.Append(models.Event{Type: models.EventEntered}))
	}

	got, err := sink.List(0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Oldest entries were dropped.
	require.Equal(t, int64(3), got[0].ID)
	require.Equal(t, int64(5), got[2].ID)

	limited, err := sink.List(1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

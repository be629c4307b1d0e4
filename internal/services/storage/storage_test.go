package storage

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/view"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRecorder struct {
	ops map[string]string
}

func (r *countingRecorder) RecordStorageOperation(operation, status string, _ time.Duration) {
	r.ops[operation] = status
}

func newTestManager(t *testing.T) (*Manager, *countingRecorder) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{
		Server: config.ServerConfig{SessionTTL: time.Hour},
		Storage: config.StorageConfig{
			Type:   "memory",
			Memory: config.MemoryConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Minute},
		},
	}
	rec := &countingRecorder{ops: map[string]string{}}
	m, err := NewManager(cfg, rec, logger)
	require.NoError(t, err)
	return m, rec
}

func TestManager_StateRoundTrip(t *testing.T) {
	m, rec := newTestManager(t)
	ctx := context.Background()

	_, err := m.GetState(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "success", rec.ops["get_state"], "missing session is not a failure")

	state := view.NewState(22747736, 50, 15, time.Unix(1700000000, 0))
	state.Feed.Pager.JumpTo(2)
	require.NoError(t, m.SaveState(ctx, "abc", state))

	got, err := m.GetState(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 100, got.Feed.Pager.Offset)
	assert.Equal(t, int64(22747736), got.RoomID)

	// loaded states are copies
	got.Feed.Pager.JumpTo(5)
	again, err := m.GetState(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 100, again.Feed.Pager.Offset)

	n, err := m.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.DeleteState(ctx, "abc"))
	_, err = m.GetState(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, m.Ping(ctx))
}

func TestMemoryStorage_Expiry(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewMemoryStorage(&config.Config{
		Storage: config.StorageConfig{Memory: config.MemoryConfig{DefaultExpiration: time.Hour, CleanupInterval: time.Minute}},
	}, logger)
	ctx := context.Background()

	require.NoError(t, s.SaveState(ctx, "short", view.NewState(1, 50, 15, time.Now()), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := s.GetState(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CleanupExpired(ctx))
	n, err := s.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

package sweeper

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/auth-service/internal/logging"
	"github.com/fintrack/auth-service/internal/store"
)

func TestSweeper_PurgesExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	// records expire almost immediately
	st := store.NewMemoryStore(time.Nanosecond)

	user := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := st.Save(ctx, uuid.NewString(), user, store.Metadata{})
		require.NoError(t, err)
	}
	time.Sleep(5 * time.Millisecond)

	s := New(st, 10*time.Millisecond, logging.New("error"))

	runCtx, cancel := context.WithCancel(ctx)
	go s.Run(runCtx)

	assert.Eventually(t, func() bool {
		return st.Stats(ctx).Total == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
}

func TestSweeper_LeavesLiveRecords(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := store.NewMemoryStore(store.DefaultWindow)

	user := uuid.New()
	_, err := st.Save(ctx, uuid.NewString(), user, store.Metadata{})
	require.NoError(t, err)

	s := New(st, time.Hour, logging.New("error"))
	s.sweep(ctx)

	assert.Equal(t, int64(1), st.Stats(ctx).Total)
}

func TestSweeper_DefaultInterval(t *testing.T) {
	t.Parallel()

	s := New(store.NewMemoryStore(0), 0, logging.New("error"))
	assert.Equal(t, time.Hour, s.Interval)
}

package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/phrazzld/tasktracker/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	s := New(nil, logger.NewTestLogger(t))

	require.NoError(t, s.Register("hourly", "0 * * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.Register("hourly", "0 * * * *", func(context.Context) error { return nil }))
	assert.Error(t, s.Register("broken", "every hour", func(context.Context) error { return nil }))
	assert.ElementsMatch(t, []string{"hourly"}, s.Jobs())
}

func TestNext_UsesLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		t.Skip("time zone database unavailable")
	}
	s := New(loc, logger.NewTestLogger(t))
	require.NoError(t, s.Register("daily", "30 9 * * *", func(context.Context) error { return nil }))

	s.Start()
	defer func() { _ = s.Stop(context.Background()) }()

	next, ok := s.Next("daily")
	require.True(t, ok)
	local := next.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 30, local.Minute())

	_, ok = s.Next("missing")
	assert.False(t, ok)
}

func TestStart_RunsJobsAndStopCancels(t *testing.T) {
	s := New(time.UTC, logger.NewTestLogger(t))

	var runs atomic.Int32
	cancelled := make(chan struct{})
	require.NoError(t, s.Register("tick", "@every 1s", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		}
		return errors.New("overlapping run")
	}))

	s.Start()
	s.Start()

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load(), "running job is not started again")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	<-cancelled
}

func TestStop_WithoutStart(t *testing.T) {
	s := New(time.UTC, nil)
	assert.NoError(t, s.Stop(context.Background()))
}

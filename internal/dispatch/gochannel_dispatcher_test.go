package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commonbook-be/internal/dto"
	"commonbook-be/internal/pkg/logger"
)

func TestGoChannelDispatchDeliversTask(t *testing.T) {
	d, err := NewGoChannelDispatcher(Limits{}, logger.NopLogger{})
	require.NoError(t, err)
	defer d.Close()

	got := make(chan Task, 1)
	require.NoError(t, d.Start(context.Background(), func(_ context.Context, task Task) error {
		got <- task
		return nil
	}))

	sessionID := uuid.New()
	require.NoError(t, d.Dispatch(context.Background(), Task{
		SessionID: sessionID,
		Type:      TaskSynthesis,
		Mode:      dto.ModeDeep,
	}))

	select {
	case task := <-got:
		assert.Equal(t, sessionID, task.SessionID)
		assert.Equal(t, TaskSynthesis, task.Type)
		assert.Equal(t, dto.ModeDeep, task.Mode)
	case <-time.After(2 * time.Second):
		t.Fatal("task was never delivered")
	}
}

func TestGoChannelRunsOneTaskAtATime(t *testing.T) {
	d, err := NewGoChannelDispatcher(Limits{}, logger.NopLogger{})
	require.NoError(t, err)
	defer d.Close()

	var inFlight int64
	var maxInFlight int64
	var wg sync.WaitGroup
	wg.Add(3)

	require.NoError(t, d.Start(context.Background(), func(_ context.Context, _ Task) error {
		defer wg.Done()
		current := atomic.AddInt64(&inFlight, 1)
		for {
			observed := atomic.LoadInt64(&maxInFlight)
			if current <= observed || atomic.CompareAndSwapInt64(&maxInFlight, observed, current) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil
	}))

	for i := 0; i < 3; i++ {
		require.NoError(t, d.Dispatch(context.Background(), Task{SessionID: uuid.New(), Type: TaskPurge}))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("tasks did not finish")
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&maxInFlight), "tasks must run strictly one at a time")
}

func TestRunBoundedHardLimitCancelsContext(t *testing.T) {
	task := Task{SessionID: uuid.New(), Type: TaskSynthesis}
	start := time.Now()
	err := runBounded(context.Background(), func(ctx context.Context, _ Task) error {
		<-ctx.Done()
		return ctx.Err()
	}, task, Limits{Hard: 30 * time.Millisecond}, logger.NopLogger{})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunBoundedNoLimitsRunsToCompletion(t *testing.T) {
	task := Task{SessionID: uuid.New(), Type: TaskPurge}
	err := runBounded(context.Background(), func(_ context.Context, _ Task) error {
		return nil
	}, task, Limits{}, logger.NopLogger{})
	assert.NoError(t, err)
}

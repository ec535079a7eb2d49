package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("boom")
		}
		done <- job
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "auto_assign"}))

	select {
	case job := <-done:
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, 2, job.Attempt)
	case <-time.After(time.Second):
		t.Fatal("job was not retried to completion")
	}
	assert.Eventually(t, func() bool { return q.Stats().Succeeded == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), q.Stats().Retried)
}

func TestQueueRecoversPanics(t *testing.T) {
	q := NewQueue("panics", func(ctx context.Context, job Job) error {
		panic("bad job")
	}, QueueConfig{MaxRetries: 0})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j1"}))
	assert.Eventually(t, func() bool { return q.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})
	assert.Error(t, q.Enqueue(Job{ID: "j1"}))
}

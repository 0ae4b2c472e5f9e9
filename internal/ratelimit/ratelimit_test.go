package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codevault/codevault/internal/cverr"
)

func TestWaitAdmitsWithinBudget(t *testing.T) {
	l := New(600, 100000, 10)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, l.Wait(ctx, 10))
	require.NoError(t, l.Wait(ctx, 10))
}

func TestWaitRejectsWhenQueueFull(t *testing.T) {
	l := New(1, 1000, 1)
	// Spend the burst of one request so the next Wait blocks.
	require.NoError(t, l.Wait(context.Background(), 1))

	blockedCtx, cancelBlocked := context.WithCancel(context.Background())
	first := make(chan struct{})
	go func() {
		l.Wait(blockedCtx, 1)
		close(first)
	}()

	// Give the goroutine time to take the single queue slot and block on
	// the request budget.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, 1)
	require.Error(t, err)
	kind, ok := cverr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, cverr.KindRateLimited, kind)
	assert.Contains(t, err.Error(), "queue is full")

	cancelBlocked()
	<-first
}

func TestBackoffDelaySchedule(t *testing.T) {
	assert.Equal(t, 1*time.Second, BackoffDelay(0))
	assert.Equal(t, 2*time.Second, BackoffDelay(1))
	assert.Equal(t, 5*time.Second, BackoffDelay(2))
	assert.Equal(t, 10*time.Second, BackoffDelay(3))
	assert.Equal(t, 10*time.Second, BackoffDelay(99))
	assert.Equal(t, 4, MaxAttempts())
}

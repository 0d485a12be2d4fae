package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"puzzlemarket/internal/cache"
	"puzzlemarket/internal/notifications"
	"puzzlemarket/internal/repository"
	"puzzlemarket/internal/service"
	"puzzlemarket/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOnce_RejectsOverlap(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	r := NewRunner("slow", time.Hour, func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, r.RunOnce(context.Background()))
	}()

	<-started
	assert.ErrorIs(t, r.RunOnce(context.Background()), ErrBusy)

	close(release)
	wg.Wait()
	assert.Equal(t, int64(1), r.Runs())
}

func TestRun_TicksUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := make(chan struct{}, 10)
	r := NewRunner("tick", 10*time.Millisecond, func(ctx context.Context) error {
		calls <- struct{}{}
		if len(calls) >= 3 {
			cancel()
		}
		return errors.New("failures are logged, not fatal")
	}, nil)

	err := r.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, r.Runs(), int64(3))
}

func TestNewRunner_DefaultInterval(t *testing.T) {
	r := NewRunner("noop", 0, func(context.Context) error { return nil }, nil)
	assert.Equal(t, time.Minute, r.interval)
}

func TestDigestJob_LockHeldIsNotAnError(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	mr := miniredis.RunT(t)
	rdb, err := cache.NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	digests := service.NewDigestService(repository.NewStores(db), notifications.LogDigestMailer{}, rdb,
		service.DigestConfig{Threshold: 12 * time.Hour}, nil)
	job := DigestJob(digests, nil)

	held, err := cache.AcquireLock(ctx, rdb, cache.DigestLockKey, time.Minute)
	require.NoError(t, err)
	assert.NoError(t, job(ctx))

	require.NoError(t, held.Release(ctx))
	assert.NoError(t, job(ctx))
	assert.False(t, mr.Exists(cache.DigestLockKey))
}
